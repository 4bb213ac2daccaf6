package vm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pvelleman/vmrun-mcp/internal/vmrun"
)

// snapshotLabelLayout is sortable and filesystem-safe, with one-second
// granularity.
const snapshotLabelLayout = "2006-01-02_15-04-05"

// metadataConcurrency bounds the per-VM metadata fan-out so a large lab does
// not spawn one vmrun process per VM at once.
const metadataConcurrency = 4

// Manager drives VM power state, snapshots, and metadata through the vmrun
// control interface. It enforces at most one in-flight mutating operation per
// VM name; the hypervisor's own locking is not assumed reentrant-safe, so a
// conflicting request is rejected with ErrBusy rather than queued.
//
// There is no background polling and no cache: every call re-queries the
// hypervisor, trading efficiency for always-current data at the low request
// rate of a single operator.
type Manager struct {
	registry     *Registry
	runner       vmrun.Runner
	guestTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	inflight  map[string]struct{}
	lastLabel map[string]string
	labelSeq  map[string]int
}

var _ Engine = (*Manager)(nil)

// NewManager returns a Manager over the given registry and runner.
// guestTimeout bounds each guest-tools IP query; values <= 0 fall back to
// five seconds.
func NewManager(registry *Registry, runner vmrun.Runner, guestTimeout time.Duration) *Manager {
	if guestTimeout <= 0 {
		guestTimeout = 5 * time.Second
	}
	return &Manager{
		registry:     registry,
		runner:       runner,
		guestTimeout: guestTimeout,
		now:          time.Now,
		inflight:     make(map[string]struct{}),
		lastLabel:    make(map[string]string),
		labelSeq:     make(map[string]int),
	}
}

// ----------------------------------------------------------------------------
// Busy tracking
// ----------------------------------------------------------------------------

// acquire marks name as having a mutating operation in flight. It fails with
// ErrBusy when one already is; it never waits.
func (m *Manager) acquire(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[name]; ok {
		return fmt.Errorf("vm %q: %w", name, ErrBusy)
	}
	m.inflight[name] = struct{}{}
	return nil
}

// release clears the in-flight marker. Always deferred right after a
// successful acquire so every exit path releases.
func (m *Manager) release(name string) {
	m.mu.Lock()
	delete(m.inflight, name)
	m.mu.Unlock()
}

// ----------------------------------------------------------------------------
// Power controller
// ----------------------------------------------------------------------------

// Start powers on the named VM and blocks until vmrun exits.
func (m *Manager) Start(ctx context.Context, name string) error {
	machine, err := m.registry.Lookup(name)
	if err != nil {
		return err
	}
	if err := m.acquire(name); err != nil {
		return err
	}
	defer m.release(name)

	return m.runCommand(ctx, machine, "start", "", vmrun.StartArgs(machine.ConfigPath))
}

// Stop powers off the named VM. Graceful asks the guest OS to shut itself
// down; otherwise the virtual power is cut.
func (m *Manager) Stop(ctx context.Context, name string, graceful bool) error {
	machine, err := m.registry.Lookup(name)
	if err != nil {
		return err
	}
	if err := m.acquire(name); err != nil {
		return err
	}
	defer m.release(name)

	return m.runCommand(ctx, machine, "stop", "", vmrun.StopArgs(machine.ConfigPath, graceful))
}

// Restart gracefully stops and then starts the named VM. vmrun's native
// reset is a hard power cycle, so the graceful sequence is composed here; a
// stop-phase failure aborts before start is ever issued and the returned
// OperationError records which phase failed. Nothing is retried.
func (m *Manager) Restart(ctx context.Context, name string) error {
	machine, err := m.registry.Lookup(name)
	if err != nil {
		return err
	}
	if err := m.acquire(name); err != nil {
		return err
	}
	defer m.release(name)

	if err := m.runCommand(ctx, machine, "restart", "stop", vmrun.StopArgs(machine.ConfigPath, true)); err != nil {
		return err
	}
	return m.runCommand(ctx, machine, "restart", "start", vmrun.StartArgs(machine.ConfigPath))
}

// runCommand executes one vmrun command for machine, mapping a non-zero exit
// to an OperationError carrying the captured diagnostic text verbatim.
func (m *Manager) runCommand(ctx context.Context, machine VirtualMachine, action, phase string, args []string) error {
	res, err := m.runner.Run(ctx, args...)
	if err != nil {
		return fmt.Errorf("%s vm %q: %w", action, machine.Name, err)
	}
	if res.ExitCode != 0 {
		return &OperationError{
			VM:       machine.Name,
			Action:   action,
			Phase:    phase,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Stdout:   res.Stdout,
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Snapshot manager
// ----------------------------------------------------------------------------

// Snapshot creates a snapshot of the named VM labeled with the current
// timestamp and returns the label. The label is generated at dispatch time,
// after the busy slot is acquired; two snapshots of the same VM within the
// same second get distinct labels via a numeric suffix, never a silent
// overwrite.
func (m *Manager) Snapshot(ctx context.Context, name string) (string, error) {
	machine, err := m.registry.Lookup(name)
	if err != nil {
		return "", err
	}
	if err := m.acquire(name); err != nil {
		return "", err
	}
	defer m.release(name)

	label := m.nextLabel(name)
	if err := m.runCommand(ctx, machine, "snapshot", "", vmrun.SnapshotArgs(machine.ConfigPath, label)); err != nil {
		return "", err
	}
	return label, nil
}

// nextLabel formats the clock into a snapshot label, disambiguating repeats
// of the same second for the same VM with an _2, _3, ... suffix.
func (m *Manager) nextLabel(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.now().Format(snapshotLabelLayout)
	if m.lastLabel[name] == base {
		m.labelSeq[name]++
		return fmt.Sprintf("%s_%d", base, m.labelSeq[name]+1)
	}
	m.lastLabel[name] = base
	m.labelSeq[name] = 0
	return base
}

// ListSnapshots returns the snapshot names recorded for the named VM.
func (m *Manager) ListSnapshots(ctx context.Context, name string) ([]string, error) {
	machine, err := m.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return m.listSnapshots(ctx, machine)
}

func (m *Manager) listSnapshots(ctx context.Context, machine VirtualMachine) ([]string, error) {
	res, err := m.runner.Run(ctx, vmrun.ListSnapshotsArgs(machine.ConfigPath)...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for vm %q: %w", machine.Name, err)
	}
	if res.ExitCode != 0 {
		return nil, &OperationError{
			VM:       machine.Name,
			Action:   "listSnapshots",
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Stdout:   res.Stdout,
		}
	}
	return parseSnapshotList(res.Stdout), nil
}

// parseSnapshotList drops vmrun's "Total snapshots: N" header line and
// returns the remaining non-empty lines.
func parseSnapshotList(stdout string) []string {
	var out []string
	for i, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ----------------------------------------------------------------------------
// Lock cleanup
// ----------------------------------------------------------------------------

// CleanLocks removes leftover .lck entries next to the named VM's
// configuration. It mutates hypervisor state on disk, so it is subject to the
// same one-in-flight rule as power operations.
func (m *Manager) CleanLocks(ctx context.Context, name string) error {
	machine, err := m.registry.Lookup(name)
	if err != nil {
		return err
	}
	if err := m.acquire(name); err != nil {
		return err
	}
	defer m.release(name)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("clean locks for vm %q: %w", name, err)
	}
	if err := removeLocks(machine.ConfigPath); err != nil {
		return fmt.Errorf("clean locks for vm %q: %w", name, err)
	}
	return nil
}

// ----------------------------------------------------------------------------
// Guest tooling query
// ----------------------------------------------------------------------------

// queryPrimaryIP asks the guest tools for the VM's primary IP address, with
// a bounded timeout so a hung guest agent cannot stall a dashboard refresh.
// "No IP" is a normal outcome, not an error: tools not installed, guest not
// running, guest still booting, and query timeout all collapse to "". Only a
// missing control interface propagates as an error.
func (m *Manager) queryPrimaryIP(ctx context.Context, machine VirtualMachine) (string, error) {
	qctx, cancel := context.WithTimeout(ctx, m.guestTimeout)
	defer cancel()

	res, err := m.runner.Run(qctx, vmrun.GuestIPArgs(machine.ConfigPath)...)
	switch {
	case err == nil:
	case errors.Is(err, vmrun.ErrControlInterfaceMissing):
		return "", err
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("guest ip: query for %q timed out after %s", machine.Name, m.guestTimeout)
		return "", nil
	default:
		log.Printf("guest ip: query for %q: %v", machine.Name, err)
		return "", nil
	}

	if res.ExitCode != 0 {
		return "", nil
	}
	ip := strings.TrimSpace(res.Stdout)
	if ip == "" || strings.EqualFold(ip, "unknown") {
		return "", nil
	}
	return ip, nil
}

// ----------------------------------------------------------------------------
// Metadata aggregator
// ----------------------------------------------------------------------------

// GetMetadata gathers the view-ready metadata for one VM. The static
// configuration parse and the guest-tools query run independently; a
// guest-tools failure or timeout never suppresses the parsed interfaces.
func (m *Manager) GetMetadata(ctx context.Context, machine VirtualMachine) GuestMetadata {
	return m.metadataFor(ctx, machine, true)
}

func (m *Manager) metadataFor(ctx context.Context, machine VirtualMachine, queryGuest bool) GuestMetadata {
	md := GuestMetadata{Interfaces: ParseInterfaces(machine.ConfigPath)}

	if snaps, err := m.listSnapshots(ctx, machine); err != nil {
		log.Printf("metadata: snapshots for %q: %v", machine.Name, err)
	} else {
		md.Snapshots = snaps
	}

	if queryGuest {
		ip, err := m.queryPrimaryIP(ctx, machine)
		if err != nil {
			log.Printf("metadata: guest ip for %q: %v", machine.Name, err)
		} else {
			md.PrimaryIP = ip
		}
	}
	return md
}

// ListVMsWithMetadata returns one record per registry VM, in registry order,
// regardless of individual VM failures; a VM whose metadata is partially
// unavailable still gets a row. Metadata for different VMs is gathered
// concurrently (bounded), which keeps one slow guest from delaying the rest.
func (m *Manager) ListVMsWithMetadata(ctx context.Context) ([]VMRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list vms: %w", err)
	}

	machines := m.registry.List()
	running, listErr := m.runningSet(ctx)
	if listErr != nil {
		log.Printf("list: running set unavailable: %v", listErr)
	}

	records := make([]VMRecord, len(machines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataConcurrency)
	for i, machine := range machines {
		g.Go(func() error {
			state := powerStateFor(machine, running, listErr)
			records[i] = VMRecord{
				VirtualMachine: machine,
				State:          state,
				HasStaleLocks:  state != PowerStateRunning && hasStaleLocks(machine.ConfigPath),
				GuestMetadata:  m.metadataFor(gctx, machine, state == PowerStateRunning),
			}
			return nil
		})
	}
	_ = g.Wait()
	return records, nil
}

// runningSet runs "vmrun list" and returns the set of running .vmx paths.
func (m *Manager) runningSet(ctx context.Context) (map[string]bool, error) {
	res, err := m.runner.Run(ctx, vmrun.ListArgs()...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &OperationError{
			Action:   "list",
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Stdout:   res.Stdout,
		}
	}

	running := make(map[string]bool)
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(strings.ToLower(line), ".vmx") {
			running[line] = true
		}
	}
	return running, nil
}

// powerStateFor resolves a VM's live state: Unknown when the running set
// could not be read at all, otherwise Running per "vmrun list", Suspended
// when a saved-state file sits next to the vmx, else Stopped.
func powerStateFor(machine VirtualMachine, running map[string]bool, listErr error) PowerState {
	switch {
	case listErr != nil:
		return PowerStateUnknown
	case running[machine.ConfigPath]:
		return PowerStateRunning
	case suspendedStateExists(machine.ConfigPath):
		return PowerStateSuspended
	default:
		return PowerStateStopped
	}
}

// suspendedStateExists checks for the .vmss saved-state file Workstation
// writes alongside the .vmx when a VM is suspended.
func suspendedStateExists(configPath string) bool {
	base := strings.TrimSuffix(configPath, filepath.Ext(configPath))
	_, err := os.Stat(base + ".vmss")
	return err == nil
}
