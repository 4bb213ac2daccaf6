// Package vm implements the guest lifecycle and metadata engine for VMware
// Workstation virtual machines controlled through the vmrun utility.
package vm

import "context"

// PowerState is the live power state of a virtual machine. It is never
// stored: the hypervisor can change it at any time outside this process
// (e.g. the operator using the Workstation UI), so it is queried fresh on
// every listing.
type PowerState string

const (
	PowerStateRunning   PowerState = "running"
	PowerStateStopped   PowerState = "stopped"
	PowerStateSuspended PowerState = "suspended"
	PowerStateUnknown   PowerState = "unknown"
)

// VirtualMachine identifies one configured VM. Records are produced by a
// registry scan and are immutable thereafter.
type VirtualMachine struct {
	// Name is unique within the registry and is the handle every engine
	// operation takes.
	Name string `json:"name"`
	// DisplayName is the vmx displayName value, or the file basename when
	// the configuration declares none.
	DisplayName string `json:"display_name"`
	// Lab is the configured lab grouping the VM was found under.
	Lab string `json:"lab"`
	// ConfigPath is the absolute path to the VM's .vmx configuration file.
	ConfigPath string `json:"config_path"`
}

// NetworkInterface describes one ethernet adapter declared in a VM's
// configuration file, whether or not the adapter is currently connected.
type NetworkInterface struct {
	// MAC is the adapter's MAC address in colon-hex form, as declared.
	MAC string `json:"mac"`
	// Network is the virtual network the adapter attaches to, when declared.
	Network string `json:"network,omitempty"`
}

// GuestMetadata is the per-request derived view of a VM's network identity.
// Interfaces always comes from the static configuration file; PrimaryIP comes
// from the guest tools and is empty whenever the tools are unreachable, the
// guest is not running, or the query timed out. The two sources are
// independent: a failure in one never suppresses the other.
type GuestMetadata struct {
	PrimaryIP  string             `json:"primary_ip,omitempty"`
	Interfaces []NetworkInterface `json:"interfaces"`
	Snapshots  []string           `json:"snapshots"`
}

// VMRecord is one dashboard row: the VM's identity, live power state, stale
// lock indication, and freshly gathered metadata.
type VMRecord struct {
	VirtualMachine
	State PowerState `json:"state"`
	// HasStaleLocks reports leftover .lck entries next to a non-running VM,
	// which usually indicate an unclean Workstation exit.
	HasStaleLocks bool `json:"has_stale_locks"`
	GuestMetadata
}

// Engine is the synchronous API the tool surface calls into. All mutating
// operations are subject to the one-in-flight-per-VM rule and return ErrBusy
// when violated.
type Engine interface {
	ListVMsWithMetadata(ctx context.Context) ([]VMRecord, error)
	GetMetadata(ctx context.Context, machine VirtualMachine) GuestMetadata
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, graceful bool) error
	Restart(ctx context.Context, name string) error
	Snapshot(ctx context.Context, name string) (string, error)
	ListSnapshots(ctx context.Context, name string) ([]string, error)
	CleanLocks(ctx context.Context, name string) error
}
