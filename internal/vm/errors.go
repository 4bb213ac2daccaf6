package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pvelleman/vmrun-mcp/internal/vmrun"
)

// ErrBusy indicates a conflicting mutating operation is already in flight for
// the same VM. The second request is rejected immediately, never queued.
var ErrBusy = errors.New("vm busy: another operation is in flight")

// ErrNotFound indicates the named VM is not present in the registry.
var ErrNotFound = errors.New("vm not found")

// ErrControlInterfaceMissing re-exports the runner's sentinel so engine
// callers need not import the vmrun package to classify failures.
var ErrControlInterfaceMissing = vmrun.ErrControlInterfaceMissing

// OperationError reports a vmrun power or snapshot command that exited
// non-zero. The tool's own diagnostic text is preserved verbatim since it is
// usually the most actionable signal the operator gets.
type OperationError struct {
	VM     string
	Action string
	// Phase distinguishes the failing leg of a composite operation
	// (restart = "stop" then "start"); empty for single-command actions.
	Phase    string
	ExitCode int
	Stderr   string
	Stdout   string
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s vm %q", e.Action, e.VM)
	if e.Phase != "" {
		fmt.Fprintf(&b, " (%s phase)", e.Phase)
	}
	fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	if msg := e.diagnostic(); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	return b.String()
}

// diagnostic returns the captured error text, preferring stderr; vmrun
// sometimes writes its "Error: ..." line to stdout instead.
func (e *OperationError) diagnostic() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(e.Stdout)
}
