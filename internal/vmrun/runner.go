// Package vmrun invokes the VMware Workstation vmrun control utility as an
// external process and captures its exit status and output streams.
//
// Every hypervisor interaction in this server (power commands, snapshot
// creation, guest-tools queries, the running-VM listing) goes through the
// Runner interface, so tests substitute a fake and production uses ExecRunner
// over the real binary.
package vmrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// ErrControlInterfaceMissing indicates the vmrun executable is not installed,
// not found, or not executable on this host. Unlike a failing vmrun command,
// this is a host misconfiguration and is surfaced as a hard error on every
// mutating call.
var ErrControlInterfaceMissing = errors.New("vmrun control executable unavailable")

// Result holds the outcome of one vmrun invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs one vmrun command to completion and reports its result.
// A non-zero exit status is reported through Result.ExitCode, not through the
// error return; the error is reserved for failures to run the command at all
// (missing binary, cancelled context).
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct {
	path string
}

// NewExecRunner returns an ExecRunner that invokes the vmrun binary at path.
// The path is not validated eagerly; use Check for a startup diagnostic.
func NewExecRunner(path string) *ExecRunner {
	return &ExecRunner{path: path}
}

// Check verifies that the configured binary exists and is executable,
// returning an error wrapping ErrControlInterfaceMissing if not. Intended as
// a startup diagnostic; Run performs the same mapping per call.
func (r *ExecRunner) Check() error {
	if r.path == "" {
		return fmt.Errorf("%w: no path configured", ErrControlInterfaceMissing)
	}
	if _, err := exec.LookPath(r.path); err != nil {
		return fmt.Errorf("%w: %v", ErrControlInterfaceMissing, err)
	}
	return nil
}

// Run executes the vmrun binary with the given arguments, blocking until the
// process exits or ctx is done. Output streams are captured in full.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, r.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		// Context expiry kills the child; report that as the caller's
		// deadline rather than a synthetic exit status.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return res, fmt.Errorf("%w: %v", ErrControlInterfaceMissing, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	return res, fmt.Errorf("run %s: %w", r.path, err)
}
