package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pvelleman/vmrun-mcp/internal/safety"
	"github.com/pvelleman/vmrun-mcp/internal/tools"
)

// DestructiveTools lists the VM tools that require a confirmation token
// before executing.
var DestructiveTools = []string{
	"vm_stop",
	"vm_restart",
	"vm_clean_locks",
}

// VMTools returns the tool registrations for all VM MCP tools, each wired to
// the provided Engine, safety Filter, ConfirmationTracker, and AuditLogger.
func VMTools(
	eng Engine,
	filter *safety.Filter,
	confirm *safety.ConfirmationTracker,
	audit *safety.AuditLogger,
) []tools.Registration {
	return []tools.Registration{
		vmList(eng, audit),
		vmStart(eng, filter, audit),
		vmStop(eng, filter, confirm, audit),
		vmRestart(eng, filter, confirm, audit),
		vmSnapshot(eng, filter, audit),
		vmSnapshotList(eng, filter, audit),
		vmCleanLocks(eng, filter, confirm, audit),
	}
}

func vmList(eng Engine, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("vm_list",
		mcp.WithDescription("List all configured virtual machines with power state, primary IP, MAC addresses, snapshots, and stale-lock status."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		records, err := eng.ListVMsWithMetadata(ctx)
		if err != nil {
			tools.LogAudit(audit, "vm_list", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "vm_list", params, "ok", start)
		return tools.JSONResult(records), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func vmStart(eng Engine, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("vm_start",
		mcp.WithDescription("Power on a virtual machine."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("VM name"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		params := map[string]any{"name": name}

		if !filter.IsAllowed(name) {
			tools.LogAudit(audit, "vm_start", params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to VM %q is not allowed", name)), nil
		}

		if err := eng.Start(ctx, name); err != nil {
			tools.LogAudit(audit, "vm_start", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "vm_start", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("VM %q started successfully", name)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func vmStop(eng Engine, filter *safety.Filter, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "vm_stop"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Stop a running virtual machine, gracefully by default. Requires confirmation."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("VM name"),
		),
		mcp.WithBoolean("graceful",
			mcp.Description("Ask the guest OS to shut down (true, default) or cut the virtual power (false)"),
		),
		mcp.WithString("confirmation_token",
			mcp.Description("Confirmation token returned by a prior call to this tool"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		graceful := req.GetBool("graceful", true)
		token := req.GetString("confirmation_token", "")
		params := map[string]any{"name": name, "graceful": graceful}

		if !filter.IsAllowed(name) {
			tools.LogAudit(audit, toolName, params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to VM %q is not allowed", name)), nil
		}

		if !confirm.Confirm(token) {
			desc := fmt.Sprintf("This will gracefully shut down VM %q.", name)
			if !graceful {
				desc = fmt.Sprintf("This will cut the virtual power of VM %q immediately. Data loss may occur.", name)
			}
			return tools.ConfirmPrompt(confirm, toolName, name, desc), nil
		}

		if err := eng.Stop(ctx, name, graceful); err != nil {
			tools.LogAudit(audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("VM %q stopped successfully", name)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func vmRestart(eng Engine, filter *safety.Filter, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "vm_restart"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Restart a virtual machine (graceful stop, then start). Requires confirmation."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("VM name"),
		),
		mcp.WithString("confirmation_token",
			mcp.Description("Confirmation token returned by a prior call to this tool"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		token := req.GetString("confirmation_token", "")
		params := map[string]any{"name": name}

		if !filter.IsAllowed(name) {
			tools.LogAudit(audit, toolName, params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to VM %q is not allowed", name)), nil
		}

		if !confirm.Confirm(token) {
			desc := fmt.Sprintf("This will gracefully stop and then start VM %q.", name)
			return tools.ConfirmPrompt(confirm, toolName, name, desc), nil
		}

		if err := eng.Restart(ctx, name); err != nil {
			tools.LogAudit(audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("VM %q restarted successfully", name)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func vmSnapshot(eng Engine, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("vm_snapshot",
		mcp.WithDescription("Create a timestamped snapshot of a virtual machine and return its label."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("VM name"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		params := map[string]any{"name": name}

		if !filter.IsAllowed(name) {
			tools.LogAudit(audit, "vm_snapshot", params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to VM %q is not allowed", name)), nil
		}

		label, err := eng.Snapshot(ctx, name)
		if err != nil {
			tools.LogAudit(audit, "vm_snapshot", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "vm_snapshot", params, "ok: "+label, start)
		return mcp.NewToolResultText(fmt.Sprintf("snapshot %q created for VM %q", label, name)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func vmSnapshotList(eng Engine, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("vm_snapshot_list",
		mcp.WithDescription("List all snapshots of a virtual machine."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("VM name"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		params := map[string]any{"name": name}

		if !filter.IsAllowed(name) {
			tools.LogAudit(audit, "vm_snapshot_list", params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to VM %q is not allowed", name)), nil
		}

		snapshots, err := eng.ListSnapshots(ctx, name)
		if err != nil {
			tools.LogAudit(audit, "vm_snapshot_list", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "vm_snapshot_list", params, "ok", start)
		return tools.JSONResult(snapshots), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func vmCleanLocks(eng Engine, filter *safety.Filter, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "vm_clean_locks"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Remove stale .lck entries left next to a VM's configuration after an unclean exit. Requires confirmation."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("VM name"),
		),
		mcp.WithString("confirmation_token",
			mcp.Description("Confirmation token returned by a prior call to this tool"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		token := req.GetString("confirmation_token", "")
		params := map[string]any{"name": name}

		if !filter.IsAllowed(name) {
			tools.LogAudit(audit, toolName, params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to VM %q is not allowed", name)), nil
		}

		if !confirm.Confirm(token) {
			desc := fmt.Sprintf("This will delete all .lck entries in VM %q's directory. Only do this when the VM is not actually running.", name)
			return tools.ConfirmPrompt(confirm, toolName, name, desc), nil
		}

		if err := eng.CleanLocks(ctx, name); err != nil {
			tools.LogAudit(audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("stale locks cleaned for VM %q", name)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
