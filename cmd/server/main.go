// Package main is the entry point for the vmrun-mcp server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/pvelleman/vmrun-mcp/internal/auth"
	"github.com/pvelleman/vmrun-mcp/internal/config"
	"github.com/pvelleman/vmrun-mcp/internal/safety"
	"github.com/pvelleman/vmrun-mcp/internal/tools"
	"github.com/pvelleman/vmrun-mcp/internal/vm"
	"github.com/pvelleman/vmrun-mcp/internal/vmrun"
)

const defaultConfigPath = "/etc/vmrun-mcp/config.yaml"

func main() {
	cfg := loadConfig()
	config.ApplyEnvOverrides(cfg)

	tokenBefore := cfg.Server.AuthToken
	token, err := config.EnsureAuthToken(cfg)
	if err != nil {
		log.Printf("warning: could not generate auth token: %v; running without authentication", err)
	} else if tokenBefore == "" {
		log.Printf("generated auth token (set VMRUN_MCP_AUTH_TOKEN to persist): %s", token)
	}

	// Open audit log writer if enabled.
	var auditLogger *safety.AuditLogger
	if cfg.Audit.Enabled {
		f, err := os.OpenFile(cfg.Audit.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Printf("warning: could not open audit log %q: %v; audit logging disabled", cfg.Audit.LogPath, err)
		} else {
			auditLogger = safety.NewAuditLogger(f)
			defer f.Close()
		}
	}

	vmFilter := safety.NewFilter(
		cfg.Safety.VMs.Allowlist,
		cfg.Safety.VMs.Denylist,
	)
	vmConfirm := safety.NewConfirmationTracker(vm.DestructiveTools)

	// Build the engine. A missing vmrun binary is only a warning here: the
	// dashboard can still serve configuration-derived metadata, and every
	// power or snapshot call surfaces the condition individually.
	runner := vmrun.NewExecRunner(cfg.VMware.VmrunPath)
	if err := runner.Check(); err != nil {
		log.Printf("warning: %v; power and snapshot operations will fail until vmrun is available", err)
	}

	labs := make([]vm.Lab, 0, len(cfg.VMware.Labs))
	for _, lab := range cfg.VMware.Labs {
		labs = append(labs, vm.Lab{Name: lab.Name, Dir: lab.Dir})
	}
	registry := vm.NewRegistry(labs)
	manager := vm.NewManager(registry, runner, time.Duration(cfg.VMware.GuestQueryTimeout)*time.Second)

	// Build MCP server and register all tools.
	mcpServer := server.NewMCPServer(
		"vmrun-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	tools.RegisterAll(mcpServer, vm.VMTools(manager, vmFilter, vmConfirm, auditLogger))

	// Build Streamable HTTP server and wrap with auth middleware.
	httpHandler := server.NewStreamableHTTPServer(mcpServer)
	authMiddleware := auth.NewAuthMiddleware(cfg.Server.AuthToken)
	wrappedHandler := authMiddleware(httpHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           wrappedHandler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("vmrun-mcp listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	log.Println("server stopped")
}

// loadConfig attempts to read the config file from the path specified by
// VMRUN_MCP_CONFIG_PATH or the default /etc/vmrun-mcp/config.yaml. If the
// file cannot be read, DefaultConfig is returned.
func loadConfig() *config.Config {
	path := os.Getenv("VMRUN_MCP_CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Printf("could not load config from %q (%v), using defaults", path, err)
		return config.DefaultConfig()
	}

	log.Printf("loaded config from %q", path)
	return cfg
}
