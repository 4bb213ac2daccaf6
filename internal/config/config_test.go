package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTempFile creates a file with the given content in a temp dir and
// returns its path.
func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempFile(t, `
server:
  port: 9090
  auth_token: secret-token
safety:
  vms:
    allowlist:
      - "lab-*"
    denylist:
      - "lab-prod"
vmware:
  vmrun_path: /opt/vmware/vmrun
  guest_query_timeout: 10
  labs:
    - name: primary
      dir: /srv/vms/primary
    - name: scratch
      dir: /srv/vms/scratch
audit:
  enabled: true
  log_path: /tmp/audit.log
  max_size_mb: 50
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() = %v, want nil", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "secret-token" {
		t.Errorf("Server.AuthToken = %q, want %q", cfg.Server.AuthToken, "secret-token")
	}
	if len(cfg.Safety.VMs.Allowlist) != 1 || cfg.Safety.VMs.Allowlist[0] != "lab-*" {
		t.Errorf("Safety.VMs.Allowlist = %v, want [lab-*]", cfg.Safety.VMs.Allowlist)
	}
	if len(cfg.Safety.VMs.Denylist) != 1 || cfg.Safety.VMs.Denylist[0] != "lab-prod" {
		t.Errorf("Safety.VMs.Denylist = %v, want [lab-prod]", cfg.Safety.VMs.Denylist)
	}
	if cfg.VMware.VmrunPath != "/opt/vmware/vmrun" {
		t.Errorf("VMware.VmrunPath = %q, want /opt/vmware/vmrun", cfg.VMware.VmrunPath)
	}
	if cfg.VMware.GuestQueryTimeout != 10 {
		t.Errorf("VMware.GuestQueryTimeout = %d, want 10", cfg.VMware.GuestQueryTimeout)
	}
	if len(cfg.VMware.Labs) != 2 {
		t.Fatalf("len(VMware.Labs) = %d, want 2", len(cfg.VMware.Labs))
	}
	if cfg.VMware.Labs[0].Name != "primary" || cfg.VMware.Labs[0].Dir != "/srv/vms/primary" {
		t.Errorf("VMware.Labs[0] = %+v, want {primary /srv/vms/primary}", cfg.VMware.Labs[0])
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled = false, want true")
	}
	if cfg.Audit.LogPath != "/tmp/audit.log" {
		t.Errorf("Audit.LogPath = %q, want /tmp/audit.log", cfg.Audit.LogPath)
	}
	if cfg.Audit.MaxSizeMB != 50 {
		t.Errorf("Audit.MaxSizeMB = %d, want 50", cfg.Audit.MaxSizeMB)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeTempFile(t, `
vmware:
  labs:
    - name: primary
      dir: /srv/vms
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() = %v, want nil", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.VMware.VmrunPath != "/usr/bin/vmrun" {
		t.Errorf("default VMware.VmrunPath = %q, want /usr/bin/vmrun", cfg.VMware.VmrunPath)
	}
	if cfg.VMware.GuestQueryTimeout != 5 {
		t.Errorf("default VMware.GuestQueryTimeout = %d, want 5", cfg.VMware.GuestQueryTimeout)
	}
	if cfg.Audit.LogPath != "/var/log/vmrun-mcp/audit.log" {
		t.Errorf("default Audit.LogPath = %q", cfg.Audit.LogPath)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadConfig(missing file) = nil, want error")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "server: [not: valid\n")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig(invalid yaml) = nil, want error")
	}
}

func TestDefaultConfig_DistinctInstances(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a == b {
		t.Fatal("DefaultConfig() returned the same instance twice")
	}
	a.Server.Port = 1234
	if b.Server.Port != 8080 {
		t.Errorf("mutating one instance affected the other: Port = %d", b.Server.Port)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("VMRUN_MCP_AUTH_TOKEN", "env-token")
	t.Setenv("VMRUN_MCP_VMRUN_PATH", "/custom/vmrun")

	cfg := DefaultConfig()
	cfg.Server.AuthToken = "file-token"
	ApplyEnvOverrides(cfg)

	if cfg.Server.AuthToken != "env-token" {
		t.Errorf("AuthToken = %q, want env override", cfg.Server.AuthToken)
	}
	if cfg.VMware.VmrunPath != "/custom/vmrun" {
		t.Errorf("VmrunPath = %q, want env override", cfg.VMware.VmrunPath)
	}
}

func TestApplyEnvOverrides_EmptyEnvKeepsConfig(t *testing.T) {
	t.Setenv("VMRUN_MCP_AUTH_TOKEN", "")
	t.Setenv("VMRUN_MCP_VMRUN_PATH", "")

	cfg := DefaultConfig()
	cfg.Server.AuthToken = "file-token"
	ApplyEnvOverrides(cfg)

	if cfg.Server.AuthToken != "file-token" {
		t.Errorf("AuthToken = %q, want file value preserved", cfg.Server.AuthToken)
	}
	if cfg.VMware.VmrunPath != "/usr/bin/vmrun" {
		t.Errorf("VmrunPath = %q, want default preserved", cfg.VMware.VmrunPath)
	}
}

func TestEnsureAuthToken(t *testing.T) {
	t.Run("existing token preserved", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.AuthToken = "existing"

		token, err := EnsureAuthToken(cfg)
		if err != nil {
			t.Fatalf("EnsureAuthToken() = %v", err)
		}
		if token != "existing" {
			t.Errorf("token = %q, want existing value", token)
		}
	})

	t.Run("empty token generates one", func(t *testing.T) {
		cfg := DefaultConfig()

		token, err := EnsureAuthToken(cfg)
		if err != nil {
			t.Fatalf("EnsureAuthToken() = %v", err)
		}
		if len(token) != 32 {
			t.Errorf("generated token length = %d, want 32", len(token))
		}
		if cfg.Server.AuthToken != token {
			t.Errorf("cfg.Server.AuthToken = %q, want %q", cfg.Server.AuthToken, token)
		}
	})
}

func TestGenerateRandomToken(t *testing.T) {
	a, err := GenerateRandomToken()
	if err != nil {
		t.Fatalf("GenerateRandomToken() = %v", err)
	}
	b, err := GenerateRandomToken()
	if err != nil {
		t.Fatalf("GenerateRandomToken() = %v", err)
	}
	if len(a) != 32 {
		t.Errorf("token length = %d, want 32", len(a))
	}
	if a == b {
		t.Error("two generated tokens are identical")
	}
}
