package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workstation leaves *.lck entries next to the .vmx while a VM is open and
// normally removes them on exit. Leftover locks next to a non-running VM
// usually mean an unclean Workstation exit and block the next power-on.

// hasStaleLocks reports whether any .lck entry exists in the VM's directory.
// A missing or unreadable directory reads as "no locks".
func hasStaleLocks(configPath string) bool {
	entries, err := os.ReadDir(filepath.Dir(configPath))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".lck") {
			return true
		}
	}
	return false
}

// removeLocks deletes every .lck entry in the VM's directory.
func removeLocks(configPath string) error {
	dir := filepath.Dir(configPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read vm directory: %w", err)
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".lck") {
			continue
		}
		lockPath := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(lockPath); err != nil {
			return fmt.Errorf("remove lock %s: %w", lockPath, err)
		}
	}
	return nil
}
