package vm

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Lab is one operator-configured directory tree scanned for VM
// configuration files.
type Lab struct {
	Name string
	Dir  string
}

// Registry discovers configured virtual machines by scanning the lab
// directories for .vmx files. The operator-maintained lab list is the source
// of truth; the registry only validates that each discovered file is
// readable, skipping (and logging) anything that is not. An empty result is
// a valid state, never an error.
type Registry struct {
	labs []Lab
}

// NewRegistry returns a Registry over the given labs, scanned in the order
// provided.
func NewRegistry(labs []Lab) *Registry {
	return &Registry{labs: labs}
}

// List scans every lab and returns one VirtualMachine per readable .vmx
// file: labs in configured order, paths sorted within each lab. Names are
// unique across the whole registry; a duplicate display name gets a numeric
// suffix.
func (r *Registry) List() []VirtualMachine {
	var out []VirtualMachine
	taken := make(map[string]struct{})

	for _, lab := range r.labs {
		for _, path := range findVMXFiles(lab) {
			if err := checkReadable(path); err != nil {
				log.Printf("registry: skipping %s: %v", path, err)
				continue
			}

			name := DisplayName(path)
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			out = append(out, VirtualMachine{
				Name:        uniqueName(taken, name),
				DisplayName: name,
				Lab:         lab.Name,
				ConfigPath:  path,
			})
		}
	}
	return out
}

// Lookup returns the registry entry for the given VM name.
func (r *Registry) Lookup(name string) (VirtualMachine, error) {
	for _, machine := range r.List() {
		if machine.Name == name {
			return machine, nil
		}
	}
	return VirtualMachine{}, fmt.Errorf("vm %q: %w", name, ErrNotFound)
}

// findVMXFiles walks a lab directory collecting .vmx paths in sorted order.
// Walk errors are logged and skipped; a missing lab directory yields nothing.
func findVMXFiles(lab Lab) []string {
	var paths []string
	err := filepath.WalkDir(lab.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("registry: lab %q: %v", lab.Name, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".vmx") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		log.Printf("registry: walking lab %q: %v", lab.Name, err)
	}
	sort.Strings(paths)
	return paths
}

// checkReadable verifies the configuration file can actually be opened.
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// uniqueName reserves name in taken, appending "-2", "-3", ... on collision.
func uniqueName(taken map[string]struct{}, name string) string {
	candidate := name
	for i := 2; ; i++ {
		if _, ok := taken[candidate]; !ok {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
}
