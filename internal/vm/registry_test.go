package vm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_List(t *testing.T) {
	lab1 := t.TempDir()
	lab2 := t.TempDir()

	writeVMX(t, lab1, "bravo.vmx", `displayName = "Bravo"`+"\n")
	writeVMX(t, lab1, "alpha.vmx", "")
	nested := filepath.Join(lab2, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeVMX(t, nested, "charlie.vmx", "")
	// Non-vmx files are ignored.
	writeVMX(t, lab1, "notes.txt", "not a vm")

	registry := NewRegistry([]Lab{
		{Name: "lab-one", Dir: lab1},
		{Name: "lab-two", Dir: lab2},
	})

	machines := registry.List()
	if len(machines) != 3 {
		t.Fatalf("len(machines) = %d, want 3: %+v", len(machines), machines)
	}

	// Labs in configured order, paths sorted within each lab.
	wantNames := []string{"alpha", "Bravo", "charlie"}
	wantLabs := []string{"lab-one", "lab-one", "lab-two"}
	for i := range wantNames {
		if machines[i].Name != wantNames[i] {
			t.Errorf("machines[%d].Name = %q, want %q", i, machines[i].Name, wantNames[i])
		}
		if machines[i].Lab != wantLabs[i] {
			t.Errorf("machines[%d].Lab = %q, want %q", i, machines[i].Lab, wantLabs[i])
		}
	}

	if machines[1].DisplayName != "Bravo" {
		t.Errorf("DisplayName = %q, want declared vmx value", machines[1].DisplayName)
	}
	if machines[0].DisplayName != "alpha" {
		t.Errorf("DisplayName fallback = %q, want file basename", machines[0].DisplayName)
	}
}

func TestRegistry_DuplicateNamesGetSuffix(t *testing.T) {
	dir := t.TempDir()
	writeVMX(t, dir, "a.vmx", `displayName = "clone"`+"\n")
	writeVMX(t, dir, "b.vmx", `displayName = "clone"`+"\n")
	writeVMX(t, dir, "c.vmx", `displayName = "clone"`+"\n")

	registry := NewRegistry([]Lab{{Name: "lab", Dir: dir}})
	machines := registry.List()
	if len(machines) != 3 {
		t.Fatalf("len(machines) = %d, want 3", len(machines))
	}

	want := []string{"clone", "clone-2", "clone-3"}
	for i := range want {
		if machines[i].Name != want[i] {
			t.Errorf("machines[%d].Name = %q, want %q", i, machines[i].Name, want[i])
		}
	}
}

func TestRegistry_MissingLabDirYieldsNothing(t *testing.T) {
	registry := NewRegistry([]Lab{
		{Name: "ghost", Dir: filepath.Join(t.TempDir(), "does-not-exist")},
	})
	if machines := registry.List(); len(machines) != 0 {
		t.Errorf("List() = %+v, want empty for missing lab dir", machines)
	}
}

func TestRegistry_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	writeVMX(t, dir, "upper.VMX", "")

	registry := NewRegistry([]Lab{{Name: "lab", Dir: dir}})
	machines := registry.List()
	if len(machines) != 1 {
		t.Fatalf("len(machines) = %d, want 1", len(machines))
	}
	if machines[0].Name != "upper" {
		t.Errorf("Name = %q, want %q", machines[0].Name, "upper")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	dir := t.TempDir()
	vmxPath := writeVMX(t, dir, "vm1.vmx", "")
	registry := NewRegistry([]Lab{{Name: "lab", Dir: dir}})

	machine, err := registry.Lookup("vm1")
	if err != nil {
		t.Fatalf("Lookup(vm1) = %v, want nil", err)
	}
	if machine.ConfigPath != vmxPath {
		t.Errorf("ConfigPath = %q, want %q", machine.ConfigPath, vmxPath)
	}

	_, err = registry.Lookup("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(missing) = %v, want ErrNotFound", err)
	}
}
