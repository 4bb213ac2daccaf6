package vmrun

// Argument vocabulary for VMware Workstation's vmrun. The host type flag
// ("-T ws") selects the Workstation backend; snapshot subcommands take no
// host type flag, matching the tool's own documentation.

// hostType selects the VMware Workstation control backend.
const hostType = "ws"

// StartArgs builds the arguments to power on the VM at vmxPath without
// opening a Workstation UI window.
func StartArgs(vmxPath string) []string {
	return []string{"-T", hostType, "start", vmxPath, "nogui"}
}

// StopArgs builds the arguments to power off the VM at vmxPath. Graceful
// requests a guest-initiated shutdown ("soft"); otherwise the power is cut
// ("hard").
func StopArgs(vmxPath string, graceful bool) []string {
	mode := "hard"
	if graceful {
		mode = "soft"
	}
	return []string{"-T", hostType, "stop", vmxPath, mode}
}

// SnapshotArgs builds the arguments to create a snapshot with the given label.
func SnapshotArgs(vmxPath, label string) []string {
	return []string{"snapshot", vmxPath, label}
}

// ListSnapshotsArgs builds the arguments to list a VM's snapshots.
func ListSnapshotsArgs(vmxPath string) []string {
	return []string{"listSnapshots", vmxPath}
}

// GuestIPArgs builds the arguments to ask the guest tools for the VM's
// primary IP address.
func GuestIPArgs(vmxPath string) []string {
	return []string{"-T", hostType, "getGuestIPAddress", vmxPath}
}

// ListArgs builds the arguments to list currently running VMs.
func ListArgs() []string {
	return []string{"list"}
}
