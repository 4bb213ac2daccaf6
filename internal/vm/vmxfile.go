package vm

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// The .vmx format is an ordered sequence of key = "value" lines with no
// fixed overall schema. Only the keys below are interpreted; everything else
// passes through unrecognized, which keeps the parser forward-compatible
// with whatever else Workstation writes.
//
// Per adapter slot N:
//
//	ethernetN.generatedAddress = "00:0c:29:aa:bb:cc"   auto-assigned MAC
//	ethernetN.address          = "00:50:56:aa:bb:cc"   statically set MAC
//	ethernetN.vnet             = "/dev/vmnet8"          virtual network
var (
	macKeyPattern  = regexp.MustCompile(`^ethernet(\d+)\.(generatedAddress|address)$`)
	vnetKeyPattern = regexp.MustCompile(`^ethernet(\d+)\.vnet$`)
	macValue       = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
)

// ParseInterfaces reads the VM configuration file at configPath and returns
// one NetworkInterface per adapter slot that declares a well-formed MAC
// address, ordered by first appearance in the file. Adapters are reported
// whether or not they are connected or enabled; surfacing adapters
// invisible in the hypervisor's own UI is the point. Malformed MAC entries
// are skipped silently; an unreadable file yields an empty slice and a
// logged warning, never an error, because this metadata is advisory.
func ParseInterfaces(configPath string) []NetworkInterface {
	var (
		order []string
		macs  = make(map[string]string)
		vnets = make(map[string]string)
	)

	err := scanConfigLines(configPath, func(key, value string) {
		if m := macKeyPattern.FindStringSubmatch(key); m != nil {
			slot := m[1]
			if _, seen := macs[slot]; seen || !macValue.MatchString(value) {
				// First well-formed MAC per slot wins; junk is skipped.
				return
			}
			macs[slot] = value
			order = append(order, slot)
			return
		}
		if m := vnetKeyPattern.FindStringSubmatch(key); m != nil {
			vnets[m[1]] = filepath.Base(value)
		}
	})
	if err != nil {
		log.Printf("vmx: could not parse %s: %v", configPath, err)
		return nil
	}

	out := make([]NetworkInterface, 0, len(order))
	for _, slot := range order {
		out = append(out, NetworkInterface{MAC: macs[slot], Network: vnets[slot]})
	}
	return out
}

// DisplayName returns the displayName value declared in the configuration
// file, or "" when the file is unreadable or declares none.
func DisplayName(configPath string) string {
	var name string
	err := scanConfigLines(configPath, func(key, value string) {
		if name == "" && key == "displayName" {
			name = value
		}
	})
	if err != nil {
		return ""
	}
	return name
}

// scanConfigLines reads a flat key = "value" file line by line, calling fn
// for every line that splits on '='. Values have surrounding whitespace and
// quotes stripped.
func scanConfigLines(path string, fn func(key, value string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key == "" {
			continue
		}
		fn(key, value)
	}
	return scanner.Err()
}
