// Package guest models what the storage lifecycle needs to know about a
// virtual machine guest: where its directory and config file live,
// whether it exists, and whether it is running. Power state is an
// external fact owned by the hypervisor layer, exposed here only
// through the StateProber collaborator.
package guest

import (
	"os"
	"path/filepath"

	"vmstor/src/vmconfig"
)

// LogFilename is the per-guest log file a clone must not carry over.
const LogFilename = "vm-bhyve.log"

// Dir returns the guest's directory under the storage mount path.
func Dir(mountPath, name string) string {
	return filepath.Join(mountPath, name)
}

// ConfPath returns the guest's config file path. A guest exists iff
// this file does.
func ConfPath(mountPath, name string) string {
	return filepath.Join(mountPath, name, name+".conf")
}

// Exists reports whether the named guest's config file is present.
func Exists(mountPath, name string) bool {
	info, err := os.Stat(ConfPath(mountPath, name))
	return err == nil && !info.IsDir()
}

// List returns the names of all guests under the mount path, in
// directory order.
func List(mountPath string) ([]string, error) {
	entries, err := os.ReadDir(mountPath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && Exists(mountPath, entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// MACsInUse collects every MAC address configured on any guest except
// the excluded one. Used to keep regenerated addresses fleet-unique.
func MACsInUse(mountPath, exclude string) (map[string]bool, error) {
	names, err := List(mountPath)
	if err != nil {
		return nil, err
	}
	inUse := map[string]bool{}
	for _, name := range names {
		if name == exclude {
			continue
		}
		cfg, err := vmconfig.Load(ConfPath(mountPath, name))
		if err != nil {
			return nil, err
		}
		for _, iface := range cfg.NetworkInterfaces() {
			if iface.MAC != "" {
				inUse[iface.MAC] = true
			}
		}
	}
	return inUse, nil
}

// StateProber answers whether a guest is currently running.
type StateProber interface {
	Running(name string) bool
}

// LockProber checks for the guest's run lock file, which the
// hypervisor wrapper holds while the guest is up.
type LockProber struct {
	MountPath string
}

func (p LockProber) Running(name string) bool {
	_, err := os.Stat(filepath.Join(p.MountPath, name, "run.lock"))
	return err == nil
}

// FakeProber is a scripted prober for unit tests.
type FakeProber struct {
	RunningNames map[string]bool
}

func (p FakeProber) Running(name string) bool {
	return p.RunningNames[name]
}
