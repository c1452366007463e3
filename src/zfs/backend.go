// Package zfs drives the ZFS command line tools on behalf of the
// storage lifecycle operations. Every mutation goes through a Runner so
// tests can substitute an in-memory pool.
package zfs

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lxc/incus/shared/units"

	"vmstor/src/errdefs"
)

// LocationPrefix marks a storage location string as ZFS-backed, e.g.
// "zfs:zroot/vm".
const LocationPrefix = "zfs:"

// Backend is the resolved storage backend. When Enabled is false the
// guest directory tree lives on a plain filesystem at MountPath and all
// dataset operations become no-ops.
type Backend struct {
	Enabled bool
	// DatasetRoot is the logical root dataset, e.g. "zroot/vm".
	DatasetRoot string
	// MountPath is where DatasetRoot is mounted (or, when disabled,
	// the configured directory verbatim).
	MountPath string

	runner Runner
	log    *slog.Logger
}

// Resolve interprets a storage location string and, for ZFS locations,
// verifies the tools are usable and resolves the root dataset's live
// mount point.
func Resolve(location string, runner Runner, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Backend{runner: runner, log: log}
	if !strings.HasPrefix(location, LocationPrefix) {
		b.MountPath = location
		return b, nil
	}

	b.Enabled = true
	b.DatasetRoot = strings.TrimPrefix(location, LocationPrefix)
	if b.DatasetRoot == "" {
		return nil, fmt.Errorf("%w: no dataset in location %q", errdefs.ErrBackendUnavailable, location)
	}
	if err := runner.LookPath("zfs"); err != nil {
		return nil, fmt.Errorf("%w: zfs tool not found", errdefs.ErrBackendUnavailable)
	}
	dsType, err := b.Property(b.DatasetRoot, "type")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrBackendUnavailable, err)
	}
	if dsType != "filesystem" {
		return nil, fmt.Errorf("%w: %s is a %s, not a filesystem", errdefs.ErrBackendUnavailable, b.DatasetRoot, dsType)
	}

	mount, err := b.Property(b.DatasetRoot, "mountpoint")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrMountNotFound, err)
	}
	switch mount {
	case "", "-", "none", "legacy":
		return nil, fmt.Errorf("%w: %s has mountpoint %q", errdefs.ErrMountNotFound, b.DatasetRoot, mount)
	}
	b.MountPath = mount
	return b, nil
}

// Dataset returns the full dataset name for a guest-relative name.
func (b *Backend) Dataset(name string) string {
	return b.DatasetRoot + "/" + name
}

// Property reads one property of a full dataset name.
func (b *Backend) Property(dataset, key string) (string, error) {
	out, err := b.runner.Run("zfs", "get", "-H", "-o", "value", key, dataset)
	if err != nil {
		return strings.TrimSpace(string(out)), err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// SetProperty sets one property on a full dataset name.
func (b *Backend) SetProperty(dataset, key, value string) error {
	_, err := b.runner.Run("zfs", "set", fmt.Sprintf("%s=%s", key, value), dataset)
	if err != nil {
		b.log.Error("zfs set failed", "dataset", dataset, "key", key, "err", err)
	}
	return err
}

// Exists reports whether the named dataset exists under the root.
func (b *Backend) Exists(name string) bool {
	if !b.Enabled {
		return false
	}
	got, err := b.Property(b.Dataset(name), "name")
	return err == nil && got == b.Dataset(name)
}

// Create makes a dataset under the root. A disabled backend or an empty
// name is a no-op: the guest then lives in a plain directory instead.
func (b *Backend) Create(name, opts string) error {
	if !b.Enabled || name == "" {
		return nil
	}
	args := []string{"create"}
	args = append(args, TranslateOptions(opts)...)
	args = append(args, b.Dataset(name))
	if out, err := b.runner.Run("zfs", args...); err != nil {
		b.log.Error("zfs create failed", "dataset", b.Dataset(name), "output", string(out))
		return fmt.Errorf("%w: %v", errdefs.ErrDatasetCreateFailed, err)
	}
	return nil
}

// Destroy removes a dataset and everything under it. Callers tearing
// down a guest treat a failure here as non-fatal cleanup.
func (b *Backend) Destroy(name string) error {
	if !b.Enabled || name == "" {
		return nil
	}
	if out, err := b.runner.Run("zfs", "destroy", "-rf", b.Dataset(name)); err != nil {
		b.log.Error("zfs destroy failed", "dataset", b.Dataset(name), "output", string(out))
		return err
	}
	return nil
}

// Rename moves a dataset within the root.
func (b *Backend) Rename(oldName, newName string) error {
	if !b.Enabled {
		return nil
	}
	if out, err := b.runner.Run("zfs", "rename", b.Dataset(oldName), b.Dataset(newName)); err != nil {
		b.log.Error("zfs rename failed", "dataset", b.Dataset(oldName), "output", string(out))
		return fmt.Errorf("%w: %v", errdefs.ErrDatasetRenameFailed, err)
	}
	return nil
}

// CreateVolume makes a zvol under the root. Unlike Create this is never
// a no-op: volumes only exist on ZFS.
func (b *Backend) CreateVolume(name, size string, sparse bool, opts string) error {
	if !b.Enabled {
		return fmt.Errorf("%w: volumes need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if _, err := units.ParseByteSizeString(size); err != nil {
		return fmt.Errorf("%w: bad size %q: %v", errdefs.ErrVolumeCreateFailed, size, err)
	}
	args := []string{"create"}
	if sparse {
		args = append(args, "-sV", size)
	} else {
		args = append(args, "-V", size)
	}
	args = append(args, TranslateOptions(opts)...)
	args = append(args, b.Dataset(name))
	if out, err := b.runner.Run("zfs", args...); err != nil {
		b.log.Error("zfs create volume failed", "dataset", b.Dataset(name), "output", string(out))
		return fmt.Errorf("%w: %v", errdefs.ErrVolumeCreateFailed, err)
	}
	return nil
}

// TranslateOptions rewrites a comma separated "key=value,key=value"
// option string into the repeated -o form zfs expects. Empty input
// yields no arguments.
func TranslateOptions(opts string) []string {
	var args []string
	for _, opt := range strings.Split(opts, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		args = append(args, "-o", opt)
	}
	return args
}
