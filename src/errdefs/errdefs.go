// Package errdefs defines the error kinds shared across the storage
// lifecycle operations. Callers match against these sentinels with
// errors.Is; the wrapping message carries the specifics.
package errdefs

import "errors"

var (
	// ErrBackendUnavailable means the ZFS tooling or pool is not usable.
	ErrBackendUnavailable = errors.New("zfs backend unavailable")
	// ErrMountNotFound means a dataset has no resolvable mount point.
	ErrMountNotFound = errors.New("mount point not found")
	// ErrBackendRequired means the operation only works with ZFS enabled.
	ErrBackendRequired = errors.New("zfs backend required")

	ErrDatasetCreateFailed = errors.New("dataset create failed")
	ErrDatasetRenameFailed = errors.New("dataset rename failed")
	ErrVolumeCreateFailed  = errors.New("volume create failed")
	ErrSnapshotFailed      = errors.New("snapshot failed")

	// ErrNotAVirtualMachine means no guest config exists under the
	// named dataset path.
	ErrNotAVirtualMachine = errors.New("not a virtual machine")
	// ErrGuestMustBeStopped guards destructive operations on live guests.
	ErrGuestMustBeStopped = errors.New("guest must be stopped")

	ErrInvalidSnapshotToken = errors.New("invalid snapshot token")

	ErrTargetExists    = errors.New("target already exists")
	ErrSourceNotFound  = errors.New("source guest not found")
	ErrSnapshotMissing = errors.New("snapshot missing")
	ErrCloneFailed     = errors.New("clone failed")

	ErrImageNotFound        = errors.New("image not found")
	ErrImageCreateFailed    = errors.New("image create failed")
	ErrImageProvisionFailed = errors.New("image provision failed")
	// ErrManifestIncomplete flags a manifest/data-file pair that is
	// missing one half or lacks a required key.
	ErrManifestIncomplete = errors.New("image manifest incomplete")
)
