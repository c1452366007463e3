// Package snapshot creates and rolls back point-in-time snapshots of a
// guest's full dataset tree.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vmstor/src/errdefs"
	"vmstor/src/guest"
	"vmstor/src/token"
	"vmstor/src/zfs"
)

// LabelTimeFormat is the default snapshot label, the current time at
// one-second resolution. Two snapshots of the same tree within the same
// second collide; the backend rejects the second one.
const LabelTimeFormat = "20060102150405"

// Manager orchestrates snapshot operations against the backend.
type Manager struct {
	backend *zfs.Backend
	prober  guest.StateProber
	log     *slog.Logger

	// now is swapped by tests to pin label generation.
	now func() time.Time
}

func NewManager(backend *zfs.Backend, prober guest.StateProber, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{backend: backend, prober: prober, log: log, now: time.Now}
}

// SetNowForTest pins the manager's clock and returns a restore
// function.
func (m *Manager) SetNowForTest(now func() time.Time) func() {
	prev := m.now
	m.now = now
	return func() { m.now = prev }
}

// Create takes a recursive snapshot of the guest named by a
// guest[@label] token. Without a label the current timestamp is used.
// A running guest is refused unless force is set.
func (m *Manager) Create(raw string, force bool) (string, error) {
	tok, err := token.Parse(raw)
	if err != nil {
		return "", err
	}
	if !m.backend.Enabled {
		return "", fmt.Errorf("%w: snapshots need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if !guest.Exists(m.backend.MountPath, tok.Name) {
		return "", fmt.Errorf("%w: %s", errdefs.ErrNotAVirtualMachine, tok.Name)
	}
	if m.prober.Running(tok.Name) && !force {
		return "", fmt.Errorf("%w: %s is running (use force to snapshot anyway)", errdefs.ErrGuestMustBeStopped, tok.Name)
	}

	label := tok.Label
	if !tok.HasLabel {
		label = m.now().Format(LabelTimeFormat)
	}
	if err := m.backend.Snapshot(tok.Name, label, true); err != nil {
		return "", err
	}
	m.log.Info("snapshot created", "guest", tok.Name, "label", label)
	return label, nil
}

// List returns the snapshot labels on the guest's top-level dataset.
func (m *Manager) List(name string) ([]string, error) {
	if !m.backend.Enabled {
		return nil, fmt.Errorf("%w: snapshots need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if !guest.Exists(m.backend.MountPath, name) {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNotAVirtualMachine, name)
	}
	return m.backend.ListSnapshots(name)
}

// Tree returns every dataset and volume under the guest's root.
func (m *Manager) Tree(name string) ([]string, error) {
	if !m.backend.Enabled {
		return nil, fmt.Errorf("%w: datasets need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if !guest.Exists(m.backend.MountPath, name) {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNotAVirtualMachine, name)
	}
	return m.backend.ListTree(name)
}

// Rollback rolls every dataset in the guest's tree back to the label of
// a guest@label token. The guest must be stopped; there is no force
// override for that. The guest's top-level dataset must carry the
// label; nested datasets created after the snapshot are skipped.
// destroyNewer permits the backend to destroy snapshots newer than the
// target label; without it the backend's own refusal, naming those
// snapshots, is surfaced verbatim.
//
// Per-dataset results are aggregated here, in the caller's goroutine,
// so no failure can get lost in a pipe.
func (m *Manager) Rollback(raw string, destroyNewer bool) error {
	tok, err := token.ParseWithLabel(raw)
	if err != nil {
		return err
	}
	if !m.backend.Enabled {
		return fmt.Errorf("%w: snapshots need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if !guest.Exists(m.backend.MountPath, tok.Name) {
		return fmt.Errorf("%w: %s", errdefs.ErrNotAVirtualMachine, tok.Name)
	}
	if m.prober.Running(tok.Name) {
		return fmt.Errorf("%w: %s must be stopped to roll back", errdefs.ErrGuestMustBeStopped, tok.Name)
	}

	tree, err := m.backend.ListTree(tok.Name)
	if err != nil {
		return err
	}
	if len(tree) == 0 || !m.backend.HasSnapshot(tree[0], tok.Label) {
		return fmt.Errorf("%w: %s has no snapshot @%s", errdefs.ErrSnapshotMissing, m.backend.Dataset(tok.Name), tok.Label)
	}
	var failures []error
	for _, dataset := range tree {
		if !m.backend.HasSnapshot(dataset, tok.Label) {
			// nested datasets created after the snapshot have
			// nothing to roll back
			m.log.Warn("dataset has no snapshot at label, skipping", "dataset", dataset, "label", tok.Label)
			continue
		}
		if err := m.backend.RollbackDataset(dataset, tok.Label, destroyNewer); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	m.log.Info("rollback complete", "guest", tok.Name, "label", tok.Label)
	return nil
}
