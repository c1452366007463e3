// Package clone copies a guest's full dataset tree into a new guest and
// regenerates its identity.
package clone

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vmstor/src/errdefs"
	"vmstor/src/guest"
	"vmstor/src/identity"
	"vmstor/src/token"
	"vmstor/src/vmconfig"
	"vmstor/src/zfs"
)

// Engine performs guest clones.
type Engine struct {
	backend *zfs.Backend
	prober  guest.StateProber
	log     *slog.Logger
}

func NewEngine(backend *zfs.Backend, prober guest.StateProber, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{backend: backend, prober: prober, log: log}
}

// Clone copies the guest named by a source guest[@label] token into a
// new guest. Without a label the source must be stopped and a fresh
// snapshot is taken under a generated short label; with a label, every
// dataset in the source tree must already carry it.
//
// Cloning is fail-fast: on the first per-dataset failure the remaining
// work is abandoned and already-cloned datasets are left in place for
// inspection.
func (e *Engine) Clone(rawSource, target string) error {
	tok, err := token.Parse(rawSource)
	if err != nil {
		return err
	}
	if !e.backend.Enabled {
		return fmt.Errorf("%w: cloning needs a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if _, statErr := os.Stat(guest.Dir(e.backend.MountPath, target)); statErr == nil {
		return fmt.Errorf("%w: %s", errdefs.ErrTargetExists, target)
	}
	if !guest.Exists(e.backend.MountPath, tok.Name) {
		return fmt.Errorf("%w: %s", errdefs.ErrSourceNotFound, tok.Name)
	}

	tree, err := e.backend.ListTree(tok.Name)
	if err != nil {
		return err
	}

	label := tok.Label
	if !tok.HasLabel {
		if e.prober.Running(tok.Name) {
			return fmt.Errorf("%w: %s must be stopped to clone without a snapshot label", errdefs.ErrGuestMustBeStopped, tok.Name)
		}
		label = identity.ShortLabel()
		if err := e.backend.Snapshot(tok.Name, label, true); err != nil {
			return err
		}
	} else {
		for _, dataset := range tree {
			if !e.backend.HasSnapshot(dataset, label) {
				return fmt.Errorf("%w: %s has no snapshot @%s", errdefs.ErrSnapshotMissing, dataset, label)
			}
		}
	}

	srcPrefix := e.backend.Dataset(tok.Name)
	dstPrefix := e.backend.Dataset(target)
	for _, dataset := range tree {
		dst := dstPrefix + strings.TrimPrefix(dataset, srcPrefix)
		if err := e.backend.CloneDataset(dataset, label, dst); err != nil {
			return err
		}
	}

	targetDir := guest.Dir(e.backend.MountPath, target)
	oldConf := filepath.Join(targetDir, tok.Name+".conf")
	if err := os.Rename(oldConf, guest.ConfPath(e.backend.MountPath, target)); err != nil {
		return fmt.Errorf("%w: rename config: %v", errdefs.ErrCloneFailed, err)
	}
	// the source's log has no business in the new guest
	_ = os.Remove(filepath.Join(targetDir, guest.LogFilename))

	if err := e.regenerateIdentity(target); err != nil {
		return err
	}
	e.log.Info("clone complete", "source", tok.Name, "label", label, "target", target)
	return nil
}

// regenerateIdentity gives the cloned guest a fresh UUID and a
// fleet-unique MAC address on every declared interface.
func (e *Engine) regenerateIdentity(target string) error {
	cfg, err := vmconfig.Load(guest.ConfPath(e.backend.MountPath, target))
	if err != nil {
		return fmt.Errorf("%w: load config: %v", errdefs.ErrCloneFailed, err)
	}
	cfg.SetUUID(identity.NewUUID())

	inUse, err := guest.MACsInUse(e.backend.MountPath, target)
	if err != nil {
		return fmt.Errorf("%w: scan configured guests: %v", errdefs.ErrCloneFailed, err)
	}
	for _, iface := range cfg.NetworkInterfaces() {
		mac, err := identity.NewMAC(inUse)
		if err != nil {
			return fmt.Errorf("%w: %v", errdefs.ErrCloneFailed, err)
		}
		inUse[mac] = true
		cfg.SetMAC(iface.Index, mac)
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("%w: save config: %v", errdefs.ErrCloneFailed, err)
	}
	return nil
}
