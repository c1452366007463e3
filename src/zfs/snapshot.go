package zfs

import (
	"fmt"
	"io"
	"strings"

	"vmstor/src/errdefs"
)

// Snapshot takes a snapshot of a guest dataset, recursively covering
// nested datasets and volumes when recursive is set.
func (b *Backend) Snapshot(name, label string, recursive bool) error {
	args := []string{"snapshot"}
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, fmt.Sprintf("%s@%s", b.Dataset(name), label))
	if out, err := b.runner.Run("zfs", args...); err != nil {
		b.log.Error("zfs snapshot failed", "dataset", b.Dataset(name), "label", label, "output", string(out))
		return fmt.Errorf("%w: %v", errdefs.ErrSnapshotFailed, err)
	}
	return nil
}

// DestroySnapshot removes a snapshot across the guest's whole tree.
func (b *Backend) DestroySnapshot(name, label string) error {
	if out, err := b.runner.Run("zfs", "destroy", "-r", fmt.Sprintf("%s@%s", b.Dataset(name), label)); err != nil {
		b.log.Error("zfs destroy snapshot failed", "dataset", b.Dataset(name), "label", label, "output", string(out))
		return err
	}
	return nil
}

// RollbackDataset rolls one full dataset name back to label. Without
// destroyNewer the backend refuses when more recent snapshots exist and
// its diagnostic, which names them, is returned verbatim.
func (b *Backend) RollbackDataset(dataset, label string, destroyNewer bool) error {
	args := []string{"rollback"}
	if destroyNewer {
		args = append(args, "-r")
	}
	args = append(args, fmt.Sprintf("%s@%s", dataset, label))
	if out, err := b.runner.Run("zfs", args...); err != nil {
		b.log.Error("zfs rollback failed", "dataset", dataset, "label", label, "output", string(out))
		return err
	}
	return nil
}

// ListTree returns every dataset and volume under the named guest, in
// the backend's depth-first order, as full dataset names. The guest's
// own top-level dataset comes first.
func (b *Backend) ListTree(name string) ([]string, error) {
	out, err := b.runner.Run("zfs", "list", "-H", "-o", "name", "-r", "-t", "filesystem,volume", b.Dataset(name))
	if err != nil {
		return nil, err
	}
	var tree []string
	for _, entry := range strings.Split(string(out), "\n") {
		if entry == "" {
			continue
		}
		tree = append(tree, entry)
	}
	return tree, nil
}

// ListSnapshots returns the snapshot labels present on the guest's
// top-level dataset.
func (b *Backend) ListSnapshots(name string) ([]string, error) {
	out, err := b.runner.Run("zfs", "list", "-H", "-o", "name", "-d", "1", "-t", "snapshot", b.Dataset(name))
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, entry := range strings.Split(string(out), "\n") {
		if entry == "" {
			continue
		}
		if _, label, ok := strings.Cut(entry, "@"); ok {
			labels = append(labels, label)
		}
	}
	return labels, nil
}

// HasSnapshot reports whether the full dataset name carries a snapshot
// at the given label.
func (b *Backend) HasSnapshot(dataset, label string) bool {
	_, err := b.Property(fmt.Sprintf("%s@%s", dataset, label), "name")
	return err == nil
}

// CloneDataset clones srcDataset@label into dstDataset. Both are full
// dataset names.
func (b *Backend) CloneDataset(srcDataset, label, dstDataset string) error {
	src := fmt.Sprintf("%s@%s", srcDataset, label)
	if out, err := b.runner.Run("zfs", "clone", src, dstDataset); err != nil {
		b.log.Error("zfs clone failed", "source", src, "target", dstDataset, "output", string(out))
		return fmt.Errorf("%w: %s: %v", errdefs.ErrCloneFailed, src, err)
	}
	return nil
}

// Send streams the guest's tree at label into w as a replication
// stream.
func (b *Backend) Send(name, label string, w io.Writer) error {
	return b.runner.RunWithOutput(w, "zfs", "send", "-R", fmt.Sprintf("%s@%s", b.Dataset(name), label))
}

// Receive materializes a replication stream from r as a new dataset
// under the root.
func (b *Backend) Receive(name string, r io.Reader) error {
	return b.runner.RunWithInput(r, "zfs", "receive", b.Dataset(name))
}
