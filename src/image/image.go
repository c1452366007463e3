// Package image packages a guest's dataset tree into a portable
// compressed archive with a sidecar manifest, and materializes guests
// back out of such archives.
package image

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"vmstor/src/errdefs"
	"vmstor/src/guest"
	"vmstor/src/identity"
	"vmstor/src/util/progress"
	"vmstor/src/zfs"
)

// DatasetName is the dataset under the backend root that holds image
// archives and manifests. It is created on first use.
const DatasetName = "images"

// Store manages packaged images in the backend's images dataset.
type Store struct {
	backend *zfs.Backend
	log     *slog.Logger

	now     func() time.Time
	newUUID func() string
}

func NewStore(backend *zfs.Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{backend: backend, log: log, now: time.Now, newUUID: identity.NewUUID}
}

// SetIdentityForTest pins the store's clock and UUID source.
func (s *Store) SetIdentityForTest(now func() time.Time, newUUID func() string) func() {
	prevNow, prevUUID := s.now, s.newUUID
	s.now, s.newUUID = now, newUUID
	return func() { s.now, s.newUUID = prevNow, prevUUID }
}

// Dir returns the images directory under the storage mount path.
func (s *Store) Dir() string {
	return filepath.Join(s.backend.MountPath, DatasetName)
}

// Create packages the named guest into a compressed archive plus
// manifest and returns the manifest. The guest tree is captured via a
// transient recursive snapshot named after the image UUID; the snapshot
// is destroyed once the stream is on disk. The manifest is only written
// after the data file is confirmed, so a manifest never points at
// missing data. Progress output goes to progressOut when non-nil.
func (s *Store) Create(guestName, description string, progressOut io.Writer) (Manifest, error) {
	if !s.backend.Enabled {
		return Manifest{}, fmt.Errorf("%w: images need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	if !guest.Exists(s.backend.MountPath, guestName) {
		return Manifest{}, fmt.Errorf("%w: %s", errdefs.ErrNotAVirtualMachine, guestName)
	}
	if !s.backend.Exists(DatasetName) {
		if err := s.backend.Create(DatasetName, ""); err != nil {
			return Manifest{}, err
		}
	}

	uuid := s.newUUID()
	if err := s.backend.Snapshot(guestName, uuid, true); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", errdefs.ErrImageCreateFailed, err)
	}
	defer func() {
		if err := s.backend.DestroySnapshot(guestName, uuid); err != nil {
			s.log.Warn("transient image snapshot not destroyed", "guest", guestName, "label", uuid)
		}
	}()

	dataPath := filepath.Join(s.Dir(), uuid+dataSuffix)
	if err := s.writeArchive(dataPath, guestName, uuid, progressOut); err != nil {
		_ = os.Remove(dataPath)
		return Manifest{}, fmt.Errorf("%w: %v", errdefs.ErrImageCreateFailed, err)
	}

	if description == "" {
		description = DefaultDescription
	}
	m := Manifest{
		UUID:        uuid,
		Description: description,
		Created:     s.now().UTC().Format(time.RFC3339),
		Name:        guestName,
		Filename:    uuid + dataSuffix,
	}
	if err := m.Write(s.Dir()); err != nil {
		_ = os.Remove(dataPath)
		return Manifest{}, fmt.Errorf("%w: write manifest: %v", errdefs.ErrImageCreateFailed, err)
	}
	s.log.Info("image created", "uuid", uuid, "guest", guestName)
	return m, nil
}

// writeArchive streams the guest tree at label through gzip into path.
func (s *Store) writeArchive(path, guestName, label string, progressOut io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	counted := progress.NewWriter(f, "sent", progressOut)
	gz := gzip.NewWriter(counted)

	if err := s.backend.Send(guestName, label, gz); err != nil {
		_ = gz.Close()
		_ = f.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	counted.Finish()
	return nil
}

// List returns the manifests of all packaged images. A missing images
// directory yields an empty list.
func (s *Store) List() ([]Manifest, error) {
	return readAll(s.Dir())
}

// Provision materializes a new guest from a packaged image. The target
// guest must not exist; the manifest must name both the data file and
// the original guest, and the data file must be present.
func (s *Store) Provision(uuid, newName string, progressOut io.Writer) error {
	if !s.backend.Enabled {
		return fmt.Errorf("%w: images need a zfs-backed storage location", errdefs.ErrBackendRequired)
	}
	m, err := ReadManifest(s.Dir(), uuid)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(guest.Dir(s.backend.MountPath, newName)); statErr == nil {
		return fmt.Errorf("%w: %s", errdefs.ErrTargetExists, newName)
	}
	if m.Filename == "" || m.Name == "" {
		return fmt.Errorf("%w: %s lacks a filename or source name", errdefs.ErrManifestIncomplete, uuid)
	}
	dataPath := filepath.Join(s.Dir(), m.Filename)
	f, err := os.Open(dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: data file %s is missing", errdefs.ErrManifestIncomplete, m.Filename)
		}
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(progress.NewReader(f, "received", progressOut))
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrImageProvisionFailed, err)
	}
	if err := s.backend.Receive(newName, gz); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrImageProvisionFailed, err)
	}
	// the received stream carries the transient snapshot it was
	// serialized from
	if err := s.backend.DestroySnapshot(newName, uuid); err != nil {
		s.log.Warn("residual snapshot not destroyed", "guest", newName, "label", uuid)
	}

	oldConf := filepath.Join(guest.Dir(s.backend.MountPath, newName), m.Name+".conf")
	if err := os.Rename(oldConf, guest.ConfPath(s.backend.MountPath, newName)); err != nil {
		return fmt.Errorf("%w: rename config: %v", errdefs.ErrImageProvisionFailed, err)
	}
	s.log.Info("image provisioned", "uuid", uuid, "guest", newName)
	return nil
}

// Destroy removes an image's manifest and data file together.
func (s *Store) Destroy(uuid string) error {
	m, err := ReadManifest(s.Dir(), uuid)
	if err != nil {
		return err
	}
	if m.Filename == "" {
		return fmt.Errorf("%w: %s does not name its data file", errdefs.ErrManifestIncomplete, uuid)
	}
	if err := os.Remove(filepath.Join(s.Dir(), m.Filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(manifestPath(s.Dir(), uuid)); err != nil {
		return err
	}
	s.log.Info("image destroyed", "uuid", uuid)
	return nil
}
