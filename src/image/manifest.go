package image

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vmstor/src/errdefs"
)

// Manifest is the sidecar metadata record for one packaged image. On
// disk it is a flat key=value file next to the data file.
type Manifest struct {
	UUID        string
	Description string
	Created     string // RFC 3339
	Name        string // source guest name
	Filename    string // data file, relative to the images directory
}

const (
	manifestSuffix = ".manifest"
	dataSuffix     = ".zfs.gz"

	// DefaultDescription is recorded when the caller supplies none.
	DefaultDescription = "No description provided"
)

func manifestPath(dir, uuid string) string {
	return filepath.Join(dir, uuid+manifestSuffix)
}

// ReadManifest loads the manifest for the given image UUID from the
// images directory.
func ReadManifest(dir, uuid string) (Manifest, error) {
	m := Manifest{UUID: uuid}
	data, err := os.ReadFile(manifestPath(dir, uuid))
	if err != nil {
		if os.IsNotExist(err) {
			return m, fmt.Errorf("%w: %s", errdefs.ErrImageNotFound, uuid)
		}
		return m, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "description":
			m.Description = value
		case "created":
			m.Created = value
		case "name":
			m.Name = value
		case "filename":
			m.Filename = value
		}
	}
	return m, nil
}

// Write persists the manifest. Callers must only do this once the data
// file is confirmed on disk; the pair is meant to exist together.
func (m Manifest) Write(dir string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "description=%s\n", m.Description)
	fmt.Fprintf(&b, "created=%s\n", m.Created)
	fmt.Fprintf(&b, "name=%s\n", m.Name)
	fmt.Fprintf(&b, "filename=%s\n", m.Filename)
	return os.WriteFile(manifestPath(dir, m.UUID), []byte(b.String()), 0o644)
}

// readAll scans the images directory for manifests, sorted by UUID. A
// missing directory yields an empty list.
func readAll(dir string) ([]Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestSuffix) {
			continue
		}
		uuid := strings.TrimSuffix(entry.Name(), manifestSuffix)
		m, err := ReadManifest(dir, uuid)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}
