package guest_test

import (
	"os"
	"path/filepath"
	"testing"

	"vmstor/src/guest"
)

func addGuest(t *testing.T, mountPath, name, conf string) {
	t.Helper()
	if err := os.MkdirAll(guest.Dir(mountPath, name), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(guest.ConfPath(mountPath, name), []byte(conf), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
}

func TestExists(t *testing.T) {
	mount := t.TempDir()
	addGuest(t, mount, "web1", "cpu=1\n")
	// a bare directory without a config file is not a guest
	if err := os.MkdirAll(guest.Dir(mount, "scratch"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if !guest.Exists(mount, "web1") {
		t.Fatal("web1 should exist")
	}
	if guest.Exists(mount, "scratch") {
		t.Fatal("scratch has no config file and should not exist")
	}
	if guest.Exists(mount, "absent") {
		t.Fatal("absent should not exist")
	}
}

func TestList(t *testing.T) {
	mount := t.TempDir()
	addGuest(t, mount, "db1", "cpu=1\n")
	addGuest(t, mount, "web1", "cpu=1\n")
	if err := os.MkdirAll(filepath.Join(mount, "images"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := guest.List(mount)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(names) != 2 || names[0] != "db1" || names[1] != "web1" {
		t.Fatalf("List = %v", names)
	}
}

func TestMACsInUse_ExcludesNamedGuest(t *testing.T) {
	mount := t.TempDir()
	addGuest(t, mount, "web1", "network0_type=\"virtio-net\"\nnetwork0_mac=\"58:9c:fc:00:00:01\"\n")
	addGuest(t, mount, "web2", "network0_type=\"virtio-net\"\nnetwork0_mac=\"58:9c:fc:00:00:02\"\n")

	inUse, err := guest.MACsInUse(mount, "web2")
	if err != nil {
		t.Fatalf("MACsInUse error: %v", err)
	}
	if !inUse["58:9c:fc:00:00:01"] {
		t.Fatal("web1's MAC should be reported in use")
	}
	if inUse["58:9c:fc:00:00:02"] {
		t.Fatal("the excluded guest's MAC should not be reported")
	}
}

func TestLockProber(t *testing.T) {
	mount := t.TempDir()
	addGuest(t, mount, "web1", "cpu=1\n")
	p := guest.LockProber{MountPath: mount}
	if p.Running("web1") {
		t.Fatal("web1 should be stopped without a run lock")
	}
	if err := os.WriteFile(filepath.Join(mount, "web1", "run.lock"), []byte("1234\n"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	if !p.Running("web1") {
		t.Fatal("web1 should be running with a run lock present")
	}
}
