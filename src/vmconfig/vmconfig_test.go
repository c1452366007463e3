package vmconfig_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vmstor/src/vmconfig"
)

const sample = `# guest definition
loader="bhyveload"
cpu=2
memory="1G"
uuid="3f2f3820-64a7-11ee-9d54-ce2dd43e4b7d"
network0_type="virtio-net"
network0_mac="58:9c:fc:01:02:03"
network1_type="e1000"
network1_mac="58:9c:fc:04:05:06"
disk0_type="virtio-blk"
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "web1.conf")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestGetStripsQuotes(t *testing.T) {
	c, err := vmconfig.Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := c.Get("memory"); got != "1G" {
		t.Fatalf("memory = %q, want 1G", got)
	}
	if got := c.Get("cpu"); got != "2" {
		t.Fatalf("cpu = %q, want 2", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Fatalf("missing key = %q, want empty", got)
	}
}

func TestNetworkInterfacesStopAtGap(t *testing.T) {
	c, err := vmconfig.Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	ifaces := c.NetworkInterfaces()
	if len(ifaces) != 2 {
		t.Fatalf("got %d interfaces, want 2", len(ifaces))
	}
	if ifaces[1].Index != 1 || ifaces[1].Type != "e1000" || ifaces[1].MAC != "58:9c:fc:04:05:06" {
		t.Fatalf("iface[1] = %+v", ifaces[1])
	}
}

func TestSetPreservesUnknownLines(t *testing.T) {
	path := writeSample(t)
	c, err := vmconfig.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	c.SetUUID("11111111-2222-3333-4444-555555555555")
	c.SetMAC(0, "58:9c:fc:aa:bb:cc")
	if err := c.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		"# guest definition",
		`disk0_type="virtio-blk"`,
		`uuid="11111111-2222-3333-4444-555555555555"`,
		`network0_mac="58:9c:fc:aa:bb:cc"`,
		`network1_mac="58:9c:fc:04:05:06"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("saved config missing %q:\n%s", want, got)
		}
	}
}

func TestSetAppendsMissingKey(t *testing.T) {
	c, err := vmconfig.Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	c.Set("zfs_dataset_opts", "compression=lz4")
	if got := c.Get("zfs_dataset_opts"); got != "compression=lz4" {
		t.Fatalf("appended key = %q", got)
	}
}
