package clone_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmstor/src/clone"
	"vmstor/src/errdefs"
	"vmstor/src/guest"
	"vmstor/src/vmconfig"
	"vmstor/src/zfs"
)

const webConf = `loader="bhyveload"
cpu=2
uuid="3f2f3820-64a7-11ee-9d54-ce2dd43e4b7d"
network0_type="virtio-net"
network0_mac="58:9c:fc:01:02:03"
network1_type="virtio-net"
network1_mac="58:9c:fc:01:02:04"
`

type fixture struct {
	engine *clone.Engine
	runner *zfs.FakeRunner
	prober guest.FakeProber
	mount  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	runner := zfs.NewFakeRunner("zroot/vm", t.TempDir())
	backend, err := zfs.Resolve("zfs:zroot/vm", runner, nil)
	require.NoError(t, err)

	runner.AddDataset("zroot/vm/web1", "filesystem")
	require.NoError(t, os.WriteFile(guest.ConfPath(backend.MountPath, "web1"), []byte(webConf), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backend.MountPath, "web1", guest.LogFilename), []byte("boot ok\n"), 0o644))

	prober := guest.FakeProber{RunningNames: map[string]bool{}}
	return &fixture{
		engine: clone.NewEngine(backend, prober, nil),
		runner: runner,
		prober: prober,
		mount:  backend.MountPath,
	}
}

func TestClone_FreshSnapshotAndIdentity(t *testing.T) {
	f := newFixture(t)
	f.runner.AddDataset("zroot/vm/web1/disk1", "volume")

	require.NoError(t, f.engine.Clone("web1", "web2"))

	// full tree cloned under the substituted prefix
	assert.NotNil(t, f.runner.Datasets["zroot/vm/web2"])
	assert.NotNil(t, f.runner.Datasets["zroot/vm/web2/disk1"])

	// config renamed, source config and log gone from the new tree
	assert.True(t, guest.Exists(f.mount, "web2"))
	_, err := os.Stat(filepath.Join(f.mount, "web2", "web1.conf"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(f.mount, "web2", guest.LogFilename))
	assert.True(t, os.IsNotExist(err))

	srcCfg, err := vmconfig.Load(guest.ConfPath(f.mount, "web1"))
	require.NoError(t, err)
	dstCfg, err := vmconfig.Load(guest.ConfPath(f.mount, "web2"))
	require.NoError(t, err)

	assert.NotEqual(t, srcCfg.UUID(), dstCfg.UUID())
	srcIfaces, dstIfaces := srcCfg.NetworkInterfaces(), dstCfg.NetworkInterfaces()
	require.Len(t, dstIfaces, len(srcIfaces))
	for i := range srcIfaces {
		assert.NotEqual(t, srcIfaces[i].MAC, dstIfaces[i].MAC, "interface %d MAC must be regenerated", i)
		assert.NotEmpty(t, dstIfaces[i].MAC)
	}

	// other settings survive untouched
	assert.Equal(t, "2", dstCfg.Get("cpu"))
}

func TestClone_ExistingSnapshotLabel(t *testing.T) {
	f := newFixture(t)
	f.runner.Datasets["zroot/vm/web1"].Snapshots = []string{"golden"}

	require.NoError(t, f.engine.Clone("web1@golden", "web2"))
	assert.NotNil(t, f.runner.Datasets["zroot/vm/web2"])
	// no extra snapshot was taken on the source
	assert.Equal(t, []string{"golden"}, f.runner.Datasets["zroot/vm/web1"].Snapshots)
}

func TestClone_SnapshotMissingOnNestedDataset(t *testing.T) {
	f := newFixture(t)
	f.runner.Datasets["zroot/vm/web1"].Snapshots = []string{"golden"}
	f.runner.AddDataset("zroot/vm/web1/disk1", "volume")

	err := f.engine.Clone("web1@golden", "web2")
	require.ErrorIs(t, err, errdefs.ErrSnapshotMissing)
	assert.Contains(t, err.Error(), "zroot/vm/web1/disk1")
}

func TestClone_TargetExists(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.mount, "web2"), 0o755))

	err := f.engine.Clone("web1", "web2")
	assert.ErrorIs(t, err, errdefs.ErrTargetExists)
}

func TestClone_SourceNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Clone("ghost", "web2")
	assert.ErrorIs(t, err, errdefs.ErrSourceNotFound)
}

func TestClone_RunningSourceWithoutLabel(t *testing.T) {
	f := newFixture(t)
	f.prober.RunningNames["web1"] = true

	err := f.engine.Clone("web1", "web2")
	assert.ErrorIs(t, err, errdefs.ErrGuestMustBeStopped)
}

func TestClone_FailFastLeavesPartialState(t *testing.T) {
	f := newFixture(t)
	f.runner.AddDataset("zroot/vm/web1/disk1", "volume")
	f.runner.Datasets["zroot/vm/web1"].Snapshots = []string{"golden"}
	f.runner.Datasets["zroot/vm/web1/disk1"].Snapshots = []string{"golden"}
	f.runner.FailCommand = "clone zroot/vm/web1/disk1@golden"
	f.runner.FailOutput = "cannot create 'zroot/vm/web2/disk1': out of space"

	err := f.engine.Clone("web1@golden", "web2")
	require.ErrorIs(t, err, errdefs.ErrCloneFailed)
	// the first dataset stays cloned for operator inspection
	assert.NotNil(t, f.runner.Datasets["zroot/vm/web2"])
	assert.Nil(t, f.runner.Datasets["zroot/vm/web2/disk1"])
}
