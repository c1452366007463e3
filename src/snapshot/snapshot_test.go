package snapshot_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmstor/src/errdefs"
	"vmstor/src/guest"
	"vmstor/src/snapshot"
	"vmstor/src/zfs"
)

func newFixture(t *testing.T) (*snapshot.Manager, *zfs.FakeRunner, guest.FakeProber) {
	t.Helper()
	runner := zfs.NewFakeRunner("zroot/vm", t.TempDir())
	backend, err := zfs.Resolve("zfs:zroot/vm", runner, nil)
	require.NoError(t, err)

	runner.AddDataset("zroot/vm/web1", "filesystem")
	require.NoError(t, os.WriteFile(guest.ConfPath(backend.MountPath, "web1"), []byte("cpu=1\n"), 0o644))

	prober := guest.FakeProber{RunningNames: map[string]bool{}}
	return snapshot.NewManager(backend, prober, nil), runner, prober
}

func TestCreate_DefaultLabelIsTimestamp(t *testing.T) {
	m, runner, _ := newFixture(t)
	at := time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)
	defer m.SetNowForTest(func() time.Time { return at })()

	label, err := m.Create("web1", false)
	require.NoError(t, err)
	assert.Equal(t, "20240309143005", label)
	assert.Contains(t, runner.Datasets["zroot/vm/web1"].Snapshots, "20240309143005")
}

func TestCreate_ExplicitLabelAndNestedDatasets(t *testing.T) {
	m, runner, _ := newFixture(t)
	runner.AddDataset("zroot/vm/web1/disk1", "volume")

	label, err := m.Create("web1@before-upgrade", false)
	require.NoError(t, err)
	assert.Equal(t, "before-upgrade", label)
	assert.Contains(t, runner.Datasets["zroot/vm/web1/disk1"].Snapshots, "before-upgrade")
}

func TestCreate_UnknownGuest(t *testing.T) {
	m, _, _ := newFixture(t)
	_, err := m.Create("ghost", false)
	assert.ErrorIs(t, err, errdefs.ErrNotAVirtualMachine)
}

func TestCreate_RunningGuestNeedsForce(t *testing.T) {
	m, runner, prober := newFixture(t)
	prober.RunningNames["web1"] = true

	_, err := m.Create("web1", false)
	assert.ErrorIs(t, err, errdefs.ErrGuestMustBeStopped)

	_, err = m.Create("web1@live", true)
	require.NoError(t, err)
	assert.Contains(t, runner.Datasets["zroot/vm/web1"].Snapshots, "live")
}

func TestRollback_RequiresLabel(t *testing.T) {
	m, _, _ := newFixture(t)
	err := m.Rollback("web1", false)
	assert.ErrorIs(t, err, errdefs.ErrInvalidSnapshotToken)
}

func TestRollback_NoForceOverrideForRunningGuest(t *testing.T) {
	m, runner, prober := newFixture(t)
	runner.Datasets["zroot/vm/web1"].Snapshots = []string{"good"}
	prober.RunningNames["web1"] = true

	// destroyNewer is not a power-state override
	err := m.Rollback("web1@good", true)
	assert.ErrorIs(t, err, errdefs.ErrGuestMustBeStopped)
}

func TestRollback_NewerSnapshots(t *testing.T) {
	m, runner, _ := newFixture(t)
	runner.AddDataset("zroot/vm/web1/disk1", "volume")
	runner.Datasets["zroot/vm/web1"].Snapshots = []string{"good", "newer"}
	runner.Datasets["zroot/vm/web1/disk1"].Snapshots = []string{"good", "newer"}

	err := m.Rollback("web1@good", false)
	require.Error(t, err)
	// the backend's own refusal must come through untouched
	assert.Contains(t, err.Error(), "more recent snapshots")
	assert.Contains(t, err.Error(), "zroot/vm/web1@newer")

	require.NoError(t, m.Rollback("web1@good", true))
	assert.Equal(t, []string{"good"}, runner.Datasets["zroot/vm/web1"].Snapshots)
	assert.Equal(t, []string{"good"}, runner.Datasets["zroot/vm/web1/disk1"].Snapshots)
}

func TestRollback_UnknownLabel(t *testing.T) {
	m, runner, _ := newFixture(t)
	runner.Datasets["zroot/vm/web1"].Snapshots = []string{"good"}

	err := m.Rollback("web1@no-such-label", false)
	assert.ErrorIs(t, err, errdefs.ErrSnapshotMissing)
	assert.Contains(t, err.Error(), "zroot/vm/web1")
	assert.Equal(t, []string{"good"}, runner.Datasets["zroot/vm/web1"].Snapshots)
}

func TestRollback_SkipsDatasetsWithoutLabel(t *testing.T) {
	m, runner, _ := newFixture(t)
	runner.AddDataset("zroot/vm/web1/later", "filesystem")
	runner.Datasets["zroot/vm/web1"].Snapshots = []string{"good"}

	require.NoError(t, m.Rollback("web1@good", false))
}

func TestList(t *testing.T) {
	m, runner, _ := newFixture(t)
	runner.Datasets["zroot/vm/web1"].Snapshots = []string{"a", "b"}

	labels, err := m.List("web1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, labels)
}
