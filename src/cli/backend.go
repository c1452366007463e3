package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"vmstor/src/config"
	"vmstor/src/guest"
	"vmstor/src/zfs"
)

type runnerFactory func() zfs.Runner

var newRunner runnerFactory = func() zfs.Runner { return zfs.NewExecRunner() }

// SetRunnerForTest substitutes the backend command runner. The returned
// function restores the previous factory.
func SetRunnerForTest(fn runnerFactory) func() {
	prev := newRunner
	newRunner = fn
	return func() { newRunner = prev }
}

type proberFactory func(mountPath string) guest.StateProber

var newProber proberFactory = func(mountPath string) guest.StateProber {
	return guest.LockProber{MountPath: mountPath}
}

// SetProberForTest substitutes the guest power-state prober.
func SetProberForTest(fn proberFactory) func() {
	prev := newProber
	newProber = fn
	return func() { newProber = prev }
}

// resolveBackend builds the storage backend from --location or the
// configured location.
func resolveBackend(cmd *cobra.Command) (*zfs.Backend, error) {
	location, _ := cmd.Root().PersistentFlags().GetString("location")
	if location == "" {
		location = config.Location()
	}
	return zfs.Resolve(location, newRunner(), slog.Default())
}
