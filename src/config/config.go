// Package config loads the tool's own settings through viper. Guest
// config files are a separate concern, owned by vmconfig.
package config

import (
	"errors"

	"github.com/spf13/viper"
)

// Keys recognized in the config file and environment.
const (
	// KeyLocation is the storage location string, e.g. "zfs:zroot/vm"
	// or a plain directory path.
	KeyLocation = "location"
	// KeyDatasetOpts is the default option string applied when
	// creating guest datasets, e.g. "compression=lz4,atime=off".
	KeyDatasetOpts = "dataset_opts"
)

// Init reads vmstor.yaml from the usual locations and wires the VMSTOR_*
// environment variables. A missing config file is fine; flags and
// environment can carry everything.
func Init() error {
	viper.SetConfigName("vmstor")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/usr/local/etc")
	viper.AddConfigPath("/etc")
	viper.AddConfigPath("$HOME/.config/vmstor")
	viper.SetEnvPrefix("vmstor")
	viper.AutomaticEnv()
	viper.SetDefault(KeyLocation, "/var/vm")
	viper.SetDefault(KeyDatasetOpts, "")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Location returns the configured storage location string.
func Location() string { return viper.GetString(KeyLocation) }

// DatasetOpts returns the default dataset creation options.
func DatasetOpts() string { return viper.GetString(KeyDatasetOpts) }
