// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// GENERATED CODE - DO NOT EDIT MANUALLY.

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the bridge's entire external configuration surface. Hint
// parsing (spec.md §6) is the only *input* the spec admits beyond
// these flags; everything else here is the bridge's own ambient
// tuning (cache sizes, ring sizes, logging), not a guest-visible knob.
type Config struct {
	Debug DebugConfig `yaml:"debug"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Logging LoggingConfig `yaml:"logging"`

	Virtqueue VirtqueueConfig `yaml:"virtqueue"`
}

type DebugConfig struct {
	// ExitOnInvariantViolation terminates the process instead of
	// logging and continuing when a protocol-level impossibility is
	// detected (spec.md §7's "fatal" class).
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type FileSystemConfig struct {
	// ConfigDir overrides the default <dotdir> (spec.md §6:
	// ".classicvirtio.nosync.noindex") the catalog spill area and
	// resource-fork cache live under.
	ConfigDir ResolvedPath `yaml:"config-dir"`

	// MultiforkHint forces a strategy instead of deriving it from the
	// mount_tag suffix; empty means "derive from mount_tag".
	MultiforkHint MultiforkHint `yaml:"multifork-hint"`

	// ResourceForkCacheMaxCount is the capacity of the FCB table, the
	// number of forks that can be open at once. It does not bound the
	// three-file strategy's resource-fork cache, and nothing evicts
	// entries from that cache by count.
	ResourceForkCacheMaxCount int `yaml:"resource-fork-cache-max-count"`

	// CatalogSpillDirMode is the permission bits for the catalog/
	// resforks directories created under ConfigDir.
	CatalogSpillDirMode Octal `yaml:"catalog-spill-dir-mode"`
}

type VirtqueueConfig struct {
	// RingSize is the number of descriptors in the single virtqueue
	// this 9P transport negotiates (spec.md §4.1).
	RingSize int `yaml:"ring-size"`

	// MaxInFlightTags bounds how many 9P tags may be outstanding;
	// spec.md §4.3/§5 describe a single outstanding tag, but the field
	// is kept configurable for diagnostic builds that relax that.
	MaxInFlightTags int `yaml:"max-in-flight-tags"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when a mutex is held too long.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex")); err != nil {
		return err
	}

	flagSet.StringP("config-dir", "", "", "Override the <dotdir> the catalog spill area and resource-fork cache live under.")
	if err = viper.BindPFlag("file-system.config-dir", flagSet.Lookup("config-dir")); err != nil {
		return err
	}

	flagSet.StringP("multifork-hint", "", "", `Force the multifork strategy ("1" or "3") instead of deriving it from the mount tag suffix.`)
	if err = viper.BindPFlag("file-system.multifork-hint", flagSet.Lookup("multifork-hint")); err != nil {
		return err
	}

	flagSet.IntP("resource-fork-cache-max-count", "", DefaultResourceForkCacheMaxCount, "Capacity of the FCB table (forks open at once).")
	if err = viper.BindPFlag("file-system.resource-fork-cache-max-count", flagSet.Lookup("resource-fork-cache-max-count")); err != nil {
		return err
	}

	flagSet.IntP("ring-size", "", DefaultRingSize, "Number of descriptors in the virtqueue ring.")
	if err = viper.BindPFlag("virtqueue.ring-size", flagSet.Lookup("ring-size")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", `Logging format: "text" or "json".`)
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; empty logs to stderr only.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	return nil
}
