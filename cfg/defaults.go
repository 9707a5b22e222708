// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

const (
	// DefaultConfigDirName is spec.md §6's <dotdir> default, kept
	// hidden and out of Spotlight/Time Machine's way on the host side.
	DefaultConfigDirName = ".classicvirtio.nosync.noindex"

	// DefaultResourceForkCacheMaxCount is the default FCB table
	// capacity (see FileSystemConfig.ResourceForkCacheMaxCount).
	DefaultResourceForkCacheMaxCount = 256

	// DefaultCatalogSpillDirMode is the permission bits the catalog
	// spill and resource-fork cache directories are created with.
	DefaultCatalogSpillDirMode Octal = 0700

	// DefaultRingSize is the virtqueue descriptor count spec.md §4.1
	// negotiates absent an override.
	DefaultRingSize = 128

	// DefaultMaxInFlightTags matches spec.md §4.3/§5: the transport is
	// single-threaded and never has more than one 9P tag outstanding.
	DefaultMaxInFlightTags = 1
)

// GetDefaultLoggingConfig returns the logging defaults used during
// application startup, before any flags or config file have been
// parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultConfig returns the configuration used before any flags or
// config file have been parsed.
func GetDefaultConfig() *Config {
	return &Config{
		Logging: GetDefaultLoggingConfig(),
		FileSystem: FileSystemConfig{
			ResourceForkCacheMaxCount: DefaultResourceForkCacheMaxCount,
			CatalogSpillDirMode:       DefaultCatalogSpillDirMode,
		},
		Virtqueue: VirtqueueConfig{
			RingSize:        DefaultRingSize,
			MaxInFlightTags: DefaultMaxInFlightTags,
		},
	}
}
