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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidMultiforkHint(h MultiforkHint) error {
	if h == "" || h == MultiforkOneFile || h == MultiforkThreeFile {
		return nil
	}
	return fmt.Errorf("invalid multifork hint: %q, must be %q or %q", h, MultiforkOneFile, MultiforkThreeFile)
}

func isValidVirtqueueConfig(v *VirtqueueConfig) error {
	if v.RingSize <= 0 {
		return fmt.Errorf("ring-size must be positive")
	}
	// spec.md §4.1: the ring size is a power of two.
	if v.RingSize&(v.RingSize-1) != 0 {
		return fmt.Errorf("ring-size must be a power of two, got %d", v.RingSize)
	}
	if v.MaxInFlightTags <= 0 {
		return fmt.Errorf("max-in-flight-tags must be positive")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err := isValidMultiforkHint(config.FileSystem.MultiforkHint); err != nil {
		return fmt.Errorf("error parsing file-system config: %w", err)
	}

	if config.FileSystem.ResourceForkCacheMaxCount <= 0 {
		return fmt.Errorf("resource-fork-cache-max-count must be positive")
	}

	if err := isValidVirtqueueConfig(&config.Virtqueue); err != nil {
		return fmt.Errorf("error parsing virtqueue config: %w", err)
	}

	return nil
}
