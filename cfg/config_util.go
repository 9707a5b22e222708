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

package cfg

import (
	"os"
	"path/filepath"
)

// ResolveConfigDir returns the <dotdir> this volume's catalog spill
// area and resource-fork cache live under: the explicit override when
// FileSystem.ConfigDir is set, else home/DefaultConfigDirName per
// spec.md §6.
func ResolveConfigDir(c *Config) (string, error) {
	if c.FileSystem.ConfigDir != "" {
		return string(c.FileSystem.ConfigDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDirName), nil
}

// EffectiveMultiforkHint resolves the strategy a volume should use:
// an explicit FileSystem.MultiforkHint always wins over the hint
// parsed from the mount tag itself.
func EffectiveMultiforkHint(c *Config, mountTagHint MultiforkHint) MultiforkHint {
	if c.FileSystem.MultiforkHint != "" {
		return c.FileSystem.MultiforkHint
	}
	return mountTagHint
}
