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
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMountTagSplitsRecognizedSuffix(t *testing.T) {
	name, hint := ParseMountTag("myvolume_3")
	assert.Equal(t, "myvolume", name)
	assert.Equal(t, MultiforkThreeFile, hint)

	name, hint = ParseMountTag("myvolume_1")
	assert.Equal(t, "myvolume", name)
	assert.Equal(t, MultiforkOneFile, hint)
}

func TestParseMountTagDefaultsToOneFile(t *testing.T) {
	name, hint := ParseMountTag("myvolume")
	assert.Equal(t, "myvolume", name)
	assert.Equal(t, MultiforkOneFile, hint)
}

func TestEffectiveMultiforkHintPrefersExplicitOverride(t *testing.T) {
	c := &Config{FileSystem: FileSystemConfig{MultiforkHint: MultiforkThreeFile}}
	assert.Equal(t, MultiforkThreeFile, EffectiveMultiforkHint(c, MultiforkOneFile))
}

func TestEffectiveMultiforkHintFallsBackToMountTag(t *testing.T) {
	c := &Config{}
	assert.Equal(t, MultiforkThreeFile, EffectiveMultiforkHint(c, MultiforkThreeFile))
}

func TestResolveConfigDirUsesOverrideWhenSet(t *testing.T) {
	c := &Config{FileSystem: FileSystemConfig{ConfigDir: "/srv/myvolume/.cfg"}}
	dir, err := ResolveConfigDir(c)
	require.NoError(t, err)
	assert.Equal(t, "/srv/myvolume/.cfg", dir)
}

func TestResolveConfigDirDefaultsUnderHome(t *testing.T) {
	c := &Config{}
	dir, err := ResolveConfigDir(c)
	require.NoError(t, err)
	assert.Contains(t, dir, DefaultConfigDirName)
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateConfig(GetDefaultConfig()))
}

func TestValidateConfigRejectsNonPowerOfTwoRingSize(t *testing.T) {
	c := GetDefaultConfig()
	c.Virtqueue.RingSize = 100
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsBadLogRotate(t *testing.T) {
	c := GetDefaultConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsBadMultiforkHint(t *testing.T) {
	c := GetDefaultConfig()
	c.FileSystem.MultiforkHint = "7"
	assert.Error(t, ValidateConfig(c))
}

func TestBindFlagsRegistersEveryFlagWithoutError(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse([]string{"--ring-size=256", "--log-severity=DEBUG"}))

	ringSize, err := fs.GetInt("ring-size")
	require.NoError(t, err)
	assert.Equal(t, 256, ringSize)

	severity, err := fs.GetString("log-severity")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", severity)
}
