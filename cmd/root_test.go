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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninecatalog/classicbridge/cfg"
)

func TestCobraArgsExactlyOneMountTag(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{name: "too many args", args: []string{"fsbridge", "serve", "MyDisk", "extra"}, expectError: true},
		{name: "too few args", args: []string{"fsbridge", "serve"}, expectError: true},
		{name: "exactly one mount tag", args: []string{"fsbridge", "serve", "MyDisk"}, expectError: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := NewRootCmd(func(*cfg.Config, string) error { return nil })
			require.Nil(t, err)
			cmd.SetArgs(tc.args)

			err = cmd.Execute()

			if tc.expectError {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestArgsParsingPassesMountTagThrough(t *testing.T) {
	var gotTag string
	cmd, err := NewRootCmd(func(_ *cfg.Config, tag string) error {
		gotTag = tag
		return nil
	})
	require.Nil(t, err)
	cmd.SetArgs([]string{"serve", "MyDisk_3"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "MyDisk_3", gotTag)
}

func TestRootCmdAppliesDefaultConfigWhenNoFlagsGiven(t *testing.T) {
	var actual *cfg.Config
	cmd, err := NewRootCmd(func(c *cfg.Config, _ string) error {
		actual = c
		return nil
	})
	require.Nil(t, err)
	cmd.SetArgs([]string{"serve", "MyDisk"})

	if assert.Nil(t, cmd.Execute()) {
		assert.Equal(t, cfg.DefaultRingSize, actual.Virtqueue.RingSize)
		assert.Equal(t, cfg.DefaultResourceForkCacheMaxCount, actual.FileSystem.ResourceForkCacheMaxCount)
	}
}

func TestRootCmdRejectsInvalidRingSizeFlag(t *testing.T) {
	cmd, err := NewRootCmd(func(*cfg.Config, string) error { return nil })
	require.Nil(t, err)
	cmd.SetArgs([]string{"serve", "MyDisk", "--ring-size=3"})

	assert.NotNil(t, cmd.Execute())
}

func TestRootCmdSurfacesRunFuncError(t *testing.T) {
	cmd, err := NewRootCmd(func(*cfg.Config, string) error {
		return assert.AnError
	})
	require.Nil(t, err)
	cmd.SetArgs([]string{"serve", "MyDisk"})

	assert.ErrorIs(t, cmd.Execute(), assert.AnError)
}
