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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ninecatalog/classicbridge/cfg"
	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/multifork"
	"github.com/ninecatalog/classicbridge/internal/ninep"
)

func TestBuildStrategyPicksOneFileByDefault(t *testing.T) {
	client := ninep.NewClient(nil)
	strategy := buildStrategy(client, fcb.NewTable(4), nil, cfg.MultiforkOneFile)

	_, ok := strategy.(*multifork.OneFile)
	assert.True(t, ok, "expected a *multifork.OneFile strategy")
}

func TestBuildStrategyPicksThreeFileForThreeFileHint(t *testing.T) {
	client := ninep.NewClient(nil)
	strategy := buildStrategy(client, fcb.NewTable(4), nil, cfg.MultiforkThreeFile)

	_, ok := strategy.(*multifork.ThreeFile)
	assert.True(t, ok, "expected a *multifork.ThreeFile strategy")
}

func TestFcbTableSizeUsesConfiguredValue(t *testing.T) {
	c := cfg.GetDefaultConfig()
	c.FileSystem.ResourceForkCacheMaxCount = 42

	assert.Equal(t, 42, fcbTableSize(c))
}

func TestFcbTableSizeFallsBackToDefaultWhenUnset(t *testing.T) {
	c := cfg.GetDefaultConfig()
	c.FileSystem.ResourceForkCacheMaxCount = 0

	assert.Equal(t, cfg.DefaultResourceForkCacheMaxCount, fcbTableSize(c))
}

func TestRaiseFileDescriptorLimitDoesNotError(t *testing.T) {
	assert.NoError(t, raiseFileDescriptorLimit())
}

func TestReservedFidsAreAllDistinct(t *testing.T) {
	fids := []uint32{
		fidRoot, fidCatalog, fidTmp, fidSortDir, fidSortList, fidOneFile,
		fidThreeRoot, fidThreeDir, fidThreeResFork, fidThreeCleanRec,
		fidThreeRez, fidThreeFinderInfo, fidThreeTmp, fidThreeParent,
	}
	seen := make(map[uint32]bool, len(fids))
	for _, f := range fids {
		assert.False(t, seen[f], "fid %d reused", f)
		seen[f] = true
	}
}
