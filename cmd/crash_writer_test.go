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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninecatalog/classicbridge/cfg"
)

func TestCrashWriterAppendsAcrossWrites(t *testing.T) {
	dir := t.TempDir()
	w := &CrashWriter{fileName: filepath.Join(dir, "crash.log")}

	_, err := w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	got, err := os.ReadFile(w.fileName)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(got))
}

func TestCrashLogPathUsesConfiguredConfigDir(t *testing.T) {
	dir := t.TempDir()
	c := cfg.GetDefaultConfig()
	c.FileSystem.ConfigDir = cfg.ResolvedPath(dir)

	assert.Equal(t, filepath.Join(dir, "crash.log"), crashLogPath(c))
}
