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
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Octal is the datatype for config values that accept a base-8 value,
// such as the catalog spill directory mode.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// LogSeverity represents the logging severity and accepts one of
// "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF".
type LogSeverity string

const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

// severityRanking maps each level to an integer for comparison; a
// lower rank is more verbose.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank, or -1
// if l is not one of the recognized severities.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// MultiforkHint selects which multifork strategy a mount_tag's "_3"
// suffix requests (spec.md §6): one-file (xattr-backed) by default, or
// three-file (sidecar-backed) when the hint is present.
type MultiforkHint string

const (
	MultiforkOneFile   MultiforkHint = "1"
	MultiforkThreeFile MultiforkHint = "3"
)

func (h *MultiforkHint) UnmarshalText(text []byte) error {
	v := MultiforkHint(text)
	if v != "" && v != MultiforkOneFile && v != MultiforkThreeFile {
		return fmt.Errorf("invalid multifork hint: %q, must be %q or %q", text, MultiforkOneFile, MultiforkThreeFile)
	}
	*h = v
	return nil
}

// ResolvedPath is an absolute, cleaned filesystem path, such as the
// <dotdir> override (spec.md §6).
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*p = ""
		return nil
	}
	abs, err := filepath.Abs(string(text))
	if err != nil {
		return err
	}
	*p = ResolvedPath(filepath.Clean(abs))
	return nil
}

// ParseMountTag splits a virtio mount_tag into its displayable volume
// name and an optional multifork hint suffix ("_3" forces the
// three-file strategy), per spec.md §6's "Volume configuration".
// Absence of a recognized suffix yields MultiforkOneFile, matching the
// original's default strategy.
func ParseMountTag(tag string) (volumeName string, hint MultiforkHint) {
	for _, suffix := range []MultiforkHint{MultiforkThreeFile, MultiforkOneFile} {
		marker := "_" + string(suffix)
		if strings.HasSuffix(tag, marker) {
			return strings.TrimSuffix(tag, marker), suffix
		}
	}
	return tag, MultiforkOneFile
}

// validSeverities lists every LogSeverity value the decode hook and
// flag validation accept, kept as a slice so both can reuse the slices
// package without re-deriving it from the rank map each time.
var validSeverities = func() []string {
	out := make([]string, 0, len(severityRanking))
	for k := range severityRanking {
		out = append(out, string(k))
	}
	slices.Sort(out)
	return out
}()
