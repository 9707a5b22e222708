// Copyright 2023 Google Inc. All Rights Reserved.
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

// Package logger provides the bridge's structured logging, five
// severities wide (spec.md §7's TRACE/DEBUG/INFO/WARNING/ERROR/OFF
// ladder) atop log/slog, in either a human-readable text format or a
// machine-parseable JSON one.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/ninecatalog/classicbridge/cfg"
)

// The five severities spec.md §7 names, plus Off, mapped onto custom
// slog.Level values so a single programLevel threshold can gate all
// of them (slog's own Debug/Info/Warn/Error quartet has no Trace or
// Off rung).
const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = math.MaxInt32
)

var severityToLevel = map[cfg.LogSeverity]slog.Level{
	cfg.TraceLogSeverity:   LevelTrace,
	cfg.DebugLogSeverity:   LevelDebug,
	cfg.InfoLogSeverity:    LevelInfo,
	cfg.WarningLogSeverity: LevelWarn,
	cfg.ErrorLogSeverity:   LevelError,
	cfg.OffLogSeverity:     LevelOff,
}

var levelToSeverity = map[slog.Level]string{
	LevelTrace: string(cfg.TraceLogSeverity),
	LevelDebug: string(cfg.DebugLogSeverity),
	LevelInfo:  string(cfg.InfoLogSeverity),
	LevelWarn:  string(cfg.WarningLogSeverity),
	LevelError: string(cfg.ErrorLogSeverity),
}

// timeFormat renders a 26-character timestamp, matching the teacher's
// original text-log layout.
const timeFormat = "2006/01/02 15:04:05.000000"

// loggerFactory remembers enough to rebuild defaultLogger whenever the
// format, severity, or destination changes at runtime (spec.md §5's
// deferred config-change events may retarget logging mid-run).
type loggerFactory struct {
	file      *os.File
	sysWriter io.Writer

	format          string
	level           cfg.LogSeverity
	logRotateConfig cfg.LogRotateLoggingConfig
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stderr
}

// createJsonOrTextHandler builds the slog.Handler matching f.format:
// "text" for the human-readable layout, anything else (including
// unset) for JSON. prefix is prepended to every message's text, used
// by tests to disambiguate output from other loggers sharing stderr.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level slog.Leveler, prefix string) slog.Handler {
	isJSON := f.format != "text"
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: buildReplaceAttr(prefix, isJSON),
	}
	if isJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func buildReplaceAttr(prefix string, isJSON bool) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			t, _ := a.Value.Any().(time.Time)
			if !isJSON {
				return slog.String(slog.TimeKey, t.Format(timeFormat))
			}
			return slog.Attr{
				Key: "timestamp",
				Value: slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				),
			}
		case slog.LevelKey:
			l, _ := a.Value.Any().(slog.Level)
			name, ok := levelToSeverity[l]
			if !ok {
				name = l.String()
			}
			return slog.String("severity", name)
		case slog.MessageKey:
			return slog.String("message", prefix+a.Value.String())
		default:
			return a
		}
	}
}

var (
	defaultProgramLevel = new(slog.LevelVar)

	defaultLoggerFactory = &loggerFactory{
		format: "json",
		level:  cfg.InfoLogSeverity,
	}

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, defaultProgramLevel, ""))
)

// setLoggingLevel maps a cfg.LogSeverity onto programLevel, defaulting
// to Info for an unrecognized value.
func setLoggingLevel(level cfg.LogSeverity, programLevel *slog.LevelVar) {
	l, ok := severityToLevel[level]
	if !ok {
		l = LevelInfo
	}
	programLevel.Set(l)
}

// InitLogFile points the default logger at the file newLogConfig
// names, or at stderr when FilePath is empty, and applies its
// severity, format, and rotation settings.
func InitLogFile(newLogConfig cfg.LoggingConfig) error {
	factory := &loggerFactory{
		format:          newLogConfig.Format,
		level:           newLogConfig.Severity,
		logRotateConfig: newLogConfig.LogRotate,
	}

	if newLogConfig.FilePath != "" {
		f, err := os.OpenFile(string(newLogConfig.FilePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		factory.file = f
	} else {
		factory.sysWriter = os.Stderr
	}

	defaultLoggerFactory = factory
	setLoggingLevel(factory.level, defaultProgramLevel)
	defaultLogger = slog.New(factory.createJsonOrTextHandler(factory.writer(), defaultProgramLevel, ""))
	return nil
}

// SetLogFormat switches the default logger's output format without
// otherwise disturbing its destination or severity.
func SetLogFormat(format string) {
	if defaultLoggerFactory == nil {
		defaultLoggerFactory = &loggerFactory{level: cfg.InfoLogSeverity}
	}
	defaultLoggerFactory.format = format
	setLoggingLevel(defaultLoggerFactory.level, defaultProgramLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer(), defaultProgramLevel, ""))
}

func Tracef(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelDebug, fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelInfo, fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelWarn, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelError, fmt.Sprintf(format, v...))
}
