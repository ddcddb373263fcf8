// Copyright 2025 Google LLC
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

// Package logger provides the structured logging used by every component of
// a recovery pass. It wraps log/slog with a severity scale that includes a
// TRACE level below slog's own floor, and with a handler that renders either
// human-readable text or JSON depending on cfg.LoggingConfig.Format.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/scalelfs/rollforward/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

type loggerFactory struct {
	file      *lumberjack.Logger
	sysWriter io.Writer
	format    string
	level     string
	rotate    cfg.LogRotateLoggingConfig
}

var (
	defaultLoggerFactory = &loggerFactory{
		sysWriter: os.Stderr,
		format:    "json",
		level:     cfg.INFO,
	}
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

func init() {
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
}

// InitLogFile points the default logger at a rotated log file as described
// by loggingConfig, replacing the stderr writer used until now.
func InitLogFile(loggingConfig cfg.LoggingConfig) error {
	f := &loggerFactory{
		format: loggingConfig.Format,
		level:  string(loggingConfig.Severity),
		rotate: loggingConfig.LogRotate,
	}

	if loggingConfig.FilePath != "" {
		f.file = &lumberjack.Logger{
			Filename:   string(loggingConfig.FilePath),
			MaxSize:    loggingConfig.LogRotate.MaxFileSizeMb,
			MaxBackups: loggingConfig.LogRotate.BackupFileCount,
			Compress:   loggingConfig.LogRotate.Compress,
		}
	}

	defaultLoggerFactory = f
	var w io.Writer = os.Stderr
	if f.file != nil {
		w = f.file
	}

	setLoggingLevel(f.level, programLevel)
	defaultLogger = slog.New(f.createJsonOrTextHandler(w, programLevel, ""))
	return nil
}

// SetLogFormat changes the rendering format ("text" or "json", default json)
// of the default logger in place.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.file != nil {
		w = defaultLoggerFactory.file
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

func setLoggingLevel(level string, pl *slog.LevelVar) {
	switch level {
	case cfg.TRACE:
		pl.Set(LevelTrace)
	case cfg.DEBUG:
		pl.Set(LevelDebug)
	case cfg.INFO:
		pl.Set(LevelInfo)
	case cfg.WARNING:
		pl.Set(LevelWarn)
	case cfg.ERROR:
		pl.Set(LevelError)
	case cfg.OFF:
		pl.Set(LevelOff)
	default:
		pl.Set(LevelInfo)
	}
}

// textOrJSONHandler renders records written at or above level, as text or
// JSON depending on the factory's current format. Unlike slog's built-in
// handlers it emits a fixed three-field shape (timestamp, severity, message,
// with the timestamp written as "time" in text) followed by the record's
// attrs: one line per replay decision.
type textOrJSONHandler struct {
	w      io.Writer
	level  *slog.LevelVar
	prefix string
	isJSON func() string
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	return &textOrJSONHandler{w: w, level: level, prefix: prefix, isJSON: func() string { return f.format }}
}

func (h *textOrJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func (h *textOrJSONHandler) Handle(_ context.Context, r slog.Record) error {
	msg := h.prefix + r.Message
	sev := severityName(r.Level)

	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		if a.Value.Kind() == slog.KindGroup {
			group := make(map[string]any)
			for _, ga := range a.Value.Group() {
				group[ga.Key] = ga.Value.Any()
			}
			attrs[a.Key] = group
			return true
		}
		attrs[a.Key] = a.Value.Any()
		return true
	})

	if h.isJSON() == "text" {
		line := fmt.Sprintf("time=%q severity=%s message=%q", r.Time.Format(time.RFC3339), sev, msg)
		for k, v := range attrs {
			line += fmt.Sprintf(" %s=%v", k, v)
		}
		_, err := fmt.Fprintln(h.w, line)
		return err
	}

	type timestamp struct {
		Seconds int64 `json:"seconds"`
		Nanos   int   `json:"nanos"`
	}
	b, err := json.Marshal(struct {
		Timestamp timestamp `json:"timestamp"`
		Severity  string    `json:"severity"`
		Message   string    `json:"message"`
	}{timestamp{r.Time.Unix(), r.Time.Nanosecond()}, sev, msg})
	if err != nil {
		return err
	}
	if len(attrs) > 0 {
		extra, err := json.Marshal(attrs)
		if err != nil {
			return err
		}
		b = append(append(b[:len(b)-1], ','), extra[1:]...)
	}
	_, err = fmt.Fprintln(h.w, string(b))
	return err
}

func (h *textOrJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *textOrJSONHandler) WithGroup(name string) slog.Handler       { return h }

func Tracef(format string, args ...any) { defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }

// Recovery emits the one-line-per-decision notice spec.md's ambient stack
// requires: component name, inode number, human name (or "<encrypted>"),
// a key block address, and an error code (empty on success).
func Recovery(component string, ino uint32, name string, blkaddr uint32, errCode string) {
	defaultLogger.Info("recovery step",
		slog.Group("recovery",
			slog.String("component", component),
			slog.Uint64("ino", uint64(ino)),
			slog.String("name", name),
			slog.Uint64("blkaddr", uint64(blkaddr)),
			slog.String("error", errCode),
		),
	)
}
