// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newBufferedSlog(t *testing.T, level zerolog.Level) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	previous := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(level)
	return slog.New(NewSlogHandlerWithLogger(zl)), &buf
}

func TestSlogHandler_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
	}{
		{"debug", func(l *slog.Logger) { l.Debug("m") }, "debug"},
		{"info", func(l *slog.Logger) { l.Info("m") }, "info"},
		{"warn", func(l *slog.Logger) { l.Warn("m") }, "warn"},
		{"error", func(l *slog.Logger) { l.Error("m") }, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedSlog(t, zerolog.TraceLevel)
			tt.log(logger)
			if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
				t.Errorf("expected level %s, got: %s", tt.level, buf.String())
			}
		})
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	logger, buf := newBufferedSlog(t, zerolog.WarnLevel)
	h := logger.Handler()

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled for a warn logger")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled for a warn logger")
	}

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got: %s", buf.String())
	}
}

func TestSlogHandler_Attributes(t *testing.T) {
	logger, buf := newBufferedSlog(t, zerolog.TraceLevel)

	logger.With("supervisor", "vtx-link").
		WithGroup("service").
		Error("service panicked",
			"name", "stream:cam1",
			"restarts", 3,
			"backoff", 15*time.Second,
			"failing", true,
			"err", errors.New("boom"),
			slog.Group("event", "kind", "panic"),
		)

	output := buf.String()
	for _, want := range []string{
		`"supervisor":"vtx-link"`,
		`"service.name":"stream:cam1"`,
		`"service.restarts":3`,
		`"service.failing":true`,
		`"service.err":"boom"`,
		`"service.event.kind":"panic"`,
		`"message":"service panicked"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
	if !strings.Contains(output, `"service.backoff":`) {
		t.Errorf("expected duration field, got: %s", output)
	}
}

func TestSlogHandler_NestedGroupOrder(t *testing.T) {
	logger, buf := newBufferedSlog(t, zerolog.TraceLevel)

	logger.WithGroup("outer").WithGroup("inner").Info("m", "key", "v")

	if !strings.Contains(buf.String(), `"outer.inner.key":"v"`) {
		t.Errorf("expected outer.inner.key, got: %s", buf.String())
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelInfo + 2, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	buf := capture(t, "info")

	NewSlogLogger().Info("through slog", "stream", "cam1")

	if !strings.Contains(buf.String(), `"stream":"cam1"`) {
		t.Errorf("expected slog output on the global logger, got: %s", buf.String())
	}
}
