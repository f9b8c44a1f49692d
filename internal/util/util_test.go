package util

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info", "json").Info("hello", "sncl", "IU.ANMO.00.BHZ")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json logger output %q is not JSON", buf.String())
	}

	buf.Reset()
	NewLoggerTo(&buf, "info", "text").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buf.String())
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(60, 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst of 3 took %v, want immediate", elapsed)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait returned error: %v", err)
	}
	cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait should fail once the context is cancelled")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait returned error: %v", err)
	}
	if err := NewRateLimiter(0, 1).Wait(context.Background()); err != nil {
		t.Errorf("disabled limiter Wait returned error: %v", err)
	}
}

func TestStartOfUTCDay(t *testing.T) {
	in := time.Date(2024, 2, 29, 23, 59, 59, 999, time.UTC)
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if got := StartOfUTCDay(in); !got.Equal(want) {
		t.Errorf("StartOfUTCDay = %v, want %v", got, want)
	}

	// A non-UTC instant belongs to the UTC day it falls in.
	east := time.FixedZone("UTC+9", 9*3600)
	in = time.Date(2024, 3, 1, 3, 0, 0, 0, east) // 2024-02-29T18:00Z
	if got := StartOfUTCDay(in); !got.Equal(want) {
		t.Errorf("StartOfUTCDay(%v) = %v, want %v", in, got, want)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-03-01T12:30:00", time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2024-03-01T12:30:00+02:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseTime(tc.in)
		if err != nil {
			t.Errorf("ParseTime(%q) returned error: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseTime("March 1"); err == nil {
		t.Error("expected error for unparseable time")
	}
}
