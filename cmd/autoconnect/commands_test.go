//go:build unix

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/multisense/autoconnect/internal/config"
)

func TestConsoleLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		console bool
		want    string
	}{
		{"silent", "", false, ""},
		{"console only", "", true, "info"},
		{"explicit level", "debug", false, "debug"},
		{"explicit wins over console", "warn", true, "warn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			s.LogLevel = tt.level
			s.LogToConsole = tt.console
			if got := consoleLevel(s); got != tt.want {
				t.Errorf("consoleLevel() = %q, want %q", got, tt.want)
			}
		})
	}
}

type countdown struct{ n int }

func (c *countdown) Pending() bool {
	if c.n == 0 {
		return false
	}
	c.n--
	return true
}

func TestAwaitIngest(t *testing.T) {
	if err := awaitIngest(context.Background(), &countdown{n: 3}, time.Millisecond); err != nil {
		t.Errorf("awaitIngest() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := awaitIngest(ctx, &countdown{n: 1 << 30}, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("awaitIngest() error = %v, want deadline exceeded", err)
	}
}

func TestIPCOptions(t *testing.T) {
	s := config.Default()
	s.IPC.ShmName = "/autoconnect-test"
	opts := ipcOptions(s)
	if opts.ShmName != "/autoconnect-test" || opts.SemaphoreName != "sem" || opts.Size != 64*1024 {
		t.Errorf("ipcOptions() = %+v", opts)
	}
}
