package config

import (
	"fmt"
	"time"
)

// Settings is the complete runtime configuration of the discovery service.
type Settings struct {
	Version int `yaml:"version"`

	TickInterval       time.Duration `yaml:"tick_interval"`        // Orchestrator tick
	RunLimit           time.Duration `yaml:"run_limit"`            // Hard cap on a discovery window
	EnumerateInterval  time.Duration `yaml:"enumerate_interval"`   // Spacing between adapter scans
	CaptureTimeout     time.Duration `yaml:"capture_timeout"`      // Lifetime of one capture task
	CaptureIdleBackoff time.Duration `yaml:"capture_idle_backoff"` // Sleep when no frame is pending
	PropagationDelay   time.Duration `yaml:"propagation_delay"`    // Wait after reassigning the host address
	JumboMTU           int           `yaml:"jumbo_mtu"`
	Workers            int           `yaml:"workers"`

	LogLevel     string `yaml:"log_level,omitempty"`
	LogToConsole bool   `yaml:"log_to_console"`

	IPC   IPCSettings   `yaml:"ipc"`
	Probe ProbeSettings `yaml:"probe"`
}

// IPCSettings configures the shared-memory status channel.
type IPCSettings struct {
	Enabled       bool   `yaml:"enabled"`
	ShmName       string `yaml:"shm_name"`
	SemaphoreName string `yaml:"semaphore_name"`
	RegionSize    int    `yaml:"region_size"` // Both halves together
}

// ProbeSettings configures the device probe.
type ProbeSettings struct {
	Timeout     time.Duration `yaml:"timeout"`
	Count       int           `yaml:"count"`
	Privileged  bool          `yaml:"privileged"`
	MDNSService string        `yaml:"mdns_service,omitempty"` // Empty disables name lookup
	MDNSTimeout time.Duration `yaml:"mdns_timeout"`
}

// Default returns the reference sizing.
func Default() *Settings {
	return &Settings{
		Version:            1,
		TickInterval:       100 * time.Millisecond,
		RunLimit:           60 * time.Second,
		EnumerateInterval:  500 * time.Millisecond,
		CaptureTimeout:     15 * time.Second,
		CaptureIdleBackoff: 10 * time.Millisecond,
		PropagationDelay:   500 * time.Millisecond,
		JumboMTU:           7200,
		Workers:            5,
		IPC: IPCSettings{
			Enabled:       false,
			ShmName:       "/mem",
			SemaphoreName: "sem",
			RegionSize:    64 * 1024,
		},
		Probe: ProbeSettings{
			Timeout:     2 * time.Second,
			Count:       2,
			Privileged:  true,
			MDNSService: "_http._tcp",
			MDNSTimeout: time.Second,
		},
	}
}

// Validate reports the first setting that cannot be used.
func (s *Settings) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"tick_interval", s.TickInterval},
		{"run_limit", s.RunLimit},
		{"enumerate_interval", s.EnumerateInterval},
		{"capture_timeout", s.CaptureTimeout},
		{"capture_idle_backoff", s.CaptureIdleBackoff},
		{"probe.timeout", s.Probe.Timeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.value)
		}
	}
	if s.PropagationDelay < 0 {
		return fmt.Errorf("propagation_delay must not be negative, got %v", s.PropagationDelay)
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.JumboMTU < 68 {
		return fmt.Errorf("jumbo_mtu %d is below the IPv4 minimum of 68", s.JumboMTU)
	}
	if s.Probe.Count < 1 {
		return fmt.Errorf("probe.count must be at least 1, got %d", s.Probe.Count)
	}
	if s.IPC.Enabled {
		if s.IPC.RegionSize < 2 || s.IPC.RegionSize%2 != 0 {
			return fmt.Errorf("ipc.region_size must be a positive even number, got %d", s.IPC.RegionSize)
		}
		if s.IPC.ShmName == "" || s.IPC.SemaphoreName == "" {
			return fmt.Errorf("ipc.shm_name and ipc.semaphore_name are required when ipc is enabled")
		}
	}
	return nil
}
