package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ErrNoDevice is the normal negative outcome: nothing answered at the
// candidate address.
var ErrNoDevice = errors.New("no device responded")

// Prober tests one candidate address through one adapter.
type Prober interface {
	// Probe returns the device at address, or ErrNoDevice.
	Probe(ctx context.Context, address, adapter string) (*Device, error)
}

// Namer resolves a friendly name for a reachable device.
type Namer interface {
	Name(ctx context.Context, address, adapter string) (*Advertisement, error)
}

// Options configures ICMPProber.
type Options struct {
	Timeout    time.Duration
	Count      int
	Privileged bool
}

// DefaultOptions returns the standard probe settings.
func DefaultOptions() Options {
	return Options{
		Timeout:    2 * time.Second,
		Count:      2,
		Privileged: true,
	}
}

// ICMPProber probes with ICMP echo and names devices through a Namer.
type ICMPProber struct {
	opts  Options
	namer Namer
}

// NewICMPProber creates a prober. namer may be nil, in which case every
// device gets its FallbackName.
func NewICMPProber(opts Options, namer Namer) *ICMPProber {
	if opts.Count <= 0 {
		opts.Count = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &ICMPProber{opts: opts, namer: namer}
}

// Probe implements Prober.
func (p *ICMPProber) Probe(ctx context.Context, address, adapter string) (*Device, error) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinger for %s: %w", address, err)
	}

	pinger.SetPrivileged(p.opts.Privileged)
	pinger.InterfaceName = adapter
	pinger.Count = p.opts.Count
	pinger.Timeout = p.opts.Timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ping %s via %s: %w", address, adapter, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return nil, ErrNoDevice
	}

	device := &Device{
		Name:         FallbackName(address),
		Address:      address,
		RTT:          stats.AvgRtt,
		DiscoveredAt: time.Now(),
	}

	if p.namer != nil {
		if ad, err := p.namer.Name(ctx, address, adapter); err == nil && ad != nil {
			device.Name = ad.Name
			device.Hostname = ad.Hostname
			device.Port = ad.Port
			device.Metadata = ad.Metadata
		}
	}

	return device, nil
}
