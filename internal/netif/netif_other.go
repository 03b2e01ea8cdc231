//go:build !linux

package netif

import (
	"context"
	"fmt"
	"net"
)

// SystemLister lists interfaces but cannot query link capabilities here, so
// every interface is reported without Ethernet support.
type SystemLister struct{}

// NewLister returns the platform lister.
func NewLister() *SystemLister {
	return &SystemLister{}
}

// Interfaces lists host interfaces.
func (l *SystemLister) Interfaces(ctx context.Context) ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		out = append(out, Interface{
			Name:         iface.Name,
			Index:        uint32(iface.Index),
			HardwareAddr: iface.HardwareAddr.String(),
		})
	}
	return out, nil
}

// IoctlConfigurator is unavailable on this platform.
type IoctlConfigurator struct{}

// NewConfigurator returns the platform configurator.
func NewConfigurator() *IoctlConfigurator {
	return &IoctlConfigurator{}
}

// SetHostAddress always fails with ErrUnsupported.
func (c *IoctlConfigurator) SetHostAddress(adapter, address string) error {
	return ErrUnsupported
}

// SetMTU always fails with ErrUnsupported.
func (c *IoctlConfigurator) SetMTU(adapter string, mtu int) error {
	return ErrUnsupported
}

// SetPromiscuous always fails with ErrUnsupported.
func SetPromiscuous(fd int, adapter string) error {
	return ErrUnsupported
}
