package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultService is the mDNS service type devices advertise
	DefaultService = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultNameTimeout bounds one name lookup
	DefaultNameTimeout = time.Second
)

// Advertisement is the part of an mDNS service entry that names a device.
type Advertisement struct {
	Name     string
	Hostname string
	Port     int
	Metadata map[string]string
}

// MDNSNamer names devices from their mDNS service advertisements.
type MDNSNamer struct {
	// Service is the mDNS service type to browse
	Service string

	// Timeout is the maximum time to wait for a matching advertisement
	Timeout time.Duration
}

// NewMDNSNamer creates a namer browsing service.
func NewMDNSNamer(service string, timeout time.Duration) *MDNSNamer {
	if service == "" {
		service = DefaultService
	}
	if timeout <= 0 {
		timeout = DefaultNameTimeout
	}
	return &MDNSNamer{Service: service, Timeout: timeout}
}

// Name browses on adapter until an advertisement for address appears or the
// timeout elapses.
func (n *MDNSNamer) Name(ctx context.Context, address, adapter string) (*Advertisement, error) {
	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	var opts []zeroconf.ClientOption
	if iface, err := net.InterfaceByName(adapter); err == nil {
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}

	resolver, err := zeroconf.NewResolver(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Advertisement, 1)

	go func() {
		for entry := range entries {
			if ad := parseServiceEntry(entry, address); ad != nil {
				select {
				case found <- ad:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, n.Service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case ad := <-found:
		return ad, nil
	case <-ctx.Done():
	}

	// The browse may have matched just as the deadline fired.
	select {
	case ad := <-found:
		return ad, nil
	default:
		return nil, fmt.Errorf("no advertisement for %s within %v", address, n.Timeout)
	}
}

// parseServiceEntry returns the advertisement in entry if it belongs to
// address, nil otherwise.
func parseServiceEntry(entry *zeroconf.ServiceEntry, address string) *Advertisement {
	if entry == nil {
		return nil
	}

	match := false
	for _, ip := range entry.AddrIPv4 {
		if ip.String() == address {
			match = true
			break
		}
	}
	if !match {
		return nil
	}

	name := entry.Instance
	if name == "" {
		name = strings.TrimSuffix(strings.TrimSuffix(entry.HostName, "."), ".local")
	}
	if name == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Advertisement{
		Name:     name,
		Hostname: entry.HostName,
		Port:     entry.Port,
		Metadata: metadata,
	}
}
