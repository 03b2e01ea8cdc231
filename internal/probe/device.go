package probe

import (
	"fmt"
	"time"
)

// Device is a device that answered a probe.
type Device struct {
	// Name identifies the device in status results (e.g., "S27-0142")
	Name string

	// Address is the IPv4 address that was probed
	Address string

	// Hostname is the mDNS hostname, empty when no advertisement was seen
	Hostname string

	// Port is the advertised service port, zero when unknown
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// RTT is the average echo round trip
	RTT time.Duration

	// DiscoveredAt is when the probe succeeded
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if d.Hostname == "" {
		return fmt.Sprintf("Device %s at %s", d.Name, d.Address)
	}
	return fmt.Sprintf("Device %s (%s) at %s", d.Name, d.Hostname, d.Address)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// FallbackName is the name given to a device that did not advertise one.
func FallbackName(address string) string {
	return "device-" + address
}
