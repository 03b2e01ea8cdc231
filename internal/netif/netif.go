package netif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// SubnetMask is assigned together with every host address.
const SubnetMask = "255.255.255.0"

// ErrUnsupported is returned on platforms without interface-control support.
var ErrUnsupported = errors.New("interface configuration is not supported on this platform")

// Interface describes one host network interface as seen by a single
// enumeration pass.
type Interface struct {
	Name             string
	Index            uint32
	HardwareAddr     string
	SupportsEthernet bool
}

// Lister enumerates host network interfaces.
type Lister interface {
	// Interfaces lists every interface. An interface whose capability query
	// fails is returned with SupportsEthernet=false rather than dropped.
	Interfaces(ctx context.Context) ([]Interface, error)
}

// Configurator changes adapter addressing. Calls for one adapter are never
// issued concurrently.
type Configurator interface {
	// SetHostAddress assigns address and the fixed /24 SubnetMask to adapter.
	SetHostAddress(adapter, address string) error
	// SetMTU sets the adapter MTU.
	SetMTU(adapter string, mtu int) error
}

// HostAddress derives the address the host takes to reach a device: the
// device address with everything after its final dot replaced by "2".
//
//	10.66.171.21  -> 10.66.171.2
//	192.168.0.199 -> 192.168.0.2
func HostAddress(deviceAddress string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(deviceAddress))
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("not an IPv4 address: %q", deviceAddress)
	}
	s := ip.To4().String()
	dot := strings.LastIndexByte(s, '.')
	return s[:dot] + ".2", nil
}
