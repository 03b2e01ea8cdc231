//go:build linux

package netif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// ETHTOOL_GLINKSETTINGS from linux/ethtool.h
	ethtoolGLinkSettings = 0x0000004c
	// link_mode_masks_nwords is an s8, so the kernel never reports more.
	linkModeMaskMaxWords = 127
)

// ethtoolLinkSettings mirrors struct ethtool_link_settings followed by room
// for the three link mode bitmaps.
type ethtoolLinkSettings struct {
	Cmd                 uint32
	Speed               uint32
	Duplex              uint8
	Port                uint8
	PhyAddress          uint8
	Autoneg             uint8
	MdioSupport         uint8
	EthTpMdix           uint8
	EthTpMdixCtrl       uint8
	LinkModeMasksNwords int8
	Transceiver         uint8
	MasterSlaveCfg      uint8
	MasterSlaveState    uint8
	RateMatching        uint8
	Reserved            [7]uint32
	LinkModeMasks       [3 * linkModeMaskMaxWords]uint32
}

// ifreqData is struct ifreq with ifr_data set.
type ifreqData struct {
	Name [unix.IFNAMSIZ]byte
	Data unsafe.Pointer
	_    [16]byte
}

var errNoHandshake = errors.New("link settings handshake not acknowledged")

// SystemLister enumerates interfaces through the kernel.
type SystemLister struct{}

// NewLister returns the platform lister.
func NewLister() *SystemLister {
	return &SystemLister{}
}

// Interfaces lists all host interfaces and runs the Ethernet capability
// query on each one.
func (l *SystemLister) Interfaces(ctx context.Context) ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	fd, err := controlSocket()
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it := Interface{
			Name:         iface.Name,
			Index:        uint32(iface.Index),
			HardwareAddr: iface.HardwareAddr.String(),
		}
		if iface.Flags&net.FlagLoopback == 0 {
			it.SupportsEthernet = linkSettingsHandshake(fd, iface.Name) == nil
		}
		out = append(out, it)
	}
	return out, nil
}

// linkSettingsHandshake performs the two-step ETHTOOL_GLINKSETTINGS query.
// The first call, with zero mask words, must be answered with the negated
// word count; the second call with that count must succeed.
func linkSettingsHandshake(fd int, name string) error {
	var ecmd ethtoolLinkSettings
	ecmd.Cmd = ethtoolGLinkSettings

	ifr := ifreqData{Data: unsafe.Pointer(&ecmd)}
	copy(ifr.Name[:unix.IFNAMSIZ-1], name)

	if err := ioctlEthtool(fd, &ifr); err != nil {
		return fmt.Errorf("ETHTOOL_GLINKSETTINGS on %s: %w", name, err)
	}
	if ecmd.LinkModeMasksNwords >= 0 || ecmd.Cmd != ethtoolGLinkSettings {
		return errNoHandshake
	}

	ecmd.LinkModeMasksNwords = -ecmd.LinkModeMasksNwords
	if err := ioctlEthtool(fd, &ifr); err != nil {
		return fmt.Errorf("ETHTOOL_GLINKSETTINGS on %s: %w", name, err)
	}
	runtime.KeepAlive(&ecmd)
	return nil
}

func ioctlEthtool(fd int, ifr *ifreqData) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.SIOCETHTOOL), uintptr(unsafe.Pointer(ifr)))
	if errno != 0 {
		return errno
	}
	return nil
}

func controlSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.IPPROTO_IP)
	if err != nil {
		return -1, fmt.Errorf("failed to open control socket: %w", err)
	}
	return fd, nil
}

// IoctlConfigurator configures adapters with SIOCSIF* ioctls. It needs
// CAP_NET_ADMIN.
type IoctlConfigurator struct{}

// NewConfigurator returns the platform configurator.
func NewConfigurator() *IoctlConfigurator {
	return &IoctlConfigurator{}
}

// SetHostAddress assigns address/24 to adapter.
func (c *IoctlConfigurator) SetHostAddress(adapter, address string) error {
	ip := net.ParseIP(address).To4()
	if ip == nil {
		return fmt.Errorf("not an IPv4 address: %q", address)
	}
	mask := net.ParseIP(SubnetMask).To4()

	fd, err := controlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(adapter)
	if err != nil {
		return fmt.Errorf("invalid adapter name %q: %w", adapter, err)
	}

	if err := ifr.SetInet4Addr(ip); err != nil {
		return err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFADDR, ifr); err != nil {
		return fmt.Errorf("set address on %s: %w", adapter, err)
	}

	if err := ifr.SetInet4Addr(mask); err != nil {
		return err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFNETMASK, ifr); err != nil {
		return fmt.Errorf("set netmask on %s: %w", adapter, err)
	}
	return nil
}

// SetMTU sets the adapter MTU.
func (c *IoctlConfigurator) SetMTU(adapter string, mtu int) error {
	fd, err := controlSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(adapter)
	if err != nil {
		return fmt.Errorf("invalid adapter name %q: %w", adapter, err)
	}
	ifr.SetUint32(uint32(mtu))
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFMTU, ifr); err != nil {
		return fmt.Errorf("set MTU %d on %s: %w", mtu, adapter, err)
	}
	return nil
}

// SetPromiscuous reads the interface flags through fd and sets IFF_PROMISC.
func SetPromiscuous(fd int, adapter string) error {
	ifr, err := unix.NewIfreq(adapter)
	if err != nil {
		return fmt.Errorf("invalid adapter name %q: %w", adapter, err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return fmt.Errorf("get flags on %s: %w", adapter, err)
	}
	ifr.SetUint16(ifr.Uint16() | unix.IFF_PROMISC)
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return fmt.Errorf("set flags on %s: %w", adapter, err)
	}
	return nil
}
