//go:build linux

package capture

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/multisense/autoconnect/internal/netif"
)

// PacketSocket is an AF_PACKET raw socket bound to one interface.
type PacketSocket struct {
	fd      int
	adapter string
}

// SocketOpener opens PacketSockets. It needs CAP_NET_RAW.
type SocketOpener struct{}

// NewOpener returns the platform opener.
func NewOpener() *SocketOpener {
	return &SocketOpener{}
}

// Open creates a raw socket for IPv4 frames, attaches the announcement
// filter and binds it to the interface index.
func (o *SocketOpener) Open(adapter string, index uint32) (Source, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_IP)))
	if err != nil {
		return nil, fmt.Errorf("failed to open capture socket on %s: %w", adapter, err)
	}

	if err := attachFilter(fd); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to attach capture filter on %s: %w", adapter, err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  int(index),
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind capture socket to %s: %w", adapter, err)
	}

	return &PacketSocket{fd: fd, adapter: adapter}, nil
}

func attachFilter(fd int) error {
	raw, err := assembleFilter()
	if err != nil {
		return err
	}
	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog)
}

// ReadFrame implements Source.
func (s *PacketSocket) ReadFrame(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, unix.MSG_DONTWAIT)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return 0, ErrNoFrame
		}
		return 0, fmt.Errorf("capture read on %s: %w", s.adapter, err)
	}
	return n, nil
}

// SetPromiscuous implements Source.
func (s *PacketSocket) SetPromiscuous() error {
	return netif.SetPromiscuous(s.fd, s.adapter)
}

// Close implements Source.
func (s *PacketSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// htons converts a host-order short to network order.
func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}
