//go:build !linux

package capture

import "github.com/multisense/autoconnect/internal/netif"

// SocketOpener is unavailable on this platform.
type SocketOpener struct{}

// NewOpener returns the platform opener.
func NewOpener() *SocketOpener {
	return &SocketOpener{}
}

// Open always fails with netif.ErrUnsupported.
func (o *SocketOpener) Open(adapter string, index uint32) (Source, error) {
	return nil, netif.ErrUnsupported
}
