package capture

import "errors"

// MaxFrameSize bounds a single read. Jumbo frames from devices fit.
const MaxFrameSize = 65536

// ErrNoFrame is returned by ReadFrame when nothing is queued.
var ErrNoFrame = errors.New("no frame pending")

// Source is a raw frame source bound to one adapter.
type Source interface {
	// ReadFrame copies the next queued frame into buf without blocking.
	ReadFrame(buf []byte) (int, error)
	// SetPromiscuous asks the adapter to deliver every frame it sees.
	SetPromiscuous() error
	Close() error
}

// Opener opens a Source for an adapter.
type Opener interface {
	Open(adapter string, index uint32) (Source, error)
}
