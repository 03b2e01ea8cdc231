//go:build unix && !linux

package ipc

import (
	"sync/atomic"
	"time"
)

// Without futexes waiters poll the value.
func futexWait(addr *uint32, val uint32, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if atomic.LoadUint32(addr) != val {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func futexWake(addr *uint32, n int) {}
