//go:build unix

package ipc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"
)

const (
	// sizeof(sem_t) on 64-bit glibc
	semSize = 32

	semValueMask    = 0xffffffff
	semNwaitersUnit = 1 << 32
	semValueMax     = 0x7fffffff

	semWaitSlice = 50 * time.Millisecond
)

// ErrSemaphoreOverflow is returned when posting would exceed SEM_VALUE_MAX.
var ErrSemaphoreOverflow = errors.New("semaphore value overflow")

// Semaphore is a process-shared counting semaphore stored in the same
// layout glibc uses for named semaphores: a 64-bit word holding the value
// in its low half and the waiter count in its high half.
type Semaphore struct {
	path string
	data []byte
	word *uint64
}

func semPath(dir, name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid semaphore name %q", name)
	}
	return filepath.Join(dir, "sem."+name), nil
}

// OpenSemaphore opens the named semaphore in dir, creating it with value 0
// when create is set and it does not exist yet.
func OpenSemaphore(dir, name string, create bool) (*Semaphore, error) {
	path, err := semPath(dir, name)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) && create {
		if err := createSemaphoreFile(dir, path); err != nil {
			return nil, err
		}
		f, err = os.OpenFile(path, os.O_RDWR, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open semaphore %s: %w", path, err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, semSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map semaphore: %w", err)
	}

	return &Semaphore{
		path: path,
		data: data,
		word: (*uint64)(unsafe.Pointer(&data[0])),
	}, nil
}

// createSemaphoreFile publishes a fully initialised semaphore under path.
// The file is written under a temporary name and linked into place so no
// process can map a half-written one. Losing the race to another creator
// is fine; its semaphore is used.
func createSemaphoreFile(dir, path string) error {
	tmp, err := os.CreateTemp(dir, "sem.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create semaphore: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o666); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(make([]byte, semSize)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to initialise semaphore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Link(tmp.Name(), path); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to publish semaphore: %w", err)
	}
	return nil
}

// Value returns the current count.
func (s *Semaphore) Value() int {
	return int(atomic.LoadUint64(s.word) & semValueMask)
}

// Post increments the count and wakes a waiter if one is blocked.
func (s *Semaphore) Post() error {
	for {
		d := atomic.LoadUint64(s.word)
		if d&semValueMask >= semValueMax {
			return ErrSemaphoreOverflow
		}
		if atomic.CompareAndSwapUint64(s.word, d, d+1) {
			if d>>32 > 0 {
				futexWake(s.valueAddr(), 1)
			}
			return nil
		}
	}
}

// TryWait decrements the count if it is positive and reports whether it did.
func (s *Semaphore) TryWait() bool {
	for {
		d := atomic.LoadUint64(s.word)
		if d&semValueMask == 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(s.word, d, d-1) {
			return true
		}
	}
}

// Wait blocks until the count can be decremented or ctx ends.
func (s *Semaphore) Wait(ctx context.Context) error {
	for {
		if s.TryWait() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		atomic.AddUint64(s.word, semNwaitersUnit)
		futexWait(s.valueAddr(), 0, semWaitSlice)
		atomic.AddUint64(s.word, ^uint64(semNwaitersUnit-1))
	}
}

// valueOffset is the byte offset of the low 32 bits of the word, which is
// where the futex waits.
func valueOffset(bigEndian bool) uintptr {
	if bigEndian {
		return 4
	}
	return 0
}

func (s *Semaphore) valueAddr() *uint32 {
	return (*uint32)(unsafe.Add(unsafe.Pointer(s.word), valueOffset(cpu.IsBigEndian)))
}

// Close unmaps the semaphore.
func (s *Semaphore) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	s.word = nil
	return err
}

// Unlink removes the semaphore name.
func (s *Semaphore) Unlink() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
