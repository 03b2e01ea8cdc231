//go:build unix

package ipc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Region is a shared-memory segment mapped into this process.
type Region struct {
	path string
	file *os.File
	data []byte
}

func shmPath(dir, name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid shared memory name %q", name)
	}
	return filepath.Join(dir, name), nil
}

// OpenRegion opens or creates the named segment in dir and maps size bytes.
// With create=false a missing segment is reported as os.ErrNotExist.
func OpenRegion(dir, name string, size int, create bool) (*Region, error) {
	if size <= 0 || size%2 != 0 {
		return nil, fmt.Errorf("invalid region size %d", size)
	}
	path, err := shmPath(dir, name)
	if err != nil {
		return nil, err
	}

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared memory segment %s: %w", path, err)
	}

	if create {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size shared memory segment: %w", err)
		}
	} else {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if fi.Size() < int64(size) {
			f.Close()
			return nil, fmt.Errorf("shared memory segment %s is %d bytes, want %d", path, fi.Size(), size)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map shared memory segment: %w", err)
	}

	return &Region{path: path, file: f, data: data}, nil
}

// Size returns the mapped length.
func (r *Region) Size() int {
	return len(r.data)
}

// Outbound is the service-to-controller half.
func (r *Region) Outbound() []byte {
	return r.data[:len(r.data)/2]
}

// Inbound is the controller-to-service half.
func (r *Region) Inbound() []byte {
	return r.data[len(r.data)/2:]
}

// Close unmaps the segment and closes its descriptor.
func (r *Region) Close() error {
	var errs []error
	if r.data != nil {
		errs = append(errs, unix.Munmap(r.data))
		r.data = nil
	}
	if r.file != nil {
		errs = append(errs, r.file.Close())
		r.file = nil
	}
	return errors.Join(errs...)
}

// Unlink removes the segment name. Existing mappings stay valid.
func (r *Region) Unlink() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// readString returns a copy of buf up to its first NUL.
func readString(buf []byte) []byte {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out
}

// writeString stores payload in buf followed by a NUL. The first byte is
// stored last so a reader that races the write sees either an empty
// string or the full payload.
func writeString(buf, payload []byte) error {
	if len(payload)+1 > len(buf) {
		return ErrPayloadTooLarge
	}
	if len(payload) == 0 {
		buf[0] = 0
		return nil
	}
	buf[0] = 0
	copy(buf[1:], payload[1:])
	buf[len(payload)] = 0
	buf[0] = payload[0]
	return nil
}
