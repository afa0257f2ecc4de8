// Package mmap provides read-only memory-mapped views of trace files.
//
// Front-ends that index large traces can read raw values straight from a
// mapped Region; the operating system then pages the file in and out as the
// loader scans it. Bytes aliases the mapping and is only valid until Close.
// ReadAt copies and reports I/O faults against the mapping as ErrFault.
package mmap

import (
	"errors"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"syscall"

	pkgErrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrFault is returned when reading the mapping hits an I/O error, e.g. a file
// truncated by another process.
var ErrFault = errors.New("page fault occurred while reading from memory map")

// Region is a read-only, shared memory mapping of a whole file.
//
// Reads are safe for concurrent use. Close unmaps the file; slices obtained
// from Bytes must not be used afterwards.
type Region struct {
	path string
	data []byte

	closeOnce sync.Once
	closeErr  error
}

// Open maps the file at path read-only.
// An empty file yields a Region with no data.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgErrors.Wrapf(err, "failed to open trace file %#v", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pkgErrors.Wrapf(err, "failed to obtain size of trace file %#v", path)
	}

	size := info.Size()
	if size == 0 {
		return &Region{path: path}, nil
	}
	if int64(int(size)) != size {
		return nil, pkgErrors.Errorf("trace file %#v is too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, pkgErrors.Wrapf(err, "failed to memory map trace file %#v", path)
	}

	return &Region{path: path, data: data}, nil
}

// Path returns the mapped file path.
func (r *Region) Path() string {
	return r.path
}

// Len returns the mapped size in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Bytes returns the whole mapping. The slice is read-only; writing to it faults.
func (r *Region) Bytes() []byte {
	return r.data
}

// ReadAt reads through the memory map at a given offset.
//
// It implements io.ReaderAt. I/O errors against the mapping are reported as
// ErrFault instead of crashing the process.
func (r *Region) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}

	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)

		if recover() != nil {
			err = ErrFault
		}
	}()

	n = copy(p, r.data[off:])
	if n < len(p) {
		err = io.EOF
	}

	return n, err
}

// Close unmaps the file. It is safe to call more than once.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		if r.data != nil {
			if err := unix.Munmap(r.data); err != nil {
				r.closeErr = pkgErrors.Wrap(err, "failed to unmap trace file")
			}
			r.data = nil
		}
	})

	return r.closeErr
}
