// File: transport/fd.go
// Author: momentics <momentics@gmail.com>
//
// Single-owner descriptor handle.

package transport

import (
	"golang.org/x/sys/unix"
)

const invalidFd = -1

// FD owns one descriptor. Close is idempotent; Release transfers ownership
// out so the handle no longer closes it.
type FD struct {
	fd int
}

// NewFD takes ownership of fd.
func NewFD(fd int) *FD {
	return &FD{fd: fd}
}

// Get returns the raw descriptor, or -1 once closed or released.
func (f *FD) Get() int {
	if f == nil {
		return invalidFd
	}
	return f.fd
}

// Valid reports whether the handle still owns a descriptor.
func (f *FD) Valid() bool { return f != nil && f.fd >= 0 }

// Release gives up ownership and returns the descriptor.
func (f *FD) Release() int {
	fd := f.fd
	f.fd = invalidFd
	return fd
}

// Close closes the descriptor if still owned.
func (f *FD) Close() error {
	if !f.Valid() {
		return nil
	}
	fd := f.Release()
	return unix.Close(fd)
}
