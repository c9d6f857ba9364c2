// SPDX-License-Identifier: Apache-2.0

// Package shmem provides named, fixed-size memory segments shared by every
// participant that asks for the same name.
//
// A segment is created by its first accessor, which also runs the caller's
// initializer exactly once. Later accessors attach to the existing segment.
// Segments hold plain data only: callers overlay structs without Go
// pointers on Segment.Pointer().
package shmem

import (
	"errors"
	"unsafe"
)

var (
	// ErrSizeMismatch is returned when a segment exists with a different size.
	ErrSizeMismatch = errors.New("shmem: requested segment size does not match existing segment")
	// ErrInvalidName is returned for empty names or names containing a path separator.
	ErrInvalidName = errors.New("shmem: invalid segment name")
	// ErrInvalidSize is returned for zero-sized requests.
	ErrInvalidSize = errors.New("shmem: invalid segment size")
	// ErrUnsupported is returned by providers unavailable on this platform.
	ErrUnsupported = errors.New("shmem: not supported on this platform")
)

// InitFunc initializes a freshly created, zero-filled segment.
type InitFunc func(p unsafe.Pointer)

// Provider hands out named segments.
type Provider interface {
	// GetOrCreate returns the segment called name, creating it with the given
	// size and running init on it if it does not exist yet. found reports
	// whether the segment already existed.
	GetOrCreate(name string, size uintptr, init InitFunc) (seg *Segment, found bool, err error)
}

// Segment is a process-local handle on a shared segment.
type Segment struct {
	name  string
	size  uintptr
	addr  unsafe.Pointer
	close func() error
}

// Name returns the name the segment was requested with.
func (s *Segment) Name() string {
	return s.name
}

// Size returns the usable size of the segment in bytes.
func (s *Segment) Size() uintptr {
	return s.size
}

// Pointer returns the address of the first usable byte of the segment in
// this process. The address is at least 8-byte aligned.
func (s *Segment) Pointer() unsafe.Pointer {
	return s.addr
}

// Close releases this process's handle. The segment itself, and its
// content, survive for other participants.
func (s *Segment) Close() error {
	if s.close == nil {
		return nil
	}
	err := s.close()
	s.close = nil
	return err
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return false
		}
	}
	return true
}
