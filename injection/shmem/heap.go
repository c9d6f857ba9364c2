// SPDX-License-Identifier: Apache-2.0

package shmem

import (
	"sync"
	"unsafe"

	log "github.com/sirupsen/logrus"
)

// typecheck interface compliance
var _ Provider = (*HeapProvider)(nil)

// HeapProvider keeps segments on the Go heap. Segments are shared by every
// user of the same HeapProvider, which makes it suitable for tests and for
// single-process deployments where each "process" is a separate component.
type HeapProvider struct {
	mu       sync.Mutex
	segments map[string]*heapSegment
}

type heapSegment struct {
	// words keeps the backing array alive and 8-byte aligned.
	words []uint64
	size  uintptr
}

// NewHeapProvider returns an empty HeapProvider.
func NewHeapProvider() *HeapProvider {
	return &HeapProvider{segments: make(map[string]*heapSegment)}
}

func (p *HeapProvider) GetOrCreate(name string, size uintptr, init InitFunc) (*Segment, bool, error) {
	if !validName(name) {
		return nil, false, ErrInvalidName
	}
	if size == 0 {
		return nil, false, ErrInvalidSize
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	hs, found := p.segments[name]
	if found {
		if hs.size != size {
			return nil, true, ErrSizeMismatch
		}
	} else {
		hs = &heapSegment{words: make([]uint64, (size+7)/8+1), size: size}
		if init != nil {
			init(unsafe.Pointer(&hs.words[0]))
		}
		p.segments[name] = hs
		log.WithField("segment", name).WithField("size", size).Debug("Created heap segment")
	}

	return &Segment{name: name, size: size, addr: unsafe.Pointer(&hs.words[0])}, found, nil
}
