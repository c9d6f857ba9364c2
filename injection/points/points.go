// SPDX-License-Identifier: Apache-2.0

// Package points is the injection point facility: a registry of named
// points, shared by every process attached to the same segment provider,
// and a process-local library of callbacks the points resolve to.
//
// Attaching binds a point name to a (library, function) pair. Running a
// point looks the pair up in the shared registry and invokes the callback
// registered under it in the running process. Running an unattached point
// does nothing.
package points

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/pgtest/injection-points/injection/shmem"
	"github.com/pgtest/injection-points/injection/shmsync"

	log "github.com/sirupsen/logrus"
)

// SegmentName is the name of the shared registry segment.
const SegmentName = "injection_point_registry"

const (
	// NameMaxLen bounds point names, including the terminating zero.
	NameMaxLen = 64
	// LibraryMaxLen bounds library names, including the terminating zero.
	LibraryMaxLen = 128
	// FunctionMaxLen bounds function names, including the terminating zero.
	FunctionMaxLen = 128
	// MaxPoints is the capacity of the shared registry.
	MaxPoints = 128
)

var (
	ErrInvalidName     = errors.New("invalid injection point name")
	ErrPointExists     = errors.New("injection point already defined")
	ErrPointNotFound   = errors.New("injection point not found")
	ErrRegistryFull    = errors.New("too many injection points")
	ErrUnknownCallback = errors.New("injection point callback not found")
)

// Callback is the code run when an attached point fires.
type Callback func(ctx context.Context, name string) error

// Point describes an attached injection point.
type Point struct {
	Name     string `json:"name"`
	Library  string `json:"library"`
	Function string `json:"function"`
}

type entry struct {
	name     [NameMaxLen]byte
	library  [LibraryMaxLen]byte
	function [FunctionMaxLen]byte
}

type registry struct {
	lock    shmsync.SpinLock
	entries [MaxPoints]entry
}

func initRegistry(p unsafe.Pointer) {
	r := (*registry)(p)
	*r = registry{}
	r.lock.Init()
}

type callbackKey struct {
	library  string
	function string
}

// Facility is a process-local handle on the shared registry.
type Facility struct {
	provider shmem.Provider

	mu      sync.Mutex
	segment *shmem.Segment
	reg     *registry

	libraryMu sync.RWMutex
	library   map[callbackKey]Callback
}

// New returns a Facility whose registry lives in provider. The registry
// segment is created lazily.
func New(provider shmem.Provider) *Facility {
	return &Facility{
		provider: provider,
		library:  make(map[callbackKey]Callback),
	}
}

func (f *Facility) registry() (*registry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reg != nil {
		return f.reg, nil
	}
	seg, _, err := f.provider.GetOrCreate(SegmentName, unsafe.Sizeof(registry{}), initRegistry)
	if err != nil {
		return nil, fmt.Errorf("could not attach injection point registry: %w", err)
	}
	f.segment = seg
	f.reg = (*registry)(seg.Pointer())
	return f.reg, nil
}

// RegisterCallback makes cb available, in this process, to points attached
// with the given library and function.
func (f *Facility) RegisterCallback(library, function string, cb Callback) {
	f.libraryMu.Lock()
	defer f.libraryMu.Unlock()
	f.library[callbackKey{library: library, function: function}] = cb
}

func (f *Facility) lookup(library, function string) (Callback, bool) {
	f.libraryMu.RLock()
	defer f.libraryMu.RUnlock()
	cb, ok := f.library[callbackKey{library: library, function: function}]
	return cb, ok
}

// Attach binds name to library/function in the shared registry.
func (f *Facility) Attach(name, library, function string) error {
	switch {
	case name == "" || len(name) >= NameMaxLen:
		return fmt.Errorf("%w: injection point name %q must be 1 to %d bytes", ErrInvalidName, name, NameMaxLen-1)
	case len(library) >= LibraryMaxLen:
		return fmt.Errorf("%w: injection point library %q too long (maximum of %d)", ErrInvalidName, library, LibraryMaxLen-1)
	case len(function) >= FunctionMaxLen:
		return fmt.Errorf("%w: injection point function %q too long (maximum of %d)", ErrInvalidName, function, FunctionMaxLen-1)
	// Stored names are zero-terminated.
	case strings.IndexByte(name, 0) >= 0, strings.IndexByte(library, 0) >= 0, strings.IndexByte(function, 0) >= 0:
		return fmt.Errorf("%w: injection point %q contains a zero byte", ErrInvalidName, name)
	}

	reg, err := f.registry()
	if err != nil {
		return err
	}

	free := -1
	exists := false
	reg.lock.Lock()
	for i := range reg.entries {
		e := &reg.entries[i]
		if shmem.IsEmptyString(e.name[:]) {
			if free < 0 {
				free = i
			}
			continue
		}
		if shmem.EqualString(e.name[:], name) {
			exists = true
			break
		}
	}
	if !exists && free >= 0 {
		e := &reg.entries[free]
		shmem.SetString(e.library[:], library)
		shmem.SetString(e.function[:], function)
		shmem.SetString(e.name[:], name)
	}
	reg.lock.Unlock()

	if exists {
		return fmt.Errorf("%w: %q", ErrPointExists, name)
	}
	if free < 0 {
		return fmt.Errorf("%w: cannot attach %q", ErrRegistryFull, name)
	}

	log.WithField("point", name).WithField("function", function).Debug("Attached injection point")
	return nil
}

// Detach removes name from the shared registry.
func (f *Facility) Detach(name string) error {
	reg, err := f.registry()
	if err != nil {
		return err
	}

	found := false
	reg.lock.Lock()
	for i := range reg.entries {
		e := &reg.entries[i]
		if !shmem.IsEmptyString(e.name[:]) && shmem.EqualString(e.name[:], name) {
			shmem.ClearString(e.name[:])
			found = true
			break
		}
	}
	reg.lock.Unlock()

	if !found {
		return fmt.Errorf("%w: could not find injection point %s to remove", ErrPointNotFound, name)
	}

	log.WithField("point", name).Debug("Detached injection point")
	return nil
}

// Run invokes the callback attached to name, if any.
func (f *Facility) Run(ctx context.Context, name string) error {
	reg, err := f.registry()
	if err != nil {
		return err
	}

	var library [LibraryMaxLen]byte
	var function [FunctionMaxLen]byte
	found := false

	reg.lock.Lock()
	for i := range reg.entries {
		e := &reg.entries[i]
		if !shmem.IsEmptyString(e.name[:]) && shmem.EqualString(e.name[:], name) {
			library = e.library
			function = e.function
			found = true
			break
		}
	}
	reg.lock.Unlock()

	if !found {
		return nil
	}

	lib, fn := shmem.String(library[:]), shmem.String(function[:])
	cb, ok := f.lookup(lib, fn)
	if !ok {
		return fmt.Errorf("%w: could not find function %q in library %q for injection point %q", ErrUnknownCallback, fn, lib, name)
	}
	return cb(ctx, name)
}

// List returns the attached points in registry order.
func (f *Facility) List() ([]Point, error) {
	reg, err := f.registry()
	if err != nil {
		return nil, err
	}

	var snapshot [MaxPoints]entry
	reg.lock.Lock()
	snapshot = reg.entries
	reg.lock.Unlock()

	points := []Point{}
	for i := range snapshot {
		e := &snapshot[i]
		if shmem.IsEmptyString(e.name[:]) {
			continue
		}
		points = append(points, Point{
			Name:     shmem.String(e.name[:]),
			Library:  shmem.String(e.library[:]),
			Function: shmem.String(e.function[:]),
		})
	}
	return points, nil
}
