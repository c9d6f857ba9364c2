// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/pgtest/injection-points/injection/exithook"
	"github.com/pgtest/injection-points/injection/points"
	"github.com/pgtest/injection-points/injection/shmem"

	log "github.com/sirupsen/logrus"
)

// LibraryName is the library the module's callbacks are registered under.
const LibraryName = "injection_points"

// Callback function names within LibraryName.
const (
	FunctionError  = "injection_error"
	FunctionNotice = "injection_notice"
	FunctionWait   = "injection_wait"
)

// Action is what an attached point does when it runs.
type Action string

const (
	ActionError  Action = "error"
	ActionNotice Action = "notice"
	ActionWait   Action = "wait"
)

// Function returns the callback function implementing a.
func (a Action) Function() (string, bool) {
	switch a {
	case ActionError:
		return FunctionError, true
	case ActionNotice:
		return FunctionNotice, true
	case ActionWait:
		return FunctionWait, true
	}
	return "", false
}

// Facility is the injection point facility points are attached to.
type Facility interface {
	RegisterCallback(library, function string, cb points.Callback)
	Attach(name, library, function string) error
	Detach(name string) error
	Run(ctx context.Context, name string) error
}

// WaitEvents assigns observable identities to waits.
type WaitEvents interface {
	Register(name string) uint32
	Report(id uint32) func()
}

// ExitHooks runs callbacks when the process exits.
type ExitHooks interface {
	Register(fn exithook.Hook)
}

// Config holds the collaborators of a Module.
type Config struct {
	Provider   shmem.Provider
	Facility   Facility
	WaitEvents WaitEvents
	ExitHooks  ExitHooks
	// PID identifies the process in runtime conditions. Zero means os.Getpid().
	PID int
}

// Module is the process-local handle on the injection_points module.
type Module struct {
	provider   shmem.Provider
	facility   Facility
	waitEvents WaitEvents
	exitHooks  ExitHooks
	pid        int32

	mu      sync.Mutex
	segment *shmem.Segment
	state   *sharedState
	// local links points attached from now on to this process.
	local          bool
	hookRegistered bool
}

// NewModule returns a Module and registers its callbacks with the facility.
func NewModule(cfg Config) *Module {
	if cfg.Provider == nil || cfg.Facility == nil || cfg.WaitEvents == nil || cfg.ExitHooks == nil {
		log.Panic("injection points module requires a provider, facility, wait event registry and exit hooks")
	}

	pid := cfg.PID
	if pid == 0 {
		pid = os.Getpid()
	}

	m := &Module{
		provider:   cfg.Provider,
		facility:   cfg.Facility,
		waitEvents: cfg.WaitEvents,
		exitHooks:  cfg.ExitHooks,
		pid:        int32(pid),
	}

	m.facility.RegisterCallback(LibraryName, FunctionError, m.injectionError)
	m.facility.RegisterCallback(LibraryName, FunctionNotice, m.injectionNotice)
	m.facility.RegisterCallback(LibraryName, FunctionWait, m.injectionWait)

	return m
}

// PID returns the process id the module acts as.
func (m *Module) PID() int {
	return int(m.pid)
}

// sharedState attaches to the shared segment on first use.
func (m *Module) sharedState() (*sharedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil {
		return m.state, nil
	}

	seg, found, err := m.provider.GetOrCreate(SegmentName, unsafe.Sizeof(sharedState{}), initSharedState)
	if err != nil {
		return nil, fmt.Errorf("could not attach injection points segment: %w", err)
	}
	log.WithField("segment", SegmentName).WithField("found", found).Debug("Attached injection points segment")

	m.segment = seg
	m.state = (*sharedState)(seg.Pointer())
	return m.state, nil
}

func (m *Module) injectionError(ctx context.Context, name string) error {
	state, err := m.sharedState()
	if err != nil {
		return err
	}
	if !state.allowed(name, m.pid) {
		return nil
	}
	return &TriggeredError{Point: name}
}

func (m *Module) injectionNotice(ctx context.Context, name string) error {
	state, err := m.sharedState()
	if err != nil {
		return err
	}
	if !state.allowed(name, m.pid) {
		return nil
	}

	msg := fmt.Sprintf("notice triggered for injection point %s", name)
	log.WithField("point", name).Info(msg)
	if sink := noticeSinkFrom(ctx); sink != nil {
		sink(msg)
	}
	return nil
}

// Attach attaches the callback for action to the point name. When SetLocal
// was called, the point is also restricted to this process.
func (m *Module) Attach(name string, action Action) error {
	function, ok := action.Function()
	if !ok {
		return fmt.Errorf("incorrect action %q for injection point creation: %w", action, ErrInvalidArgument)
	}

	state, err := m.sharedState()
	if err != nil {
		return err
	}

	if err := m.facility.Attach(name, LibraryName, function); err != nil {
		if errors.Is(err, points.ErrInvalidName) {
			return fmt.Errorf("%w: %w", err, ErrInvalidArgument)
		}
		return err
	}

	m.mu.Lock()
	local := m.local
	m.mu.Unlock()

	if local && !state.registerCondition(name, m.pid) {
		// The point is attached already and stays so.
		return fmt.Errorf("%w: could not find free slot for condition of injection point %s: %w", ErrFatal, name, ErrCapacityExceeded)
	}

	log.WithField("point", name).WithField("action", action).WithField("local", local).Info("Attached injection point")
	return nil
}

// Run runs the point name in this process.
func (m *Module) Run(ctx context.Context, name string) error {
	return m.facility.Run(ctx, name)
}

// SetLocal links every point attached by this module from now on to this
// process. Such points only run here and are detached when the process
// exits.
func (m *Module) SetLocal() error {
	if _, err := m.sharedState(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.local = true
	if !m.hookRegistered {
		m.exitHooks.Register(m.cleanup)
		m.hookRegistered = true
	}
	log.WithField("pid", m.pid).Info("Injection points are now local to this process")
	return nil
}

// Detach detaches the point name and drops its conditions. Detaching a
// point that is not attached is not an error.
func (m *Module) Detach(name string) error {
	if err := m.facility.Detach(name); err != nil {
		if !errors.Is(err, points.ErrPointNotFound) {
			return err
		}
		log.WithError(err).WithField("point", name).Warn("Detaching unknown injection point")
	}

	state, err := m.sharedState()
	if err != nil {
		return err
	}
	state.clearCondition(name)

	log.WithField("point", name).Info("Detached injection point")
	return nil
}

// State returns a copy of the shared condition and wait tables.
func (m *Module) State() (*Snapshot, error) {
	state, err := m.sharedState()
	if err != nil {
		return nil, err
	}
	return state.snapshot(), nil
}
