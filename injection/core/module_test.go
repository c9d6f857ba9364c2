// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pgtest/injection-points/injection/exithook"
	"github.com/pgtest/injection-points/injection/points"
	"github.com/pgtest/injection-points/injection/shmem"
	"github.com/pgtest/injection-points/injection/waitevent"
)

const blockedFor = 200 * time.Millisecond

// process bundles what one OS process would own.
type process struct {
	*Module
	facility *points.Facility
	hooks    *exithook.Registry
	events   *waitevent.Registry
}

func newProcess(provider shmem.Provider, pid int) *process {
	p := &process{
		facility: points.New(provider),
		hooks:    exithook.NewRegistry(),
		events:   waitevent.NewRegistry(),
	}
	p.Module = NewModule(Config{
		Provider:   provider,
		Facility:   p.facility,
		WaitEvents: p.events,
		ExitHooks:  p.hooks,
		PID:        pid,
	})
	return p
}

func runAsync(ctx context.Context, m *Module, name string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, name) }()
	return done
}

func waitForWaiters(t *testing.T, m *Module, names ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := m.State()
		if err != nil || len(snap.Waits) != len(names) {
			return false
		}
		for i, w := range snap.Waits {
			if w.Name != names[i] {
				return false
			}
		}
		return true
	}, 5*time.Second, time.Millisecond)
}

func requireDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "waiter was not released")
	}
	return nil
}

func TestAllowedOnlyInOwningProcess(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.SetLocal())
	require.NoError(t, a.Attach("scoped", ActionNotice))

	stateA, err := a.sharedState()
	require.NoError(t, err)
	stateB, err := b.sharedState()
	require.NoError(t, err)

	assert.True(t, stateA.allowed("scoped", a.pid))
	assert.False(t, stateB.allowed("scoped", b.pid))
	assert.True(t, stateB.allowed("unrelated", b.pid))
}

func TestAnyDisallowingConditionVetoes(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	state, err := a.sharedState()
	require.NoError(t, err)

	require.True(t, state.registerCondition("dup", 100))
	require.True(t, state.registerCondition("dup", 200))

	assert.False(t, state.allowed("dup", 100))
	assert.False(t, state.allowed("dup", 200))

	state.clearCondition("dup")
	assert.True(t, state.allowed("dup", 300))
	snap, err := a.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Conditions)
}

func TestWaitUntilWokenUp(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.Attach("p1", ActionWait))

	done := runAsync(context.Background(), a.Module, "p1")
	waitForWaiters(t, b.Module, "p1")

	active := a.events.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "p1", active[0].Name)

	require.NoError(t, b.Wakeup("p1"))
	assert.NoError(t, requireDone(t, done))

	err := b.Wakeup("p1")
	assert.True(t, errors.Is(err, ErrNotFound))

	snap, err := a.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Waits)
	assert.Empty(t, a.events.Active())
}

func TestWakeupBeforeWaitIsLost(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.Attach("p1", ActionWait))
	assert.True(t, errors.Is(b.Wakeup("p1"), ErrNotFound))

	done := runAsync(context.Background(), a.Module, "p1")
	waitForWaiters(t, b.Module, "p1")

	select {
	case <-done:
		t.Fatal("wait satisfied by a wakeup sent before it began")
	case <-time.After(blockedFor):
	}

	require.NoError(t, b.Wakeup("p1"))
	assert.NoError(t, requireDone(t, done))
}

func TestWakeupOnlyReleasesMatchingWaiter(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.Attach("p1", ActionWait))
	require.NoError(t, a.Attach("p2", ActionWait))

	done1 := runAsync(context.Background(), a.Module, "p1")
	waitForWaiters(t, b.Module, "p1")
	done2 := runAsync(context.Background(), a.Module, "p2")
	waitForWaiters(t, b.Module, "p1", "p2")

	require.NoError(t, b.Wakeup("p2"))
	assert.NoError(t, requireDone(t, done2))

	select {
	case <-done1:
		t.Fatal("waiter on p1 released by wakeup of p2")
	case <-time.After(blockedFor):
	}
	waitForWaiters(t, b.Module, "p1")

	require.NoError(t, b.Wakeup("p1"))
	assert.NoError(t, requireDone(t, done1))
}

func TestWakeupReleasesOneOfSameNameWaiters(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.Attach("dup", ActionWait))

	done1 := runAsync(context.Background(), a.Module, "dup")
	waitForWaiters(t, b.Module, "dup")
	done2 := runAsync(context.Background(), a.Module, "dup")
	waitForWaiters(t, b.Module, "dup", "dup")

	// Counters are per slot: one wakeup bumps the first matching slot.
	require.NoError(t, b.Wakeup("dup"))
	assert.NoError(t, requireDone(t, done1))

	select {
	case <-done2:
		t.Fatal("second waiter released by a single wakeup")
	case <-time.After(blockedFor):
	}

	require.NoError(t, b.Wakeup("dup"))
	assert.NoError(t, requireDone(t, done2))
	assert.True(t, errors.Is(b.Wakeup("dup"), ErrNotFound))
}

func TestWaitCapacityExceeded(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	var names []string
	var waiters []<-chan error
	for i := 0; i < MaxWaits; i++ {
		name := fmt.Sprintf("w%d", i)
		require.NoError(t, a.Attach(name, ActionWait))
		names = append(names, name)
		waiters = append(waiters, runAsync(context.Background(), a.Module, name))
		waitForWaiters(t, b.Module, names...)
	}

	before, err := b.State()
	require.NoError(t, err)

	require.NoError(t, a.Attach("overflow", ActionWait))
	err = a.Run(context.Background(), "overflow")
	assert.True(t, errors.Is(err, ErrCapacityExceeded))

	after, err := b.State()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	for i, name := range names {
		require.NoError(t, b.Wakeup(name))
		assert.NoError(t, requireDone(t, waiters[i]))
	}
}

func TestWaitDisallowedReturnsImmediately(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.SetLocal())
	require.NoError(t, a.Attach("p1", ActionWait))

	assert.NoError(t, b.Run(context.Background(), "p1"))
	snap, err := b.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Waits)
}

func TestWaitCancellationReleasesSlot(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)

	require.NoError(t, a.Attach("p1", ActionWait))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, a.Module, "p1")
	waitForWaiters(t, a.Module, "p1")

	cancel()
	assert.Equal(t, context.Canceled, requireDone(t, done))

	snap, err := a.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Waits)
	assert.True(t, errors.Is(a.Wakeup("p1"), ErrNotFound))
}

func TestErrorPointScopedToProcess(t *testing.T) {
	provider := shmem.NewHeapProvider()
	x := newProcess(provider, 100)
	y := newProcess(provider, 200)

	require.NoError(t, x.SetLocal())
	require.NoError(t, x.Attach("p2", ActionError))

	err := x.Run(context.Background(), "p2")
	var triggered *TriggeredError
	require.True(t, errors.As(err, &triggered))
	assert.Equal(t, "p2", triggered.Point)
	assert.Equal(t, "error triggered for injection point p2", err.Error())

	assert.NoError(t, y.Run(context.Background(), "p2"))
}

func TestErrorPointUnscopedFiresEverywhere(t *testing.T) {
	provider := shmem.NewHeapProvider()
	x := newProcess(provider, 100)
	y := newProcess(provider, 200)

	require.NoError(t, x.Attach("p2", ActionError))

	var triggered *TriggeredError
	assert.True(t, errors.As(x.Run(context.Background(), "p2"), &triggered))
	assert.True(t, errors.As(y.Run(context.Background(), "p2"), &triggered))
}

func TestNoticeIsDeliveredToSink(t *testing.T) {
	a := newProcess(shmem.NewHeapProvider(), 100)
	require.NoError(t, a.Attach("p3", ActionNotice))

	var notices []string
	ctx := WithNoticeSink(context.Background(), func(msg string) { notices = append(notices, msg) })

	require.NoError(t, a.Run(ctx, "p3"))
	require.NoError(t, a.Run(context.Background(), "p3"))
	assert.Equal(t, []string{"notice triggered for injection point p3"}, notices)
}

func TestAttachRejectsUnknownAction(t *testing.T) {
	a := newProcess(shmem.NewHeapProvider(), 100)

	err := a.Attach("p1", Action("explode"))
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	list, err := a.facility.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAttachRejectsInvalidName(t *testing.T) {
	a := newProcess(shmem.NewHeapProvider(), 100)

	err := a.Attach("", ActionNotice)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, points.ErrInvalidName))

	// A zero byte would otherwise truncate the stored name to "p".
	err = a.Attach("p\x00hidden", ActionError)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, points.ErrInvalidName))

	list, err := a.facility.List()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, a.Run(context.Background(), "p"))
	require.NoError(t, a.Attach("p", ActionError))
}

func TestConditionCapacityExceeded(t *testing.T) {
	a := newProcess(shmem.NewHeapProvider(), 100)
	require.NoError(t, a.SetLocal())

	for i := 0; i < MaxConditions; i++ {
		require.NoError(t, a.Attach(fmt.Sprintf("c%d", i), ActionNotice))
	}
	before, err := a.State()
	require.NoError(t, err)
	require.Len(t, before.Conditions, MaxConditions)

	err = a.Attach("overflow", ActionNotice)
	assert.True(t, errors.Is(err, ErrFatal))
	assert.True(t, errors.Is(err, ErrCapacityExceeded))

	after, err := a.State()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The attach itself already happened.
	list, err := a.facility.List()
	require.NoError(t, err)
	assert.Len(t, list, MaxConditions+1)
}

func TestRegisterConditionFullLeavesTableUnchanged(t *testing.T) {
	a := newProcess(shmem.NewHeapProvider(), 100)
	state, err := a.sharedState()
	require.NoError(t, err)

	for i := 0; i < MaxConditions; i++ {
		require.True(t, state.registerCondition(fmt.Sprintf("c%d", i), 100))
	}
	before := state.conditions
	assert.False(t, state.registerCondition("overflow", 100))
	assert.Equal(t, before, state.conditions)
}

func TestDetachClearsConditions(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.SetLocal())
	require.NoError(t, a.Attach("p1", ActionError))
	require.NoError(t, a.Detach("p1"))

	snap, err := a.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Conditions)

	// Re-attached without scoping, the point fires everywhere again.
	require.NoError(t, b.Attach("p1", ActionError))
	var triggered *TriggeredError
	assert.True(t, errors.As(b.Run(context.Background(), "p1"), &triggered))

	assert.NoError(t, a.Detach("never-attached"))
}

func TestCleanupOnExitDetachesOwnedPoints(t *testing.T) {
	provider := shmem.NewHeapProvider()
	a := newProcess(provider, 100)
	b := newProcess(provider, 200)

	require.NoError(t, a.SetLocal())
	require.NoError(t, a.SetLocal())
	require.NoError(t, a.Attach("mine", ActionError))
	require.NoError(t, b.SetLocal())
	require.NoError(t, b.Attach("theirs", ActionError))

	a.hooks.Run(0)

	snap, err := b.State()
	require.NoError(t, err)
	assert.Equal(t, []ConditionInfo{{Name: "theirs", PID: 200}}, snap.Conditions)

	list, err := b.facility.List()
	require.NoError(t, err)
	assert.Equal(t, []points.Point{{Name: "theirs", Library: LibraryName, Function: FunctionError}}, list)
}

func TestCleanupWithoutSetLocalDoesNothing(t *testing.T) {
	a := newProcess(shmem.NewHeapProvider(), 100)
	require.NoError(t, a.Attach("p1", ActionError))

	a.cleanup(0)
	a.hooks.Run(0)

	list, err := a.facility.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type mockFacility struct{ mock.Mock }

func (f *mockFacility) RegisterCallback(library, function string, cb points.Callback) {
	f.Called(library, function)
}

func (f *mockFacility) Attach(name, library, function string) error {
	return f.Called(name, library, function).Error(0)
}

func (f *mockFacility) Detach(name string) error {
	return f.Called(name).Error(0)
}

func (f *mockFacility) Run(ctx context.Context, name string) error {
	return f.Called(ctx, name).Error(0)
}

func TestCleanupDetachesExactlyOnce(t *testing.T) {
	facility := &mockFacility{}
	facility.On("RegisterCallback", LibraryName, mock.Anything).Times(3)
	facility.On("Attach", "p1", LibraryName, FunctionWait).Return(nil).Once()
	facility.On("Detach", "p1").Return(nil).Once()

	hooks := exithook.NewRegistry()
	m := NewModule(Config{
		Provider:   shmem.NewHeapProvider(),
		Facility:   facility,
		WaitEvents: waitevent.NewRegistry(),
		ExitHooks:  hooks,
		PID:        100,
	})

	require.NoError(t, m.SetLocal())
	require.NoError(t, m.Attach("p1", ActionWait))

	hooks.Run(0)
	hooks.Run(0)

	facility.AssertExpectations(t)
	facility.AssertNumberOfCalls(t, "Detach", 1)

	snap, err := m.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Conditions)
}

func TestCleanupClearsConditionsWhenDetachFails(t *testing.T) {
	facility := &mockFacility{}
	facility.On("RegisterCallback", LibraryName, mock.Anything)
	facility.On("Attach", "p1", LibraryName, FunctionError).Return(nil)
	facility.On("Detach", "p1").Return(points.ErrPointNotFound).Once()

	hooks := exithook.NewRegistry()
	m := NewModule(Config{
		Provider:   shmem.NewHeapProvider(),
		Facility:   facility,
		WaitEvents: waitevent.NewRegistry(),
		ExitHooks:  hooks,
		PID:        100,
	})

	require.NoError(t, m.SetLocal())
	require.NoError(t, m.Attach("p1", ActionError))
	hooks.Run(1)

	snap, err := m.State()
	require.NoError(t, err)
	assert.Empty(t, snap.Conditions)
	facility.AssertExpectations(t)
}

func TestCleanupClearsConditionsByOwner(t *testing.T) {
	facility := &mockFacility{}
	facility.On("RegisterCallback", LibraryName, mock.Anything)
	facility.On("Attach", "p1", LibraryName, FunctionError).Return(nil)

	hooks := exithook.NewRegistry()
	m := NewModule(Config{
		Provider:   shmem.NewHeapProvider(),
		Facility:   facility,
		WaitEvents: waitevent.NewRegistry(),
		ExitHooks:  hooks,
		PID:        100,
	})

	require.NoError(t, m.SetLocal())
	require.NoError(t, m.Attach("p1", ActionError))
	state, err := m.sharedState()
	require.NoError(t, err)
	require.True(t, state.registerCondition("other", 200))

	// A condition created while the collected names are being detached is
	// still owned by this process and must not survive it.
	facility.On("Detach", "p1").Return(nil).Once().Run(func(mock.Arguments) {
		require.True(t, state.registerCondition("late", 100))
	})

	hooks.Run(0)

	snap, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, []ConditionInfo{{Name: "other", PID: 200}}, snap.Conditions)
	facility.AssertNumberOfCalls(t, "Detach", 1)
	facility.AssertNotCalled(t, "Detach", "late")
}

func TestRunDelegatesToFacility(t *testing.T) {
	facility := &mockFacility{}
	facility.On("RegisterCallback", LibraryName, mock.Anything)
	facility.On("Run", mock.Anything, "p1").Return(nil).Once()

	m := NewModule(Config{
		Provider:   shmem.NewHeapProvider(),
		Facility:   facility,
		WaitEvents: waitevent.NewRegistry(),
		ExitHooks:  exithook.NewRegistry(),
		PID:        100,
	})

	assert.NoError(t, m.Run(context.Background(), "p1"))
	facility.AssertExpectations(t)
}

func TestNewModuleRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewModule(Config{}) })
}

func TestPIDDefaultsToProcess(t *testing.T) {
	m := NewModule(Config{
		Provider:   shmem.NewHeapProvider(),
		Facility:   points.New(shmem.NewHeapProvider()),
		WaitEvents: waitevent.NewRegistry(),
		ExitHooks:  exithook.NewRegistry(),
	})
	assert.NotZero(t, m.PID())
}
