// SPDX-License-Identifier: Apache-2.0

package shmsync

import (
	"context"
	"sync/atomic"
	"time"
)

// sleepSlice bounds a single blocking step so that context cancellation is
// observed even if no broadcast ever arrives.
const sleepSlice = 100 * time.Millisecond

// ConditionVariable is a broadcast-only condition variable that can live
// inside a shared memory segment.
//
// It carries no predicate of its own. Sleepers re-check their condition
// after every wakeup, so spurious wakeups are harmless:
//
//	s := cv.PrepareToSleep()
//	defer s.Cancel()
//	for !condition() {
//		if err := s.Sleep(ctx); err != nil {
//			return err
//		}
//	}
type ConditionVariable struct {
	seq     uint32
	waiters uint32
}

// Init resets the condition variable. Only the segment initializer may
// call it.
func (cv *ConditionVariable) Init() {
	atomic.StoreUint32(&cv.seq, 0)
	atomic.StoreUint32(&cv.waiters, 0)
}

// Broadcast wakes every sleeper of cv, wherever it is mapped.
func (cv *ConditionVariable) Broadcast() {
	atomic.AddUint32(&cv.seq, 1)
	if atomic.LoadUint32(&cv.waiters) > 0 {
		futexWakeAll(&cv.seq)
	}
}

// Waiters returns the number of prepared sleepers.
func (cv *ConditionVariable) Waiters() int {
	return int(atomic.LoadUint32(&cv.waiters))
}

// PrepareToSleep registers the caller as a sleeper. It must be called
// before the caller checks its condition for the first time, otherwise a
// broadcast issued between the check and Sleep could be missed.
func (cv *ConditionVariable) PrepareToSleep() *Sleeper {
	atomic.AddUint32(&cv.waiters, 1)
	return &Sleeper{cv: cv, seq: atomic.LoadUint32(&cv.seq)}
}

// Sleeper is a prepared sleep on a ConditionVariable.
type Sleeper struct {
	cv       *ConditionVariable
	seq      uint32
	canceled bool
}

// Sleep blocks until a broadcast has happened since the previous Sleep (or
// since PrepareToSleep), a short time slice elapsed, or ctx is done. The
// caller must re-check its condition whenever Sleep returns nil.
func (s *Sleeper) Sleep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	futexWait(&s.cv.seq, s.seq, sleepSlice)
	s.seq = atomic.LoadUint32(&s.cv.seq)
	return ctx.Err()
}

// Cancel unregisters the sleeper. It is safe to call more than once.
func (s *Sleeper) Cancel() {
	if s.canceled {
		return
	}
	s.canceled = true
	atomic.AddUint32(&s.cv.waiters, ^uint32(0))
}
