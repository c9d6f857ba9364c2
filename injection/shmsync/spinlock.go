// SPDX-License-Identifier: Apache-2.0

package shmsync

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	spinsBeforeYield = 64
	spinsBeforeSleep = 1024
	spinSleep        = 10 * time.Microsecond
)

// SpinLock is a test-and-set lock that can live inside a shared memory
// segment. It holds no Go pointers, so a zeroed SpinLock is an unlocked
// one regardless of which process mapped it.
//
// Critical sections guarded by a SpinLock must be short and must never
// block: waiters burn CPU, then yield, then back off with short sleeps.
type SpinLock struct {
	state uint32
}

// Init resets the lock to the unlocked state. Only the segment
// initializer may call it.
func (l *SpinLock) Init() {
	atomic.StoreUint32(&l.state, 0)
}

// Lock acquires the lock.
func (l *SpinLock) Lock() {
	for spins := 0; !l.TryLock(); spins++ {
		switch {
		case spins < spinsBeforeYield:
		case spins < spinsBeforeSleep:
			runtime.Gosched()
		default:
			time.Sleep(spinSleep)
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *SpinLock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Unlock releases the lock.
func (l *SpinLock) Unlock() {
	if atomic.SwapUint32(&l.state, 0) == 0 {
		panic("shmsync: unlock of unlocked spin lock")
	}
}
