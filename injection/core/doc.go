// SPDX-License-Identifier: Apache-2.0

/*
Package core implements the injection_points module: callbacks that can be
attached to injection points, the runtime conditions restricting where they
fire, and the wait/wakeup protocol used to park a process on a point until
another process releases it.

All cross-process state lives in one fixed-size segment, obtained from a
shmem.Provider on first use:

	lock        spin lock guarding every other field
	waitCounts  one counter per wait slot, bumped by Wakeup
	waitNames   point name owning each wait slot, empty when free
	waitPoint   condition variable broadcast after every Wakeup
	conditions  (point name, pid) pairs restricting a point to one process

The spin lock is only held for bounded scans of these tables. Nothing that
can block, allocate or call into another component runs under it.

Waiters identify their wakeup by the counter of the slot they claimed, not by
the broadcast itself: every Wakeup wakes every sleeper, and each of them
re-checks its own slot.

Module is the process-local handle. Separate Modules sharing a provider
(and a points facility backed by it) behave as separate processes; their pid
decides which conditions they satisfy.
*/
package core
