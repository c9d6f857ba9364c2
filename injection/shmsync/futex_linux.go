// SPDX-License-Identifier: Apache-2.0

//go:build linux

package shmsync

import (
	"math"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Shared (non-private) futex operations, so that sleepers in other
// processes mapping the same page are woken as well.
const (
	futexOpWait = 0
	futexOpWake = 1
)

// futexWait blocks while *addr == val, for at most timeout. EAGAIN, EINTR
// and ETIMEDOUT all mean "go and re-check", so errors are not reported.
func futexWait(addr *uint32, val uint32, timeout time.Duration) {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWait,
		uintptr(val),
		uintptr(unsafe.Pointer(&ts)),
		0, 0)
}

func futexWakeAll(addr *uint32) {
	unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWake,
		uintptr(math.MaxInt32),
		0, 0, 0)
}
