// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package shmsync

import (
	"sync/atomic"
	"time"
)

const pollInterval = time.Millisecond

// futexWait polls *addr until it differs from val or timeout elapses.
func futexWait(addr *uint32, val uint32, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for atomic.LoadUint32(addr) == val && time.Now().Before(deadline) {
		time.Sleep(pollInterval)
	}
}

func futexWakeAll(addr *uint32) {}
