// SPDX-License-Identifier: Apache-2.0

package core

import (
	"unsafe"

	"github.com/pgtest/injection-points/injection/shmem"
	"github.com/pgtest/injection-points/injection/shmsync"
)

// SegmentName is the name of the shared state segment.
const SegmentName = "injection_points"

const (
	// MaxWaits bounds the number of concurrent waits.
	MaxWaits = 8
	// MaxConditions bounds the number of runtime conditions.
	MaxConditions = 4
	// NameMaxLen bounds stored point names, including the terminating zero.
	NameMaxLen = 64
)

type pointName [NameMaxLen]byte

func (n *pointName) set(s string) { shmem.SetString(n[:], s) }
func (n *pointName) clear() { shmem.ClearString(n[:]) }
func (n *pointName) empty() bool { return shmem.IsEmptyString(n[:]) }
func (n *pointName) equal(s string) bool { return shmem.EqualString(n[:], s) }
func (n *pointName) String() string { return shmem.String(n[:]) }

// condition allows point name to run only in process pid.
type condition struct {
	name pointName
	pid  int32
}

// sharedState is overlaid on the shared segment. It must not contain Go
// pointers.
type sharedState struct {
	lock shmsync.SpinLock

	// counters advancing on Wakeup
	waitCounts [MaxWaits]uint32

	// names of the points attached to wait counters
	waitNames [MaxWaits]pointName

	waitPoint shmsync.ConditionVariable

	conditions [MaxConditions]condition
}

func initSharedState(p unsafe.Pointer) {
	state := (*sharedState)(p)
	*state = sharedState{}
	state.lock.Init()
	state.waitPoint.Init()
}

// ConditionInfo describes a registered runtime condition.
type ConditionInfo struct {
	Name string `json:"name"`
	PID  int    `json:"pid"`
}

// WaitInfo describes an occupied wait slot.
type WaitInfo struct {
	Slot  int    `json:"slot"`
	Name  string `json:"name"`
	Count uint32 `json:"count"`
}

// Snapshot is a consistent copy of the shared tables.
type Snapshot struct {
	Conditions []ConditionInfo `json:"conditions"`
	Waits      []WaitInfo      `json:"waits"`
}

func (s *sharedState) snapshot() *Snapshot {
	var (
		conditions [MaxConditions]condition
		names      [MaxWaits]pointName
		counts     [MaxWaits]uint32
	)

	s.lock.Lock()
	conditions = s.conditions
	names = s.waitNames
	counts = s.waitCounts
	s.lock.Unlock()

	snap := &Snapshot{Conditions: []ConditionInfo{}, Waits: []WaitInfo{}}
	for i := range conditions {
		if conditions[i].name.empty() {
			continue
		}
		snap.Conditions = append(snap.Conditions, ConditionInfo{
			Name: conditions[i].name.String(),
			PID:  int(conditions[i].pid),
		})
	}
	for i := range names {
		if names[i].empty() {
			continue
		}
		snap.Waits = append(snap.Waits, WaitInfo{Slot: i, Name: names[i].String(), Count: counts[i]})
	}
	return snap
}
