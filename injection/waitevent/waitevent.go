// SPDX-License-Identifier: Apache-2.0

// Package waitevent assigns identities to custom wait events and tracks who
// is currently blocked on them, for observability only.
package waitevent

import (
	"sort"
	"sync"
	"time"
)

// ClassExtension is the class bits of every identity handed out here.
const ClassExtension uint32 = 0x07000000

// Activity describes one goroutine currently blocked on a wait event.
type Activity struct {
	ID    uint32    `json:"id"`
	Name  string    `json:"name"`
	Since time.Time `json:"since"`
}

// Registry maps event names to identities. Identities are never released.
type Registry struct {
	mu     sync.Mutex
	byName map[string]uint32
	names  map[uint32]string
	next   uint32
	active map[uint64]Activity
	seq    uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]uint32),
		names:  make(map[uint32]string),
		next:   1,
		active: make(map[uint64]Activity),
	}
}

// Register returns the identity of the named event, allocating one on the
// first call for a name.
func (r *Registry) Register(name string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id
	}
	id := ClassExtension | r.next
	r.next++
	r.byName[name] = id
	r.names[id] = name
	return id
}

// Report records that the caller is blocked on event id until the returned
// function is called.
func (r *Registry) Report(id uint32) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	key := r.seq
	r.active[key] = Activity{ID: id, Name: r.names[id], Since: time.Now()}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
		})
	}
}

// Active lists current waits, oldest first.
func (r *Registry) Active() []Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]uint64, 0, len(r.active))
	for k := range r.active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	activities := make([]Activity, 0, len(keys))
	for _, k := range keys {
		activities = append(activities, r.active[k])
	}
	return activities
}
