// SPDX-License-Identifier: Apache-2.0

// Package exithook runs registered callbacks once when the process exits.
package exithook

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Hook is called with the exit code of the process.
type Hook func(code int)

// Registry holds exit hooks. Hooks run in reverse order of registration.
type Registry struct {
	mu    sync.Mutex
	hooks []Hook
	ran   bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn to the hooks run by Run. Hooks registered after Run
// are never called.
func (r *Registry) Register(fn Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		log.Warn("Exit hook registered after process exit, ignoring")
		return
	}
	r.hooks = append(r.hooks, fn)
}

// Run calls every hook once, last registered first. A panicking hook is
// logged and does not prevent the remaining hooks from running. Only the
// first call has any effect.
func (r *Registry) Run(code int) {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return
	}
	r.ran = true
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		runHook(hooks[i], code)
	}
}

func runHook(fn Hook, code int) {
	defer func() {
		if err := recover(); err != nil {
			log.WithField("panic", err).Error("Exit hook panicked")
		}
	}()
	fn(code)
}
