// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// claimWaitSlot records name in the first free wait slot and returns the
// slot index with its current counter, or -1 when all slots are taken.
func (s *sharedState) claimWaitSlot(name string) (int, uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.waitNames {
		if s.waitNames[i].empty() {
			s.waitNames[i].set(name)
			return i, s.waitCounts[i]
		}
	}
	return -1, 0
}

func (s *sharedState) waitCount(index int) uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.waitCounts[index]
}

// releaseWaitSlot frees a slot. Its counter keeps its value.
func (s *sharedState) releaseWaitSlot(index int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.waitNames[index].clear()
}

// bumpWaitSlot advances the counter of the first slot waiting on name.
func (s *sharedState) bumpWaitSlot(name string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.waitNames {
		if !s.waitNames[i].empty() && s.waitNames[i].equal(name) {
			s.waitCounts[i]++
			return true
		}
	}
	return false
}

// injectionWait blocks until Wakeup(name) is called from any process, or
// ctx is done.
func (m *Module) injectionWait(ctx context.Context, name string) error {
	state, err := m.sharedState()
	if err != nil {
		return err
	}
	if !state.allowed(name, m.pid) {
		return nil
	}

	// The identity is never released; points are short-lived in tests.
	eventID := m.waitEvents.Register(name)

	index, baseline := state.claimWaitSlot(name)
	if index < 0 {
		return fmt.Errorf("could not find free slot for wait of injection point %s: %w", name, ErrCapacityExceeded)
	}

	logger := log.WithField("point", name).WithField("slot", index).WithField("episode", uuid.New().String())
	logger.Debug("Waiting on injection point")

	done := m.waitEvents.Report(eventID)
	sleeper := state.waitPoint.PrepareToSleep()
	for state.waitCount(index) == baseline {
		if err = sleeper.Sleep(ctx); err != nil {
			break
		}
	}
	sleeper.Cancel()
	done()

	state.releaseWaitSlot(index)

	if err != nil {
		logger.WithError(err).Warn("Wait on injection point abandoned")
		return err
	}
	logger.Debug("Woken up on injection point")
	return nil
}

// Wakeup releases the process waiting on name. A wakeup sent while nobody
// waits is not remembered.
func (m *Module) Wakeup(name string) error {
	state, err := m.sharedState()
	if err != nil {
		return err
	}

	if !state.bumpWaitSlot(name) {
		return fmt.Errorf("could not find injection point %s to wake up: %w", name, ErrNotFound)
	}

	state.waitPoint.Broadcast()
	log.WithField("point", name).Debug("Woke up injection point")
	return nil
}
