// SPDX-License-Identifier: Apache-2.0

package core

import (
	log "github.com/sirupsen/logrus"
)

// cleanup detaches the points linked to this process and drops their
// conditions. It is registered as an exit hook by SetLocal.
//
// Detaching may take the facility's own locks, so it runs in three steps:
// collect the names under our lock, detach without it, then clear the
// conditions by owner (catching any created in between).
func (m *Module) cleanup(code int) {
	m.mu.Lock()
	local, state := m.local, m.state
	m.mu.Unlock()

	if !local || state == nil {
		return
	}

	var names [MaxConditions]pointName
	count := state.ownedConditions(m.pid, &names)

	for i := 0; i < count; i++ {
		name := names[i].String()
		if err := m.facility.Detach(name); err != nil {
			log.WithError(err).WithField("point", name).Warn("Failed to detach injection point on exit")
		}
	}

	cleared := state.clearOwnedConditions(m.pid)
	log.WithField("pid", m.pid).WithField("exitCode", code).WithField("conditions", cleared).
		Info("Cleaned up injection points linked to process")
}
