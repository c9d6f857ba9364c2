// SPDX-License-Identifier: Apache-2.0

package core

// registerCondition restricts name to process pid. It reports false, and
// changes nothing, when every condition entry is in use.
func (s *sharedState) registerCondition(name string, pid int32) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.conditions {
		c := &s.conditions[i]
		if c.name.empty() {
			c.name.set(name)
			c.pid = pid
			return true
		}
	}
	return false
}

// allowed reports whether name may run in process pid. Several conditions
// may exist for one name; any of them naming another process vetoes.
func (s *sharedState) allowed(name string, pid int32) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.conditions {
		c := &s.conditions[i]
		if c.name.empty() || !c.name.equal(name) {
			continue
		}
		if c.pid != pid {
			return false
		}
	}
	return true
}

// clearCondition drops every condition on name.
func (s *sharedState) clearCondition(name string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i := range s.conditions {
		c := &s.conditions[i]
		if !c.name.empty() && c.name.equal(name) {
			c.name.clear()
			c.pid = 0
		}
	}
}

// ownedConditions copies the names of the conditions owned by pid into
// names and returns how many there are.
func (s *sharedState) ownedConditions(pid int32, names *[MaxConditions]pointName) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	count := 0
	for i := range s.conditions {
		c := &s.conditions[i]
		if c.name.empty() || c.pid != pid {
			continue
		}
		names[count] = c.name
		count++
	}
	return count
}

// clearOwnedConditions drops every condition owned by pid and returns how
// many were dropped.
func (s *sharedState) clearOwnedConditions(pid int32) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	count := 0
	for i := range s.conditions {
		c := &s.conditions[i]
		if c.name.empty() || c.pid != pid {
			continue
		}
		c.name.clear()
		c.pid = 0
		count++
	}
	return count
}
