// SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/pgtest/injection-points/injection/core"
	"github.com/pgtest/injection-points/injection/points"
	"github.com/pgtest/injection-points/injection/waitevent"
)

// StateResponse describes the attached points and the shared tables as
// seen from the serving process.
type StateResponse struct {
	PID        int                  `json:"pid"`
	Points     []points.Point       `json:"points"`
	Conditions []core.ConditionInfo `json:"conditions"`
	Waits      []core.WaitInfo      `json:"waits"`
	WaitEvents []waitevent.Activity `json:"waitEvents"`
}
