// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"net/http"

	"github.com/pgtest/injection-points/injection/api/model"
	"github.com/pgtest/injection-points/injection/api/rendering"
)

type stateHandler struct {
	module   InjectionPoints
	points   PointLister
	activity ActivityReporter
}

func (h *stateHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	snapshot, err := h.module.State()
	if err != nil {
		rendering.RenderError(writer, request, err)
		return
	}

	attached, err := h.points.List()
	if err != nil {
		rendering.RenderError(writer, request, err)
		return
	}

	rendering.RenderJSON(http.StatusOK, writer, request, &model.StateResponse{
		PID:        h.module.PID(),
		Points:     attached,
		Conditions: snapshot.Conditions,
		Waits:      snapshot.Waits,
		WaitEvents: h.activity.Active(),
	})
}

// NewStateHandler returns a new instance of http handler
// for serving /test/state.
func NewStateHandler(module InjectionPoints, points PointLister, activity ActivityReporter) http.Handler {
	return &stateHandler{module: module, points: points, activity: activity}
}
