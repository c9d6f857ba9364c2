// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/render"

	"github.com/pgtest/injection-points/injection/api/model"
	"github.com/pgtest/injection-points/injection/api/rendering"
	"github.com/pgtest/injection-points/injection/core"
	"github.com/pgtest/injection-points/injection/points"
	"github.com/pgtest/injection-points/injection/waitevent"
)

// InjectionPoints is the module served by the API.
type InjectionPoints interface {
	Attach(name string, action core.Action) error
	Run(ctx context.Context, name string) error
	Wakeup(name string) error
	SetLocal() error
	Detach(name string) error
	State() (*core.Snapshot, error)
	PID() int
}

// PointLister lists the attached points.
type PointLister interface {
	List() ([]points.Point, error)
}

// ActivityReporter reports the waits in progress in the serving process.
type ActivityReporter interface {
	Active() []waitevent.Activity
}

// decodeRequest decodes the JSON body into dst, rendering a 400 response
// and returning false on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		rendering.RenderInvalidRequest(w, r, "Invalid json: %s", err)
		return false
	}
	return true
}

// decodePointName decodes a PointRequest and checks it names a point.
func decodePointName(w http.ResponseWriter, r *http.Request, dst *string) bool {
	var req model.PointRequest
	if !decodeRequest(w, r, &req) {
		return false
	}
	if req.Name == "" {
		rendering.RenderInvalidRequest(w, r, "Missing injection point name")
		return false
	}
	*dst = req.Name
	return true
}
