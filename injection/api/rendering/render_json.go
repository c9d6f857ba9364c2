// SPDX-License-Identifier: Apache-2.0

package rendering

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/pgtest/injection-points/injection/api/model"
)

// RenderJSON:
// - marshals 'v' to JSON, automatically escaping HTML
// - sets the Content-Type as application/json
// - sets the HTTP response status code
func RenderJSON(status int, w http.ResponseWriter, r *http.Request, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// RenderOK renders the status of a successful operation.
func RenderOK(w http.ResponseWriter, r *http.Request, notices ...string) {
	RenderJSON(http.StatusOK, w, r, &model.StatusResponse{Status: model.StatusOK, Notices: notices})
}
