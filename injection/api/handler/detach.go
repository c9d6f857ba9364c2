// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"net/http"

	"github.com/pgtest/injection-points/injection/api/rendering"
)

type detachHandler struct {
	module InjectionPoints
}

func (h *detachHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	var name string
	if !decodePointName(writer, request, &name) {
		return
	}

	if err := h.module.Detach(name); err != nil {
		rendering.RenderError(writer, request, err)
		return
	}

	rendering.RenderOK(writer, request)
}

// NewDetachHandler returns a new instance of http handler
// for serving /test/detach.
func NewDetachHandler(module InjectionPoints) http.Handler {
	return &detachHandler{module: module}
}
