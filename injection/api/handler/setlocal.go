// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"net/http"

	"github.com/pgtest/injection-points/injection/api/rendering"
)

type setLocalHandler struct {
	module InjectionPoints
}

func (h *setLocalHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if err := h.module.SetLocal(); err != nil {
		rendering.RenderError(writer, request, err)
		return
	}
	rendering.RenderOK(writer, request)
}

// NewSetLocalHandler returns a new instance of http handler
// for serving /test/setLocal.
func NewSetLocalHandler(module InjectionPoints) http.Handler {
	return &setLocalHandler{module: module}
}
