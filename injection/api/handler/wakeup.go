// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"net/http"

	"github.com/pgtest/injection-points/injection/api/rendering"
)

type wakeupHandler struct {
	module InjectionPoints
}

func (h *wakeupHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	var name string
	if !decodePointName(writer, request, &name) {
		return
	}

	if err := h.module.Wakeup(name); err != nil {
		rendering.RenderError(writer, request, err)
		return
	}

	rendering.RenderOK(writer, request)
}

// NewWakeupHandler returns a new instance of http handler
// for serving /test/wakeup.
func NewWakeupHandler(module InjectionPoints) http.Handler {
	return &wakeupHandler{module: module}
}
