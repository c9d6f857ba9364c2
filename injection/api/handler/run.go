// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"net/http"
	"sync"

	"github.com/pgtest/injection-points/injection/api/rendering"
	"github.com/pgtest/injection-points/injection/core"
)

type runHandler struct {
	module InjectionPoints
}

// ServeHTTP runs the point within the request. A wait point holds the
// request until it is woken up or the caller goes away.
func (h *runHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	var name string
	if !decodePointName(writer, request, &name) {
		return
	}

	var (
		mu      sync.Mutex
		notices []string
	)
	ctx := core.WithNoticeSink(request.Context(), func(msg string) {
		mu.Lock()
		notices = append(notices, msg)
		mu.Unlock()
	})

	if err := h.module.Run(ctx, name); err != nil {
		rendering.RenderError(writer, request, err)
		return
	}

	mu.Lock()
	defer mu.Unlock()
	rendering.RenderOK(writer, request, notices...)
}

// NewRunHandler returns a new instance of http handler
// for serving /test/run.
func NewRunHandler(module InjectionPoints) http.Handler {
	return &runHandler{module: module}
}
