// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/pgtest/injection-points/injection/api/handler"
	"github.com/pgtest/injection-points/injection/api/middleware"
)

// NewRouter returns a new instance of chi router serving the injection
// points API under /test.
func NewRouter(module handler.InjectionPoints, points handler.PointLister, activity handler.ActivityReporter) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.AccessLogMiddleware())

	router.Get("/ping", handler.NewPingHandler().ServeHTTP)
	router.Post("/attach", handler.NewAttachHandler(module).ServeHTTP)
	router.Post("/run", handler.NewRunHandler(module).ServeHTTP)
	router.Post("/wakeup", handler.NewWakeupHandler(module).ServeHTTP)
	router.Post("/setLocal", handler.NewSetLocalHandler(module).ServeHTTP)
	router.Post("/detach", handler.NewDetachHandler(module).ServeHTTP)
	router.Get("/state", handler.NewStateHandler(module, points, activity).ServeHTTP)

	return router
}
