// Package httpapi serves the compliance REST surface.
package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Router dispatches the compliance API and the health probe from a single
// ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterComplianceRoutes mounts the property tree and the finding tree.
func (r *Router) RegisterComplianceRoutes(properties *PropertyHandler, findings *FindingHandler) {
	r.mux.Handle(propertiesBase, properties)
	r.mux.Handle(propertiesBase+"/", properties)
	r.mux.Handle(findingsBase+"/", findings)
}

// RegisterHealthRoute wires GET /health. A nil checker is skipped. Postgres
// down means the service is down (503); Redis down only degrades it, reads
// and writes keep working without the cache.
func (r *Router) RegisterHealthRoute(pingDB, pingRedis func(context.Context) error) {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		if pingDB != nil {
			if err := pingDB(req.Context()); err != nil {
				status["postgres"] = err.Error()
				status["status"] = "down"
				code = http.StatusServiceUnavailable
			} else {
				status["postgres"] = "up"
			}
		}
		if pingRedis != nil {
			if err := pingRedis(req.Context()); err != nil {
				status["redis"] = err.Error()
				if status["status"] == "ok" {
					status["status"] = "degraded"
				}
			} else {
				status["redis"] = "up"
			}
		}

		writeJSON(w, code, Ok(status))
	})
}
