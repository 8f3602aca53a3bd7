package api

import (
	"net/http"
	"strings"
	"time"
)

// routes registers every endpoint. Each handler is wrapped so that metrics
// are labelled with its pattern rather than the raw path.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.instrument(pattern, h))
	}

	handle("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Registry.Handler())
	}
	handle("GET /openapi.json", s.handleOpenAPI)

	handle("POST /v1/render", s.handleRender)
	handle("POST /v1/templates/process", s.handleProcess)
	handle("POST /v1/templates/variables", s.handleVariables)
	handle("POST /v1/templates/validate", s.handleValidate)
	handle("POST /v1/templates/summary", s.handleSummary)

	handle("GET /v1/images", s.handleListImages)
	handle("GET /v1/images/{key...}", s.handleGetImage)
	handle("DELETE /v1/images/{key...}", s.handleDeleteImage)
	handle("GET /images/{key...}", s.handleServeImage)

	return mux
}

func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	route := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		route = pattern[i+1:]
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrapStatus(w)
		next.ServeHTTP(sw, r)
		s.metrics.ObserveHTTP(r.Method, route, sw.status, time.Since(start))
	})
}
