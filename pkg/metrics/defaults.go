package metrics

import (
	"strconv"
	"time"
)

// Render outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeInvalid = "invalid"
)

// Service bundles the metrics htmlshot exports.
//
// Label conventions: method is the uppercase HTTP method, route is the
// ServeMux pattern rather than the raw path, status is the numeric code.
type Service struct {
	Registry *Registry

	// HTTPRequestsTotal counts API requests. Labels: method, route, status.
	HTTPRequestsTotal *Counter
	// HTTPRequestDuration observes API latency in seconds. Labels: method, route.
	HTTPRequestDuration *Histogram
	// RendersTotal counts renders. Labels: format, outcome.
	RendersTotal *Counter
	// RenderDuration observes backend render time in seconds. Labels: format.
	RenderDuration *Histogram
	// RendersInFlight is the number of renders waiting on the backend.
	RendersInFlight *Gauge
	// TemplateProcessTotal counts template processing. Labels: outcome.
	TemplateProcessTotal *Counter
	// ObjectsStoredTotal counts stored images.
	ObjectsStoredTotal *Counter
	// RateLimitedTotal counts requests refused by the rate limiter.
	RateLimitedTotal *Counter
}

// NewService registers the service metrics and the Go runtime collector on a
// fresh registry.
func NewService() *Service {
	r := NewRegistry()
	s := &Service{
		Registry: r,
		HTTPRequestsTotal: r.NewCounter("htmlshot_http_requests_total",
			"Total number of API requests", "method", "route", "status"),
		HTTPRequestDuration: r.NewHistogram("htmlshot_http_request_duration_seconds",
			"API request duration in seconds", DefaultBuckets, "method", "route"),
		RendersTotal: r.NewCounter("htmlshot_renders_total",
			"Total number of renders by image format and outcome", "format", "outcome"),
		RenderDuration: r.NewHistogram("htmlshot_render_duration_seconds",
			"Time spent waiting on the rendering backend", RenderBuckets, "format"),
		RendersInFlight: r.NewGauge("htmlshot_renders_in_flight",
			"Renders currently waiting on the rendering backend"),
		TemplateProcessTotal: r.NewCounter("htmlshot_template_process_total",
			"Total number of template processing calls by outcome", "outcome"),
		ObjectsStoredTotal: r.NewCounter("htmlshot_objects_stored_total",
			"Total number of rendered images written to storage"),
		RateLimitedTotal: r.NewCounter("htmlshot_rate_limited_total",
			"Total number of requests refused by the rate limiter"),
	}
	RegisterRuntime(r)
	return s
}

// ObserveHTTP records one API request.
func (s *Service) ObserveHTTP(method, route string, status int, d time.Duration) {
	if s == nil {
		return
	}
	if vec, err := s.HTTPRequestsTotal.WithLabels(method, route, strconv.Itoa(status)); err == nil {
		_ = vec.Inc()
	}
	if vec, err := s.HTTPRequestDuration.WithLabels(method, route); err == nil {
		vec.Observe(d.Seconds())
	}
}

// ObserveRender records one call to the rendering backend.
func (s *Service) ObserveRender(format, outcome string, d time.Duration) {
	if s == nil {
		return
	}
	if vec, err := s.RendersTotal.WithLabels(format, outcome); err == nil {
		_ = vec.Inc()
	}
	if outcome == OutcomeInvalid {
		return
	}
	if vec, err := s.RenderDuration.WithLabels(format); err == nil {
		vec.Observe(d.Seconds())
	}
}

// RenderStarted marks a render as in flight and returns the func that ends it.
func (s *Service) RenderStarted() (done func()) {
	if s == nil {
		return func() {}
	}
	_ = s.RendersInFlight.Add(1)
	return func() { _ = s.RendersInFlight.Add(-1) }
}

// ObserveTemplate records one template processing call.
func (s *Service) ObserveTemplate(outcome string) {
	if s == nil {
		return
	}
	if vec, err := s.TemplateProcessTotal.WithLabels(outcome); err == nil {
		_ = vec.Inc()
	}
}

// ObjectStored records a stored image.
func (s *Service) ObjectStored() {
	if s == nil {
		return
	}
	_ = s.ObjectsStoredTotal.Inc()
}

// RateLimited records a refused request.
func (s *Service) RateLimited() {
	if s == nil {
		return
	}
	_ = s.RateLimitedTotal.Inc()
}
