// Package metrics is a small Prometheus-compatible metrics registry.
//
// It supports counters, gauges and histograms with labels and renders them in
// the text exposition format, without pulling in the Prometheus client.
//
// # Usage
//
//	svc := metrics.NewService()
//	mux.Handle("GET /metrics", svc.Registry.Handler())
//
//	done := svc.RenderStarted()
//	defer done()
//	svc.ObserveRender("png", metrics.OutcomeOK, elapsed)
//
// Custom metrics are registered on a Registry:
//
//	hits := reg.NewCounter("cache_hits_total", "Cache hits", "cache")
//	vec, _ := hits.WithLabels("images")
//	_ = vec.Inc()
//
// A nil *Service is valid and records nothing.
package metrics
