// Package api implements the htmlshot HTTP API.
//
// Endpoints:
//
//	GET    /health                   liveness and version
//	GET    /metrics                  Prometheus text format
//	GET    /openapi.json             OpenAPI 3 description of this API
//	POST   /v1/render                template + variables to image
//	POST   /v1/templates/process     template + variables to HTML
//	POST   /v1/templates/variables   names a template requires
//	POST   /v1/templates/validate    check variables against a template
//	POST   /v1/templates/summary     extract, validate and process
//	GET    /v1/images                list stored images
//	GET    /v1/images/{key...}       describe a stored image
//	DELETE /v1/images/{key...}       delete a stored image
//	GET    /images/{key...}          public image bytes
//
// JSON responses use the httputil envelope. Request bodies are checked
// against embedded JSON schemas before they are decoded.
package api
