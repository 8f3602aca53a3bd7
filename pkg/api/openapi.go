package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	openAPIOnce sync.Once
	openAPIJSON []byte
	openAPIErr  error
)

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	openAPIOnce.Do(func() {
		openAPIJSON, openAPIErr = json.Marshal(OpenAPI(s.version))
	})
	if openAPIErr != nil {
		s.log.Error("failed to encode OpenAPI document", "error", openAPIErr)
		http.Error(w, "openapi unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIJSON)
}

// OpenAPI describes the HTTP API.
func OpenAPI(version string) *openapi3.T {
	str := openapi3.NewStringSchema
	obj := openapi3.NewObjectSchema
	stringList := func() *openapi3.Schema { return openapi3.NewArraySchema().WithItems(str()) }

	options := obj().
		WithProperty("width", openapi3.NewIntegerSchema().WithMin(1).WithMax(4096)).
		WithProperty("height", openapi3.NewIntegerSchema().WithMin(1).WithMax(4096)).
		WithProperty("deviceScaleFactor", openapi3.NewFloat64Schema().WithMin(0).WithMax(4)).
		WithProperty("format", str().WithEnum("png", "jpeg", "jpg", "webp")).
		WithProperty("quality", openapi3.NewIntegerSchema().WithMin(1).WithMax(100)).
		WithProperty("fullPage", openapi3.NewBoolSchema()).
		WithProperty("transparent", openapi3.NewBoolSchema())

	templateReq := obj().
		WithProperty("template", str()).
		WithProperty("variables", obj()).
		WithProperty("sanitize", openapi3.NewBoolSchema()).
		WithProperty("skipQuoteEscaping", openapi3.NewBoolSchema())
	templateReq.Required = []string{"template"}

	renderReq := obj().
		WithProperty("template", str()).
		WithProperty("variables", obj()).
		WithProperty("css", str()).
		WithProperty("sanitize", openapi3.NewBoolSchema()).
		WithProperty("skipQuoteEscaping", openapi3.NewBoolSchema()).
		WithProperty("options", options).
		WithProperty("response", str().WithEnum(ResponseURL, ResponseBinary)).
		WithProperty("key", str()).
		WithProperty("metadata", obj().WithAdditionalProperties(str()))
	renderReq.Required = []string{"template"}

	object := obj().
		WithProperty("key", str()).
		WithProperty("size", openapi3.NewInt64Schema()).
		WithProperty("contentType", str()).
		WithProperty("etag", str()).
		WithProperty("metadata", obj().WithAdditionalProperties(str())).
		WithProperty("createdAt", openapi3.NewDateTimeSchema()).
		WithProperty("url", str())

	validation := obj().
		WithProperty("isValid", openapi3.NewBoolSchema()).
		WithProperty("missing", stringList()).
		WithProperty("provided", stringList()).
		WithProperty("required", stringList())

	errorEnvelope := obj().
		WithProperty("success", openapi3.NewBoolSchema()).
		WithProperty("error", obj().
			WithProperty("code", str()).
			WithProperty("message", str()).
			WithProperty("details", openapi3.NewSchema()))

	envelope := func(data *openapi3.Schema) *openapi3.Schema {
		return obj().
			WithProperty("success", openapi3.NewBoolSchema()).
			WithProperty("data", data)
	}
	jsonBody := func(s *openapi3.Schema) *openapi3.RequestBodyRef {
		return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(s)}
	}
	ok := func(desc string, data *openapi3.Schema) *openapi3.Response {
		return openapi3.NewResponse().WithDescription(desc).WithJSONSchema(envelope(data))
	}
	fail := func(desc string) *openapi3.Response {
		return openapi3.NewResponse().WithDescription(desc).WithJSONSchema(errorEnvelope)
	}
	op := func(id, summary string, tags ...string) *openapi3.Operation {
		o := openapi3.NewOperation()
		o.OperationID = id
		o.Summary = summary
		o.Tags = tags
		return o
	}
	keyParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("key").WithSchema(str()).
		WithDescription("Object key; may contain slashes")}

	health := op("getHealth", "Service health", "system")
	health.AddResponse(http.StatusOK, ok("Service is up", obj().
		WithProperty("status", str()).
		WithProperty("version", str()).
		WithProperty("uptime", openapi3.NewInt64Schema()).
		WithProperty("storage", openapi3.NewBoolSchema())))

	metricsOp := op("getMetrics", "Prometheus metrics", "system")
	metricsOp.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Prometheus text format").
		WithContent(openapi3.NewContentWithSchema(str(), []string{"text/plain"})))

	renderOp := op("render", "Render a template to an image", "render")
	renderOp.RequestBody = jsonBody(renderReq)
	renderOp.AddResponse(http.StatusCreated, ok("Image stored", obj().
		WithProperty("url", str()).
		WithProperty("key", str()).
		WithProperty("size", openapi3.NewInt64Schema()).
		WithProperty("contentType", str()).
		WithProperty("etag", str()).
		WithProperty("width", openapi3.NewIntegerSchema()).
		WithProperty("height", openapi3.NewIntegerSchema()).
		WithProperty("format", str())))
	renderOp.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Raw image bytes").
		WithContent(openapi3.NewContentWithSchema(str().WithFormat("binary"), []string{"image/png", "image/jpeg", "image/webp"})))
	renderOp.AddResponse(http.StatusBadRequest, fail("Invalid request, template or missing variables"))
	renderOp.AddResponse(http.StatusBadGateway, fail("Rendering backend error"))
	renderOp.AddResponse(http.StatusGatewayTimeout, fail("Rendering backend timed out"))

	process := op("processTemplate", "Substitute variables into a template", "templates")
	process.RequestBody = jsonBody(templateReq)
	process.AddResponse(http.StatusOK, ok("Processed HTML", obj().
		WithProperty("html", str()).
		WithProperty("issues", openapi3.NewArraySchema().WithItems(obj().
			WithProperty("pos", openapi3.NewIntegerSchema()).
			WithProperty("marker", str()).
			WithProperty("message", str())))))
	process.AddResponse(http.StatusBadRequest, fail("Invalid template"))

	variables := op("templateVariables", "List the variables a template requires", "templates")
	variables.RequestBody = jsonBody(templateReq)
	variables.AddResponse(http.StatusOK, ok("Variable names", obj().
		WithProperty("variables", stringList()).
		WithProperty("scoped", obj().WithAdditionalProperties(stringList()))))

	validate := op("validateVariables", "Check variables against a template", "templates")
	validate.RequestBody = jsonBody(templateReq)
	validate.AddResponse(http.StatusOK, ok("Validation result", validation))

	summary := op("summarizeTemplate", "Extract, validate and process in one call", "templates")
	summary.RequestBody = jsonBody(templateReq)
	summary.AddResponse(http.StatusOK, ok("Summary", obj().
		WithProperty("templateVariables", stringList()).
		WithProperty("providedVariables", stringList()).
		WithProperty("validation", validation).
		WithProperty("processedLength", openapi3.NewIntegerSchema()).
		WithProperty("variableCount", openapi3.NewIntegerSchema())))

	list := op("listImages", "List stored images", "images")
	list.Parameters = openapi3.Parameters{
		{Value: openapi3.NewQueryParameter("prefix").WithSchema(str()).
			WithDescription("Key prefix or doublestar glob such as renders/**/*.png")},
		{Value: openapi3.NewQueryParameter("limit").WithSchema(openapi3.NewIntegerSchema().WithMin(0).WithMax(1000))},
	}
	list.AddResponse(http.StatusOK, ok("Images", obj().
		WithProperty("images", openapi3.NewArraySchema().WithItems(object)).
		WithProperty("count", openapi3.NewIntegerSchema())))

	getImage := op("getImage", "Describe a stored image", "images")
	getImage.Parameters = openapi3.Parameters{keyParam}
	getImage.AddResponse(http.StatusOK, ok("Image metadata", object))
	getImage.AddResponse(http.StatusNotFound, fail("Image not found"))

	deleteImage := op("deleteImage", "Delete a stored image", "images")
	deleteImage.Parameters = openapi3.Parameters{keyParam}
	deleteImage.AddResponse(http.StatusNoContent, openapi3.NewResponse().WithDescription("Deleted"))
	deleteImage.AddResponse(http.StatusNotFound, fail("Image not found"))

	serveImage := op("serveImage", "Download image bytes", "images")
	serveImage.Parameters = openapi3.Parameters{keyParam}
	serveImage.Security = openapi3.NewSecurityRequirements()
	serveImage.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Image bytes").
		WithContent(openapi3.NewContentWithSchema(str().WithFormat("binary"), []string{"image/png", "image/jpeg", "image/webp"})))
	serveImage.AddResponse(http.StatusNotFound, fail("Image not found"))

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "htmlshot",
			Description: "Render HTML templates to images.",
			Version:     version,
		},
		Components: &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				"apiKey": &openapi3.SecuritySchemeRef{Value: openapi3.NewSecurityScheme().
					WithType("apiKey").WithIn("header").WithName(APIKeyHeader)},
				"bearer": &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
		Security: openapi3.SecurityRequirements{
			openapi3.NewSecurityRequirement().Authenticate("apiKey"),
			openapi3.NewSecurityRequirement().Authenticate("bearer"),
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/health", &openapi3.PathItem{Get: health}),
			openapi3.WithPath("/metrics", &openapi3.PathItem{Get: metricsOp}),
			openapi3.WithPath("/v1/render", &openapi3.PathItem{Post: renderOp}),
			openapi3.WithPath("/v1/templates/process", &openapi3.PathItem{Post: process}),
			openapi3.WithPath("/v1/templates/variables", &openapi3.PathItem{Post: variables}),
			openapi3.WithPath("/v1/templates/validate", &openapi3.PathItem{Post: validate}),
			openapi3.WithPath("/v1/templates/summary", &openapi3.PathItem{Post: summary}),
			openapi3.WithPath("/v1/images", &openapi3.PathItem{Get: list}),
			openapi3.WithPath("/v1/images/{key}", &openapi3.PathItem{Get: getImage, Delete: deleteImage}),
			openapi3.WithPath("/images/{key}", &openapi3.PathItem{Get: serveImage}),
		),
	}
	for _, o := range []*openapi3.Operation{health, metricsOp} {
		o.Security = openapi3.NewSecurityRequirements()
	}
	return doc
}
