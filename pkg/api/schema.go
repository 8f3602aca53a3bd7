package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/htmlshot/pkg/httputil"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request schema names.
const (
	schemaRender   = "render.json"
	schemaTemplate = "template.json"
)

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// compileSchemas compiles every embedded schema once.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		names := []string{schemaRender, schemaTemplate}
		for _, name := range names {
			data, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = fmt.Errorf("failed to read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("failed to add schema resource %s: %w", name, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			s, err := compiler.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("failed to compile schema %s: %w", name, err)
				return
			}
			out[name] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// FieldError is one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// requestError is a decode failure already mapped to an HTTP response.
type requestError struct {
	status  int
	code    string
	message string
	details any
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) write(w http.ResponseWriter) {
	httputil.WriteErrorWithDetails(w, e.status, e.code, e.message, e.details)
}

// decodeRequest reads a size-limited JSON body, validates it against the
// named schema and decodes it into dst.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, schema string, dst any) *requestError {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{
				status:  http.StatusRequestEntityTooLarge,
				code:    httputil.CodeTooLarge,
				message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return &requestError{status: http.StatusBadRequest, code: httputil.CodeInvalidRequest, message: "failed to read request body"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &requestError{status: http.StatusBadRequest, code: httputil.CodeInvalidRequest, message: "invalid JSON: " + err.Error()}
	}

	compiled, err := compileSchemas()
	if err != nil {
		s.log.Error("request schemas unavailable", "error", err)
		return &requestError{status: http.StatusInternalServerError, code: httputil.CodeInternal, message: "request validation unavailable"}
	}
	if err := compiled[schema].Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &requestError{
				status:  http.StatusBadRequest,
				code:    httputil.CodeInvalidRequest,
				message: "request does not match schema",
				details: schemaErrors(verr, nil),
			}
		}
		return &requestError{status: http.StatusBadRequest, code: httputil.CodeInvalidRequest, message: err.Error()}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &requestError{status: http.StatusBadRequest, code: httputil.CodeInvalidRequest, message: "invalid request: " + err.Error()}
	}
	return nil
}

// schemaErrors flattens the leaf causes of a validation error.
func schemaErrors(err *jsonschema.ValidationError, out []FieldError) []FieldError {
	if len(err.Causes) == 0 {
		return append(out, FieldError{Field: fieldFromPointer(err.InstanceLocation), Message: err.Message})
	}
	for _, cause := range err.Causes {
		out = schemaErrors(cause, out)
	}
	return out
}

// fieldFromPointer turns "/options/width" into "options.width".
func fieldFromPointer(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "(root)"
	}
	return strings.ReplaceAll(p, "/", ".")
}
