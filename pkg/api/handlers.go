package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getmockd/htmlshot/pkg/httputil"
	"github.com/getmockd/htmlshot/pkg/metrics"
	"github.com/getmockd/htmlshot/pkg/template"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
	Storage bool   `json:"storage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  int64(time.Since(s.started).Seconds()),
		Storage: s.store != nil,
	})
}

// templateRequest is the body shared by the /v1/templates endpoints.
type templateRequest struct {
	Template          string          `json:"template"`
	Variables         json.RawMessage `json:"variables,omitempty"`
	Sanitize          bool            `json:"sanitize,omitempty"`
	SkipQuoteEscaping bool            `json:"skipQuoteEscaping,omitempty"`
}

// variables decodes the variable object, keeping numbers as written. An
// absent object yields nil.
func (t *templateRequest) variables() template.Variables {
	if len(t.Variables) == 0 || string(t.Variables) == "null" {
		return nil
	}
	return template.DecodeVariables(t.Variables)
}

func (t *templateRequest) engine() *template.Engine {
	if t.Sanitize {
		return template.New(template.WithSanitize(template.SanitizeOptions{SkipQuoteEscaping: t.SkipQuoteEscaping}))
	}
	return template.New()
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if rerr := s.decodeRequest(w, r, schemaTemplate, &req); rerr != nil {
		rerr.write(w)
		return
	}

	res, err := req.engine().ProcessDetailed(req.Template, req.variables())
	if err != nil {
		s.metrics.ObserveTemplate(metrics.OutcomeInvalid)
		writeTemplateError(w, err)
		return
	}
	s.metrics.ObserveTemplate(metrics.OutcomeOK)
	httputil.WriteOK(w, res)
}

// VariablesResponse is the body of POST /v1/templates/variables.
type VariablesResponse struct {
	Variables []string            `json:"variables"`
	Scoped    map[string][]string `json:"scoped,omitempty"`
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if rerr := s.decodeRequest(w, r, schemaTemplate, &req); rerr != nil {
		rerr.write(w)
		return
	}
	a := template.Analyze(req.Template)
	httputil.WriteOK(w, VariablesResponse{Variables: a.Required, Scoped: a.Scoped})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if rerr := s.decodeRequest(w, r, schemaTemplate, &req); rerr != nil {
		rerr.write(w)
		return
	}
	required := template.ExtractVariables(req.Template)
	httputil.WriteOK(w, template.ValidateVariables(req.variables(), required))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if rerr := s.decodeRequest(w, r, schemaTemplate, &req); rerr != nil {
		rerr.write(w)
		return
	}
	httputil.WriteOK(w, template.Summarize(req.Template, req.variables()))
}

func writeTemplateError(w http.ResponseWriter, err error) {
	if errors.Is(err, template.ErrInvalidTemplate) {
		httputil.WriteBadRequest(w, httputil.CodeInvalidTemplate, err.Error())
		return
	}
	httputil.WriteInternalError(w, "template processing failed")
}
