package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/getmockd/htmlshot/pkg/httputil"
	"github.com/getmockd/htmlshot/pkg/metrics"
	"github.com/getmockd/htmlshot/pkg/render"
	"github.com/getmockd/htmlshot/pkg/storage"
	"github.com/getmockd/htmlshot/pkg/template"
)

// Response modes of POST /v1/render.
const (
	ResponseURL    = "url"
	ResponseBinary = "binary"
)

// RenderRequest is the body of POST /v1/render.
type RenderRequest struct {
	Template          string            `json:"template"`
	Variables         json.RawMessage   `json:"variables,omitempty"`
	CSS               string            `json:"css,omitempty"`
	Sanitize          bool              `json:"sanitize,omitempty"`
	SkipQuoteEscaping bool              `json:"skipQuoteEscaping,omitempty"`
	Options           render.Options    `json:"options,omitempty"`
	Response          string            `json:"response,omitempty"`
	Key               string            `json:"key,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// RenderResponse is the body of a stored render.
type RenderResponse struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ETag        string `json:"etag"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if rerr := s.decodeRequest(w, r, schemaRender, &req); rerr != nil {
		rerr.write(w)
		return
	}

	mode := req.Response
	if mode == "" {
		mode = ResponseBinary
		if s.store != nil {
			mode = ResponseURL
		}
	}
	if mode == ResponseURL && s.store == nil {
		httputil.WriteBadRequest(w, httputil.CodeInvalidRequest, "storage is not configured; use response \"binary\"")
		return
	}

	opts := req.Options.Normalize()
	if err := opts.Validate(); err != nil {
		httputil.WriteBadRequest(w, httputil.CodeInvalidRequest, err.Error())
		return
	}

	vars := template.Variables{}
	if len(req.Variables) > 0 && string(req.Variables) != "null" {
		vars = template.DecodeVariables(req.Variables)
	}
	required := template.ExtractVariables(req.Template)
	if v := template.ValidateVariables(vars, required); !v.IsValid {
		s.metrics.ObserveTemplate(metrics.OutcomeInvalid)
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, httputil.CodeMissingVariables,
			"missing required variables", v)
		return
	}

	engine := template.New()
	if req.Sanitize {
		engine = template.New(template.WithSanitize(template.SanitizeOptions{SkipQuoteEscaping: req.SkipQuoteEscaping}))
	}
	processed, err := engine.ProcessDetailed(req.Template, vars)
	if err != nil {
		s.metrics.ObserveTemplate(metrics.OutcomeInvalid)
		writeTemplateError(w, err)
		return
	}
	s.metrics.ObserveTemplate(metrics.OutcomeOK)
	if len(processed.Issues) > 0 {
		s.log.Debug("template has malformed markers", "issues", len(processed.Issues), "request_id", RequestID(r.Context()))
	}

	doc, err := render.BuildDocument(processed.HTML, req.CSS)
	if err != nil {
		httputil.WriteBadRequest(w, httputil.CodeInvalidTemplate, "failed to build HTML document: "+err.Error())
		return
	}

	img, err := s.renderer.Render(r.Context(), doc, opts)
	if err != nil {
		s.writeRenderError(w, r, err)
		return
	}

	if mode == ResponseBinary {
		w.Header().Set("Content-Type", opts.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(img)))
		w.Header().Set("ETag", strconv.Quote(storage.ETag(img)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
		return
	}

	key := req.Key
	if key == "" {
		key, err = storage.NewKey(s.cfg.Storage.KeyPrefix, opts.Extension(), s.now())
		if err != nil {
			httputil.WriteInternalError(w, "failed to allocate object key")
			return
		}
	} else if err := storage.ValidateKey(key); err != nil {
		httputil.WriteBadRequest(w, httputil.CodeInvalidRequest, err.Error())
		return
	}

	meta := make(map[string]string, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["width"] = strconv.Itoa(opts.Width)
	meta["height"] = strconv.Itoa(opts.Height)
	meta["format"] = string(opts.Format)

	obj, err := s.store.Put(r.Context(), key, img, storage.PutOptions{ContentType: opts.ContentType(), Metadata: meta})
	if err != nil {
		s.log.Error("failed to store image", "key", key, "error", err, "request_id", RequestID(r.Context()))
		httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeStorageFailed, "failed to store rendered image")
		return
	}
	s.metrics.ObjectStored()

	url := storage.PublicURL(s.imageBaseURL(r), obj.Key)
	w.Header().Set("Location", url)
	httputil.WriteCreated(w, RenderResponse{
		URL:         url,
		Key:         obj.Key,
		Size:        obj.Size,
		ContentType: obj.ContentType,
		ETag:        obj.ETag,
		Width:       opts.Width,
		Height:      opts.Height,
		Format:      string(opts.Format),
	})
}

func (s *Server) writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := RequestID(r.Context())
	switch {
	case errors.Is(err, render.ErrInvalidOptions):
		httputil.WriteBadRequest(w, httputil.CodeInvalidRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.log.Warn("render timed out", "request_id", reqID)
		httputil.WriteError(w, http.StatusGatewayTimeout, httputil.CodeRenderTimeout, "rendering backend timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		s.log.Debug("render cancelled", "request_id", reqID)
	default:
		s.log.Error("render failed", "error", err, "request_id", reqID)
		var rerr *render.Error
		if errors.As(err, &rerr) && rerr.StatusCode >= 300 {
			httputil.WriteErrorWithDetails(w, http.StatusBadGateway, httputil.CodeRenderFailed,
				"rendering backend returned an error", map[string]int{"backendStatus": rerr.StatusCode})
			return
		}
		httputil.WriteError(w, http.StatusBadGateway, httputil.CodeRenderFailed, "rendering backend unavailable")
	}
}
