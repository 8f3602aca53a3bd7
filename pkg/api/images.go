package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getmockd/htmlshot/pkg/httputil"
	"github.com/getmockd/htmlshot/pkg/storage"
)

// ImageInfo is an object description returned by the image endpoints.
type ImageInfo struct {
	*storage.Object
	URL string `json:"url"`
}

// ImageList is the body of GET /v1/images.
type ImageList struct {
	Images []ImageInfo `json:"images"`
	Count  int         `json:"count"`
}

// imageBaseURL is the public prefix under which images are served.
func (s *Server) imageBaseURL(r *http.Request) string {
	if base := s.cfg.Server.PublicURL; base != "" {
		return strings.TrimRight(base, "/") + "/images"
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/images"
}

// requireStore writes a 404 when storage is disabled.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.WriteNotFound(w, "image storage is not configured")
		return false
	}
	return true
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteBadRequest(w, httputil.CodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	objs, err := s.store.List(r.Context(), q.Get("prefix"), limit)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidGlob) {
			httputil.WriteBadRequest(w, httputil.CodeInvalidRequest, err.Error())
			return
		}
		s.log.Error("failed to list images", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeStorageFailed, "failed to list images")
		return
	}

	base := s.imageBaseURL(r)
	out := ImageList{Images: make([]ImageInfo, len(objs)), Count: len(objs)}
	for i, o := range objs {
		out.Images[i] = ImageInfo{Object: o, URL: storage.PublicURL(base, o.Key)}
	}
	httputil.WriteOK(w, out)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	key := r.PathValue("key")
	obj, err := s.store.Stat(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, key, err)
		return
	}
	httputil.WriteOK(w, ImageInfo{Object: obj, URL: storage.PublicURL(s.imageBaseURL(r), obj.Key)})
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	key := r.PathValue("key")
	if err := s.store.Delete(r.Context(), key); err != nil {
		s.writeStoreError(w, key, err)
		return
	}
	s.log.Info("image deleted", "key", key, "request_id", RequestID(r.Context()))
	httputil.WriteNoContent(w)
}

// handleServeImage serves raw image bytes without authentication.
func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	key := r.PathValue("key")
	obj, data, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, key, err)
		return
	}

	etag := strconv.Quote(obj.ETag)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("Content-Security-Policy", "default-src 'none'")
	if match := r.Header.Get("If-None-Match"); match != "" && obj.ETag != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.FormatInt(int64(len(data)), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func etagMatches(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" || strings.TrimPrefix(part, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) writeStoreError(w http.ResponseWriter, key string, err error) {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		httputil.WriteNotFound(w, "image not found: "+key)
		return
	}
	s.log.Error("storage error", "key", key, "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeStorageFailed, "storage error")
}
