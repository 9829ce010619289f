package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// ImagesHandler serves single images independent of their owners
type ImagesHandler struct {
	service   simpleasset.Service
	auth      *jwtauth.JWTAuth
	urlPrefix string
}

func NewImagesHandler(service simpleasset.Service, opts Options) *ImagesHandler {
	return &ImagesHandler{service: service, auth: opts.Auth, urlPrefix: opts.urlPrefix()}
}

func (h *ImagesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/id/{id}", h.Get)
	r.With(RequireAdmin(h.auth)).Delete("/id/{id}", h.Delete)
	return r
}

func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	asset, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toImageResponse(asset, h.urlPrefix))
}

// Delete detaches the image from every owner and removes its blobs
func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAsset(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadsHandler streams stored blobs by key
type UploadsHandler struct {
	service simpleasset.Service
}

func NewUploadsHandler(service simpleasset.Service) *UploadsHandler {
	return &UploadsHandler{service: service}
}

func (h *UploadsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.Serve)
	return r
}

func (h *UploadsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		writeMessage(w, r, http.StatusNotFound, "not found")
		return
	}

	rc, meta, err := h.service.OpenBlob(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.ETag != "" {
		w.Header().Set("ETag", meta.ETag)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("Blob stream interrupted", "key", key, "err", err)
	}
}
