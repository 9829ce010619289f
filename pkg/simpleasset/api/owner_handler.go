package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const (
	defaultMaxUploadMemory = 32 << 20
	// multipartOverhead covers part headers and the non-file fields
	multipartOverhead = 1 << 20
)

// OwnerHandler serves the CRUD endpoints of one owner kind
type OwnerHandler struct {
	service         simpleasset.Service
	kind            simpleasset.OwnerKind
	auth            *jwtauth.JWTAuth
	urlPrefix       string
	maxUploadMemory int64
	limits          simpleasset.Limits
}

func NewOwnerHandler(service simpleasset.Service, kind simpleasset.OwnerKind, opts Options) *OwnerHandler {
	return &OwnerHandler{
		service:         service,
		kind:            kind,
		auth:            opts.Auth,
		urlPrefix:       opts.urlPrefix(),
		maxUploadMemory: opts.maxUploadMemory(),
		limits:          opts.limits(),
	}
}

// Routes returns the router for one owner kind
func (h *OwnerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/id/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin(h.auth))
		r.Post("/", h.Create)
		r.Put("/id/{id}", h.Update)
		r.Delete("/id/{id}", h.Delete)
	})
	return r
}

// ownerForm is the decoded body of a create or update request
type ownerForm struct {
	Name       *string
	Attributes map[string]interface{}
	Order      []simpleasset.OrderEntry
	Uploads    []simpleasset.Upload
}

// ownerJSON is accepted for requests that carry no files
type ownerJSON struct {
	Name       *string                  `json:"name"`
	Attributes map[string]interface{}   `json:"attributes"`
	Order      []simpleasset.OrderEntry `json:"order"`
}

// List returns every owner of the handler's kind
func (h *OwnerHandler) List(w http.ResponseWriter, r *http.Request) {
	owners, err := h.service.ListOwners(r.Context(), h.kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]OwnerResponse, 0, len(owners))
	for _, o := range owners {
		assets, err := h.service.GetAssets(r.Context(), o.AssetIDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp = append(resp, toOwnerResponse(o, assets, h.urlPrefix))
	}
	render.JSON(w, r, resp)
}

// Get returns one owner with its images
func (h *OwnerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	owner, err := h.service.GetOwner(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if owner.Kind != h.kind {
		writeMessage(w, r, http.StatusNotFound, fmt.Sprintf("%s not found", h.kind))
		return
	}
	h.renderOwner(w, r, owner)
}

// Create ingests the uploaded images and creates an owner referencing them
func (h *OwnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseForm(w, r)
	if err != nil {
		writeFormError(w, r, err)
		return
	}

	req := simpleasset.CreateOwnerRequest{
		Kind:       h.kind,
		Attributes: form.Attributes,
		Uploads:    form.Uploads,
		Order:      form.Order,
	}
	if form.Name != nil {
		req.Name = *form.Name
	}

	owner, err := h.service.CreateOwner(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Owner created", "kind", owner.Kind, "owner_id", owner.ID, "images", len(owner.AssetIDs))
	render.Status(r, http.StatusCreated)
	h.renderOwner(w, r, owner)
}

// Update applies new fields, uploads and ordering. An If-Match header
// carrying the owner version turns a concurrent modification into 409.
func (h *OwnerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	req := simpleasset.UpdateOwnerRequest{ID: id}
	if v := r.Header.Get("If-Match"); v != "" {
		version, err := parseVersion(v)
		if err != nil {
			writeMessage(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.ExpectedVersion = &version
	}

	current, err := h.service.GetOwner(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if current.Kind != h.kind {
		writeMessage(w, r, http.StatusNotFound, fmt.Sprintf("%s not found", h.kind))
		return
	}

	form, err := h.parseForm(w, r)
	if err != nil {
		writeFormError(w, r, err)
		return
	}
	req.Name = form.Name
	req.Attributes = form.Attributes
	req.Uploads = form.Uploads
	req.Order = form.Order

	owner, err := h.service.UpdateOwner(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.renderOwner(w, r, owner)
}

// Delete removes an owner and every image no other owner references
func (h *OwnerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	owner, err := h.service.GetOwner(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if owner.Kind != h.kind {
		writeMessage(w, r, http.StatusNotFound, fmt.Sprintf("%s not found", h.kind))
		return
	}
	if err := h.service.DeleteOwner(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OwnerHandler) renderOwner(w http.ResponseWriter, r *http.Request, owner *simpleasset.Owner) {
	assets, err := h.service.GetAssets(r.Context(), owner.AssetIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(owner.Version, 10)))
	render.JSON(w, r, toOwnerResponse(owner, assets, h.urlPrefix))
}

// parseForm reads a multipart body (files under "images") or, when no files
// are sent, a JSON body with the same fields.
func (h *OwnerHandler) parseForm(w http.ResponseWriter, r *http.Request) (*ownerForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return h.parseMultipart(w, r)
	case "application/json":
		var body ownerJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return &ownerForm{Name: body.Name, Attributes: body.Attributes, Order: body.Order}, nil
	case "":
		return &ownerForm{}, nil
	}
	return nil, fmt.Errorf("unsupported content type %q", mediaType)
}

// parseMultipart bounds the body by the upload limits and rejects oversized
// batches from the part headers before any file is opened.
func (h *OwnerHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*ownerForm, error) {
	maxBody := int64(h.limits.MaxFiles)*h.limits.MaxFileSize + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(h.maxUploadMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	form := &ownerForm{}
	values := r.MultipartForm.Value

	if v, ok := values["name"]; ok && len(v) > 0 {
		name := v[0]
		form.Name = &name
	}
	if v, ok := values["attributes"]; ok && len(v) > 0 && v[0] != "" {
		if err := json.Unmarshal([]byte(v[0]), &form.Attributes); err != nil {
			return nil, fmt.Errorf("invalid attributes: %w", err)
		}
	}
	if v, ok := values["order"]; ok && len(v) > 0 && v[0] != "" {
		if err := json.Unmarshal([]byte(v[0]), &form.Order); err != nil {
			return nil, fmt.Errorf("invalid order: %w", err)
		}
	}

	files := r.MultipartForm.File["images"]
	if len(files) > h.limits.MaxFiles {
		return nil, &simpleasset.ValidationError{
			Reason: fmt.Sprintf("%d files exceed the limit of %d", len(files), h.limits.MaxFiles),
			Err:    simpleasset.ErrTooManyFiles,
		}
	}
	for _, fh := range files {
		if fh.Size > h.limits.MaxFileSize {
			return nil, &simpleasset.ValidationError{
				FileName: fh.Filename,
				Reason:   fmt.Sprintf("%d bytes exceed the limit of %d", fh.Size, h.limits.MaxFileSize),
				Err:      simpleasset.ErrFileTooLarge,
			}
		}
	}

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		form.Uploads = append(form.Uploads, simpleasset.Upload{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return form, nil
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeMessage(w, r, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

// parseVersion accepts `3`, `"3"` and `W/"3"`
func parseVersion(v string) (int64, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
	v = strings.Trim(v, `"`)
	version, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid If-Match version %q", v)
	}
	return version, nil
}
