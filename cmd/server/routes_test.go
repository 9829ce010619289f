package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/presets"
)

func TestMountRoutes(t *testing.T) {
	svc := presets.NewTesting(t)
	r := chi.NewRouter()
	mountRoutes(r, svc, Config{UploadsPrefix: "/uploads", JWTSecret: "secret"}, simpleasset.Limits{}, true)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list products", http.MethodGet, "/api/v1/products/", http.StatusOK},
		{"list content blocks", http.MethodGet, "/api/v1/content-blocks/", http.StatusOK},
		{"create requires token", http.MethodPost, "/api/v1/events/", http.StatusUnauthorized},
		{"missing blob", http.MethodGet, "/uploads/missing.png", http.StatusNotFound},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMountRoutesWithoutMetrics(t *testing.T) {
	r := chi.NewRouter()
	mountRoutes(r, presets.NewTesting(t), Config{}, simpleasset.Limits{}, false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
