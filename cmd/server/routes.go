package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/api"
)

func mountRoutes(r chi.Router, svc simpleasset.Service, cfg Config, limits simpleasset.Limits, metrics bool) {
	opts := api.Options{
		URLPrefix:       cfg.UploadsPrefix,
		MaxUploadMemory: cfg.MaxUploadMemory,
		Limits:          limits,
	}
	if cfg.JWTSecret != "" {
		opts.Auth = api.NewJWTAuth(cfg.JWTSecret)
	}

	r.Mount("/api/v1", api.Routes(svc, opts))
	r.Mount("/uploads", api.NewUploadsHandler(svc).Routes())
	if metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
}
