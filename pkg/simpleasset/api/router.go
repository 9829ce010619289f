package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Options configures the HTTP handlers
type Options struct {
	// Auth guards mutations; nil leaves them open
	Auth *jwtauth.JWTAuth
	// URLPrefix is prepended to blob keys in image URLs (default: /uploads)
	URLPrefix string
	// MaxUploadMemory caps multipart parts held in memory (default: 32 MiB)
	MaxUploadMemory int64
	// Limits rejects oversized bodies before any file is read; zero fields
	// take the service defaults
	Limits simpleasset.Limits
}

func (o Options) urlPrefix() string {
	if o.URLPrefix == "" {
		return "/uploads"
	}
	return o.URLPrefix
}

func (o Options) maxUploadMemory() int64 {
	if o.MaxUploadMemory <= 0 {
		return defaultMaxUploadMemory
	}
	return o.MaxUploadMemory
}

func (o Options) limits() simpleasset.Limits {
	l := o.Limits
	d := simpleasset.DefaultLimits()
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = d.MaxFileSize
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = d.MaxFiles
	}
	return l
}

// KindPaths maps owner kinds onto their collection path
var KindPaths = map[simpleasset.OwnerKind]string{
	simpleasset.OwnerKindProduct:      "/products",
	simpleasset.OwnerKindEvent:        "/events",
	simpleasset.OwnerKindContentBlock: "/content-blocks",
}

// Routes returns the versioned API: one collection per owner kind plus /images
func Routes(service simpleasset.Service, opts Options) chi.Router {
	r := chi.NewRouter()
	for kind, path := range KindPaths {
		r.Mount(path, NewOwnerHandler(service, kind, opts).Routes())
	}
	r.Mount("/images", NewImagesHandler(service, opts).Routes())
	return r
}
