package simpleasset

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

const (
	DefaultMaxFileSize = 50 << 20
	DefaultMaxFiles    = 30
)

// DefaultAllowedExtensions lists the image extensions accepted by default
var DefaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Limits bounds what a single ingestion request may contain
type Limits struct {
	MaxFileSize       int64
	MaxFiles          int
	AllowedExtensions []string
}

// DefaultLimits returns 50 MiB per file, 30 files per request and the
// common web image extensions
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:       DefaultMaxFileSize,
		MaxFiles:          DefaultMaxFiles,
		AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = d.MaxFileSize
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = d.MaxFiles
	}
	if len(l.AllowedExtensions) == 0 {
		l.AllowedExtensions = d.AllowedExtensions
	}
	return l
}

// Validator checks uploads before anything is written
type Validator struct {
	limits  Limits
	allowed map[string]struct{}
}

// NewValidator creates a validator; zero limit fields take their defaults
func NewValidator(limits Limits) *Validator {
	limits = limits.withDefaults()
	allowed := make(map[string]struct{}, len(limits.AllowedExtensions))
	for _, ext := range limits.AllowedExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Validator{limits: limits, allowed: allowed}
}

// Limits returns the effective limits
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate checks a single upload: declared media type, extension, size, and
// that the content itself looks like an image
func (v *Validator) Validate(u Upload) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(u.MimeType)), "image/") {
		return &ValidationError{FileName: u.FileName, Reason: fmt.Sprintf("media type %q is not an image", u.MimeType), Err: ErrUnsupportedType}
	}
	ext := objectkey.Ext(u.FileName)
	if _, ok := v.allowed[ext]; !ok {
		return &ValidationError{FileName: u.FileName, Reason: fmt.Sprintf("extension %q is not allowed", ext), Err: ErrUnsupportedType}
	}
	if len(u.Data) == 0 {
		return &ValidationError{FileName: u.FileName, Reason: "file is empty", Err: ErrEmptyFile}
	}
	if int64(len(u.Data)) > v.limits.MaxFileSize {
		return &ValidationError{FileName: u.FileName, Reason: fmt.Sprintf("size %d exceeds limit of %d bytes", len(u.Data), v.limits.MaxFileSize), Err: ErrFileTooLarge}
	}
	if sniffed := mimetype.Detect(u.Data); !strings.HasPrefix(sniffed.String(), "image/") {
		return &ValidationError{FileName: u.FileName, Reason: fmt.Sprintf("content is %s, not an image", sniffed.String()), Err: ErrUnsupportedType}
	}
	return nil
}

// ValidateBatch checks the batch as a whole and then every upload in it.
// The first failure rejects the whole batch.
func (v *Validator) ValidateBatch(uploads []Upload) error {
	if len(uploads) > v.limits.MaxFiles {
		return &ValidationError{Reason: fmt.Sprintf("%d files exceeds limit of %d", len(uploads), v.limits.MaxFiles), Err: ErrTooManyFiles}
	}
	seen := make(map[string]struct{}, len(uploads))
	for _, u := range uploads {
		if _, dup := seen[u.FileName]; dup {
			return &ValidationError{FileName: u.FileName, Reason: "file name appears more than once", Err: ErrDuplicateFileName}
		}
		seen[u.FileName] = struct{}{}
		if err := v.Validate(u); err != nil {
			return err
		}
	}
	return nil
}
