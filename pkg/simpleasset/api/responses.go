package api

import (
	"strings"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// ImageResponse describes one stored image with URLs for both renditions
type ImageResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	FileName     string    `json:"file_name"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}

// OwnerResponse is an owner with its images in canonical order
type OwnerResponse struct {
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Images     []ImageResponse        `json:"images"`
	Version    int64                  `json:"version"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func blobURL(prefix, key string) string {
	return strings.TrimRight(prefix, "/") + "/" + key
}

func toImageResponse(a *simpleasset.Asset, urlPrefix string) ImageResponse {
	return ImageResponse{
		ID:           a.ID.String(),
		URL:          blobURL(urlPrefix, a.OriginalKey),
		ThumbnailURL: blobURL(urlPrefix, a.DerivedKey),
		FileName:     a.FileName,
		MimeType:     a.MimeType,
		SizeBytes:    a.SizeBytes,
		Width:        a.Width,
		Height:       a.Height,
		CreatedAt:    a.CreatedAt,
	}
}

func toOwnerResponse(o *simpleasset.Owner, assets []*simpleasset.Asset, urlPrefix string) OwnerResponse {
	images := make([]ImageResponse, 0, len(assets))
	for _, a := range assets {
		images = append(images, toImageResponse(a, urlPrefix))
	}
	return OwnerResponse{
		ID:         o.ID.String(),
		Kind:       string(o.Kind),
		Name:       o.Name,
		Attributes: o.Attributes,
		Images:     images,
		Version:    o.Version,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}
