package simpleasset_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

func TestValidator_Validate(t *testing.T) {
	v := simpleasset.NewValidator(simpleasset.Limits{MaxFileSize: 1 << 20})
	png := pngBytes(t, 4, 4)

	tests := []struct {
		name    string
		upload  simpleasset.Upload
		wantErr error
	}{
		{name: "valid png", upload: simpleasset.Upload{FileName: "a.png", MimeType: "image/png", Data: png}},
		{name: "upper-case extension", upload: simpleasset.Upload{FileName: "A.PNG", MimeType: "image/png", Data: png}},
		{name: "valid jpeg", upload: simpleasset.Upload{FileName: "a.jpeg", MimeType: "image/jpeg", Data: jpegBytes(t, 4, 4)}},
		{name: "declared type not image", upload: simpleasset.Upload{FileName: "a.png", MimeType: "application/pdf", Data: png}, wantErr: simpleasset.ErrUnsupportedType},
		{name: "extension not allowed", upload: simpleasset.Upload{FileName: "a.bmp", MimeType: "image/bmp", Data: png}, wantErr: simpleasset.ErrUnsupportedType},
		{name: "svg rejected", upload: simpleasset.Upload{FileName: "a.svg", MimeType: "image/svg+xml", Data: []byte("<svg/>")}, wantErr: simpleasset.ErrUnsupportedType},
		{name: "no extension", upload: simpleasset.Upload{FileName: "image", MimeType: "image/png", Data: png}, wantErr: simpleasset.ErrUnsupportedType},
		{name: "content not image", upload: simpleasset.Upload{FileName: "a.png", MimeType: "image/png", Data: []byte("#!/bin/sh\necho hi\n")}, wantErr: simpleasset.ErrUnsupportedType},
		{name: "empty", upload: simpleasset.Upload{FileName: "a.png", MimeType: "image/png"}, wantErr: simpleasset.ErrEmptyFile},
		{name: "too large", upload: simpleasset.Upload{FileName: "a.png", MimeType: "image/png", Data: append(png, bytes.Repeat([]byte{0}, 1<<20)...)}, wantErr: simpleasset.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.upload)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, simpleasset.ErrValidation)

			var verr *simpleasset.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.upload.FileName, verr.FileName)
		})
	}
}

func TestValidator_ValidateBatch(t *testing.T) {
	v := simpleasset.NewValidator(simpleasset.Limits{MaxFiles: 3})
	png := pngBytes(t, 2, 2)
	upload := func(name string) simpleasset.Upload {
		return simpleasset.Upload{FileName: name, MimeType: "image/png", Data: png}
	}

	t.Run("within limit", func(t *testing.T) {
		assert.NoError(t, v.ValidateBatch([]simpleasset.Upload{upload("a.png"), upload("b.png"), upload("c.png")}))
	})

	t.Run("too many files", func(t *testing.T) {
		batch := make([]simpleasset.Upload, 4)
		for i := range batch {
			batch[i] = upload(fmt.Sprintf("%d.png", i))
		}
		assert.ErrorIs(t, v.ValidateBatch(batch), simpleasset.ErrTooManyFiles)
	})

	t.Run("duplicate names", func(t *testing.T) {
		err := v.ValidateBatch([]simpleasset.Upload{upload("a.png"), upload("a.png")})
		assert.ErrorIs(t, err, simpleasset.ErrDuplicateFileName)
	})

	t.Run("one bad item rejects the batch", func(t *testing.T) {
		bad := upload("b.gif")
		bad.MimeType = "text/plain"
		assert.ErrorIs(t, v.ValidateBatch([]simpleasset.Upload{upload("a.png"), bad}), simpleasset.ErrValidation)
	})
}

func TestDefaultLimits(t *testing.T) {
	l := simpleasset.DefaultLimits()
	assert.Equal(t, int64(50<<20), l.MaxFileSize)
	assert.Equal(t, 30, l.MaxFiles)
	assert.ElementsMatch(t, []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}, l.AllowedExtensions)
}
