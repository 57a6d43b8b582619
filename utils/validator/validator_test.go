package validator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/anoixa/menu-storage/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func menuConstraints() storage.UploadConstraints {
	return storage.UploadConstraints{
		MaxFileSize:       1024,
		AllowedMimeTypes:  []string{"image/png", "image/jpeg", "application/pdf"},
		AllowedExtensions: []string{".png", "jpg", ".PDF"},
	}
}

func file(name, mime string, data []byte) *storage.UploadFile {
	return &storage.UploadFile{Data: data, OriginalName: name, MimeType: mime, Size: int64(len(data))}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		file     *storage.UploadFile
		wantErr  error
		wantCode string
	}{
		{"valid png", file("logo.png", "image/png", pngHeader), nil, ""},
		{"uppercase extension", file("MENU.PDF", "application/pdf", []byte("%PDF-1.4")), nil, ""},
		{"mime with params", file("logo.png", "Image/PNG; charset=binary", pngHeader), nil, ""},
		{"too large", file("big.png", "image/png", bytes.Repeat([]byte{1}, 1025)), ErrFileTooLarge, CodeFileTooLarge},
		{"bad mime", file("script.png", "application/x-sh", pngHeader), ErrUnsupportedMimeType, CodeUnsupportedMimeType},
		{"bad extension", file("logo.exe", "image/png", pngHeader), ErrUnsupportedExtension, CodeUnsupportedExtension},
		{"no extension", file("logo", "image/png", pngHeader), ErrUnsupportedExtension, CodeUnsupportedExtension},
		{"empty", file("logo.png", "image/png", nil), ErrInvalidFile, CodeInvalidFile},
		{"nil", nil, ErrInvalidFile, CodeInvalidFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.file, menuConstraints())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, storage.KindValidation, storage.KindOf(err))
			assert.Equal(t, tt.wantCode, storage.CodeOf(err))
		})
	}
}

// 第一个失败的检查短路后续检查
func TestValidate_ShortCircuit(t *testing.T) {
	f := file("huge.exe", "application/x-sh", bytes.Repeat([]byte{1}, 2048))
	err := Validate(f, menuConstraints())
	assert.True(t, errors.Is(err, ErrFileTooLarge))
}

func TestValidate_SizeMismatch(t *testing.T) {
	f := file("logo.png", "image/png", pngHeader)
	f.Size = 1
	err := Validate(f, menuConstraints())
	assert.True(t, errors.Is(err, ErrInvalidFile))
}

func TestValidate_EmptyAllowListsAreUnrestricted(t *testing.T) {
	err := Validate(file("anything.bin", "application/octet-stream", []byte{1, 2, 3}), storage.UploadConstraints{})
	assert.NoError(t, err)
}

func TestMimeAllowed_Wildcard(t *testing.T) {
	assert.True(t, MimeAllowed("image/webp", []string{"image/*"}))
	assert.False(t, MimeAllowed("video/mp4", []string{"image/*"}))
	assert.False(t, MimeAllowed("", []string{"image/*"}))
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", DetectMimeType(pngHeader, "x.bin"))
	assert.Equal(t, "image/jpeg", DetectMimeType([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}, "photo"))
	assert.Equal(t, "application/pdf", DetectMimeType([]byte("%PDF-1.7\n"), "menu"))
	assert.Equal(t, "text/csv", DetectMimeType([]byte("dish,price\nsoup,4\n"), "prices.csv"))
}
