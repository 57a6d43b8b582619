package validator

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anoixa/menu-storage/storage"
	"github.com/anoixa/menu-storage/utils/format"
	"github.com/gabriel-vasile/mimetype"
)

// 错误码，随 *storage.Error 返回给调用方
const (
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnsupportedMimeType  = "UNSUPPORTED_MIME_TYPE"
	CodeUnsupportedExtension = "UNSUPPORTED_EXTENSION"
	CodeInvalidFile          = "INVALID_FILE"
)

var (
	ErrFileTooLarge         = errors.New("file too large")
	ErrUnsupportedMimeType  = errors.New("unsupported mime type")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrInvalidFile          = errors.New("invalid file")
)

// Validate 按约束校验文件，遇到第一个失败即返回
// 顺序：文件完整性 -> 大小 -> MIME -> 扩展名；空的允许列表表示不限制
func Validate(file *storage.UploadFile, c storage.UploadConstraints) error {
	if file == nil || len(file.Data) == 0 {
		return invalid(CodeInvalidFile, ErrInvalidFile, "file is empty")
	}
	if file.Size != int64(len(file.Data)) {
		return invalid(CodeInvalidFile, ErrInvalidFile,
			fmt.Sprintf("declared size %d does not match content length %d", file.Size, len(file.Data)))
	}

	if c.MaxFileSize > 0 && file.Size > c.MaxFileSize {
		return invalid(CodeFileTooLarge, ErrFileTooLarge,
			fmt.Sprintf("file size %s exceeds limit %s", format.HumanReadableSize(file.Size), format.HumanReadableSize(c.MaxFileSize)))
	}

	if len(c.AllowedMimeTypes) > 0 && !MimeAllowed(file.MimeType, c.AllowedMimeTypes) {
		return invalid(CodeUnsupportedMimeType, ErrUnsupportedMimeType,
			fmt.Sprintf("mime type '%s' is not allowed", file.MimeType))
	}

	if len(c.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(file.OriginalName))
		if !extensionAllowed(ext, c.AllowedExtensions) {
			return invalid(CodeUnsupportedExtension, ErrUnsupportedExtension,
				fmt.Sprintf("extension '%s' is not allowed", ext))
		}
	}
	return nil
}

func invalid(code string, sentinel error, detail string) error {
	return storage.NewError(storage.KindValidation, "", "validate", fmt.Errorf("%w: %s", sentinel, detail)).WithCode(code)
}

// NormalizeMimeType 去掉参数并转小写：Image/PNG; charset=binary -> image/png
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.Split(mimeType, ";")[0]
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// MimeAllowed 支持 image/* 形式的通配
func MimeAllowed(mimeType string, allowed []string) bool {
	mt := NormalizeMimeType(mimeType)
	if mt == "" {
		return false
	}
	for _, a := range allowed {
		a = NormalizeMimeType(a)
		if a == mt {
			return true
		}
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(mt, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

func extensionAllowed(ext string, allowed []string) bool {
	if ext == "" {
		return false
	}
	for _, a := range storage.NormalizeExtensions(allowed) {
		if a == ext {
			return true
		}
	}
	return false
}

// DetectMimeType 根据内容探测 MIME，内容无法识别时按文件名推断
func DetectMimeType(data []byte, name string) string {
	mt := mimetype.Detect(data)
	if mt.Is("application/octet-stream") || mt.Is("text/plain") {
		if byExt := mimeFromExtension(filepath.Ext(name)); byExt != "" {
			return byExt
		}
	}
	return NormalizeMimeType(mt.String())
}

// mimeFromExtension 仅覆盖内容探测无法区分的文本类格式
func mimeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".svg":
		return "image/svg+xml"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	}
	return ""
}
