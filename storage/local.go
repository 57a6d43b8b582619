package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	absBasePath string
	baseURL     string
}

var _ Provider = (*LocalStorage)(nil)

func newLocalProvider(_ context.Context, cfg *ProviderConfig) (Provider, error) {
	settings, ok := cfg.Settings.(*LocalSettings)
	if !ok {
		return nil, Configuration(ProviderLocal, "build", fmt.Errorf("unexpected settings type %T", cfg.Settings))
	}
	return NewLocalStorage(*settings)
}

// NewLocalStorage 创建本地存储提供者，目录不存在时创建并做写入测试
func NewLocalStorage(settings LocalSettings) (*LocalStorage, error) {
	absPath, err := filepath.Abs(settings.Directory)
	if err != nil {
		return nil, Configuration(ProviderLocal, "build", fmt.Errorf("failed to get absolute path for '%s': %w", settings.Directory, err))
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, Transport(ProviderLocal, "build", fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err))
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, Transport(ProviderLocal, "build", fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err))
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = "/uploads"
	}

	return &LocalStorage{
		absBasePath: absPath + string(os.PathSeparator),
		baseURL:     baseURL,
	}, nil
}

// resolve 将 key 转换为磁盘路径并防止目录遍历
func (s *LocalStorage) resolve(op, key string) (string, error) {
	if !IsValidStoragePath(key) {
		return "", NewError(KindValidation, ProviderLocal, op, fmt.Errorf("invalid storage path: %s", key)).WithCode("INVALID_KEY")
	}

	fullPath := filepath.Join(s.absBasePath, key)
	if !strings.HasPrefix(fullPath, s.absBasePath) {
		return "", NewError(KindValidation, ProviderLocal, op, fmt.Errorf("invalid file path, potential directory traversal: %s", key)).WithCode("INVALID_KEY")
	}
	return fullPath, nil
}

// Upload 写入本地磁盘，先写临时文件再原子重命名
// key 已存在时覆盖
func (s *LocalStorage) Upload(ctx context.Context, key string, file *UploadFile) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, Transport(ProviderLocal, "upload", err)
	}

	dstPath, err := s.resolve("upload", key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, Transport(ProviderLocal, "upload", fmt.Errorf("failed to create directory for '%s': %w", key, err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".upload-*")
	if err != nil {
		return nil, Transport(ProviderLocal, "upload", fmt.Errorf("failed to create temp file for '%s': %w", key, err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(file.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, Transport(ProviderLocal, "upload", fmt.Errorf("failed to write file content to '%s': %w", key, err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, Transport(ProviderLocal, "upload", fmt.Errorf("failed to flush '%s': %w", key, err))
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return nil, Transport(ProviderLocal, "upload", err)
	}
	if err := os.Rename(tmpName, dstPath); err != nil {
		_ = os.Remove(tmpName)
		return nil, Transport(ProviderLocal, "upload", fmt.Errorf("failed to move file into place '%s': %w", key, err))
	}

	return uploaded(ProviderLocal, key, s.GetURL(key), file, map[string]string{
		"path": dstPath,
	}), nil
}

// Delete 从本地存储删除文件，文件不存在视为成功
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve("delete", key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return Transport(ProviderLocal, "delete", fmt.Errorf("failed to delete local file '%s': %w", fullPath, err))
	}
	return nil
}

// GetURL 基础地址 + key
func (s *LocalStorage) GetURL(key string) string {
	return joinURL(s.baseURL, key)
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.resolve("exists", key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, Transport(ProviderLocal, "exists", err)
	}
	return !info.IsDir(), nil
}

// GetMetadata 返回大小、修改时间和探测到的 MIME 类型
func (s *LocalStorage) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	fullPath, err := s.resolve("metadata", key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, Transport(ProviderLocal, "metadata", err)
	}
	if info.IsDir() {
		return nil, nil
	}

	meta := map[string]string{
		"size":          strconv.FormatInt(info.Size(), 10),
		"last_modified": info.ModTime().UTC().Format(time.RFC3339),
	}
	if mt, err := mimetype.DetectFile(fullPath); err == nil {
		meta["content_type"] = mt.String()
	}
	return meta, nil
}

// Health 检查存储目录可读
func (s *LocalStorage) Health(ctx context.Context) error {
	if _, err := os.ReadDir(s.absBasePath); err != nil {
		return Transport(ProviderLocal, "health", err)
	}
	return nil
}

// Type 返回存储类型
func (s *LocalStorage) Type() ProviderType {
	return ProviderLocal
}

// BasePath 返回存储的基础路径
func (s *LocalStorage) BasePath() string {
	return s.absBasePath
}

// IsValidStoragePath 校验存储路径是否合法
func IsValidStoragePath(path string) bool {
	if path == "" {
		return false
	}

	// 不允许绝对路径
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return false
	}

	// 防止目录遍历
	if strings.Contains(path, "..") {
		return false
	}

	// 只允许安全字符
	for _, r := range path {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '-' && r != '_' && r != '.' && r != '/' {
			return false
		}
	}

	return true
}
