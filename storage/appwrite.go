package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

const appwriteMaxIDLength = 36

// Appwrite 404 响应的错误类型
const (
	appwriteFileNotFound   = "storage_file_not_found"
	appwriteBucketNotFound = "storage_bucket_not_found"
)

// AppwriteStorage Appwrite Storage，走 REST API
type AppwriteStorage struct {
	client    *http.Client
	endpoint  string
	projectID string
	apiKey    string
	bucketID  string
}

var _ Provider = (*AppwriteStorage)(nil)

type appwriteFile struct {
	ID        string `json:"$id"`
	BucketID  string `json:"bucketId"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"sizeOriginal"`
	CreatedAt string `json:"$createdAt"`
	UpdatedAt string `json:"$updatedAt"`
}

type appwriteError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Status  int    `json:"-"`
}

func (e *appwriteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("appwrite responded %d (%s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("appwrite responded %d", e.Status)
}

func newAppwriteProvider(_ context.Context, cfg *ProviderConfig) (Provider, error) {
	settings, ok := cfg.Settings.(*AppwriteSettings)
	if !ok {
		return nil, Configuration(ProviderAppwrite, "build", fmt.Errorf("unexpected settings type %T", cfg.Settings))
	}
	return NewAppwriteStorage(*settings, nil)
}

// NewAppwriteStorage 创建 Appwrite 存储提供者，client 为空时按 Timeout 新建
func NewAppwriteStorage(settings AppwriteSettings, client *http.Client) (*AppwriteStorage, error) {
	if client == nil {
		client = &http.Client{Timeout: settings.Timeout}
	}
	return &AppwriteStorage{
		client:    client,
		endpoint:  strings.TrimRight(settings.Endpoint, "/"),
		projectID: settings.ProjectID,
		apiKey:    settings.APIKey,
		bucketID:  settings.BucketID,
	}, nil
}

// FileID key 到 Appwrite fileId 的映射
// 合法的 key 原样使用，否则取 sha256 前缀（带 key 的目录层级一般都会走这里）
func FileID(key string) string {
	if isAppwriteID(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "f" + hex.EncodeToString(sum[:])[:appwriteMaxIDLength-1]
}

func isAppwriteID(id string) bool {
	if id == "" || len(id) > appwriteMaxIDLength {
		return false
	}
	for i, r := range id {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if i == 0 && !alnum {
			return false
		}
		if !alnum && r != '.' && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func (s *AppwriteStorage) filesURL() string {
	return fmt.Sprintf("%s/storage/buckets/%s/files", s.endpoint, url.PathEscape(s.bucketID))
}

func (s *AppwriteStorage) fileURL(key string) string {
	return s.filesURL() + "/" + url.PathEscape(FileID(key))
}

func (s *AppwriteStorage) do(ctx context.Context, method, target, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Appwrite-Project", s.projectID)
	req.Header.Set("X-Appwrite-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.client.Do(req)
}

// readError 读取错误响应体，响应体不是 JSON 时只保留状态码
func readError(resp *http.Response) *appwriteError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr appwriteError
	if json.Unmarshal(data, &apiErr) != nil {
		apiErr = appwriteError{}
	}
	apiErr.Status = resp.StatusCode
	return &apiErr
}

// appwriteFailure bucket 不存在说明 bucket_id 配置有误，归为配置错误
func appwriteFailure(op string, err error) error {
	var apiErr *appwriteError
	if errors.As(err, &apiErr) && apiErr.Type == appwriteBucketNotFound {
		return Configuration(ProviderAppwrite, op, err)
	}
	return Transport(ProviderAppwrite, op, err)
}

func (s *AppwriteStorage) create(ctx context.Context, fileID string, file *UploadFile) (*appwriteFile, int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("fileId", fileID); err != nil {
		return nil, 0, err
	}

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.OriginalName)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, 0, err
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}

	resp, err := s.do(ctx, http.MethodPost, s.filesURL(), w.FormDataContentType(), &buf)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, readError(resp)
	}
	var created appwriteFile
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode appwrite response: %w", err)
	}
	return &created, resp.StatusCode, nil
}

// Upload 创建文件；fileId 冲突时先删除再重建，保持覆盖语义
func (s *AppwriteStorage) Upload(ctx context.Context, key string, file *UploadFile) (*UploadResult, error) {
	fileID := FileID(key)

	created, status, err := s.create(ctx, fileID, file)
	if status == http.StatusConflict {
		if derr := s.Delete(ctx, key); derr != nil {
			return nil, derr
		}
		created, _, err = s.create(ctx, fileID, file)
	}
	if err != nil {
		return nil, appwriteFailure("upload", fmt.Errorf("failed to upload '%s': %w", key, err))
	}

	return uploaded(ProviderAppwrite, key, s.GetURL(key), file, map[string]string{
		"file_id":   created.ID,
		"bucket_id": created.BucketID,
		"signature": created.Signature,
	}), nil
}

// Delete 删除文件，文件不存在视为成功
func (s *AppwriteStorage) Delete(ctx context.Context, key string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.fileURL(key), "", nil)
	if err != nil {
		return Transport(ProviderAppwrite, "delete", fmt.Errorf("failed to delete '%s': %w", key, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := readError(resp)
	if apiErr.Type == appwriteFileNotFound {
		return nil
	}
	return appwriteFailure("delete", fmt.Errorf("failed to delete '%s': %w", key, apiErr))
}

// GetURL 文件查看地址
func (s *AppwriteStorage) GetURL(key string) string {
	return s.fileURL(key) + "/view?project=" + url.QueryEscape(s.projectID)
}

// Exists 检查文件是否存在
func (s *AppwriteStorage) Exists(ctx context.Context, key string) (bool, error) {
	meta, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// GetMetadata 读取文件信息，不存在返回 nil
func (s *AppwriteStorage) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	resp, err := s.do(ctx, http.MethodGet, s.fileURL(key), "", nil)
	if err != nil {
		return nil, Transport(ProviderAppwrite, "metadata", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := readError(resp)
		if apiErr.Type == appwriteFileNotFound {
			return nil, nil
		}
		return nil, appwriteFailure("metadata", apiErr)
	}

	var f appwriteFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, Transport(ProviderAppwrite, "metadata", fmt.Errorf("failed to decode appwrite response: %w", err))
	}
	return map[string]string{
		"file_id":       f.ID,
		"name":          f.Name,
		"content_type":  f.MimeType,
		"size":          strconv.FormatInt(f.Size, 10),
		"signature":     f.Signature,
		"last_modified": f.UpdatedAt,
	}, nil
}

// Health 读取 bucket 信息
func (s *AppwriteStorage) Health(ctx context.Context) error {
	target := fmt.Sprintf("%s/storage/buckets/%s", s.endpoint, url.PathEscape(s.bucketID))
	resp, err := s.do(ctx, http.MethodGet, target, "", nil)
	if err != nil {
		return Transport(ProviderAppwrite, "health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return appwriteFailure("health", readError(resp))
	}
	return nil
}

// Type 返回存储类型
func (s *AppwriteStorage) Type() ProviderType {
	return ProviderAppwrite
}

func escapeQuotes(s string) string {
	if s == "" {
		return "file"
	}
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
