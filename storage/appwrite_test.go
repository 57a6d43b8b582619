package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAppwrite 内存版 Appwrite Storage 文件接口
type fakeAppwrite struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  bool
}

func (f *fakeAppwrite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Appwrite-Project") != "proj" || r.Header.Get("X-Appwrite-Key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(appwriteError{Message: "missing scope", Code: 401, Type: "general_unauthorized_scope"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	const prefix = "/v1/storage/buckets/menus"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == prefix:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"$id":"menus"}`))

	case r.Method == http.MethodPost && r.URL.Path == prefix+"/files":
		id := r.FormValue("fileId")
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if _, exists := f.files[id]; exists {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(appwriteError{Message: "file already exists", Code: 409, Type: "storage_file_already_exists"})
			return
		}
		f.files[id] = data
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(appwriteFile{ID: id, BucketID: "menus", Size: int64(len(data))})

	case strings.HasPrefix(r.URL.Path, prefix+"/files/"):
		id := strings.TrimPrefix(r.URL.Path, prefix+"/files/")
		data, exists := f.files[id]
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(appwriteError{Message: "file not found", Code: 404, Type: "storage_file_not_found"})
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.files, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(appwriteFile{ID: id, BucketID: "menus", MimeType: "image/png", Size: int64(len(data))})

	case strings.HasPrefix(r.URL.Path, "/v1/storage/buckets/"):
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(appwriteError{Message: "bucket not found", Code: 404, Type: "storage_bucket_not_found"})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestAppwrite(t *testing.T) (*AppwriteStorage, *fakeAppwrite) {
	t.Helper()
	fake := &fakeAppwrite{files: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewAppwriteStorage(AppwriteSettings{
		Endpoint:  srv.URL + "/v1",
		ProjectID: "proj",
		APIKey:    "secret",
		BucketID:  "menus",
	}, srv.Client())
	require.NoError(t, err)
	return s, fake
}

func TestAppwrite_UploadLifecycle(t *testing.T) {
	s, fake := newTestAppwrite(t)
	ctx := context.Background()
	key := "restaurants/7/menus/2026/10/abc-dinner.png"
	file := &UploadFile{Data: []byte("png-bytes"), OriginalName: "dinner.png", MimeType: "image/png", Size: 9}

	res, err := s.Upload(ctx, key, file)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, FileID(key), res.Metadata["file_id"])
	assert.Equal(t, s.GetURL(key), res.URL)

	// 覆盖写入
	_, err = s.Upload(ctx, key, &UploadFile{Data: []byte("new"), OriginalName: "dinner.png", MimeType: "image/png", Size: 3})
	require.NoError(t, err)
	fake.mu.Lock()
	assert.Equal(t, []byte("new"), fake.files[FileID(key)])
	fake.mu.Unlock()

	meta, err := s.GetMetadata(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "3", meta["size"])

	require.NoError(t, s.Delete(ctx, key))
	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// 删除不存在的文件视为成功
	assert.NoError(t, s.Delete(ctx, key))
	assert.NoError(t, s.Health(ctx))
}

func TestAppwrite_TransportErrors(t *testing.T) {
	s, fake := newTestAppwrite(t)
	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()
	ctx := context.Background()

	_, err := s.Upload(ctx, "a.png", &UploadFile{Data: []byte("x"), OriginalName: "a.png", Size: 1})
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	err = s.Health(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAppwrite_MissingBucketIsConfigurationError(t *testing.T) {
	s, _ := newTestAppwrite(t)
	s.bucketID = "dishes"
	ctx := context.Background()

	err := s.Delete(ctx, "a.png")
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.Contains(t, err.Error(), "bucket not found")

	meta, err := s.GetMetadata(ctx, "a.png")
	require.Error(t, err)
	assert.Nil(t, meta)
	assert.True(t, IsConfiguration(err))

	_, err = s.Upload(ctx, "a.png", &UploadFile{Data: []byte("x"), OriginalName: "a.png", Size: 1})
	assert.True(t, IsConfiguration(err))

	assert.True(t, IsConfiguration(s.Health(ctx)))
}

func TestAppwrite_Unauthorized(t *testing.T) {
	s, _ := newTestAppwrite(t)
	s.apiKey = "wrong"

	err := s.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing scope")
}

func TestFileID(t *testing.T) {
	assert.Equal(t, "logo.png", FileID("logo.png"))

	id := FileID("restaurants/42/logos/2026/10/0123456789abcdef-logo.png")
	assert.Len(t, id, appwriteMaxIDLength)
	assert.True(t, isAppwriteID(id))
	assert.Equal(t, id, FileID("restaurants/42/logos/2026/10/0123456789abcdef-logo.png"))
	assert.NotEqual(t, id, FileID("restaurants/43/logos/2026/10/0123456789abcdef-logo.png"))

	assert.False(t, isAppwriteID("_leading"))
	assert.False(t, isAppwriteID(strings.Repeat("a", 37)))
}
