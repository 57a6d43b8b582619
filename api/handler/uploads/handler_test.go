package uploads

import (
	"bytes"
	"context"
	"mime/multipart"
	"testing"

	"github.com/anoixa/menu-storage/storage"
	"github.com/anoixa/menu-storage/utils/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingService 记录收到的批量文件，逐个返回成功
type recordingService struct {
	Service
	got []*storage.UploadFile
}

func (s *recordingService) UploadMultiple(_ context.Context, files []*storage.UploadFile) []*storage.UploadResult {
	s.got = files
	results := make([]*storage.UploadResult, len(files))
	for i, f := range files {
		results[i] = &storage.UploadResult{
			Success:      true,
			Key:          f.Folder + "/" + f.OriginalName,
			OriginalName: f.OriginalName,
			Provider:     storage.ProviderLocal,
		}
	}
	return results
}

func formFiles(t *testing.T, names ...string) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n" + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

func TestUploadBatch_UnreadablePartRecordedAsFailure(t *testing.T) {
	readable := formFiles(t, "starters.png", "mains.png")
	headers := []*multipart.FileHeader{
		readable[0],
		{Filename: "broken.png"},
		readable[1],
	}

	svc := &recordingService{}
	h := NewHandler(svc)
	results := h.uploadBatch(context.Background(), headers, "menus")

	require.Len(t, results, 3)
	require.Len(t, svc.got, 2)
	assert.Equal(t, "menus", svc.got[0].Folder)

	assert.True(t, results[0].Success)
	assert.Equal(t, "starters.png", results[0].OriginalName)

	assert.False(t, results[1].Success)
	assert.Equal(t, "broken.png", results[1].OriginalName)
	assert.Equal(t, storage.KindValidation, results[1].Kind)
	assert.Equal(t, validator.CodeInvalidFile, results[1].Code)
	assert.Contains(t, results[1].Error, "broken.png")

	assert.True(t, results[2].Success)
	assert.Equal(t, "mains.png", results[2].OriginalName)

	summary := storage.Summarize(results)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
}

func TestUploadBatch_AllUnreadableSkipsUpload(t *testing.T) {
	svc := &recordingService{}
	h := NewHandler(svc)

	results := h.uploadBatch(context.Background(), []*multipart.FileHeader{{Filename: "a.png"}}, "")
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Nil(t, svc.got)
}
