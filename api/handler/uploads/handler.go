package uploads

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/anoixa/menu-storage/api/common"
	"github.com/anoixa/menu-storage/storage"
	"github.com/anoixa/menu-storage/utils/validator"
	"github.com/gin-gonic/gin"
)

// Service 上传接口依赖的服务
type Service interface {
	Upload(ctx context.Context, file *storage.UploadFile) *storage.UploadResult
	UploadMultiple(ctx context.Context, files []*storage.UploadFile) []*storage.UploadResult
	Delete(ctx context.Context, key string, override storage.ProviderType) *storage.DeleteResult
	GetMetadata(ctx context.Context, key string, override storage.ProviderType) (map[string]string, error)
}

// Handler 文件上传、删除、元数据接口
type Handler struct {
	svc Service
}

// NewHandler 创建处理器
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// BatchResponse 批量上传的响应
type BatchResponse struct {
	Results []*storage.UploadResult `json:"results"`
	storage.BatchSummary
}

// Upload 单文件上传，表单字段 file，可选 key 与 folder
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "A file is required under the 'file' key")
		return
	}

	file, err := readUploadFile(fh)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	file.Key = c.PostForm("key")
	file.Folder = c.PostForm("folder")

	result := h.svc.Upload(c.Request.Context(), file)
	if !result.Success {
		c.JSON(common.StatusFor(result.Kind), common.Response{
			Status: "error",
			Msg:    result.Error,
			Code:   result.Code,
			Data:   result,
		})
		return
	}
	common.RespondSuccess(c, result)
}

// UploadBatch 批量上传，表单字段 files；单个文件失败不影响其他文件
func (h *Handler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid form data")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		common.RespondError(c, http.StatusBadRequest, "At least one file is required under the 'files' key")
		return
	}

	results := h.uploadBatch(c.Request.Context(), headers, c.PostForm("folder"))
	common.RespondSuccess(c, BatchResponse{
		Results:      results,
		BatchSummary: storage.Summarize(results),
	})
}

// uploadBatch 读取失败的文件记为失败结果，其余文件照常上传，结果顺序与表单一致
func (h *Handler) uploadBatch(ctx context.Context, headers []*multipart.FileHeader, folder string) []*storage.UploadResult {
	results := make([]*storage.UploadResult, len(headers))
	files := make([]*storage.UploadFile, 0, len(headers))
	index := make([]int, 0, len(headers))
	for i, fh := range headers {
		f, err := readUploadFile(fh)
		if err != nil {
			results[i] = storage.FailedUpload("", fh.Filename,
				storage.NewError(storage.KindValidation, "", "read", err).WithCode(validator.CodeInvalidFile))
			continue
		}
		f.Folder = folder
		files = append(files, f)
		index = append(index, i)
	}
	if len(files) == 0 {
		return results
	}

	for j, res := range h.svc.UploadMultiple(ctx, files) {
		results[index[j]] = res
	}
	return results
}

// Delete 删除对象，query 参数 key 与可选的 provider
func (h *Handler) Delete(c *gin.Context) {
	override, ok := providerParam(c)
	if !ok {
		return
	}

	result := h.svc.Delete(c.Request.Context(), c.Query("key"), override)
	if !result.Success {
		c.JSON(common.StatusFor(result.Kind), common.Response{
			Status: "error",
			Msg:    result.Error,
			Code:   string(result.Kind),
			Data:   result,
		})
		return
	}
	common.RespondSuccess(c, result)
}

// Metadata 查询对象元数据
func (h *Handler) Metadata(c *gin.Context) {
	override, ok := providerParam(c)
	if !ok {
		return
	}
	key := c.Query("key")
	if key == "" {
		common.RespondError(c, http.StatusBadRequest, "key is required")
		return
	}

	meta, err := h.svc.GetMetadata(c.Request.Context(), key, override)
	if err != nil {
		common.RespondStorageError(c, err)
		return
	}
	if meta == nil {
		common.RespondError(c, http.StatusNotFound, fmt.Sprintf("object '%s' not found", key))
		return
	}
	common.RespondSuccess(c, gin.H{"key": key, "metadata": meta})
}

func providerParam(c *gin.Context) (storage.ProviderType, bool) {
	raw := c.Query("provider")
	if raw == "" {
		return "", true
	}
	t, err := storage.ParseProviderType(raw)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return t, true
}

// readUploadFile 读取表单文件；MIME 以内容探测为准，探测不出时使用客户端声明的类型
func readUploadFile(fh *multipart.FileHeader) (*storage.UploadFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file '%s': %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file '%s': %w", fh.Filename, err)
	}

	mimeType := validator.DetectMimeType(data, fh.Filename)
	if mimeType == "application/octet-stream" {
		if declared := validator.NormalizeMimeType(fh.Header.Get("Content-Type")); declared != "" {
			mimeType = declared
		}
	}

	return &storage.UploadFile{
		Data:         data,
		OriginalName: fh.Filename,
		MimeType:     mimeType,
		Size:         int64(len(data)),
	}, nil
}
