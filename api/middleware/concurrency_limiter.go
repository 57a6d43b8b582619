package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/anoixa/menu-storage/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// UploadLimiter 限制同时处理的上传请求数，上传请求会把整个文件读入内存
type UploadLimiter struct {
	sem  *semaphore.Weighted
	wait time.Duration
}

// NewUploadLimiter max 为并发上限，wait 为排队等待的最长时间，0 表示不排队
func NewUploadLimiter(max int64, wait time.Duration) *UploadLimiter {
	if max <= 0 {
		max = 16
	}
	return &UploadLimiter{
		sem:  semaphore.NewWeighted(max),
		wait: wait,
	}
}

// Middleware 返回 Gin 中间件
func (l *UploadLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.acquire(c.Request.Context()) {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(l.wait)))
			common.RespondErrorAbort(c, http.StatusServiceUnavailable, "Too many uploads in progress, please try again later")
			return
		}
		defer l.sem.Release(1)

		c.Next()
	}
}

func (l *UploadLimiter) acquire(ctx context.Context) bool {
	if l.wait <= 0 {
		return l.sem.TryAcquire(1)
	}
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	return l.sem.Acquire(ctx, 1) == nil
}

func retryAfterSeconds(wait time.Duration) int {
	if s := int(wait.Seconds()); s > 1 {
		return s
	}
	return 1
}
