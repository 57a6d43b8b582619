package utils

import (
	"context"
	"errors"
)

// IsContextCanceled 检查错误是否是由于调用方取消导致的
// 超时不算取消：超时属于传输失败，可以走备用提供者
func IsContextCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled)
}

// CallerGone 调用方上下文已取消，此时不再重试备用提供者
func CallerGone(ctx context.Context) bool {
	return ctx != nil && IsContextCanceled(ctx.Err())
}
