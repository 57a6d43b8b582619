package generator

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultFolder 未指定业务目录时使用
	DefaultFolder = "uploads"

	maxBaseLength = 64
	maxExtLength  = 10
)

// KeyGenerator 存储 key 生成器
// 格式：<folder>/<yyyy>/<mm>/<token>-<sanitized-base><.ext>
type KeyGenerator struct {
	defaultFolder string
	now           func() time.Time
}

// NewKeyGenerator 创建 key 生成器，defaultFolder 为空时使用 DefaultFolder
func NewKeyGenerator(defaultFolder string) *KeyGenerator {
	folder := sanitizeFolder(defaultFolder)
	if folder == "" {
		folder = DefaultFolder
	}
	return &KeyGenerator{
		defaultFolder: folder,
		now:           time.Now,
	}
}

// WithClock 替换时间源
func (g *KeyGenerator) WithClock(now func() time.Time) *KeyGenerator {
	cp := *g
	cp.now = now
	return &cp
}

// DeriveKey 调用方提供的 key 原样使用，否则在默认目录下生成
func (g *KeyGenerator) DeriveKey(originalName, suppliedKey string) string {
	return g.DeriveScopedKey("", originalName, suppliedKey)
}

// DeriveScopedKey 在业务目录下生成 key，如 restaurants/42/logos
func (g *KeyGenerator) DeriveScopedKey(folder, originalName, suppliedKey string) string {
	if suppliedKey != "" {
		return suppliedKey
	}

	dir := sanitizeFolder(folder)
	if dir == "" {
		dir = g.defaultFolder
	}

	t := g.now().UTC()
	token := strings.ReplaceAll(uuid.NewString(), "-", "")

	ext := sanitizeExt(filepath.Ext(originalName))
	base := sanitizeSegment(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)), maxBaseLength)

	name := token
	if base != "" {
		name = token + "-" + base
	}
	return fmt.Sprintf("%s/%04d/%02d/%s%s", dir, t.Year(), int(t.Month()), name, ext)
}

// sanitizeSegment 只保留小写字母、数字、- 和 _，其他字符折叠为单个 -
func sanitizeSegment(s string, limit int) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(sb.String(), "-")
	if len(out) > limit {
		out = strings.TrimRight(out[:limit], "-")
	}
	return out
}

func sanitizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	var sb strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if out == "" || len(out) > maxExtLength {
		return ""
	}
	return "." + out
}

// sanitizeFolder 逐段清理目录，丢弃空段、. 和 ..
func sanitizeFolder(folder string) string {
	parts := strings.Split(strings.ReplaceAll(folder, "\\", "/"), "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "." || p == ".." {
			continue
		}
		if seg := sanitizeSegment(p, maxBaseLength); seg != "" {
			clean = append(clean, seg)
		}
	}
	return strings.Join(clean, "/")
}
