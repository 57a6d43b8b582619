package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage 去掉不可打印字符，防止日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\n' || r == '\r' {
			sb.WriteRune(' ')
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogName 用户上传的文件名，截断到 100 字符
func SanitizeLogName(name string) string {
	if r := []rune(name); len(r) > 100 {
		name = string(r[:100]) + "..."
	}
	return SanitizeLogMessage(name)
}
