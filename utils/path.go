package utils

import (
	"os"
	"path/filepath"
)

// GetExecutableDir 获取可执行文件所在目录
func GetExecutableDir() string {
	exePath, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exePath)
}

// GetDataDir 数据目录（可执行文件所在目录下的 data）
func GetDataDir() string {
	return filepath.Join(GetExecutableDir(), "data")
}

// DefaultUploadDir 本地提供者的默认存储目录
func DefaultUploadDir() string {
	return filepath.Join(GetDataDir(), "uploads")
}
