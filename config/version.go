package config

import "fmt"

// 构建时通过 -ldflags "-X" 注入
var (
	Version    string = "dev"
	CommitHash string = ""
	BuildTime  string = ""
)

// IsProduction 生产环境：Version 为 "release" 且 CommitHash 不为空
func IsProduction() bool {
	return Version == "release" && CommitHash != ""
}

// IsDevelopment 判断是否为开发环境
func IsDevelopment() bool {
	return Version == "dev"
}

// VersionString 用于日志和 /health 的版本描述
func VersionString() string {
	if CommitHash == "" {
		return Version
	}
	if BuildTime == "" {
		return fmt.Sprintf("%s (%s)", Version, CommitHash)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, CommitHash, BuildTime)
}
