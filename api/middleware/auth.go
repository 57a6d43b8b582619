package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anoixa/menu-storage/api/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextSubjectKey = "subject"
	ContextRoleKey    = "role"

	RoleAdmin = "admin"
)

// Claims 管理接口使用的 JWT claims
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth 校验 Bearer token（HS256），将 subject 与 role 写入上下文
// secret 为空时拒绝所有请求
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			common.RespondErrorAbort(c, http.StatusServiceUnavailable, "Admin API is disabled: no JWT secret configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "No Authorization request header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "Authorization field format error")
			return
		}

		claims, err := ParseToken(key, token)
		if err != nil {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}
		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// ParseToken 解析并校验 HS256 token
func ParseToken(key []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// SignToken 签发 token，供 CLI 与测试使用
func SignToken(key []byte, claims Claims) (string, error) {
	if len(key) == 0 {
		return "", errors.New("JWT secret is not initialized")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
