package storage

import (
	"errors"
	"fmt"
)

// ErrorKind 存储层错误分类
type ErrorKind string

const (
	// KindValidation 校验失败，不会重试，也不会发送给提供者
	KindValidation ErrorKind = "VALIDATION_FAILED"
	// KindConfiguration 提供者配置缺失或非法，不重试
	KindConfiguration ErrorKind = "CONFIGURATION_INVALID"
	// KindTransport 网络、鉴权、配额、超时，可通过备用提供者重试
	KindTransport ErrorKind = "TRANSPORT_ERROR"
	// KindNotFound 对象不存在，删除时视为成功
	KindNotFound ErrorKind = "NOT_FOUND"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// Error 存储层统一错误
type Error struct {
	Kind     ErrorKind
	Code     string
	Provider ProviderType
	Op       string
	Err      error
}

// NewError 创建存储错误
func NewError(kind ErrorKind, provider ProviderType, op string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Err: err}
}

// WithCode 附加错误码
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

func (e *Error) Error() string {
	msg := "storage error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Provider != "" && e.Op != "":
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, msg)
	case e.Provider != "":
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport 包装传输层错误，超时与取消同样归为传输错误
func Transport(provider ProviderType, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return NewError(KindTransport, provider, op, err)
}

// Configuration 包装配置错误
func Configuration(provider ProviderType, op string, err error) error {
	return NewError(KindConfiguration, provider, op, err)
}

// KindOf 错误分类，未知错误（包括 context 超时）按传输错误处理
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindTransport
}

// CodeOf 获取错误码，未设置时使用分类名
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	return string(KindOf(err))
}

// IsTransport 是否可通过备用提供者重试
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsConfiguration 是否为配置错误
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}
