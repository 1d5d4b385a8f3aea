package types

import (
	"errors"
	"fmt"
	"time"
)

// 错误类别，配合 errors.Is 判断
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
	ErrUpstream     = errors.New("upstream error")
	ErrStorage      = errors.New("storage error")
)

// Error 业务错误
// Msg 是可以返回给调用方的说明，Err 是内部原因（只记日志）
type Error struct {
	Kind       error
	Msg        string
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap 同时暴露类别和内部原因
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Validation 输入不合法
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized 未认证
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Msg: msg}
}

// Forbidden 无权限
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

// NotFound 资源不存在（或调用方无权知道其存在）
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

// Conflict 资源冲突
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Msg: msg}
}

// RateLimited 触发限流
func RateLimited(msg string, retryAfter time.Duration) error {
	return &Error{Kind: ErrRateLimited, Msg: msg, RetryAfter: retryAfter}
}

// Upstream 外部服务失败
func Upstream(msg string, err error) error {
	return &Error{Kind: ErrUpstream, Msg: msg, Err: err}
}

// Storage 存储读写失败
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && errors.Is(err, ErrStorage) {
		return err
	}
	return &Error{Kind: ErrStorage, Msg: "storage failure", Err: err}
}

// Message 返回可展示给调用方的说明
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// RetryAfterOf 取出限流错误的重试等待时间
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
