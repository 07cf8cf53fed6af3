package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，写入审计日志。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 是错误码的默认文案与处理提示。
// Retryable 为 true 表示调用方稍后重试可能成功。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
}

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodePublishFailure        Code = "PUBLISH_FAILURE"
	CodeTimeout               Code = "TIMEOUT"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[Code]Attributes)
)

func init() {
	Register(CodeUnknown, Attributes{"unknown error", SeverityCritical, false})
	Register(CodeInvalidArgument, Attributes{"invalid argument", SeverityInfo, false})
	Register(CodeNotFound, Attributes{"resource not found", SeverityInfo, false})
	Register(CodeInitializationFailure, Attributes{"service not initialized", SeverityWarning, true})
	Register(CodeStorageFailure, Attributes{"storage failure", SeverityCritical, true})
	Register(CodePublishFailure, Attributes{"event publish failure", SeverityWarning, true})
	Register(CodeTimeout, Attributes{"operation timed out", SeverityWarning, true})
}

// Register 在包初始化阶段登记错误码，重复登记会覆盖旧值。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	registry[code] = attr
	registryMu.Unlock()
}

// AttributesOf 返回错误码的属性，未登记的错误码按 UNKNOWN 处理。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 携带错误码、面向用户的文案、底层原因与附加字段。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
}

// Option 在创建 Error 时附加信息。
type Option func(*Error)

// WithMetadata 附加一个键值对，例如服务商名称或 HTTP 状态码。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string, 2)
		}
		e.metadata[key] = value
	}
}

// New 创建错误。message 为空时使用错误码登记的默认文案。
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{code: code, message: message}
	if e.message == "" {
		e.message = AttributesOf(code).Message
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 以 cause 为原因创建错误。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("[%s] %s", e.code, e.message)
	default:
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 让 errors.Is 按错误码比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// Code 返回错误码，nil 视为 UNKNOWN。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回面向用户的文案，不含底层原因。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加字段的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

// From 返回错误链上第一个 *Error。
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误链上第一个 *Error 的错误码，没有时为 UNKNOWN。
func CodeOf(err error) Code {
	e, _ := From(err)
	return e.Code()
}

// RetryableError 按错误码登记的属性判断 err 是否值得重试。
func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return AttributesOf(e.code).Retryable
	}
	return false
}

// SeverityOf 返回 err 的严重程度，普通 error 按 UNKNOWN 处理。
func SeverityOf(err error) Severity {
	return AttributesOf(CodeOf(err)).Severity
}
