package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供模块（Module）、错误代码（Code）和消息（Message）
//   - 可包裹底层错误（Err），支持 errors.Is / errors.As
//   - 调用方通常再用 fmt.Errorf("...: %w", err) 包一层，IsXXX 依然可用
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Feed/Loader 错误：UNAVAILABLE, SCHEMA, EMPTY（启动期致命错误）
//   - Index 错误：INVALID_INPUT（行号越界，属于调用方编程错误）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "SCHEMA"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feed", "loader", "index"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否存在 DomainError。
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 从错误链中取出 DomainError，不存在时返回 nil。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包裹底层错误的领域错误。
func WrapDomainError(module, code string, err error, format string, args ...any) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 数据源不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeSchema        = "SCHEMA"         // 数据源字段缺失或类型无法转换
	ErrorCodeEmpty         = "EMPTY"          // 数据源为空
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore  = "store"  // 存储模块
	ModuleFeed   = "feed"   // 目录/评分数据源
	ModuleLoader = "loader" // 快照构建
	ModuleIndex  = "index"  // 相似度索引
	ModuleEngine = "engine" // 推荐引擎
)

func hasCode(err error, code string) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Code == code
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsSchema 检查错误是否为 SCHEMA
func IsSchema(err error) bool { return hasCode(err, ErrorCodeSchema) }

// IsEmpty 检查错误是否为 EMPTY
func IsEmpty(err error) bool { return hasCode(err, ErrorCodeEmpty) }
