package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 使用场景：
//   - Store 错误：NOT_FOUND, STORE_LOOKUP_FAILURE
//   - Pool 错误：INVARIANT_VIOLATION
//   - Selection 错误：UNSUPPORTED_STRATEGY, INSUFFICIENT_POOL
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INSUFFICIENT_POOL"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "pool", "selection"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 让 errors.Is 按 Module + Code 比较，而不是按指针比较。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Module == "" || e.Module == t.Module)
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
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

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// Errorf 创建带格式化消息的领域错误
func Errorf(module, code, format string, args ...any) *DomainError {
	return NewDomainError(module, code, fmt.Sprintf(format, args...))
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 主动学习相关错误代码（均为致命错误，主循环不做自动恢复）
	ErrorCodeUnsupportedStrategy = "UNSUPPORTED_STRATEGY" // 未知的选择策略名
	ErrorCodeInsufficientPool    = "INSUFFICIENT_POOL"    // 候选池不足 selection_count
	ErrorCodeInvariantViolation  = "INVARIANT_VIOLATION"  // 数据集不变量被破坏（通常是选择策略的 bug）
	ErrorCodeStoreLookupFailure  = "STORE_LOOKUP_FAILURE" // 引用的样本在存储中缺失或损坏
	ErrorCodeTrainingDiverged    = "TRAINING_DIVERGED"    // 训练发散（NaN/Inf loss）
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModulePool      = "pool"      // 样本池模块
	ModuleInference = "inference" // 推理模块
	ModuleSelection = "selection" // 主动选择模块
	ModuleActive    = "active"    // 主循环模块
	ModuleService   = "service"   // 服务模块
	ModuleConfig    = "config"    // 配置模块
)

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsUnsupportedStrategy 检查错误是否为 UNSUPPORTED_STRATEGY
func IsUnsupportedStrategy(err error) bool { return hasCode(err, ErrorCodeUnsupportedStrategy) }

// IsInsufficientPool 检查错误是否为 INSUFFICIENT_POOL
func IsInsufficientPool(err error) bool { return hasCode(err, ErrorCodeInsufficientPool) }

// IsInvariantViolation 检查错误是否为 INVARIANT_VIOLATION
func IsInvariantViolation(err error) bool { return hasCode(err, ErrorCodeInvariantViolation) }

// IsStoreLookupFailure 检查错误是否为 STORE_LOOKUP_FAILURE
func IsStoreLookupFailure(err error) bool { return hasCode(err, ErrorCodeStoreLookupFailure) }

// IsTrainingDiverged 检查错误是否为 TRAINING_DIVERGED
func IsTrainingDiverged(err error) bool { return hasCode(err, ErrorCodeTrainingDiverged) }

// IsInternalError 检查错误是否为 INTERNAL_ERROR
func IsInternalError(err error) bool { return hasCode(err, ErrorCodeInternalError) }
