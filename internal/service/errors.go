package service

import (
	"errors"
	"fmt"
)

// ErrUnsupported 不支持的指标 / 维度 / 类型名
var ErrUnsupported = errors.New("不支持的参数")

// ErrNotConfigured 依赖的存储或规则未配置
var ErrNotConfigured = errors.New("服务未配置")

// ValidationError 调用方输入不合法（映射为 4xx，不重试）
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s=%q %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func unsupported(field, value string) error {
	return &ValidationError{Field: field, Value: value, Reason: "不受支持", Err: ErrUnsupported}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
