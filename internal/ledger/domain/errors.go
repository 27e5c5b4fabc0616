package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrForbidden      = errors.New("member is not allowed to perform this action")
	ErrMonthClosed    = errors.New("month is closed")
	ErrOptimisticLock = errors.New("optimistic lock conflict: deposit record modified by others")
)

// ValidationError 输入不合法，直接返回，不做任何写入
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError 尝试写入已结账的月份
type ConflictError struct {
	Month  Month
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("month %s: %s", e.Month, e.Reason)
	}
	return fmt.Sprintf("month %s is closed", e.Month)
}

// Unwrap 让 errors.Is(err, ErrMonthClosed) 成立
func (e *ConflictError) Unwrap() error { return ErrMonthClosed }

// ItemResult 批量操作中单条记录的结果
type ItemResult struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (r ItemResult) OK() bool { return r.Err == nil }

// BatchError 部分失败：成功的记录不会回滚
type BatchError struct {
	Results []ItemResult
}

func (e *BatchError) Failed() []ItemResult {
	var out []ItemResult
	for _, r := range e.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (e *BatchError) Error() string {
	failed := e.Failed()
	msgs := make([]string, 0, len(failed))
	for _, r := range failed {
		msgs = append(msgs, fmt.Sprintf("%s: %v", r.Key, r.Err))
	}
	return fmt.Sprintf("%d of %d items failed: %s", len(failed), len(e.Results), strings.Join(msgs, "; "))
}

// NewItemResult 填充 JSON 可见的错误文本
func NewItemResult(index int, key string, err error) ItemResult {
	r := ItemResult{Index: index, Key: key, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// BatchOutcome 汇总结果；全部成功时返回 nil
func BatchOutcome(results []ItemResult) error {
	for _, r := range results {
		if !r.OK() {
			return &BatchError{Results: results}
		}
	}
	return nil
}
