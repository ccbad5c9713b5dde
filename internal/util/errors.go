package util

import "errors"

var (
	// ErrNotFound 引用的 Section/Stage/Content 不存在
	ErrNotFound = errors.New("resource not found")
	// ErrValidation 请求载荷不合法（重排序列不是成员置换、标签重名、必修/选修集合重叠等）
	ErrValidation = errors.New("validation failed")
	// ErrConflict 同一父级的并发重排竞争，内部重试一次后仍冲突
	ErrConflict = errors.New("concurrent modification conflict")
)
