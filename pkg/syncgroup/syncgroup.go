package syncgroup

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Outcome 记录一个任务的名称和结果
type Outcome struct {
	Name string
	Err  error
}

// SyncGroup 是 sync.WaitGroup 的包装器，简化 goroutine 生命周期管理
// 自动管理 Add() 和 Done()，并收集每个任务的结果；任务 panic 会被转换为错误
type SyncGroup struct {
	wg sync.WaitGroup

	mu       sync.Mutex
	outcomes []Outcome
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Go 在独立 goroutine 中运行 fn
func (w *SyncGroup) Go(name string, fn func() error) {
	if fn == nil {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := run(fn)
		w.mu.Lock()
		w.outcomes = append(w.outcomes, Outcome{Name: name, Err: err})
		w.mu.Unlock()
	}()
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}

// Wait 等待所有 goroutine 完成，返回结果并清空，之后可以复用
// 结果按完成顺序排列
func (w *SyncGroup) Wait() []Outcome {
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.outcomes
	w.outcomes = nil
	return out
}
