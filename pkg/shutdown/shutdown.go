package shutdown

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/sparkswap/sparkbot/pkg/logger"
	"github.com/sparkswap/sparkbot/pkg/syncgroup"
)

// Step 一个关闭步骤，应在 ctx 结束前返回
type Step func(ctx context.Context) error

type namedStep struct {
	name string
	step Step
}

// Manager runs registered shutdown steps concurrently and reports what did not finish cleanly.
type Manager struct {
	mu    sync.Mutex
	steps []namedStep
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a named step. Nil steps are ignored.
func (m *Manager) Register(name string, step Step) {
	if step == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, namedStep{name: name, step: step})
}

// Error aggregates every failed or unfinished step, keyed by step name.
type Error struct {
	Failed  map[string]error
	Pending []string // 超时时仍未返回的步骤
}

func (e *Error) Error() string {
	var parts []string
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+": "+e.Failed[name].Error())
	}
	if len(e.Pending) > 0 {
		parts = append(parts, "timed out waiting for "+strings.Join(e.Pending, ", "))
	}
	return "shutdown: " + strings.Join(parts, "; ")
}

// Shutdown runs every registered step once, concurrently, and blocks until they return or ctx ends.
// It returns nil when all steps succeeded, otherwise an *Error.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	steps := m.steps
	m.steps = nil
	m.mu.Unlock()

	if len(steps) == 0 {
		return nil
	}
	logger.Infof("graceful shutdown started, %d steps", len(steps))

	var (
		resMu    sync.Mutex
		finished = make(map[string]bool, len(steps))
	)
	sg := syncgroup.NewSyncGroup()
	for _, s := range steps {
		sg.Go(s.name, func() error {
			err := s.step(ctx)
			resMu.Lock()
			finished[s.name] = true
			resMu.Unlock()
			return err
		})
	}

	done := make(chan []syncgroup.Outcome, 1)
	go func() { done <- sg.Wait() }()

	agg := &Error{Failed: make(map[string]error)}
	select {
	case outcomes := <-done:
		for _, o := range outcomes {
			if o.Err != nil {
				agg.Failed[o.Name] = o.Err
			}
		}
	case <-ctx.Done():
		resMu.Lock()
		for _, s := range steps {
			if !finished[s.name] {
				agg.Pending = append(agg.Pending, s.name)
			}
		}
		resMu.Unlock()
		sort.Strings(agg.Pending)
		if len(agg.Pending) == 0 {
			// every step returned while ctx was ending
			outcomes := <-done
			for _, o := range outcomes {
				if o.Err != nil {
					agg.Failed[o.Name] = o.Err
				}
			}
		}
	}

	if len(agg.Failed) == 0 && len(agg.Pending) == 0 {
		logger.Info("all shutdown steps finished")
		return nil
	}
	logger.Warnf("%v", agg)
	return errors.WithStack(agg)
}
