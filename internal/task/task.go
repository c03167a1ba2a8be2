// Package task runs named background goroutines that stop together.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-instrument/logger"
)

// ErrStopped is returned when starting a task on a stopped manager.
var ErrStopped = errors.New("task: manager already stopped")

// Func is one iteration of a task. Returning false ends the task.
type Func func(ctx context.Context) bool

// Manager starts goroutines sharing one cancellation scope.
//
//	mgr := task.NewManager(ctx, logger.GetLogger())
//	_ = mgr.Start("logger:LOG", func(ctx context.Context) bool {
//		// ... read one block ...
//		return true
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32

	mu    sync.Mutex
	names map[string]context.CancelFunc
}

// NewManager creates a manager whose tasks stop when ctx is done or Stop is
// called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l, names: make(map[string]context.CancelFunc)}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Start runs fn repeatedly in a new goroutine until it returns false, the
// task is cancelled or the manager stops. Task names are unique among
// running tasks.
func (mgr *Manager) Start(name string, fn Func) error {
	return mgr.start(name, func(ctx context.Context) {
		for ctx.Err() == nil {
			if !mgr.callWithRecover(ctx, name, fn) {
				return
			}
		}
	})
}

// StartInterval runs fn every interval, first immediately when runNow.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) error {
	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %s", interval)
	}

	return mgr.start(name, func(ctx context.Context) {
		if runNow && !mgr.callWithRecover(ctx, name, fn) {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(ctx, name, fn) {
					return
				}
			}
		}
	})
}

func (mgr *Manager) start(name string, body func(ctx context.Context)) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		return ErrStopped
	}
	if _, ok := mgr.names[name]; ok {
		return fmt.Errorf("task: %s already running", name)
	}

	ctx, cancel := context.WithCancel(mgr.ctx)
	mgr.names[name] = cancel
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			cancel()
			mgr.mu.Lock()
			delete(mgr.names, name)
			mgr.mu.Unlock()
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task: stopped", "name", name)
		}()

		mgr.logger.Debug("task: started", "name", name)
		body(ctx)
	}()

	return nil
}

// Cancel stops the named task.
func (mgr *Manager) Cancel(name string) error {
	mgr.mu.Lock()
	cancel, ok := mgr.names[name]
	mgr.mu.Unlock()

	if !ok {
		return fmt.Errorf("task: %s not found", name)
	}
	cancel()

	return nil
}

// Running reports whether the named task is running.
func (mgr *Manager) Running(name string) bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	_, ok := mgr.names[name]

	return ok
}

func (mgr *Manager) callWithRecover(ctx context.Context, name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("task: panic", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn(ctx)
}

// Stop signals all tasks to stop.
func (mgr *Manager) Stop() {
	mgr.cancel()
}

// Wait blocks until all tasks have returned.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
