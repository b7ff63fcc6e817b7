// Package component gives long running parts of the daemon a common
// start/stop lifecycle.
package component

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Base holds the context and goroutines of a component. Embed it and call
// StartContext in Start and StopContext in Stop.
type Base struct {
	name    string
	logger  *slog.Logger
	Ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

func NewBase(name string) *Base {
	return &Base{
		name:   name,
		logger: logger.Get(logger.Main).With("component", name),
		Ctx:    context.Background(),
	}
}

func (b *Base) Name() string {
	return b.name
}

// Running reports whether StartContext has been called without a matching
// StopContext.
func (b *Base) Running() bool {
	return b.running.Load()
}

func (b *Base) StartContext(parentCtx context.Context) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	b.Ctx, b.cancel = context.WithCancel(parentCtx)
	b.running.Store(true)
}

// StopContext cancels the context and waits for every goroutine started
// with Go.
func (b *Base) StopContext() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.running.Store(false)
}

// Go runs fn in a goroutine tracked by StopContext. A panic in fn is logged
// and ends only that goroutine.
func (b *Base) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Component goroutine panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
