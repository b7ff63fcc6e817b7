package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veesix-networks/dhcp6d/pkg/logger"
)

// Orchestrator starts components in registration order and stops them in
// reverse.
type Orchestrator struct {
	components []Component
	started    int
	logger     *slog.Logger
	mu         sync.Mutex
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		components: make([]Component, 0),
		logger:     logger.Get(logger.Main),
	}
}

func (o *Orchestrator) Register(comp Component) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.components = append(o.components, comp)
}

// Start starts every component. If one fails, the ones already started are
// stopped again before the error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, comp := range o.components[o.started:] {
		if err := comp.Start(ctx); err != nil {
			startErr := fmt.Errorf("failed to start %s: %w", comp.Name(), err)
			if stopErr := o.stopLocked(ctx); stopErr != nil {
				o.logger.Error("Failed to stop components after start failure", "error", stopErr)
			}
			return startErr
		}
		o.logger.Debug("Started component", "component", comp.Name())
		o.started++
	}
	return nil
}

// Stop stops all started components, continuing past failures.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopLocked(ctx)
}

func (o *Orchestrator) stopLocked(ctx context.Context) error {
	var errs []error
	for i := o.started - 1; i >= 0; i-- {
		comp := o.components[i]
		if err := comp.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", comp.Name(), err))
		}
	}
	o.started = 0
	return errors.Join(errs...)
}
