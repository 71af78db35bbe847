package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/rules"
)

// Dispatcher delivers run requests to the active page. When the page does
// not answer within the timeout, the agent is re-attached and the request
// is sent exactly once more.
type Dispatcher struct {
	resolver      Resolver
	timeout       atomic.Int64
	attachTimeout time.Duration
	logger        *logger.Logger
}

// NewDispatcher creates a dispatcher. Zero timeouts select the defaults.
func NewDispatcher(resolver Resolver, config Config, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	if config.AttachTimeout <= 0 {
		config.AttachTimeout = DefaultAttachTimeout
	}

	d := &Dispatcher{
		resolver:      resolver,
		attachTimeout: config.AttachTimeout,
		logger:        log,
	}
	d.SetTimeout(config.Timeout)
	return d
}

// SetTimeout changes the per-attempt response timeout
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d.timeout.Store(int64(timeout))
}

// Timeout returns the per-attempt response timeout
func (d *Dispatcher) Timeout() time.Duration {
	return time.Duration(d.timeout.Load())
}

// Run sends groups to the active page and returns its result
func (d *Dispatcher) Run(ctx context.Context, groups []rules.RunGroup) (*engine.RunResult, error) {
	log := d.logger.WithRunID(uuid.NewString())

	target, err := d.resolver.ActiveTarget(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoActiveTarget) {
			err = fmt.Errorf("%w: %v", ErrNoActiveTarget, err)
		}
		log.Warn("No page to run against", zap.Error(err))
		return nil, err
	}
	if target == nil {
		return nil, ErrNoActiveTarget
	}

	start := time.Now()
	result, err := d.attempt(ctx, target, groups)
	if err != nil {
		return nil, err
	}
	if result != nil {
		d.logRun(log, result, 1, time.Since(start))
		return result, nil
	}

	log.Info("No response from page, re-attaching", zap.Duration("timeout", d.Timeout()))

	attachCtx, cancel := context.WithTimeout(ctx, d.attachTimeout)
	err = target.Attach(attachCtx)
	cancel()
	if err != nil {
		log.Warn("Re-attach failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAttachFailed, err)
	}

	result, err = d.attempt(ctx, target, groups)
	if err != nil {
		return nil, err
	}
	if result == nil {
		log.Warn("No response after re-attach")
		return nil, ErrNoResponse
	}

	d.logRun(log, result, 2, time.Since(start))
	return result, nil
}

// attempt sends once. A timeout or delivery error counts as no response;
// only cancellation of the caller's context is returned as an error.
func (d *Dispatcher) attempt(ctx context.Context, target Target, groups []rules.RunGroup) (*engine.RunResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.Timeout())
	defer cancel()

	result, err := target.Send(attemptCtx, groups)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		d.logger.Debug("Send attempt failed", zap.Error(err))
		return nil, nil
	}
	return result, nil
}

func (d *Dispatcher) logRun(log *logger.Logger, result *engine.RunResult, attempts int, took time.Duration) {
	log.Info("Run completed",
		zap.Int("total", result.Total),
		zap.Int("groups", len(result.GroupResults)),
		zap.Int("attempts", attempts),
		zap.Duration("duration", took))
}
