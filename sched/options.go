// File: sched/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional configuration for Scheduler instances.

package sched

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultWaitTimeout     = 50 * time.Millisecond
	defaultCallbackWorkers = 4
)

// Option configures a Scheduler.
type Option func(*config) error

type config struct {
	waitTimeout     time.Duration
	callbackWorkers int
	logger          *slog.Logger
	tracer          trace.Tracer
	registerer      prometheus.Registerer
}

func defaultConfig() config {
	return config{
		waitTimeout:     defaultWaitTimeout,
		callbackWorkers: defaultCallbackWorkers,
		logger:          slog.Default(),
		tracer:          noop.NewTracerProvider().Tracer("curlmux/sched"),
	}
}

// WithWaitTimeout bounds the engine wait step of the poll loop. Short
// timeouts keep close and cancel responsive; the default is 50ms.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.New("wait timeout must be positive")
		}
		c.waitTimeout = d
		return nil
	}
}

// WithCallbackWorkers sizes the worker pool running future callbacks.
func WithCallbackWorkers(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.New("callback workers must be positive")
		}
		c.callbackWorkers = n
		return nil
	}
}

// WithLogger injects a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		c.logger = l
		return nil
	}
}

// WithTracer injects a tracer; transfers get one span from submission to
// resolution. A no-op tracer is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) error {
		if t == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = t
		return nil
	}
}

// WithMetrics registers scheduler metrics on the given registerer.
func WithMetrics(r prometheus.Registerer) Option {
	return func(c *config) error {
		if r == nil {
			return errors.New("registerer must not be nil")
		}
		c.registerer = r
		return nil
	}
}
