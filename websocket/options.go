// File: websocket/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package websocket

import (
	"errors"
	"log/slog"
	"time"
)

const (
	defaultPollInterval = 10 * time.Millisecond
	defaultRecvBufSize  = 64 * 1024
)

// Option configures a session at connect time.
type Option func(*config) error

type config struct {
	headers        []string
	connectTimeout time.Duration
	connectRetries uint64
	pollInterval   time.Duration
	recvBufSize    int
	logger         *slog.Logger
}

func defaultWSConfig() config {
	return config{
		pollInterval: defaultPollInterval,
		recvBufSize:  defaultRecvBufSize,
		logger:       slog.Default(),
	}
}

// WithHeaders adds request header lines to the upgrade request.
func WithHeaders(lines ...string) Option {
	return func(c *config) error {
		c.headers = append(c.headers, lines...)
		return nil
	}
}

// WithConnectTimeout bounds the upgrade handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.connectTimeout = d
		return nil
	}
}

// WithConnectRetry retries a failed upgrade up to n times with
// exponential backoff. Disabled by default.
func WithConnectRetry(n uint64) Option {
	return func(c *config) error {
		c.connectRetries = n
		return nil
	}
}

// WithPollInterval sets the fixed interval between non-blocking frame
// read attempts while waiting for data.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		c.pollInterval = d
		return nil
	}
}

// WithReceiveBuffer sizes the frame receive buffer.
func WithReceiveBuffer(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.New("receive buffer size must be positive")
		}
		c.recvBufSize = n
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
