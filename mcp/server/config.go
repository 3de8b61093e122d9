package server

import (
	"log/slog"
	"time"

	"github.com/mark3labs/walletbridge-go/mcp"
)

// Config holds configuration for the wallet tool server.
type Config struct {
	// Logger receives one line per failed tool call.
	Logger *slog.Logger

	// CallTimeout bounds each tool call, including the time the user spends
	// in the wallet popup.
	CallTimeout time.Duration

	// Verbose logs every tool call, not only failures.
	Verbose bool
}

// DefaultConfig returns a Config with default settings.
func DefaultConfig() *Config {
	return &Config{
		Logger:      slog.Default(),
		CallTimeout: mcp.DefaultCallTimeout,
	}
}

// Option is a functional option for configuring the server.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithVerbose enables logging of every tool call.
func WithVerbose() Option {
	return func(c *Config) {
		c.Verbose = true
	}
}
