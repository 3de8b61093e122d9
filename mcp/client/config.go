package client

import (
	"log/slog"
	"net/http"
)

// Config holds configuration for the wallet tool client.
type Config struct {
	// ServerURL is the MCP server endpoint.
	ServerURL string

	// HTTPClient is the HTTP client for requests (optional, uses default if nil).
	HTTPClient *http.Client

	// Name and Version identify the client during initialization.
	Name    string
	Version string

	// Logger receives debug lines for every call.
	Logger *slog.Logger
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithClientInfo sets the name and version sent during initialization.
func WithClientInfo(name, version string) Option {
	return func(c *Config) {
		c.Name = name
		c.Version = version
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// DefaultConfig returns a Config with default settings.
func DefaultConfig(serverURL string) *Config {
	return &Config{
		ServerURL:  serverURL,
		HTTPClient: http.DefaultClient,
		Name:       "walletbridge-client",
		Version:    "1.0.0",
		Logger:     slog.Default(),
	}
}
