package walletbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mark3labs/walletbridge-go/transport"
)

// DefaultPollInterval is how often an open wallet window is checked for
// closure when the transport has no native close signal.
const DefaultPollInterval = 500 * time.Millisecond

// Configuration errors
var (
	ErrMissingWalletURL = errors.New("walletbridge: wallet url is required")
	ErrMissingOpener    = errors.New("walletbridge: transport opener is required")
	ErrInvalidConfig    = errors.New("walletbridge: invalid provider configuration")
)

// Config holds provider configuration shared by every chain family.
type Config struct {
	// WalletURL is the page opened for every request.
	WalletURL string

	// Opener creates the browsing context for each request.
	Opener transport.Opener

	// Logger receives structured protocol logs. Defaults to slog.Default().
	Logger *slog.Logger

	// PollInterval is the close-detection period.
	PollInterval time.Duration

	// DefaultChain is used when the wallet declares no usable active chain.
	// Empty means the family default.
	DefaultChain ChainID

	// Chains are requested during negotiation. Empty means any chain.
	Chains []ChainID

	// Encoding is the byte alphabet for Solana payloads.
	Encoding Encoding

	// AppName is shown by the wallet during negotiation.
	AppName string
}

// Option configures a provider.
type Option func(*Config) error

// DefaultConfig returns a Config with defaults applied and no wallet set.
func DefaultConfig() *Config {
	return &Config{
		Logger:       slog.Default(),
		PollInterval: DefaultPollInterval,
		Encoding:     EncodingBase58,
	}
}

// NewConfig applies opts on top of DefaultConfig and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.WalletURL == "" {
		return ErrMissingWalletURL
	}
	if _, err := url.Parse(c.WalletURL); err != nil {
		return fmt.Errorf("%w: wallet url: %v", ErrInvalidConfig, err)
	}
	if c.Opener == nil {
		return ErrMissingOpener
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if !c.Encoding.Valid() {
		return fmt.Errorf("%w: unsupported encoding %q", ErrInvalidConfig, c.Encoding)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// WithWalletURL sets the wallet page URL.
func WithWalletURL(u string) Option {
	return func(c *Config) error {
		c.WalletURL = u
		return nil
	}
}

// WithOpener sets the transport used to open the wallet.
func WithOpener(o transport.Opener) Option {
	return func(c *Config) error {
		c.Opener = o
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// WithPollInterval sets the close-detection period.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
		}
		c.PollInterval = d
		return nil
	}
}

// WithDefaultChain sets the fallback active chain.
func WithDefaultChain(chain ChainID) Option {
	return func(c *Config) error {
		if err := chain.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.DefaultChain = chain
		return nil
	}
}

// WithChains sets the chains requested during negotiation.
func WithChains(chains ...ChainID) Option {
	return func(c *Config) error {
		for _, chain := range chains {
			if err := chain.Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
		c.Chains = append(c.Chains, chains...)
		return nil
	}
}

// WithEncoding sets the byte alphabet for Solana payloads.
func WithEncoding(e Encoding) Option {
	return func(c *Config) error {
		if !e.Valid() {
			return fmt.Errorf("%w: unsupported encoding %q", ErrInvalidConfig, e)
		}
		c.Encoding = e
		return nil
	}
}

// WithAppName sets the name shown by the wallet.
func WithAppName(name string) Option {
	return func(c *Config) error {
		c.AppName = name
		return nil
	}
}
