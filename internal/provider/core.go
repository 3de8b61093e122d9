// Package provider holds the state and plumbing shared by the EVM and Solana
// facades: negotiation, the session, event emission and correlated calls.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/correlator"
)

// Core is one provider instance. It is safe for concurrent use; event
// handlers are always called without internal locks held.
type Core struct {
	family walletbridge.Family
	cfg    *walletbridge.Config
	corr   *correlator.Correlator
	log    *slog.Logger

	events walletbridge.Emitter

	mu      sync.RWMutex
	session *walletbridge.Session
}

// New creates a disconnected Core. cfg must already be validated.
func New(family walletbridge.Family, cfg *walletbridge.Config, opts ...correlator.Option) *Core {
	log := cfg.Logger.With("family", string(family))
	base := []correlator.Option{
		correlator.WithPollInterval(cfg.PollInterval),
		correlator.WithLogger(log),
	}
	return &Core{
		family: family,
		cfg:    cfg,
		corr:   correlator.New(cfg.Opener, cfg.WalletURL, append(base, opts...)...),
		log:    log,
	}
}

// Family returns the chain family this core serves.
func (c *Core) Family() walletbridge.Family { return c.family }

// Config returns the provider configuration.
func (c *Core) Config() *walletbridge.Config { return c.cfg }

// Logger returns the family-scoped logger.
func (c *Core) Logger() *slog.Logger { return c.log }

// DefaultChain is the configured fallback chain, or the family default.
func (c *Core) DefaultChain() walletbridge.ChainID {
	if c.cfg.DefaultChain != "" {
		return c.cfg.DefaultChain
	}
	return walletbridge.DefaultChain(c.family)
}

// Connect negotiates a new session and returns the active chain's accounts.
// Any previous session is replaced on success and cleared on failure.
func (c *Core) Connect(ctx context.Context, methods []walletbridge.Method) ([]string, error) {
	chains := c.cfg.Chains
	if chains == nil {
		chains = []walletbridge.ChainID{}
	}
	raw, err := c.corr.Do(ctx, correlator.Call{
		Method:  walletbridge.MethodConnect,
		Network: c.family,
		Params: func() (any, error) {
			return walletbridge.ConnectRequest{
				Namespaces: map[walletbridge.Family]walletbridge.NamespaceRequest{
					c.family: {
						Chains:  chains,
						Methods: methods,
						Events:  walletbridge.Events(),
					},
				},
				AppName: c.cfg.AppName,
			}, nil
		},
	})
	if err != nil {
		c.fail(err)
		return nil, err
	}

	var res walletbridge.ConnectResult
	if err := json.Unmarshal(raw, &res); err != nil {
		perr := walletbridge.NewProviderError(walletbridge.CodeInternalError, "malformed connect result", err)
		c.fail(perr)
		return nil, perr
	}

	s, err := walletbridge.Negotiate(c.family, res, c.DefaultChain())
	if err != nil {
		c.fail(err)
		return nil, err
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	accounts := s.CurrentAccounts()
	c.log.Info("connected", "chainId", string(s.ActiveChain), "accounts", len(accounts))
	c.events.Emit(walletbridge.EventConnect, walletbridge.ConnectInfo{ChainID: s.ActiveChain})
	c.events.Emit(walletbridge.EventAccountsChanged, accounts)
	return accounts, nil
}

// fail clears the session after a failed connect. A disconnect event is
// emitted only when a session existed.
func (c *Core) fail(err error) {
	c.log.Warn("connect failed", "code", int(walletbridge.CodeOf(err)), "error", err)
	c.Disconnect(err)
}

// Disconnect clears the session and, if one existed, emits disconnect with
// reason as its payload.
func (c *Core) Disconnect(reason error) {
	c.mu.Lock()
	was := c.session != nil
	c.session = nil
	c.mu.Unlock()

	if was {
		c.log.Info("disconnected")
		c.events.Emit(walletbridge.EventDisconnect, reason)
	}
}

// Connected reports whether a session is established.
func (c *Core) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// Snapshot returns a copy of the session, or nil when disconnected.
func (c *Core) Snapshot() *walletbridge.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// Accounts returns the active chain's accounts, empty when disconnected.
func (c *Core) Accounts() []string {
	return c.Snapshot().CurrentAccounts()
}

// ActiveChain returns the session's active chain, or the default chain when
// disconnected.
func (c *Core) ActiveChain() walletbridge.ChainID {
	if s := c.Snapshot(); s != nil {
		return s.ActiveChain
	}
	return c.DefaultChain()
}

// SupportedChains returns the negotiated chain list, empty when disconnected.
func (c *Core) SupportedChains() []walletbridge.ChainID {
	return c.Snapshot().SupportedChains()
}

// RequireConnected returns a snapshot of the session or a Disconnected error.
func (c *Core) RequireConnected() (*walletbridge.Session, error) {
	s := c.Snapshot()
	if s == nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeDisconnected, "provider is not connected", nil)
	}
	return s, nil
}

// RequireSigner checks that the provider is connected and that account is one
// of the active chain's accounts.
func (c *Core) RequireSigner(account string) (*walletbridge.Session, error) {
	s, err := c.RequireConnected()
	if err != nil {
		return nil, err
	}
	if !s.HasAccount(account) {
		return nil, walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "account is not authorized", nil).
			WithDetails("account", account).
			WithDetails("chainId", string(s.ActiveChain))
	}
	return s, nil
}

// Call runs one correlated exchange scoped to chain and decodes the result
// into out. A nil out discards the result.
func (c *Core) Call(ctx context.Context, method walletbridge.Method, chain walletbridge.ChainID, params func() (any, error), out any) error {
	raw, err := c.corr.Do(ctx, correlator.Call{
		Method:  method,
		Network: c.family,
		ChainID: chain,
		Params:  params,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return walletbridge.NewProviderError(walletbridge.CodeInternalError, "malformed wallet result", err).
			WithDetails("method", string(method))
	}
	return nil
}

// SwitchChain makes target the active chain and emits chainChanged, followed
// by accountsChanged when the account list differs. Switching to the current
// chain still emits chainChanged.
func (c *Core) SwitchChain(target walletbridge.ChainID) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return walletbridge.NewProviderError(walletbridge.CodeDisconnected, "provider is not connected", nil)
	}
	changed, err := c.session.SwitchChain(target)
	accounts := c.session.CurrentAccounts()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.log.Info("switched chain", "chainId", string(target))
	c.events.Emit(walletbridge.EventChainChanged, target)
	if changed {
		c.events.Emit(walletbridge.EventAccountsChanged, accounts)
	}
	return nil
}

// On subscribes h to event.
func (c *Core) On(event walletbridge.Event, h walletbridge.Handler) walletbridge.Subscription {
	return c.events.On(event, h)
}

// Off removes a subscription.
func (c *Core) Off(event walletbridge.Event, id walletbridge.Subscription) bool {
	return c.events.Off(event, id)
}

// AtIndex attributes err to the i-th transaction of a batch, keeping its code.
func AtIndex(err error, i int) *walletbridge.ProviderError {
	perr := walletbridge.AsProviderError(err, walletbridge.CodeInvalidParams, "invalid transaction")
	out := walletbridge.NewProviderError(perr.Code, fmt.Sprintf("transaction %d: %s", i, perr.Message), perr.Err)
	for k, v := range perr.Details {
		out.Details[k] = v
	}
	return out.WithDetails("index", i)
}
