package evm

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/correlator"
	"github.com/mark3labs/walletbridge-go/internal/provider"
)

// Methods are the wire methods the EVM provider negotiates for.
var Methods = []walletbridge.Method{
	walletbridge.MethodSignMessage,
	walletbridge.MethodSignTransaction,
	walletbridge.MethodSignAndSendTransaction,
	walletbridge.MethodSignAllTransactions,
}

// Provider talks to a popup wallet on behalf of EVM chains.
type Provider struct {
	core *provider.Core
}

// NewProvider creates a disconnected provider.
func NewProvider(opts ...walletbridge.Option) (*Provider, error) {
	cfg, err := walletbridge.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return newProvider(cfg), nil
}

func newProvider(cfg *walletbridge.Config, opts ...correlator.Option) *Provider {
	return &Provider{core: provider.New(walletbridge.FamilyEVM, cfg, opts...)}
}

// Connect negotiates a session and returns the active chain's accounts.
func (p *Provider) Connect(ctx context.Context) ([]string, error) {
	return p.core.Connect(ctx, Methods)
}

// Disconnect forgets the session. EVM wallets have no remote disconnect, so
// nothing is sent.
func (p *Provider) Disconnect() {
	p.core.Disconnect(nil)
}

// Connected reports whether a session is established.
func (p *Provider) Connected() bool { return p.core.Connected() }

// Accounts returns the active chain's accounts.
func (p *Provider) Accounts() []string { return p.core.Accounts() }

// ChainID returns the active chain, or the default chain when disconnected.
func (p *Provider) ChainID() walletbridge.ChainID { return p.core.ActiveChain() }

// ChainIDHex returns the active chain in legacy hexadecimal form.
func (p *Provider) ChainIDHex() (string, error) {
	return walletbridge.ChainIDToHex(p.core.ActiveChain())
}

// SupportedChains returns the negotiated chains.
func (p *Provider) SupportedChains() []walletbridge.ChainID { return p.core.SupportedChains() }

// SwitchChain makes chain the active chain. It never contacts the wallet.
func (p *Provider) SwitchChain(chain walletbridge.ChainID) error {
	return p.core.SwitchChain(chain)
}

// SwitchChainHex is SwitchChain for a hexadecimal chain id such as "0x89".
func (p *Provider) SwitchChainHex(hex string) error {
	chain, err := walletbridge.HexToChainID(hex)
	if err != nil {
		return walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "invalid chain id", err)
	}
	return p.core.SwitchChain(chain)
}

// SignMessage asks the wallet for a personal_sign signature by account.
func (p *Provider) SignMessage(ctx context.Context, account, message string) (string, error) {
	s, err := p.core.RequireSigner(account)
	if err != nil {
		return "", err
	}
	var res walletbridge.SignMessageResult
	err = p.core.Call(ctx, walletbridge.MethodSignMessage, s.ActiveChain, func() (any, error) {
		return walletbridge.SignMessageParams{Account: account, Message: message}, nil
	}, &res)
	if err != nil {
		return "", err
	}
	return res.Signature, nil
}

// SignTransaction asks the wallet to sign tx and returns the signed blob.
func (p *Provider) SignTransaction(ctx context.Context, tx Transaction) (string, error) {
	s, raw, err := p.prepare(tx)
	if err != nil {
		return "", err
	}
	var res walletbridge.SignedTransactionResult
	err = p.core.Call(ctx, walletbridge.MethodSignTransaction, s.ActiveChain, func() (any, error) {
		return walletbridge.SignTransactionParams{Account: tx.From, Transaction: raw}, nil
	}, &res)
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

// SendTransaction asks the wallet to sign and broadcast tx and returns the
// transaction hash.
func (p *Provider) SendTransaction(ctx context.Context, tx Transaction) (string, error) {
	s, raw, err := p.prepare(tx)
	if err != nil {
		return "", err
	}
	var res walletbridge.SendResult
	err = p.core.Call(ctx, walletbridge.MethodSignAndSendTransaction, s.ActiveChain, func() (any, error) {
		return walletbridge.SignAndSendParams{
			SignTransactionParams: walletbridge.SignTransactionParams{Account: tx.From, Transaction: raw},
		}, nil
	}, &res)
	if err != nil {
		return "", err
	}
	return res.Hash, nil
}

// SignAllTransactions signs a batch in one wallet interaction. Every
// transaction is checked before the wallet is opened; the first failing index
// is reported and nothing is sent.
func (p *Provider) SignAllTransactions(ctx context.Context, txs []Transaction) ([]string, error) {
	if len(txs) == 0 {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "no transactions", nil)
	}
	s, err := p.core.RequireConnected()
	if err != nil {
		return nil, err
	}

	encoded := make([]json.RawMessage, len(txs))
	for i, tx := range txs {
		raw, err := p.check(s, tx)
		if err != nil {
			return nil, provider.AtIndex(err, i)
		}
		encoded[i] = raw
	}

	var res walletbridge.SignAllTransactionsResult
	err = p.core.Call(ctx, walletbridge.MethodSignAllTransactions, s.ActiveChain, func() (any, error) {
		return walletbridge.SignAllTransactionsParams{Account: txs[0].From, Transactions: encoded}, nil
	}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.Raw) != len(txs) {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "wallet returned the wrong number of transactions", nil).
			WithDetails("want", len(txs)).
			WithDetails("got", len(res.Raw))
	}
	return res.Raw, nil
}

// On subscribes h to event.
func (p *Provider) On(event walletbridge.Event, h walletbridge.Handler) walletbridge.Subscription {
	return p.core.On(event, h)
}

// Off removes a subscription.
func (p *Provider) Off(event walletbridge.Event, id walletbridge.Subscription) bool {
	return p.core.Off(event, id)
}

func (p *Provider) prepare(tx Transaction) (*walletbridge.Session, json.RawMessage, error) {
	s, err := p.core.RequireConnected()
	if err != nil {
		return nil, nil, err
	}
	raw, err := p.check(s, tx)
	if err != nil {
		return nil, nil, err
	}
	return s, raw, nil
}

// check authorizes tx against the session and encodes it. A missing chain id
// is filled from the active chain; a different one is rejected.
func (p *Provider) check(s *walletbridge.Session, tx Transaction) (json.RawMessage, error) {
	if !s.HasAccount(tx.From) {
		return nil, walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "account is not authorized", nil).
			WithDetails("account", tx.From).
			WithDetails("chainId", string(s.ActiveChain))
	}

	active, ok := new(big.Int).SetString(s.ActiveChain.Reference(), 10)
	if ok {
		if tx.ChainID == nil {
			tx.ChainID = active
		} else if tx.ChainID.Cmp(active) != 0 {
			return nil, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "transaction chain does not match the active chain", nil).
				WithDetails("chainId", string(s.ActiveChain)).
				WithDetails("txChainId", tx.ChainID.String())
		}
	}
	return EncodeTransaction(tx)
}
