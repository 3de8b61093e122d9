package svm

import (
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/correlator"
	"github.com/mark3labs/walletbridge-go/internal/provider"
)

// Methods are the wire methods the Solana provider negotiates for.
var Methods = []walletbridge.Method{
	walletbridge.MethodDisconnect,
	walletbridge.MethodSignMessage,
	walletbridge.MethodSignTransaction,
	walletbridge.MethodSignAndSendTransaction,
	walletbridge.MethodSignAllTransactions,
}

// Provider talks to a popup wallet on behalf of Solana clusters. The first
// account of the active cluster is the connected key; every transaction must
// be authorized by it.
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
	return &Provider{core: provider.New(walletbridge.FamilySolana, cfg, opts...)}
}

// Connect negotiates a session and returns the connected key.
func (p *Provider) Connect(ctx context.Context) (solana.PublicKey, error) {
	if _, err := p.core.Connect(ctx, Methods); err != nil {
		return solana.PublicKey{}, err
	}
	_, key, err := p.signer()
	if err != nil {
		p.core.Disconnect(err)
		return solana.PublicKey{}, err
	}
	return key, nil
}

// Disconnect tells the wallet the session is over and clears it locally.
// Local state is cleared even when the wallet does not answer; the wallet's
// error, if any, is returned. Disconnecting while disconnected is a no-op.
func (p *Provider) Disconnect(ctx context.Context) error {
	s := p.core.Snapshot()
	if s == nil {
		return nil
	}
	err := p.core.Call(ctx, walletbridge.MethodDisconnect, s.ActiveChain, nil, nil)
	if err != nil {
		p.core.Logger().Debug("remote disconnect failed", "error", err)
	}
	p.core.Disconnect(nil)
	return err
}

// Connected reports whether a session is established.
func (p *Provider) Connected() bool { return p.core.Connected() }

// PublicKey returns the connected key.
func (p *Provider) PublicKey() (solana.PublicKey, bool) {
	_, key, err := p.signer()
	return key, err == nil
}

// Accounts returns the active cluster's accounts in base58.
func (p *Provider) Accounts() []string { return p.core.Accounts() }

// CurrentChain returns the active cluster, or the default one when
// disconnected.
func (p *Provider) CurrentChain() walletbridge.ChainID { return p.core.ActiveChain() }

// SupportedChains returns the negotiated clusters.
func (p *Provider) SupportedChains() []walletbridge.ChainID { return p.core.SupportedChains() }

// SignMessage asks the wallet to sign message with the connected key. The
// returned signature is verified locally.
func (p *Provider) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	s, key, err := p.signer()
	if err != nil {
		return solana.Signature{}, err
	}
	enc := p.core.Config().Encoding

	var res walletbridge.SignMessageResult
	err = p.core.Call(ctx, walletbridge.MethodSignMessage, s.ActiveChain, func() (any, error) {
		msg, err := EncodeMessage(message, enc)
		if err != nil {
			return nil, err
		}
		return walletbridge.SignMessageParams{Account: key.String(), Encoded: &msg}, nil
	}, &res)
	if err != nil {
		return solana.Signature{}, err
	}

	if res.Encoding == "" {
		res.Encoding = enc
	}
	sig, err := DecodeSignature(res.Signature, res.Encoding)
	if err != nil {
		return solana.Signature{}, walletbridge.NewProviderError(walletbridge.CodeInternalError, "malformed signature", err)
	}
	if !key.Verify(message, sig) {
		return solana.Signature{}, walletbridge.NewProviderError(walletbridge.CodeInternalError, "signature does not match the connected account", nil).
			WithDetails("account", key.String())
	}
	return sig, nil
}

// SignTransaction asks the wallet to sign tx without broadcasting it.
func (p *Provider) SignTransaction(ctx context.Context, tx *solana.Transaction) (*SignedTransaction, error) {
	s, et, err := p.prepare(tx)
	if err != nil {
		return nil, err
	}

	var res walletbridge.SignedTransactionResult
	err = p.core.Call(ctx, walletbridge.MethodSignTransaction, s.ActiveChain, func() (any, error) {
		return walletbridge.SignTransactionParams{Account: s.CurrentAccounts()[0], Encoded: &et}, nil
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Encoded == nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "wallet returned no transaction", nil)
	}
	return DecodeTransaction(*res.Encoded)
}

// SignAndSendTransaction asks the wallet to sign and submit tx. opts is
// passed through to the wallet and may be nil.
func (p *Provider) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.TransactionOpts) (solana.Signature, error) {
	s, et, err := p.prepare(tx)
	if err != nil {
		return solana.Signature{}, err
	}

	var res walletbridge.SendResult
	err = p.core.Call(ctx, walletbridge.MethodSignAndSendTransaction, s.ActiveChain, func() (any, error) {
		params := walletbridge.SignAndSendParams{
			SignTransactionParams: walletbridge.SignTransactionParams{Account: s.CurrentAccounts()[0], Encoded: &et},
		}
		if opts != nil {
			raw, err := json.Marshal(opts)
			if err != nil {
				return nil, err
			}
			params.Options = raw
		}
		return params, nil
	}, &res)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := solana.SignatureFromBase58(res.Hash)
	if err != nil {
		return solana.Signature{}, walletbridge.NewProviderError(walletbridge.CodeInternalError, "malformed transaction signature", err)
	}
	return sig, nil
}

// SignAllTransactions signs a batch in one wallet interaction. The whole
// batch is checked against the connected key first; the first failing index
// is reported and nothing is sent. Results are returned in input order.
func (p *Provider) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*SignedTransaction, error) {
	if len(txs) == 0 {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "no transactions", nil)
	}
	s, key, err := p.signer()
	if err != nil {
		return nil, err
	}
	if err := VerifyBatch(txs, key); err != nil {
		return nil, err
	}

	enc := p.core.Config().Encoding
	batch := make([]walletbridge.EncodedTransaction, len(txs))
	for i, tx := range txs {
		et, err := EncodeTransaction(tx, enc, i)
		if err != nil {
			return nil, provider.AtIndex(err, i)
		}
		batch[i] = et
	}

	var res walletbridge.SignAllTransactionsResult
	err = p.core.Call(ctx, walletbridge.MethodSignAllTransactions, s.ActiveChain, func() (any, error) {
		return walletbridge.SignAllTransactionsParams{Account: key.String(), Encoded: batch}, nil
	}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.Encoded) != len(txs) {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "wallet returned the wrong number of transactions", nil).
			WithDetails("want", len(txs)).
			WithDetails("got", len(res.Encoded))
	}

	out := make([]*SignedTransaction, len(txs))
	for _, et := range res.Encoded {
		if et.Index < 0 || et.Index >= len(out) || out[et.Index] != nil {
			return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "wallet returned an unexpected transaction index", nil).
				WithDetails("index", et.Index)
		}
		signed, err := DecodeTransaction(et)
		if err != nil {
			return nil, err
		}
		out[et.Index] = signed
	}
	return out, nil
}

// On subscribes h to event.
func (p *Provider) On(event walletbridge.Event, h walletbridge.Handler) walletbridge.Subscription {
	return p.core.On(event, h)
}

// Off removes a subscription.
func (p *Provider) Off(event walletbridge.Event, id walletbridge.Subscription) bool {
	return p.core.Off(event, id)
}

// signer returns the session and its connected key.
func (p *Provider) signer() (*walletbridge.Session, solana.PublicKey, error) {
	s, err := p.core.RequireConnected()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	accounts := s.CurrentAccounts()
	if len(accounts) == 0 {
		return nil, solana.PublicKey{}, walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "no connected account", nil)
	}
	key, err := solana.PublicKeyFromBase58(accounts[0])
	if err != nil {
		return nil, solana.PublicKey{}, walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "connected account is not a public key", err).
			WithDetails("account", accounts[0])
	}
	return s, key, nil
}

// prepare runs the ownership guard and encodes tx. It never does I/O.
func (p *Provider) prepare(tx *solana.Transaction) (*walletbridge.Session, walletbridge.EncodedTransaction, error) {
	s, key, err := p.signer()
	if err != nil {
		return nil, walletbridge.EncodedTransaction{}, err
	}
	if err := VerifyOwnership(tx, key); err != nil {
		return nil, walletbridge.EncodedTransaction{}, err
	}
	et, err := EncodeTransaction(tx, p.core.Config().Encoding, 0)
	if err != nil {
		return nil, walletbridge.EncodedTransaction{}, err
	}
	return s, et, nil
}
