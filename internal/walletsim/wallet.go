// Package walletsim is a scriptable wallet that answers the walletbridge wire
// protocol with real signatures. It plays the remote side of a transport in
// tests, examples and local development.
package walletsim

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/transport"
)

// Behavior decides how the wallet reacts to a request.
type Behavior int

const (
	// Approve answers every request.
	Approve Behavior = iota
	// Reject answers every request with UserRejected.
	Reject
	// CloseWindow closes the window once the request arrives.
	CloseWindow
	// NeverReady never sends the readiness signal.
	NeverReady
	// Fail answers every request with the configured failure code.
	Fail
)

func (b Behavior) String() string {
	switch b {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	case CloseWindow:
		return "close"
	case NeverReady:
		return "never-ready"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// Wallet holds deterministic EVM and Solana keys and the chains it offers.
type Wallet struct {
	evmKeys []*ecdsa.PrivateKey
	solKeys []solana.PrivateKey

	evmChains []walletbridge.ChainID
	solChains []walletbridge.ChainID
	active    map[walletbridge.Family]walletbridge.ChainID

	accounts int
	legacy   bool
	log      *slog.Logger

	mu       sync.Mutex
	behavior Behavior
	failCode walletbridge.ErrorCode
	requests []walletbridge.Request
}

// Option configures a Wallet.
type Option func(*Wallet) error

// WithAccounts sets how many accounts per family are derived. Default 1.
func WithAccounts(n int) Option {
	return func(w *Wallet) error {
		if n < 1 {
			return fmt.Errorf("walletsim: need at least one account, got %d", n)
		}
		w.accounts = n
		return nil
	}
}

// WithChains replaces the offered chains. Each chain is filed under its family.
func WithChains(chains ...walletbridge.ChainID) Option {
	return func(w *Wallet) error {
		w.evmChains, w.solChains = nil, nil
		for _, c := range chains {
			switch c.Family() {
			case walletbridge.FamilyEVM:
				w.evmChains = append(w.evmChains, c)
			case walletbridge.FamilySolana:
				w.solChains = append(w.solChains, c)
			default:
				return fmt.Errorf("walletsim: unsupported chain %q", c)
			}
		}
		return nil
	}
}

// WithActiveChain declares chain as the active one for its family.
func WithActiveChain(chain walletbridge.ChainID) Option {
	return func(w *Wallet) error {
		w.active[chain.Family()] = chain
		return nil
	}
}

// WithBehavior sets the initial behavior.
func WithBehavior(b Behavior) Option {
	return func(w *Wallet) error {
		w.behavior = b
		return nil
	}
}

// WithFailure makes the wallet answer every request with code.
func WithFailure(code walletbridge.ErrorCode) Option {
	return func(w *Wallet) error {
		w.behavior = Fail
		w.failCode = code
		return nil
	}
}

// WithKeystore adds the EVM key stored in an encrypted V3 keystore file as
// the first EVM account.
func WithKeystore(path, password string) Option {
	return func(w *Wallet) error {
		key, err := loadKeystore(path, password)
		if err != nil {
			return err
		}
		w.evmKeys = append([]*ecdsa.PrivateKey{key}, w.evmKeys...)
		return nil
	}
}

// WithLegacyConnect answers connect with the flat accounts form instead of
// namespaces.
func WithLegacyConnect() Option {
	return func(w *Wallet) error {
		w.legacy = true
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Wallet) error {
		w.log = l
		return nil
	}
}

// New derives a wallet from a BIP-39 mnemonic.
func New(mnemonic string, opts ...Option) (*Wallet, error) {
	w := &Wallet{
		evmChains: []walletbridge.ChainID{walletbridge.EthereumMainnet.ID},
		solChains: []walletbridge.ChainID{walletbridge.SolanaMainnet.ID},
		active:    make(map[walletbridge.Family]walletbridge.ChainID),
		accounts:  1,
		log:       slog.Default(),
		failCode:  walletbridge.CodeInternalError,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	seed, err := seedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	for i := 0; i < w.accounts; i++ {
		ek, err := deriveEVMKey(seed, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
		}
		sk, err := deriveSolanaKey(seed, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
		}
		w.evmKeys = append(w.evmKeys, ek)
		w.solKeys = append(w.solKeys, sk)
	}
	return w, nil
}

// EVMAddresses returns the checksummed EVM addresses in account order.
func (w *Wallet) EVMAddresses() []string {
	out := make([]string, len(w.evmKeys))
	for i, k := range w.evmKeys {
		out[i] = crypto.PubkeyToAddress(k.PublicKey).Hex()
	}
	return out
}

// SolanaKeys returns the Solana public keys in account order.
func (w *Wallet) SolanaKeys() []solana.PublicKey {
	out := make([]solana.PublicKey, len(w.solKeys))
	for i, k := range w.solKeys {
		out[i] = k.PublicKey()
	}
	return out
}

// SetBehavior changes how later requests are answered.
func (w *Wallet) SetBehavior(b Behavior) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.behavior = b
}

// Requests returns every request received so far.
func (w *Wallet) Requests() []walletbridge.Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]walletbridge.Request, len(w.requests))
	copy(out, w.requests)
	return out
}

func (w *Wallet) current() (Behavior, walletbridge.ErrorCode) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.behavior, w.failCode
}

// Serve answers one request on remote. It has the transport.ServeFunc shape.
func (w *Wallet) Serve(ctx context.Context, url string, remote *transport.Remote) {
	behavior, _ := w.current()
	log := w.log.With("component", "walletsim", "behavior", behavior.String())

	if behavior == NeverReady {
		select {
		case <-remote.Done():
		case <-ctx.Done():
		}
		return
	}

	remote.Ready()
	select {
	case data := <-remote.Requests():
		if w.closeOnRequest() {
			log.Debug("closing window")
			remote.Close()
			return
		}
		remote.Post(w.HandleMessage(data))
	case <-remote.Done():
	case <-ctx.Done():
	}
}

func (w *Wallet) closeOnRequest() bool {
	b, _ := w.current()
	return b == CloseWindow
}

// HandleMessage decodes a request envelope and returns the encoded response.
func (w *Wallet) HandleMessage(data []byte) []byte {
	var req walletbridge.Request
	var resp walletbridge.Response
	if err := json.Unmarshal(data, &req); err != nil || req.Method == "" {
		resp = walletbridge.NewErrorResponse(req.Method,
			walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "malformed request", err))
	} else {
		resp = w.Handle(req)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		out, _ = json.Marshal(walletbridge.NewErrorResponse(req.Method,
			walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to encode response", err)))
	}
	return out
}

// Handle answers a decoded request according to the current behavior.
func (w *Wallet) Handle(req walletbridge.Request) walletbridge.Response {
	w.mu.Lock()
	w.requests = append(w.requests, req)
	w.mu.Unlock()

	behavior, code := w.current()
	switch behavior {
	case Reject:
		return walletbridge.NewErrorResponse(req.Method,
			walletbridge.NewProviderError(walletbridge.CodeUserRejected, "user rejected the request", nil))
	case Fail:
		return walletbridge.NewErrorResponse(req.Method,
			walletbridge.NewProviderError(code, "wallet failure", nil))
	}

	result, err := w.answer(req)
	if err != nil {
		perr := walletbridge.AsProviderError(err, walletbridge.CodeInternalError, "wallet error")
		w.log.Debug("request failed", "method", string(req.Method), "code", int(perr.Code), "error", err)
		return walletbridge.NewErrorResponse(req.Method, perr)
	}
	resp, err := walletbridge.NewResult(req.Method, result)
	if err != nil {
		return walletbridge.NewErrorResponse(req.Method,
			walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to encode result", err))
	}
	return resp
}

func (w *Wallet) answer(req walletbridge.Request) (any, error) {
	if req.Method == walletbridge.MethodConnect {
		return w.connect(req)
	}
	if req.Method == walletbridge.MethodDisconnect {
		return struct{}{}, nil
	}

	switch req.Network {
	case walletbridge.FamilyEVM:
		return w.answerEVM(req)
	case walletbridge.FamilySolana:
		return w.answerSolana(req)
	}
	return nil, walletbridge.NewProviderError(walletbridge.CodeUnsupportedMethod, "unsupported network", nil).
		WithDetails("network", string(req.Network))
}

func (w *Wallet) connect(req walletbridge.Request) (any, error) {
	var params walletbridge.ConnectRequest
	if len(req.Params) > 0 {
		if err := req.DecodeParams(&params); err != nil {
			return nil, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "malformed connect request", err)
		}
	}

	families := []walletbridge.Family{walletbridge.FamilyEVM, walletbridge.FamilySolana}
	if len(params.Namespaces) > 0 {
		families = families[:0]
		for _, f := range []walletbridge.Family{walletbridge.FamilyEVM, walletbridge.FamilySolana} {
			if _, ok := params.Namespaces[f]; ok {
				families = append(families, f)
			}
		}
	}

	res := walletbridge.ConnectResult{}
	for _, f := range families {
		ns := w.namespace(f)
		if w.legacy {
			if res.Accounts == nil {
				res.Accounts = make(map[walletbridge.Family][]string)
			}
			res.Accounts[f] = ns.Accounts
			if f == req.Network {
				res.ChainID = ns.ActiveChain
				if res.ChainID == "" && len(ns.Chains) > 0 {
					res.ChainID = ns.Chains[0]
				}
			}
			continue
		}
		if res.Namespaces == nil {
			res.Namespaces = make(map[walletbridge.Family]walletbridge.Namespace)
		}
		res.Namespaces[f] = ns
	}
	return res, nil
}

func (w *Wallet) namespace(f walletbridge.Family) walletbridge.Namespace {
	var chains []walletbridge.ChainID
	var addrs []string
	switch f {
	case walletbridge.FamilyEVM:
		chains, addrs = w.evmChains, w.EVMAddresses()
	case walletbridge.FamilySolana:
		chains = w.solChains
		for _, k := range w.SolanaKeys() {
			addrs = append(addrs, k.String())
		}
	}

	ns := walletbridge.Namespace{Accounts: []string{}, Chains: chains, ActiveChain: w.active[f]}
	for _, c := range chains {
		for _, a := range addrs {
			ns.Accounts = append(ns.Accounts, walletbridge.Account{Chain: c, Address: a}.String())
		}
	}
	return ns
}

func (w *Wallet) evmKey(address string) (*ecdsa.PrivateKey, error) {
	for _, k := range w.evmKeys {
		if strings.EqualFold(crypto.PubkeyToAddress(k.PublicKey).Hex(), address) {
			return k, nil
		}
	}
	return nil, walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "unknown account", nil).
		WithDetails("account", address)
}

func (w *Wallet) solanaKey(pub solana.PublicKey) *solana.PrivateKey {
	for i := range w.solKeys {
		if w.solKeys[i].PublicKey().Equals(pub) {
			return &w.solKeys[i]
		}
	}
	return nil
}
