package evm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/internal/provider"
)

// EIP-1193 method names understood by ParseOperation.
const (
	MethodRequestAccounts     = "eth_requestAccounts"
	MethodAccounts            = "eth_accounts"
	MethodChainID             = "eth_chainId"
	MethodSwitchChain         = "wallet_switchEthereumChain"
	MethodPersonalSign        = "personal_sign"
	MethodSignTransaction     = "eth_signTransaction"
	MethodSendTransaction     = "eth_sendTransaction"
	MethodSignAllTransactions = "eth_signAllTransactions"
)

// Operation is one request accepted by Provider.Request. The set of
// implementations is closed; each one maps to exactly one provider method.
type Operation interface {
	// Name is the EIP-1193 method name.
	Name() string
	operation()
}

// RequestAccounts connects and returns the active chain's accounts.
type RequestAccounts struct{}

// GetAccounts returns the current accounts without contacting the wallet.
type GetAccounts struct{}

// GetChainID returns the active chain as a hex quantity.
type GetChainID struct{}

// SwitchChain changes the active chain.
type SwitchChain struct {
	ChainID walletbridge.ChainID
}

// PersonalSign signs a text message.
type PersonalSign struct {
	Account string
	Message string
}

// SignTransaction signs without broadcasting.
type SignTransaction struct {
	Transaction Transaction
}

// SendTransaction signs and broadcasts.
type SendTransaction struct {
	Transaction Transaction
}

// SignAllTransactions signs a batch.
type SignAllTransactions struct {
	Transactions []Transaction
}

func (RequestAccounts) Name() string     { return MethodRequestAccounts }
func (GetAccounts) Name() string         { return MethodAccounts }
func (GetChainID) Name() string          { return MethodChainID }
func (SwitchChain) Name() string         { return MethodSwitchChain }
func (PersonalSign) Name() string        { return MethodPersonalSign }
func (SignTransaction) Name() string     { return MethodSignTransaction }
func (SendTransaction) Name() string     { return MethodSendTransaction }
func (SignAllTransactions) Name() string { return MethodSignAllTransactions }

func (RequestAccounts) operation()     {}
func (GetAccounts) operation()         {}
func (GetChainID) operation()          {}
func (SwitchChain) operation()         {}
func (PersonalSign) operation()        {}
func (SignTransaction) operation()     {}
func (SendTransaction) operation()     {}
func (SignAllTransactions) operation() {}

// Request performs op. The result type depends on the operation:
//   - RequestAccounts, GetAccounts: []string
//   - GetChainID: string (hex)
//   - SwitchChain: nil
//   - PersonalSign, SignTransaction, SendTransaction: string
//   - SignAllTransactions: []string
func (p *Provider) Request(ctx context.Context, op Operation) (any, error) {
	if op == nil {
		return nil, unsupported("")
	}
	switch op := op.(type) {
	case RequestAccounts:
		return p.Connect(ctx)
	case GetAccounts:
		return p.Accounts(), nil
	case GetChainID:
		return p.ChainIDHex()
	case SwitchChain:
		return nil, p.SwitchChain(op.ChainID)
	case PersonalSign:
		return p.SignMessage(ctx, op.Account, op.Message)
	case SignTransaction:
		return p.SignTransaction(ctx, op.Transaction)
	case SendTransaction:
		return p.SendTransaction(ctx, op.Transaction)
	case SignAllTransactions:
		return p.SignAllTransactions(ctx, op.Transactions)
	default:
		return nil, unsupported(op.Name())
	}
}

// ParseOperation converts an EIP-1193 method name and its JSON params array
// into an Operation. Unknown methods fail with UnsupportedMethod.
func ParseOperation(method string, params json.RawMessage) (Operation, error) {
	switch method {
	case MethodRequestAccounts:
		return RequestAccounts{}, nil
	case MethodAccounts:
		return GetAccounts{}, nil
	case MethodChainID:
		return GetChainID{}, nil

	case MethodSwitchChain:
		var args []struct {
			ChainID string `json:"chainId"`
		}
		if err := unmarshalParams(params, &args); err != nil || len(args) != 1 {
			return nil, badParams(method, err)
		}
		chain, err := parseChain(args[0].ChainID)
		if err != nil {
			return nil, badParams(method, err)
		}
		return SwitchChain{ChainID: chain}, nil

	case MethodPersonalSign:
		var args []string
		if err := unmarshalParams(params, &args); err != nil || len(args) < 2 {
			return nil, badParams(method, err)
		}
		return PersonalSign{Account: args[1], Message: decodeMessage(args[0])}, nil

	case MethodSignTransaction, MethodSendTransaction:
		var args []json.RawMessage
		if err := unmarshalParams(params, &args); err != nil || len(args) != 1 {
			return nil, badParams(method, err)
		}
		tx, err := DecodeTransaction(args[0])
		if err != nil {
			return nil, err
		}
		if method == MethodSendTransaction {
			return SendTransaction{Transaction: tx}, nil
		}
		return SignTransaction{Transaction: tx}, nil

	case MethodSignAllTransactions:
		var args []json.RawMessage
		if err := unmarshalParams(params, &args); err != nil || len(args) == 0 {
			return nil, badParams(method, err)
		}
		txs := make([]Transaction, len(args))
		for i, a := range args {
			tx, err := DecodeTransaction(a)
			if err != nil {
				return nil, provider.AtIndex(err, i)
			}
			txs[i] = tx
		}
		return SignAllTransactions{Transactions: txs}, nil
	}
	return nil, unsupported(method)
}

func unmarshalParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		params = json.RawMessage("[]")
	}
	return json.Unmarshal(params, v)
}

// parseChain accepts both "0x89" and "eip155:137".
func parseChain(s string) (walletbridge.ChainID, error) {
	if strings.HasPrefix(s, string(walletbridge.FamilyEVM)+":") {
		return walletbridge.ParseChainID(s)
	}
	return walletbridge.HexToChainID(s)
}

// decodeMessage turns a hex-encoded personal_sign payload into text. Anything
// that is not valid hex is treated as text already.
func decodeMessage(s string) string {
	if b, err := hexutil.Decode(s); err == nil {
		return string(b)
	}
	return s
}

func badParams(method string, err error) error {
	return walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "invalid params", err).
		WithDetails("method", method)
}

func unsupported(method string) error {
	return walletbridge.NewProviderError(walletbridge.CodeUnsupportedMethod, "unsupported method", nil).
		WithDetails("method", method)
}
