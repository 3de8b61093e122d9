package walletbridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// Method names the operation carried by an envelope.
type Method string

const (
	// MethodReady is sent by the wallet once it has loaded, before any request.
	MethodReady Method = "ready"

	MethodConnect                Method = "connect"
	MethodDisconnect             Method = "disconnect"
	MethodSignMessage            Method = "signMessage"
	MethodSignTransaction        Method = "signTransaction"
	MethodSignAndSendTransaction Method = "signAndSendTransaction"
	MethodSignAllTransactions    Method = "signAllTransactions"
)

// Methods lists every request method a provider may send.
func Methods() []Method {
	return []Method{
		MethodConnect,
		MethodDisconnect,
		MethodSignMessage,
		MethodSignTransaction,
		MethodSignAndSendTransaction,
		MethodSignAllTransactions,
	}
}

// Request is the envelope sent from the caller to the wallet.
type Request struct {
	// Method is the operation being requested.
	Method Method `json:"method"`

	// Network is the family the request is scoped to.
	Network Family `json:"network"`

	// ChainID is the active chain at call time, when applicable.
	ChainID ChainID `json:"chainId,omitempty"`

	// Params is the method-specific payload.
	Params json.RawMessage `json:"params,omitempty"`

	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewRequest builds a request envelope, marshaling params to JSON.
func NewRequest(method Method, network Family, chain ChainID, params any) (*Request, error) {
	req := &Request{
		Method:    method,
		Network:   network,
		ChainID:   chain,
		Timestamp: time.Now().UnixMilli(),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// DecodeParams unmarshals the request payload into v.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 {
		return fmt.Errorf("params: missing for %s", r.Method)
	}
	if err := json.Unmarshal(r.Params, v); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// Response is the envelope sent from the wallet back to the caller. Exactly
// one of Result and Error is set, except for the ready message which has
// neither.
type Response struct {
	Method Method          `json:"method"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// ReadyMessage returns the zero-payload readiness signal.
func ReadyMessage() Response {
	return Response{Method: MethodReady}
}

// NewResult builds a successful response.
func NewResult(method Method, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal %s result: %w", method, err)
	}
	return Response{Method: method, Result: raw}, nil
}

// NewErrorResponse builds a failed response.
func NewErrorResponse(method Method, err *ProviderError) Response {
	return Response{Method: method, Error: err.Wire()}
}

// Err returns the remote-reported error, or nil.
func (r *Response) Err() *ProviderError {
	return FromWire(r.Error)
}

// Decode unmarshals the response result into v.
func (r *Response) Decode(v any) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("result: missing for %s", r.Method)
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("result: %w", err)
	}
	return nil
}

// Envelope is the minimal shape used to classify an inbound message.
type Envelope struct {
	Method Method `json:"method"`
}

// PeekMethod returns the method of an encoded envelope.
func PeekMethod(data []byte) (Method, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	if env.Method == "" {
		return "", fmt.Errorf("envelope: missing method")
	}
	return env.Method, nil
}

// NamespaceRequest declares what a caller wants from one family during
// negotiation.
type NamespaceRequest struct {
	Chains  []ChainID `json:"chains"`
	Methods []Method  `json:"methods"`
	Events  []Event   `json:"events"`
}

// ConnectRequest is the connect payload.
type ConnectRequest struct {
	Namespaces map[Family]NamespaceRequest `json:"namespaces"`
	AppName    string                      `json:"appName,omitempty"`
}

// Namespace is what the wallet grants for one family.
type Namespace struct {
	// Accounts are namespaced account strings in the wallet's order.
	Accounts []string `json:"accounts"`

	// Chains optionally lists supported chains explicitly.
	Chains []ChainID `json:"chains,omitempty"`

	// ActiveChain optionally names the wallet's current chain.
	ActiveChain ChainID `json:"activeChain,omitempty"`
}

// ConnectResult is the wallet's answer to connect. Namespaces is the
// canonical form; Accounts and ChainID are the flat legacy form and are only
// consulted when Namespaces has no entry for the family being negotiated.
type ConnectResult struct {
	Namespaces map[Family]Namespace `json:"namespaces,omitempty"`
	Accounts   map[Family][]string  `json:"accounts,omitempty"`
	ChainID    ChainID              `json:"chainId,omitempty"`
}

// Encoding is the text-safe alphabet used for byte payloads.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingBase58 Encoding = "base58"
)

// Valid reports whether e is a supported encoding tag.
func (e Encoding) Valid() bool {
	return e == EncodingBase64 || e == EncodingBase58
}

// EncodedTransaction is a serialized transaction safe to place in an
// envelope. It is never mutated after creation.
type EncodedTransaction struct {
	// Encoding is the alphabet Data is written in.
	Encoding Encoding `json:"encoding"`

	// Versioned is true for Solana versioned transactions.
	Versioned bool `json:"versioned"`

	// Index is the position of the transaction within a batch.
	Index int `json:"index"`

	// Data is the encoded transaction bytes.
	Data string `json:"data"`
}

// EncodedMessage is an arbitrary byte message tagged with its encoding.
type EncodedMessage struct {
	Encoding Encoding `json:"encoding"`
	Data     string   `json:"data"`

	// Display is the UTF-8 text of the message when it has one.
	Display string `json:"display,omitempty"`
}

// SignMessageParams is the signMessage payload.
type SignMessageParams struct {
	// Account is the signer requested by the caller.
	Account string `json:"account"`

	// Message is the plain-text message (EVM personal_sign).
	Message string `json:"message,omitempty"`

	// Encoded is the byte message (Solana).
	Encoded *EncodedMessage `json:"encoded,omitempty"`
}

// SignMessageResult is the signMessage answer.
type SignMessageResult struct {
	Signature string   `json:"signature"`
	Encoding  Encoding `json:"encoding,omitempty"`
}

// SignTransactionParams carries one transaction. EVM transactions travel as
// a JSON object in Transaction, Solana transactions as Encoded.
type SignTransactionParams struct {
	Account     string              `json:"account"`
	Transaction json.RawMessage     `json:"transaction,omitempty"`
	Encoded     *EncodedTransaction `json:"encoded,omitempty"`
}

// SignAndSendParams is the signAndSendTransaction payload.
type SignAndSendParams struct {
	SignTransactionParams
	Options json.RawMessage `json:"options,omitempty"`
}

// SignAllTransactionsParams carries an indexed batch.
type SignAllTransactionsParams struct {
	Account      string               `json:"account"`
	Transactions []json.RawMessage    `json:"transactions,omitempty"`
	Encoded      []EncodedTransaction `json:"encoded,omitempty"`
}

// SignedTransactionResult is the answer to signTransaction. EVM wallets return
// a signed raw transaction in Raw; Solana wallets return Encoded.
type SignedTransactionResult struct {
	Raw     string              `json:"raw,omitempty"`
	Encoded *EncodedTransaction `json:"encoded,omitempty"`
}

// SignAllTransactionsResult is the answer to signAllTransactions.
type SignAllTransactionsResult struct {
	Raw     []string             `json:"raw,omitempty"`
	Encoded []EncodedTransaction `json:"encoded,omitempty"`
}

// SendResult is the answer to signAndSendTransaction: a transaction hash for
// EVM chains or a signature for Solana.
type SendResult struct {
	Hash string `json:"hash"`
}
