package mcp

import (
	"encoding/json"
	"time"
)

// Tool names exposed by the wallet server.
const (
	ToolEVMConnect         = "evm_connect"
	ToolEVMAccounts        = "evm_accounts"
	ToolEVMSwitchChain     = "evm_switch_chain"
	ToolEVMSignMessage     = "evm_sign_message"
	ToolEVMSendTransaction = "evm_send_transaction"
	ToolEVMRequest         = "evm_request"

	ToolSolanaConnect                = "solana_connect"
	ToolSolanaSignMessage            = "solana_sign_message"
	ToolSolanaSignTransaction        = "solana_sign_transaction"
	ToolSolanaSignAndSendTransaction = "solana_sign_and_send_transaction"
	ToolSolanaTransfer               = "solana_transfer"
)

// DefaultCallTimeout bounds a single tool call. It covers the time a person
// needs to look at the wallet popup and approve.
const DefaultCallTimeout = 5 * time.Minute

// ConnectResult is returned by the connect tools.
type ConnectResult struct {
	Accounts []string `json:"accounts"`
	ChainID  string   `json:"chainId"`
}

// AccountsResult is returned by evm_accounts.
type AccountsResult struct {
	Connected bool     `json:"connected"`
	Accounts  []string `json:"accounts"`
	ChainID   string   `json:"chainId"`
}

// SignatureResult carries a message signature or a transaction signature.
type SignatureResult struct {
	Signature string `json:"signature"`
}

// TransactionResult carries a submitted transaction's hash.
type TransactionResult struct {
	Hash string `json:"hash"`
}

// SignedTransactionResult carries a signed Solana transaction, re-encoded with
// the encoding it was submitted in.
type SignedTransactionResult struct {
	Transaction string `json:"transaction"`
	Encoding    string `json:"encoding"`
	Signature   string `json:"signature,omitempty"`
}

// RequestResult wraps the raw result of evm_request.
type RequestResult struct {
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
}
