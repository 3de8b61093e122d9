// Package evm is the EVM-family provider facade: a popup-backed EIP-1193
// style provider plus the codec that turns transactions into wire-safe JSON.
package evm

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mark3labs/walletbridge-go"
)

// Transaction is an unsigned EVM transaction request. Nil and empty fields
// are absent and are left for the wallet to fill in.
type Transaction struct {
	From                 string
	To                   string
	Value                *big.Int
	Gas                  *uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *uint64
	Data                 []byte
	ChainID              *big.Int
}

// wireTransaction is the JSON form sent to the wallet. Quantities are hex
// strings and absent fields are omitted.
type wireTransaction struct {
	From                 string          `json:"from"`
	To                   string          `json:"to,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

// EncodeTransaction validates tx and converts it to its wire form. Addresses
// are passed through unchanged.
func EncodeTransaction(tx Transaction) (json.RawMessage, error) {
	if !isAddress(tx.From) {
		return nil, invalidTx("invalid from address", tx.From)
	}
	if tx.To != "" && !isAddress(tx.To) {
		return nil, invalidTx("invalid to address", tx.To)
	}

	w := wireTransaction{
		From: tx.From,
		To:   tx.To,
		Data: tx.Data,
	}
	quantities := []struct {
		name string
		in   *big.Int
		out  **hexutil.Big
	}{
		{"value", tx.Value, &w.Value},
		{"gasPrice", tx.GasPrice, &w.GasPrice},
		{"maxFeePerGas", tx.MaxFeePerGas, &w.MaxFeePerGas},
		{"maxPriorityFeePerGas", tx.MaxPriorityFeePerGas, &w.MaxPriorityFeePerGas},
		{"chainId", tx.ChainID, &w.ChainID},
	}
	for _, q := range quantities {
		if q.in == nil {
			continue
		}
		if q.in.Sign() < 0 {
			return nil, invalidTx("negative "+q.name, q.in.String())
		}
		*q.out = (*hexutil.Big)(new(big.Int).Set(q.in))
	}
	if tx.Gas != nil {
		g := hexutil.Uint64(*tx.Gas)
		w.Gas = &g
	}
	if tx.Nonce != nil {
		n := hexutil.Uint64(*tx.Nonce)
		w.Nonce = &n
	}

	raw, err := json.Marshal(w)
	if err != nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to encode transaction", err)
	}
	return raw, nil
}

// DecodeTransaction parses the wire form produced by EncodeTransaction.
func DecodeTransaction(raw json.RawMessage) (Transaction, error) {
	var w wireTransaction
	if err := json.Unmarshal(raw, &w); err != nil {
		return Transaction{}, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "malformed transaction", err)
	}
	if !isAddress(w.From) {
		return Transaction{}, invalidTx("invalid from address", w.From)
	}
	if w.To != "" && !isAddress(w.To) {
		return Transaction{}, invalidTx("invalid to address", w.To)
	}

	tx := Transaction{
		From:                 w.From,
		To:                   w.To,
		Value:                w.Value.ToInt(),
		GasPrice:             w.GasPrice.ToInt(),
		MaxFeePerGas:         w.MaxFeePerGas.ToInt(),
		MaxPriorityFeePerGas: w.MaxPriorityFeePerGas.ToInt(),
		ChainID:              w.ChainID.ToInt(),
	}
	if len(w.Data) > 0 {
		tx.Data = []byte(w.Data)
	}
	if w.Gas != nil {
		g := uint64(*w.Gas)
		tx.Gas = &g
	}
	if w.Nonce != nil {
		n := uint64(*w.Nonce)
		tx.Nonce = &n
	}
	return tx, nil
}

// ToWei converts an ether amount such as "0.5" to wei, truncating anything
// below one wei.
func ToWei(ether string) (*big.Int, error) {
	return walletbridge.ToBaseUnits(ether, walletbridge.FamilyEVM.Decimals())
}

// FromWei formats a wei amount in ether.
func FromWei(wei *big.Int) string {
	return walletbridge.FromBaseUnits(wei, walletbridge.FamilyEVM.Decimals())
}

// Uint64 returns a pointer to v, for the optional Transaction fields.
func Uint64(v uint64) *uint64 { return &v }

func isAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && common.IsHexAddress(s)
}

func invalidTx(msg, value string) error {
	return walletbridge.NewProviderError(walletbridge.CodeInvalidParams, msg, fmt.Errorf("%q", value))
}
