package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverAddress returns the signer of an EIP-191 personal_sign signature.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature: got %d bytes, want %d", len(sig), crypto.SignatureLength)
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyMessage reports whether signature over message was produced by address.
func VerifyMessage(address, message, signature string) bool {
	got, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return got == common.HexToAddress(address)
}

// DecodeSignedTransaction parses a signed transaction blob as returned by
// SignTransaction.
func DecodeSignedTransaction(raw string) (*types.Transaction, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("signed transaction: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("signed transaction: %w", err)
	}
	return tx, nil
}

// Sender recovers the sender of a signed transaction.
func Sender(tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
}
