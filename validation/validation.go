// Package validation checks caller-supplied identifiers before any wallet
// window is opened, so malformed input fails fast.
package validation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/mark3labs/walletbridge-go"
)

// ValidateAmount validates that an amount string is a positive integer in
// base units.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount format: %s", amount)
	}

	if amt.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0, got: %s", amount)
	}

	return nil
}

// ValidateAddress validates an address using the rules of family.
func ValidateAddress(address string, family walletbridge.Family) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch family {
	case walletbridge.FamilyEVM:
		if !common.IsHexAddress(address) || len(address) != 42 {
			return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
		}
		return nil

	case walletbridge.FamilySolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid Solana address format: %s (expected base58 32-byte public key)", address)
		}
		return nil

	default:
		return fmt.Errorf("unsupported family for address validation: %q", family)
	}
}

// ValidateChainID validates a namespaced chain identifier for a known family.
func ValidateChainID(chain walletbridge.ChainID) error {
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("invalid chain: %w", err)
	}
	return nil
}

// ValidateAccount validates a fully qualified "family:reference:address"
// account string.
func ValidateAccount(account string) error {
	acct, err := walletbridge.ParseAccount(account)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	if err := ValidateChainID(acct.Chain); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	if err := ValidateAddress(acct.Address, acct.Chain.Family()); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	return nil
}
