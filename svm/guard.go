package svm

import (
	"github.com/gagliardetto/solana-go"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/internal/provider"
)

// AuthorizingAccount returns the account whose signature authorizes tx: the
// fee payer of a legacy transaction or the first static key of a versioned
// one. A transaction of any other shape has no authorizing account.
func AuthorizingAccount(tx *solana.Transaction) (solana.PublicKey, error) {
	if tx == nil {
		return solana.PublicKey{}, cannotVerify("missing transaction")
	}
	msg := tx.Message
	if msg.Header.NumRequiredSignatures == 0 || len(msg.AccountKeys) == 0 {
		return solana.PublicKey{}, cannotVerify("transaction has no signers")
	}

	// Legacy and v0 messages both list the fee payer first among the static
	// keys; only the name differs.
	switch msg.GetVersion() {
	case solana.MessageVersionLegacy, solana.MessageVersionV0:
		return msg.AccountKeys[0], nil
	default:
		return solana.PublicKey{}, cannotVerify("unknown message version")
	}
}

// VerifyOwnership fails with Unauthorized unless tx is authorized by key.
func VerifyOwnership(tx *solana.Transaction, key solana.PublicKey) error {
	signer, err := AuthorizingAccount(tx)
	if err != nil {
		return err
	}
	if !signer.Equals(key) {
		return walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "transaction does not belong to the connected account", nil).
			WithDetails("account", key.String()).
			WithDetails("signer", signer.String())
	}
	return nil
}

// VerifyBatch checks every transaction and reports the first failing index.
func VerifyBatch(txs []*solana.Transaction, key solana.PublicKey) error {
	for i, tx := range txs {
		if err := VerifyOwnership(tx, key); err != nil {
			return provider.AtIndex(err, i)
		}
	}
	return nil
}

func cannotVerify(reason string) error {
	return walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "cannot verify ownership", nil).
		WithDetails("reason", reason)
}
