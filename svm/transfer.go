package svm

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// splTransfer is the SPL Token program's Transfer instruction discriminator.
const splTransfer = 3

// NewTransfer builds an unsigned SOL transfer paid for by from.
func NewTransfer(from, to solana.PublicKey, lamports uint64, recentBlockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, from, to).Build()},
		recentBlockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// NewTokenTransfer builds an unsigned SPL token transfer between the
// associated token accounts of owner and recipient. owner pays the fee.
func NewTokenTransfer(owner, mint, recipient solana.PublicKey, amount uint64, recentBlockhash solana.Hash) (*solana.Transaction, error) {
	sourceATA, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find source ATA: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find destination ATA: %w", err)
	}

	data := make([]byte, 9)
	data[0] = splTransfer
	binary.LittleEndian.PutUint64(data[1:], amount)

	transfer := solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			solana.Meta(sourceATA).WRITE(),
			solana.Meta(destATA).WRITE(),
			solana.Meta(owner).SIGNER(),
		},
		data,
	)

	tx, err := solana.NewTransaction([]solana.Instruction{transfer}, recentBlockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// Versioned switches tx to the v0 message format and returns it.
func Versioned(tx *solana.Transaction) *solana.Transaction {
	tx.Message.SetVersion(solana.MessageVersionV0)
	return tx
}
