// Package svm implements the Solana side of walletbridge: the transaction and
// message codec, the ownership guard, and the Solana provider facade.
package svm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"unicode"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/encoding"
)

// DefaultEncoding is used when the caller does not pick one.
const DefaultEncoding = walletbridge.EncodingBase58

// previewHead is how many leading bytes a Preview keeps.
const previewHead = 64

// SignedTransaction is a transaction returned by the wallet. Transaction is
// nil when the bytes could not be parsed; Preview is set instead.
type SignedTransaction struct {
	Index       int
	Versioned   bool
	Transaction *solana.Transaction
	Preview     *Preview
}

// Preview is a best-effort view of a versioned transaction this package
// could not parse.
type Preview struct {
	// Size is the total byte length.
	Size int `json:"size"`

	// SignatureCount is the compact-u16 prefix of the transaction.
	SignatureCount int `json:"signatureCount"`

	// Signatures holds the signatures that fit in the payload.
	Signatures []solana.Signature `json:"signatures"`

	// Head is the hex form of the leading bytes.
	Head string `json:"head"`
}

// Signature returns the first signature, which is the transaction id.
func (s *SignedTransaction) Signature() (solana.Signature, bool) {
	switch {
	case s.Transaction != nil && len(s.Transaction.Signatures) > 0:
		return s.Transaction.Signatures[0], true
	case s.Preview != nil && len(s.Preview.Signatures) > 0:
		return s.Preview.Signatures[0], true
	default:
		return solana.Signature{}, false
	}
}

// EncodeTransaction serializes tx without checking signatures and tags it
// with its shape, encoding and batch index. Missing signatures are written as
// zeroes.
func EncodeTransaction(tx *solana.Transaction, enc walletbridge.Encoding, index int) (walletbridge.EncodedTransaction, error) {
	if tx == nil {
		return walletbridge.EncodedTransaction{}, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "missing transaction", nil)
	}
	if enc == "" {
		enc = DefaultEncoding
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return walletbridge.EncodedTransaction{}, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "failed to serialize transaction", err)
	}
	data, err := encoding.Encode(raw, enc)
	if err != nil {
		return walletbridge.EncodedTransaction{}, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "failed to encode transaction", err)
	}
	return walletbridge.EncodedTransaction{
		Encoding:  enc,
		Versioned: tx.Message.IsVersioned(),
		Index:     index,
		Data:      data,
	}, nil
}

// DecodeTransaction parses a wallet-returned transaction in its declared
// encoding. A versioned transaction that does not parse yields a Preview
// rather than an error.
func DecodeTransaction(et walletbridge.EncodedTransaction) (*SignedTransaction, error) {
	if et.Encoding == "" {
		et.Encoding = DefaultEncoding
	}
	raw, err := encoding.Decode(et.Data, et.Encoding)
	if err != nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "malformed transaction encoding", err).
			WithDetails("index", et.Index)
	}

	out := &SignedTransaction{Index: et.Index, Versioned: et.Versioned}
	tx, err := solana.TransactionFromBytes(raw)
	if err == nil {
		out.Transaction = tx
		out.Versioned = tx.Message.IsVersioned()
		return out, nil
	}
	if !et.Versioned {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "malformed transaction", err).
			WithDetails("index", et.Index)
	}
	out.Preview = preview(raw)
	return out, nil
}

func preview(raw []byte) *Preview {
	p := &Preview{Size: len(raw)}
	head := raw
	if len(head) > previewHead {
		head = head[:previewHead]
	}
	p.Head = hex.EncodeToString(head)

	count, n, err := bin.DecodeCompactU16(raw)
	if err != nil {
		return p
	}
	p.SignatureCount = count
	rest := raw[n:]
	for i := 0; i < count && len(rest) >= solana.SignatureLength; i++ {
		p.Signatures = append(p.Signatures, solana.SignatureFromBytes(rest[:solana.SignatureLength]))
		rest = rest[solana.SignatureLength:]
	}
	return p
}

// EncodeMessage wraps message bytes for signMessage. Display carries the
// text when message is valid UTF-8.
func EncodeMessage(message []byte, enc walletbridge.Encoding) (walletbridge.EncodedMessage, error) {
	if enc == "" {
		enc = DefaultEncoding
	}
	data, err := encoding.Encode(message, enc)
	if err != nil {
		return walletbridge.EncodedMessage{}, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "failed to encode message", err)
	}
	out := walletbridge.EncodedMessage{Encoding: enc, Data: data}
	if isText(message) {
		out.Display = string(message)
	}
	return out, nil
}

// DecodeSignature parses a signature in the given encoding. An empty tag
// means base58, the native Solana form.
func DecodeSignature(s string, enc walletbridge.Encoding) (solana.Signature, error) {
	if enc == "" {
		enc = walletbridge.EncodingBase58
	}
	raw, err := encoding.Decode(s, enc)
	if err != nil {
		return solana.Signature{}, err
	}
	if len(raw) != solana.SignatureLength {
		return solana.Signature{}, fmt.Errorf("signature: got %d bytes, want %d", len(raw), solana.SignatureLength)
	}
	return solana.SignatureFromBytes(raw), nil
}

// ToLamports converts a SOL amount such as "0.5" into lamports, truncating
// digits beyond the ninth decimal.
func ToLamports(sol string) (*big.Int, error) {
	return walletbridge.ToBaseUnits(sol, walletbridge.FamilySolana.Decimals())
}

// FromLamports formats lamports as a SOL amount.
func FromLamports(lamports *big.Int) string {
	return walletbridge.FromBaseUnits(lamports, walletbridge.FamilySolana.Decimals())
}

func isText(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
