package svm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/encoding"
)

var (
	blockhash = solana.MustHashFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	sink      = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey() error = %v", err)
	}
	return key
}

func transfer(t *testing.T, from, to solana.PublicKey, versioned bool) *solana.Transaction {
	t.Helper()
	tx, err := NewTransfer(from, to, 5000, blockhash)
	if err != nil {
		t.Fatalf("NewTransfer() error = %v", err)
	}
	if versioned {
		Versioned(tx)
	}
	return tx
}

func TestEncodeTransaction_RoundTrip(t *testing.T) {
	payer := newKey(t).PublicKey()
	to := newKey(t).PublicKey()

	tests := []struct {
		name      string
		versioned bool
		enc       walletbridge.Encoding
	}{
		{"legacy base58", false, walletbridge.EncodingBase58},
		{"legacy base64", false, walletbridge.EncodingBase64},
		{"versioned base58", true, walletbridge.EncodingBase58},
		{"versioned base64", true, walletbridge.EncodingBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := transfer(t, payer, to, tt.versioned)

			et, err := EncodeTransaction(tx, tt.enc, 4)
			if err != nil {
				t.Fatalf("EncodeTransaction() error = %v", err)
			}
			if et.Versioned != tt.versioned || et.Encoding != tt.enc || et.Index != 4 {
				t.Errorf("EncodeTransaction() = %+v", et)
			}

			got, err := DecodeTransaction(et)
			if err != nil {
				t.Fatalf("DecodeTransaction() error = %v", err)
			}
			if got.Transaction == nil || got.Preview != nil {
				t.Fatalf("DecodeTransaction() = %+v, want a parsed transaction", got)
			}
			if got.Index != 4 || got.Versioned != tt.versioned {
				t.Errorf("Index = %d Versioned = %v", got.Index, got.Versioned)
			}

			signer, err := AuthorizingAccount(got.Transaction)
			if err != nil || !signer.Equals(payer) {
				t.Errorf("AuthorizingAccount() = %s, %v", signer, err)
			}
			if len(got.Transaction.Message.Instructions) != len(tx.Message.Instructions) {
				t.Errorf("instructions = %d, want %d", len(got.Transaction.Message.Instructions), len(tx.Message.Instructions))
			}

			want, _ := tx.Message.MarshalBinary()
			have, _ := got.Transaction.Message.MarshalBinary()
			if !bytes.Equal(want, have) {
				t.Error("message bytes changed in the round trip")
			}
		})
	}
}

func TestEncodeTransaction_Errors(t *testing.T) {
	if _, err := EncodeTransaction(nil, walletbridge.EncodingBase64, 0); !errors.Is(err, walletbridge.ErrInvalidParams) {
		t.Errorf("EncodeTransaction(nil) error = %v, want ErrInvalidParams", err)
	}
	tx := transfer(t, newKey(t).PublicKey(), newKey(t).PublicKey(), false)
	if _, err := EncodeTransaction(tx, "hex", 0); !errors.Is(err, walletbridge.ErrInvalidParams) {
		t.Errorf("EncodeTransaction(hex) error = %v, want ErrInvalidParams", err)
	}
	et, err := EncodeTransaction(tx, "", 0)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}
	if et.Encoding != DefaultEncoding {
		t.Errorf("Encoding = %s, want %s", et.Encoding, DefaultEncoding)
	}
}

func TestDecodeTransaction_DefaultEncoding(t *testing.T) {
	tx := transfer(t, newKey(t).PublicKey(), newKey(t).PublicKey(), false)

	tests := []struct {
		name  string
		enc   walletbridge.Encoding
		clear bool
	}{
		{name: "explicit base58", enc: walletbridge.EncodingBase58},
		{name: "explicit base64", enc: walletbridge.EncodingBase64},
		{name: "untagged base58", enc: walletbridge.EncodingBase58, clear: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			et, err := EncodeTransaction(tx, tt.enc, 1)
			if err != nil {
				t.Fatalf("EncodeTransaction() error = %v", err)
			}
			if tt.clear {
				et.Encoding = ""
			}
			got, err := DecodeTransaction(et)
			if err != nil {
				t.Fatalf("DecodeTransaction() error = %v", err)
			}
			if got.Transaction == nil || got.Index != 1 {
				t.Fatalf("DecodeTransaction() = %+v, want a parsed transaction", got)
			}
		})
	}
}

func TestDecodeTransaction_Preview(t *testing.T) {
	sig := bytes.Repeat([]byte{7}, solana.SignatureLength)
	raw := append([]byte{1}, sig...)
	raw = append(raw, 0x80, 0x01) // v0 prefix, then a truncated header

	data, _ := encoding.Encode(raw, walletbridge.EncodingBase64)

	got, err := DecodeTransaction(walletbridge.EncodedTransaction{
		Encoding:  walletbridge.EncodingBase64,
		Versioned: true,
		Index:     2,
		Data:      data,
	})
	if err != nil {
		t.Fatalf("DecodeTransaction() error = %v", err)
	}
	if got.Transaction != nil || got.Preview == nil {
		t.Fatalf("DecodeTransaction() = %+v, want a preview", got)
	}
	p := got.Preview
	if p.Size != len(raw) || p.SignatureCount != 1 || len(p.Signatures) != 1 {
		t.Errorf("Preview = %+v", p)
	}
	if first, ok := got.Signature(); !ok || !bytes.Equal(first[:], sig) {
		t.Errorf("Signature() = %s, %v", first, ok)
	}
	if got.Index != 2 || !got.Versioned {
		t.Errorf("Index = %d Versioned = %v", got.Index, got.Versioned)
	}

	// The same bytes declared as legacy are an error.
	_, err = DecodeTransaction(walletbridge.EncodedTransaction{Encoding: walletbridge.EncodingBase64, Data: data})
	if !errors.Is(err, walletbridge.ErrInternal) {
		t.Errorf("legacy DecodeTransaction() error = %v, want ErrInternal", err)
	}

	_, err = DecodeTransaction(walletbridge.EncodedTransaction{Encoding: walletbridge.EncodingBase58, Data: "0OIl"})
	if !errors.Is(err, walletbridge.ErrInternal) {
		t.Errorf("bad base58 DecodeTransaction() error = %v, want ErrInternal", err)
	}
}

func TestEncodeMessage(t *testing.T) {
	msg, err := EncodeMessage([]byte("Sign in to example.com"), walletbridge.EncodingBase64)
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}
	if msg.Display != "Sign in to example.com" || msg.Encoding != walletbridge.EncodingBase64 {
		t.Errorf("EncodeMessage() = %+v", msg)
	}
	raw, _ := encoding.Decode(msg.Data, msg.Encoding)
	if string(raw) != "Sign in to example.com" {
		t.Errorf("Data decodes to %q", raw)
	}

	binary, err := EncodeMessage([]byte{0xff, 0x00, 0x01}, "")
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}
	if binary.Display != "" || binary.Encoding != walletbridge.EncodingBase58 {
		t.Errorf("EncodeMessage(binary) = %+v", binary)
	}
}

func TestDecodeSignature(t *testing.T) {
	key := newKey(t)
	sig, err := key.Sign([]byte("hello"))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	for _, enc := range []walletbridge.Encoding{walletbridge.EncodingBase58, walletbridge.EncodingBase64, ""} {
		alphabet := enc
		if alphabet == "" {
			alphabet = walletbridge.EncodingBase58
		}
		s, _ := encoding.Encode(sig[:], alphabet)
		got, err := DecodeSignature(s, enc)
		if err != nil {
			t.Fatalf("DecodeSignature(%q) error = %v", enc, err)
		}
		if !got.Equals(sig) {
			t.Errorf("DecodeSignature(%q) = %s, want %s", enc, got, sig)
		}
	}

	short, _ := encoding.Encode([]byte{1, 2, 3}, walletbridge.EncodingBase58)
	if _, err := DecodeSignature(short, walletbridge.EncodingBase58); err == nil {
		t.Error("DecodeSignature() should reject a short signature")
	}
}

func TestLamports(t *testing.T) {
	lamports, err := ToLamports("1.5")
	if err != nil {
		t.Fatalf("ToLamports() error = %v", err)
	}
	if lamports.String() != "1500000000" {
		t.Errorf("ToLamports(1.5) = %s", lamports)
	}
	if got := FromLamports(lamports); got != "1.5" {
		t.Errorf("FromLamports() = %s", got)
	}

	truncated, _ := ToLamports("0.0000000019")
	if truncated.String() != "1" {
		t.Errorf("ToLamports should truncate, got %s", truncated)
	}
	if _, err := ToLamports("-1"); err == nil {
		t.Error("ToLamports() should reject negative amounts")
	}
}
