package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestRecoverAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := crypto.Sign(accounts.TextHash([]byte("sign in")), key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	raw := hexutil.Encode(sig)
	sig[64] += 27
	legacyV := hexutil.Encode(sig)

	for _, s := range []string{raw, legacyV} {
		got, err := RecoverAddress("sign in", s)
		if err != nil {
			t.Fatalf("RecoverAddress() error = %v", err)
		}
		if got != want {
			t.Errorf("RecoverAddress() = %s, want %s", got.Hex(), want.Hex())
		}
	}

	if !VerifyMessage(want.Hex(), "sign in", legacyV) {
		t.Error("VerifyMessage() = false, want true")
	}
	if VerifyMessage(want.Hex(), "another message", legacyV) {
		t.Error("VerifyMessage() accepted a different message")
	}
	if VerifyMessage(want.Hex(), "sign in", "0x1234") {
		t.Error("VerifyMessage() accepted a short signature")
	}
	if _, err := RecoverAddress("sign in", "not hex"); err == nil {
		t.Error("RecoverAddress() should reject non-hex input")
	}
}

func TestDecodeSignedTransaction(t *testing.T) {
	key, _ := crypto.GenerateKey()
	to := common.HexToAddress(bob)
	chainID := big.NewInt(8453)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(42),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		t.Fatalf("SignTx() error = %v", err)
	}
	blob, _ := signed.MarshalBinary()

	got, err := DecodeSignedTransaction(hexutil.Encode(blob))
	if err != nil {
		t.Fatalf("DecodeSignedTransaction() error = %v", err)
	}
	if got.Hash() != signed.Hash() {
		t.Errorf("hash = %s, want %s", got.Hash(), signed.Hash())
	}
	if got.Nonce() != 3 || got.Value().Int64() != 42 {
		t.Errorf("decoded fields = nonce %d value %s", got.Nonce(), got.Value())
	}

	from, err := Sender(got)
	if err != nil {
		t.Fatalf("Sender() error = %v", err)
	}
	if from != crypto.PubkeyToAddress(key.PublicKey) {
		t.Errorf("Sender() = %s", from.Hex())
	}

	if _, err := DecodeSignedTransaction("0xdeadbeef"); err == nil {
		t.Error("DecodeSignedTransaction() should reject garbage")
	}
}
