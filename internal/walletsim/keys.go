package walletsim

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// Key errors
var (
	ErrInvalidMnemonic = errors.New("walletsim: invalid mnemonic")
	ErrInvalidKeystore = errors.New("walletsim: invalid keystore")
)

// deriveEVMKey derives m/44'/60'/0'/0/{index}.
func deriveEVMKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := derivePath(seed,
		bip32.FirstHardenedChild+44,
		bip32.FirstHardenedChild+60,
		bip32.FirstHardenedChild+0,
		0,
		index,
	)
	if err != nil {
		return nil, err
	}
	return crypto.ToECDSA(key.Key)
}

// deriveSolanaKey derives m/44'/501'/{index}'/0' over secp256k1 and uses the
// child key as an ed25519 seed. This does not match SLIP-10 wallets; the keys
// are only meant to be deterministic.
func deriveSolanaKey(seed []byte, index uint32) (solana.PrivateKey, error) {
	key, err := derivePath(seed,
		bip32.FirstHardenedChild+44,
		bip32.FirstHardenedChild+501,
		bip32.FirstHardenedChild+index,
		bip32.FirstHardenedChild+0,
	)
	if err != nil {
		return nil, err
	}
	return solana.PrivateKey(ed25519.NewKeyFromSeed(key.Key)), nil
}

func derivePath(seed []byte, path ...uint32) (*bip32.Key, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	for _, child := range path {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

func seedFromMnemonic(mnemonic string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// NewMnemonic returns a fresh 12-word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// loadKeystore decrypts a V3 keystore file.
func loadKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	var keyJSON struct {
		Crypto keystore.CryptoJSON `json:"crypto"`
	}
	if err := json.Unmarshal(data, &keyJSON); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON format", ErrInvalidKeystore)
	}
	raw, err := keystore.DecryptDataV3(keyJSON.Crypto, password)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed", ErrInvalidKeystore)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key", ErrInvalidKeystore)
	}
	return key, nil
}
