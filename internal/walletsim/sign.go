package walletsim

import (
	"crypto/ecdsa"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/encoding"
)

const (
	defaultGas      = 21000
	defaultGasPrice = 1_000_000_000
)

// evmTx is the wallet's view of a transaction request.
type evmTx struct {
	From                 string          `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

func (t evmTx) build(chainID *big.Int) *types.Transaction {
	var nonce uint64
	if t.Nonce != nil {
		nonce = uint64(*t.Nonce)
	}
	gas := uint64(defaultGas)
	if t.Gas != nil {
		gas = uint64(*t.Gas)
	}
	value := new(big.Int)
	if t.Value != nil {
		value = t.Value.ToInt()
	}

	if t.MaxFeePerGas != nil || t.MaxPriorityFeePerGas != nil {
		feeCap := big.NewInt(defaultGasPrice)
		if t.MaxFeePerGas != nil {
			feeCap = t.MaxFeePerGas.ToInt()
		}
		tipCap := new(big.Int)
		if t.MaxPriorityFeePerGas != nil {
			tipCap = t.MaxPriorityFeePerGas.ToInt()
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        t.To,
			Value:     value,
			Data:      t.Data,
		})
	}

	gasPrice := big.NewInt(defaultGasPrice)
	if t.GasPrice != nil {
		gasPrice = t.GasPrice.ToInt()
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       t.To,
		Value:    value,
		Data:     t.Data,
	})
}

func (w *Wallet) answerEVM(req walletbridge.Request) (any, error) {
	switch req.Method {
	case walletbridge.MethodSignMessage:
		var p walletbridge.SignMessageParams
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalid(err)
		}
		key, err := w.evmKey(p.Account)
		if err != nil {
			return nil, err
		}
		sig, err := crypto.Sign(accounts.TextHash([]byte(p.Message)), key)
		if err != nil {
			return nil, err
		}
		sig[crypto.RecoveryIDOffset] += 27
		return walletbridge.SignMessageResult{Signature: hexutil.Encode(sig)}, nil

	case walletbridge.MethodSignTransaction, walletbridge.MethodSignAndSendTransaction:
		var p walletbridge.SignTransactionParams
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalid(err)
		}
		tx, err := w.signEVM(req.ChainID, p.Transaction)
		if err != nil {
			return nil, err
		}
		if req.Method == walletbridge.MethodSignAndSendTransaction {
			return walletbridge.SendResult{Hash: tx.Hash().Hex()}, nil
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return walletbridge.SignedTransactionResult{Raw: hexutil.Encode(raw)}, nil

	case walletbridge.MethodSignAllTransactions:
		var p walletbridge.SignAllTransactionsParams
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalid(err)
		}
		out := walletbridge.SignAllTransactionsResult{Raw: make([]string, len(p.Transactions))}
		for i, raw := range p.Transactions {
			tx, err := w.signEVM(req.ChainID, raw)
			if err != nil {
				return nil, err
			}
			b, err := tx.MarshalBinary()
			if err != nil {
				return nil, err
			}
			out.Raw[i] = hexutil.Encode(b)
		}
		return out, nil
	}
	return nil, unsupported(req.Method)
}

func (w *Wallet) signEVM(chain walletbridge.ChainID, raw json.RawMessage) (*types.Transaction, error) {
	var t evmTx
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, invalid(err)
	}
	key, err := w.evmKey(t.From)
	if err != nil {
		return nil, err
	}

	chainID := t.ChainID.ToInt()
	if chainID == nil {
		n, ok := new(big.Int).SetString(chain.Reference(), 10)
		if !ok {
			return nil, walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "missing chain id", nil)
		}
		chainID = n
	}
	return signTx(t.build(chainID), chainID, key)
}

func signTx(tx *types.Transaction, chainID *big.Int, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeTransactionRejected, "failed to sign transaction", err)
	}
	return signed, nil
}

func (w *Wallet) answerSolana(req walletbridge.Request) (any, error) {
	switch req.Method {
	case walletbridge.MethodSignMessage:
		var p walletbridge.SignMessageParams
		if err := req.DecodeParams(&p); err != nil || p.Encoded == nil {
			return nil, invalid(err)
		}
		pub, err := solana.PublicKeyFromBase58(p.Account)
		if err != nil {
			return nil, invalid(err)
		}
		key := w.solanaKey(pub)
		if key == nil {
			return nil, walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "unknown account", nil)
		}
		msg, err := encoding.Decode(p.Encoded.Data, p.Encoded.Encoding)
		if err != nil {
			return nil, invalid(err)
		}
		sig, err := key.Sign(msg)
		if err != nil {
			return nil, err
		}
		enc, err := encoding.Encode(sig[:], p.Encoded.Encoding)
		if err != nil {
			return nil, err
		}
		return walletbridge.SignMessageResult{Signature: enc, Encoding: p.Encoded.Encoding}, nil

	case walletbridge.MethodSignTransaction, walletbridge.MethodSignAndSendTransaction:
		var p walletbridge.SignTransactionParams
		if err := req.DecodeParams(&p); err != nil || p.Encoded == nil {
			return nil, invalid(err)
		}
		et, tx, err := w.signSolana(*p.Encoded)
		if err != nil {
			return nil, err
		}
		if req.Method == walletbridge.MethodSignAndSendTransaction {
			return walletbridge.SendResult{Hash: tx.Signatures[0].String()}, nil
		}
		return walletbridge.SignedTransactionResult{Encoded: &et}, nil

	case walletbridge.MethodSignAllTransactions:
		var p walletbridge.SignAllTransactionsParams
		if err := req.DecodeParams(&p); err != nil {
			return nil, invalid(err)
		}
		out := walletbridge.SignAllTransactionsResult{Encoded: make([]walletbridge.EncodedTransaction, len(p.Encoded))}
		for i, in := range p.Encoded {
			et, _, err := w.signSolana(in)
			if err != nil {
				return nil, err
			}
			out.Encoded[i] = et
		}
		return out, nil
	}
	return nil, unsupported(req.Method)
}

func (w *Wallet) signSolana(in walletbridge.EncodedTransaction) (walletbridge.EncodedTransaction, *solana.Transaction, error) {
	raw, err := encoding.Decode(in.Data, in.Encoding)
	if err != nil {
		return walletbridge.EncodedTransaction{}, nil, invalid(err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return walletbridge.EncodedTransaction{}, nil, invalid(err)
	}
	if len(tx.Message.AccountKeys) == 0 || w.solanaKey(tx.Message.AccountKeys[0]) == nil {
		return walletbridge.EncodedTransaction{}, nil,
			walletbridge.NewProviderError(walletbridge.CodeUnauthorized, "fee payer is not a wallet account", nil)
	}
	if _, err := tx.PartialSign(w.solanaKey); err != nil {
		return walletbridge.EncodedTransaction{}, nil,
			walletbridge.NewProviderError(walletbridge.CodeTransactionRejected, "failed to sign transaction", err)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return walletbridge.EncodedTransaction{}, nil, err
	}
	data, err := encoding.Encode(signed, in.Encoding)
	if err != nil {
		return walletbridge.EncodedTransaction{}, nil, err
	}
	return walletbridge.EncodedTransaction{
		Encoding:  in.Encoding,
		Versioned: tx.Message.IsVersioned(),
		Index:     in.Index,
		Data:      data,
	}, tx, nil
}

func invalid(err error) error {
	return walletbridge.NewProviderError(walletbridge.CodeInvalidParams, "malformed params", err)
}

func unsupported(method walletbridge.Method) error {
	return walletbridge.NewProviderError(walletbridge.CodeUnsupportedMethod, "unsupported method", nil).
		WithDetails("method", string(method))
}
