package evm

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/mark3labs/walletbridge-go"
)

const (
	alice = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	bob   = "0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0"
)

func TestEncodeTransaction(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		want    map[string]any
		absent  []string
		wantErr error
	}{
		{
			name: "quantities become hex",
			tx: Transaction{
				From:     alice,
				To:       bob,
				Value:    big.NewInt(1_000_000_000_000_000_000),
				Gas:      Uint64(21000),
				GasPrice: big.NewInt(30_000_000_000),
				Nonce:    Uint64(7),
				ChainID:  big.NewInt(137),
			},
			want: map[string]any{
				"from":     alice,
				"to":       bob,
				"value":    "0xde0b6b3a7640000",
				"gas":      "0x5208",
				"gasPrice": "0x6fc23ac00",
				"nonce":    "0x7",
				"chainId":  "0x89",
			},
			absent: []string{"maxFeePerGas", "maxPriorityFeePerGas", "data"},
		},
		{
			name: "absent fields are omitted",
			tx:   Transaction{From: alice},
			want: map[string]any{"from": alice},
			absent: []string{
				"to", "value", "gas", "gasPrice", "maxFeePerGas",
				"maxPriorityFeePerGas", "nonce", "data", "chainId",
			},
		},
		{
			name: "dynamic fee and data",
			tx: Transaction{
				From:                 alice,
				MaxFeePerGas:         big.NewInt(2_000_000_000),
				MaxPriorityFeePerGas: big.NewInt(1),
				Data:                 []byte{0xca, 0xfe},
			},
			want: map[string]any{
				"maxFeePerGas":         "0x77359400",
				"maxPriorityFeePerGas": "0x1",
				"data":                 "0xcafe",
			},
		},
		{
			name: "addresses pass through unchanged",
			tx:   Transaction{From: strings.ToLower(alice)},
			want: map[string]any{"from": strings.ToLower(alice)},
		},
		{
			name:    "missing from",
			tx:      Transaction{To: bob},
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:    "bad to",
			tx:      Transaction{From: alice, To: "0x123"},
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:    "from without prefix",
			tx:      Transaction{From: strings.TrimPrefix(alice, "0x")},
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:    "negative value",
			tx:      Transaction{From: alice, Value: big.NewInt(-1)},
			wantErr: walletbridge.ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeTransaction(tt.tx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("EncodeTransaction() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeTransaction() error = %v", err)
			}

			var got map[string]any
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
			for _, k := range tt.absent {
				if _, ok := got[k]; ok {
					t.Errorf("%s should be omitted, got %v", k, got[k])
				}
			}
		})
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tests := []Transaction{
		{From: alice},
		{From: alice, To: bob, Value: big.NewInt(1), Gas: Uint64(21000), GasPrice: big.NewInt(5), Nonce: Uint64(0), ChainID: big.NewInt(1)},
		{From: alice, MaxFeePerGas: big.NewInt(9), MaxPriorityFeePerGas: big.NewInt(2), Data: []byte("deploy")},
	}

	for _, tx := range tests {
		raw, err := EncodeTransaction(tx)
		if err != nil {
			t.Fatalf("EncodeTransaction() error = %v", err)
		}
		got, err := DecodeTransaction(raw)
		if err != nil {
			t.Fatalf("DecodeTransaction() error = %v", err)
		}
		again, err := EncodeTransaction(got)
		if err != nil {
			t.Fatalf("EncodeTransaction() error = %v", err)
		}
		if string(raw) != string(again) {
			t.Errorf("round trip changed the transaction:\n got %s\nwant %s", again, raw)
		}
		if got.From != tx.From || got.To != tx.To {
			t.Errorf("addresses changed: %+v", got)
		}
		if (tx.Nonce == nil) != (got.Nonce == nil) {
			t.Errorf("nonce presence changed: %v", got.Nonce)
		}
	}
}

func TestDecodeTransaction_Invalid(t *testing.T) {
	inputs := []string{
		`[]`,
		`{"to":"` + bob + `"}`,
		`{"from":"` + alice + `","value":"12"}`,
		`{"from":"` + alice + `","gas":"0xzz"}`,
	}
	for _, in := range inputs {
		if _, err := DecodeTransaction(json.RawMessage(in)); !errors.Is(err, walletbridge.ErrInvalidParams) {
			t.Errorf("DecodeTransaction(%s) error = %v, want ErrInvalidParams", in, err)
		}
	}
}

func TestWei(t *testing.T) {
	wei, err := ToWei("1.5")
	if err != nil {
		t.Fatalf("ToWei() error = %v", err)
	}
	if wei.String() != "1500000000000000000" {
		t.Errorf("ToWei(1.5) = %s", wei)
	}
	if got := FromWei(wei); got != "1.5" {
		t.Errorf("FromWei() = %s, want 1.5", got)
	}

	tiny, err := ToWei("0.0000000000000000019")
	if err != nil {
		t.Fatalf("ToWei() error = %v", err)
	}
	if tiny.String() != "1" {
		t.Errorf("ToWei() should truncate, got %s", tiny)
	}
}
