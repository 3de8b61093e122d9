package evm

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/internal/walletsim"
)

func TestParseOperation(t *testing.T) {
	txJSON := `{"from":"` + alice + `","to":"` + bob + `","value":"0x1"}`

	tests := []struct {
		name    string
		method  string
		params  string
		want    Operation
		wantErr error
	}{
		{name: "request accounts", method: "eth_requestAccounts", want: RequestAccounts{}},
		{name: "accounts with empty params", method: "eth_accounts", params: "[]", want: GetAccounts{}},
		{name: "chain id", method: "eth_chainId", want: GetChainID{}},
		{
			name:   "switch chain hex",
			method: "wallet_switchEthereumChain",
			params: `[{"chainId":"0x2105"}]`,
			want:   SwitchChain{ChainID: walletbridge.BaseMainnet.ID},
		},
		{
			name:   "switch chain caip",
			method: "wallet_switchEthereumChain",
			params: `[{"chainId":"eip155:137"}]`,
			want:   SwitchChain{ChainID: walletbridge.PolygonMainnet.ID},
		},
		{
			name:    "switch chain garbage",
			method:  "wallet_switchEthereumChain",
			params:  `[{"chainId":"polygon"}]`,
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:   "personal sign hex message",
			method: "personal_sign",
			params: `["0x68656c6c6f","` + alice + `"]`,
			want:   PersonalSign{Account: alice, Message: "hello"},
		},
		{
			name:   "personal sign plain message",
			method: "personal_sign",
			params: `["hello","` + alice + `"]`,
			want:   PersonalSign{Account: alice, Message: "hello"},
		},
		{
			name:    "personal sign missing address",
			method:  "personal_sign",
			params:  `["hello"]`,
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:    "sign transaction without params",
			method:  "eth_signTransaction",
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:    "send transaction bad address",
			method:  "eth_sendTransaction",
			params:  `[{"from":"0x1"}]`,
			wantErr: walletbridge.ErrInvalidParams,
		},
		{
			name:    "unknown method",
			method:  "eth_getBalance",
			wantErr: walletbridge.ErrUnsupportedMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOperation(tt.method, json.RawMessage(tt.params))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseOperation() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOperation() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOperation() = %#v, want %#v", got, tt.want)
			}
			if got.Name() != tt.method {
				t.Errorf("Name() = %s, want %s", got.Name(), tt.method)
			}
		})
	}

	t.Run("transactions", func(t *testing.T) {
		op, err := ParseOperation(MethodSendTransaction, json.RawMessage("["+txJSON+"]"))
		if err != nil {
			t.Fatalf("ParseOperation() error = %v", err)
		}
		send, ok := op.(SendTransaction)
		if !ok {
			t.Fatalf("ParseOperation() = %T, want SendTransaction", op)
		}
		if send.Transaction.To != bob || send.Transaction.Value.Int64() != 1 {
			t.Errorf("Transaction = %+v", send.Transaction)
		}

		op, err = ParseOperation(MethodSignAllTransactions, json.RawMessage("["+txJSON+","+txJSON+"]"))
		if err != nil {
			t.Fatalf("ParseOperation() error = %v", err)
		}
		if all := op.(SignAllTransactions); len(all.Transactions) != 2 {
			t.Errorf("Transactions = %d, want 2", len(all.Transactions))
		}

		_, err = ParseOperation(MethodSignAllTransactions, json.RawMessage("["+txJSON+`,{"from":"x"}]`))
		var perr *walletbridge.ProviderError
		if !errors.As(err, &perr) || perr.Code != walletbridge.CodeInvalidParams || perr.Details["index"] != 1 {
			t.Errorf("batch error = %v", err)
		}
	})
}

func TestProvider_Request(t *testing.T) {
	f := newFixture(t, walletsim.WithChains(walletbridge.EthereumMainnet.ID, walletbridge.PolygonMainnet.ID))
	ctx := context.Background()

	if _, err := f.provider.Request(ctx, nil); !errors.Is(err, walletbridge.ErrUnsupportedMethod) {
		t.Errorf("Request(nil) error = %v, want ErrUnsupportedMethod", err)
	}

	got, err := f.provider.Request(ctx, RequestAccounts{})
	if err != nil {
		t.Fatalf("Request(RequestAccounts) error = %v", err)
	}
	accounts := got.([]string)
	if len(accounts) != 1 {
		t.Fatalf("accounts = %v", accounts)
	}

	got, _ = f.provider.Request(ctx, GetAccounts{})
	if !reflect.DeepEqual(got, accounts) {
		t.Errorf("GetAccounts = %v, want %v", got, accounts)
	}

	if _, err := f.provider.Request(ctx, SwitchChain{ChainID: walletbridge.PolygonMainnet.ID}); err != nil {
		t.Fatalf("Request(SwitchChain) error = %v", err)
	}
	if got, _ := f.provider.Request(ctx, GetChainID{}); got != "0x89" {
		t.Errorf("GetChainID = %v, want 0x89", got)
	}

	sig, err := f.provider.Request(ctx, PersonalSign{Account: accounts[0], Message: "gm"})
	if err != nil {
		t.Fatalf("Request(PersonalSign) error = %v", err)
	}
	if !VerifyMessage(accounts[0], "gm", sig.(string)) {
		t.Error("PersonalSign signature does not verify")
	}
}
