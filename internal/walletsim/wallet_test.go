package walletsim

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/encoding"
	"github.com/mark3labs/walletbridge-go/transport"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newWallet(t *testing.T, opts ...Option) *Wallet {
	t.Helper()
	w, err := New(testMnemonic, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

func request(t *testing.T, method walletbridge.Method, network walletbridge.Family, chain walletbridge.ChainID, params any) walletbridge.Request {
	t.Helper()
	req, err := walletbridge.NewRequest(method, network, chain, params)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return *req
}

func TestNew(t *testing.T) {
	if _, err := New("not a mnemonic"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("New() error = %v, want ErrInvalidMnemonic", err)
	}
	if _, err := New(testMnemonic, WithAccounts(0)); err == nil {
		t.Error("New() should reject zero accounts")
	}

	w := newWallet(t, WithAccounts(2))
	// Well-known first address of the test mnemonic at m/44'/60'/0'/0/0.
	if got := w.EVMAddresses()[0]; got != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Errorf("EVMAddresses()[0] = %s", got)
	}
	if len(w.EVMAddresses()) != 2 || len(w.SolanaKeys()) != 2 {
		t.Errorf("expected two accounts per family")
	}

	again := newWallet(t, WithAccounts(2))
	if !again.SolanaKeys()[1].Equals(w.SolanaKeys()[1]) {
		t.Error("Solana keys must be deterministic")
	}

	mnemonic, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic() error = %v", err)
	}
	if _, err := New(mnemonic); err != nil {
		t.Errorf("New(NewMnemonic()) error = %v", err)
	}
}

func TestHandle_Connect(t *testing.T) {
	w := newWallet(t, WithChains(walletbridge.EthereumMainnet.ID, walletbridge.BaseMainnet.ID, walletbridge.SolanaDevnet.ID),
		WithActiveChain(walletbridge.BaseMainnet.ID))

	req := request(t, walletbridge.MethodConnect, walletbridge.FamilyEVM, "", walletbridge.ConnectRequest{
		Namespaces: map[walletbridge.Family]walletbridge.NamespaceRequest{walletbridge.FamilyEVM: {}},
	})
	resp := w.Handle(req)
	if resp.Err() != nil {
		t.Fatalf("Handle() error = %v", resp.Err())
	}
	var res walletbridge.ConnectResult
	if err := resp.Decode(&res); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := res.Namespaces[walletbridge.FamilySolana]; ok {
		t.Error("only requested families should be granted")
	}

	s, err := walletbridge.Negotiate(walletbridge.FamilyEVM, res, walletbridge.DefaultChain(walletbridge.FamilyEVM))
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if s.ActiveChain != walletbridge.BaseMainnet.ID {
		t.Errorf("ActiveChain = %s", s.ActiveChain)
	}
	if got := s.CurrentAccounts(); len(got) != 1 || got[0] != w.EVMAddresses()[0] {
		t.Errorf("CurrentAccounts() = %v", got)
	}
}

func TestHandle_LegacyConnect(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want walletbridge.ChainID
	}{
		{
			name: "first chain when none active",
			opts: []Option{WithChains(walletbridge.SolanaDevnet.ID)},
			want: walletbridge.SolanaDevnet.ID,
		},
		{
			name: "active chain",
			opts: []Option{
				WithChains(walletbridge.SolanaMainnet.ID, walletbridge.SolanaDevnet.ID),
				WithActiveChain(walletbridge.SolanaDevnet.ID),
			},
			want: walletbridge.SolanaDevnet.ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWallet(t, append([]Option{WithLegacyConnect()}, tt.opts...)...)
			resp := w.Handle(request(t, walletbridge.MethodConnect, walletbridge.FamilySolana, "", nil))

			var res walletbridge.ConnectResult
			if err := resp.Decode(&res); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(res.Namespaces) != 0 {
				t.Error("legacy connect must not use namespaces")
			}
			if res.ChainID != tt.want {
				t.Errorf("ChainID = %q, want %s", res.ChainID, tt.want)
			}
			if len(res.Accounts[walletbridge.FamilySolana]) == 0 {
				t.Errorf("Accounts = %v", res.Accounts)
			}
		})
	}
}

func TestHandle_EVMSignMessage(t *testing.T) {
	w := newWallet(t)
	addr := w.EVMAddresses()[0]

	resp := w.Handle(request(t, walletbridge.MethodSignMessage, walletbridge.FamilyEVM, "eip155:1",
		walletbridge.SignMessageParams{Account: addr, Message: "hello"}))
	var res walletbridge.SignMessageResult
	if err := resp.Decode(&res); err != nil {
		t.Fatalf("Decode() error = %v (wallet error %v)", err, resp.Err())
	}

	sig := hexutil.MustDecode(res.Signature)
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("v = %d, want 27 or 28", sig[64])
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte("hello")), sig)
	if err != nil {
		t.Fatalf("SigToPub() error = %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(addr) {
		t.Error("signature does not recover to the account")
	}

	resp = w.Handle(request(t, walletbridge.MethodSignMessage, walletbridge.FamilyEVM, "eip155:1",
		walletbridge.SignMessageParams{Account: "0x0000000000000000000000000000000000000001", Message: "hello"}))
	if resp.Err() == nil || resp.Err().Code != walletbridge.CodeUnauthorized {
		t.Errorf("unknown account error = %v", resp.Err())
	}
}

func TestHandle_SolanaSignTransaction(t *testing.T) {
	w := newWallet(t)
	payer := w.SolanaKeys()[0]

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, payer, solana.SystemProgramID).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		t.Fatalf("NewTransaction() error = %v", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	data, _ := encoding.Encode(raw, walletbridge.EncodingBase64)

	resp := w.Handle(request(t, walletbridge.MethodSignTransaction, walletbridge.FamilySolana, walletbridge.SolanaMainnet.ID,
		walletbridge.SignTransactionParams{
			Account: payer.String(),
			Encoded: &walletbridge.EncodedTransaction{Encoding: walletbridge.EncodingBase64, Index: 3, Data: data},
		}))
	var res walletbridge.SignedTransactionResult
	if err := resp.Decode(&res); err != nil {
		t.Fatalf("Decode() error = %v (wallet error %v)", err, resp.Err())
	}
	if res.Encoded == nil || res.Encoded.Index != 3 {
		t.Fatalf("Encoded = %+v", res.Encoded)
	}

	signedRaw, err := encoding.Decode(res.Encoded.Data, res.Encoded.Encoding)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	signed, err := solana.TransactionFromBytes(signedRaw)
	if err != nil {
		t.Fatalf("TransactionFromBytes() error = %v", err)
	}
	msg, _ := signed.Message.MarshalBinary()
	if !payer.Verify(msg, signed.Signatures[0]) {
		t.Error("fee payer signature does not verify")
	}
}

func TestHandle_Behaviors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want walletbridge.ErrorCode
	}{
		{"reject", WithBehavior(Reject), walletbridge.CodeUserRejected},
		{"fail", WithFailure(walletbridge.CodeTransactionRejected), walletbridge.CodeTransactionRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWallet(t, tt.opt)
			resp := w.Handle(request(t, walletbridge.MethodConnect, walletbridge.FamilyEVM, "", nil))
			if resp.Err() == nil || resp.Err().Code != tt.want {
				t.Errorf("Handle() error = %v, want code %d", resp.Err(), tt.want)
			}
			if len(w.Requests()) != 1 {
				t.Errorf("Requests() = %d, want 1", len(w.Requests()))
			}
		})
	}
}

func TestHandleMessage_Malformed(t *testing.T) {
	w := newWallet(t)
	var resp walletbridge.Response
	if err := json.Unmarshal(w.HandleMessage([]byte("{")), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Err() == nil || resp.Err().Code != walletbridge.CodeInvalidParams {
		t.Errorf("error = %v, want InvalidParams", resp.Err())
	}
}

func TestServe(t *testing.T) {
	t.Run("answers over a pipe", func(t *testing.T) {
		w := newWallet(t)
		pipe, remote := transport.NewPipe("https://wallet.test")
		go w.Serve(context.Background(), "https://wallet.test/popup", remote)

		in := <-pipe.Messages()
		if m, _ := walletbridge.PeekMethod(in.Data); m != walletbridge.MethodReady {
			t.Fatalf("first message = %s, want ready", in.Data)
		}
		data, _ := json.Marshal(request(t, walletbridge.MethodDisconnect, walletbridge.FamilySolana, "", nil))
		if err := pipe.Send(context.Background(), data); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		in = <-pipe.Messages()
		if m, _ := walletbridge.PeekMethod(in.Data); m != walletbridge.MethodDisconnect {
			t.Errorf("response = %s", in.Data)
		}
	})

	t.Run("close window", func(t *testing.T) {
		w := newWallet(t, WithBehavior(CloseWindow))
		pipe, remote := transport.NewPipe("https://wallet.test")
		go w.Serve(context.Background(), "", remote)

		<-pipe.Messages()
		data, _ := json.Marshal(request(t, walletbridge.MethodConnect, walletbridge.FamilyEVM, "", nil))
		_ = pipe.Send(context.Background(), data)

		select {
		case <-pipe.Done():
		case <-time.After(time.Second):
			t.Fatal("wallet did not close the window")
		}
	})
}
