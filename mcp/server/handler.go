package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/encoding"
	"github.com/mark3labs/walletbridge-go/evm"
	"github.com/mark3labs/walletbridge-go/mcp"
	"github.com/mark3labs/walletbridge-go/svm"
	"github.com/mark3labs/walletbridge-go/validation"
)

// toolFunc returns a value that is sent back as JSON.
type toolFunc func(ctx context.Context, req mcpproto.CallToolRequest) (any, error)

// wrap applies the call timeout and turns errors into structured tool errors.
func (s *WalletServer) wrap(name string, fn toolFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		if s.config.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.CallTimeout)
			defer cancel()
		}
		if s.config.Verbose {
			s.config.Logger.Info("wallet tool called", "tool", name)
		}

		out, err := fn(ctx, req)
		if err != nil {
			te := mcp.NewToolError(name, err)
			s.config.Logger.Warn("wallet tool failed", "tool", name, "code", te.Code, "error", err)
			res := mcpproto.NewToolResultStructured(te, te.Error())
			res.IsError = true
			return res, nil
		}
		return mcpproto.NewToolResultJSON(out)
	}
}

func argument(req mcpproto.CallToolRequest, key string) (string, error) {
	v, err := req.RequireString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", mcp.ErrInvalidArgument, err)
	}
	return v, nil
}

func (s *WalletServer) registerEVM() {
	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolEVMConnect,
		mcpproto.WithDescription("Open the EVM wallet and ask the user to connect. Returns the accounts and active chain."),
	), s.wrap(mcp.ToolEVMConnect, s.evmConnect))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolEVMAccounts,
		mcpproto.WithDescription("Report the connected EVM accounts and active chain without opening the wallet."),
	), s.wrap(mcp.ToolEVMAccounts, s.evmAccounts))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolEVMSwitchChain,
		mcpproto.WithDescription("Switch the active EVM chain to one the wallet approved."),
		mcpproto.WithString("chain", mcpproto.Required(),
			mcpproto.Description("CAIP-2 chain id such as eip155:8453, or a hex chain id such as 0x2105")),
	), s.wrap(mcp.ToolEVMSwitchChain, s.evmSwitchChain))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolEVMSignMessage,
		mcpproto.WithDescription("Ask the user to sign a text message with personal_sign."),
		mcpproto.WithString("message", mcpproto.Required(), mcpproto.Description("Text to sign")),
		mcpproto.WithString("account", mcpproto.Description("Signing address; defaults to the first connected account")),
	), s.wrap(mcp.ToolEVMSignMessage, s.evmSignMessage))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolEVMSendTransaction,
		mcpproto.WithDescription("Ask the user to sign and broadcast a transaction. Returns the transaction hash."),
		mcpproto.WithString("transaction", mcpproto.Required(),
			mcpproto.Description(`JSON transaction object, e.g. {"to":"0x...","value":"0x2386f26fc10000"}; "from" defaults to the first connected account`)),
	), s.wrap(mcp.ToolEVMSendTransaction, s.evmSendTransaction))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolEVMRequest,
		mcpproto.WithDescription("Perform an EIP-1193 request such as eth_chainId or wallet_switchEthereumChain."),
		mcpproto.WithString("method", mcpproto.Required(), mcpproto.Description("EIP-1193 method name")),
		mcpproto.WithString("params", mcpproto.Description("JSON array of parameters")),
	), s.wrap(mcp.ToolEVMRequest, s.evmRequest))
}

func (s *WalletServer) registerSolana() {
	encodings := mcpproto.Enum(string(walletbridge.EncodingBase64), string(walletbridge.EncodingBase58))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolSolanaConnect,
		mcpproto.WithDescription("Open the Solana wallet and ask the user to connect. Returns the public key and cluster."),
	), s.wrap(mcp.ToolSolanaConnect, s.solanaConnect))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolSolanaSignMessage,
		mcpproto.WithDescription("Ask the user to sign a message with the connected key. Returns a base58 signature."),
		mcpproto.WithString("message", mcpproto.Required(), mcpproto.Description("Message to sign")),
		mcpproto.WithString("encoding", mcpproto.Description("How message is written: utf8 (default), base64 or base58"),
			mcpproto.Enum("utf8", string(walletbridge.EncodingBase64), string(walletbridge.EncodingBase58))),
	), s.wrap(mcp.ToolSolanaSignMessage, s.solanaSignMessage))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolSolanaSignTransaction,
		mcpproto.WithDescription("Ask the user to sign a serialized transaction without sending it."),
		mcpproto.WithString("transaction", mcpproto.Required(), mcpproto.Description("Serialized transaction")),
		mcpproto.WithString("encoding", mcpproto.Description("base64 (default) or base58"), encodings),
	), s.wrap(mcp.ToolSolanaSignTransaction, s.solanaSignTransaction))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolSolanaSignAndSendTransaction,
		mcpproto.WithDescription("Ask the user to sign and submit a serialized transaction. Returns its signature."),
		mcpproto.WithString("transaction", mcpproto.Required(), mcpproto.Description("Serialized transaction")),
		mcpproto.WithString("encoding", mcpproto.Description("base64 (default) or base58"), encodings),
		mcpproto.WithBoolean("skip_preflight", mcpproto.Description("Skip the preflight simulation")),
	), s.wrap(mcp.ToolSolanaSignAndSendTransaction, s.solanaSignAndSend))

	s.mcpServer.AddTool(mcpproto.NewTool(mcp.ToolSolanaTransfer,
		mcpproto.WithDescription("Ask the user to send SOL from the connected key. Returns the transaction signature."),
		mcpproto.WithString("to", mcpproto.Required(), mcpproto.Description("Recipient public key (base58)")),
		mcpproto.WithString("lamports", mcpproto.Required(), mcpproto.Description("Amount in lamports, as a decimal string")),
		mcpproto.WithString("blockhash", mcpproto.Required(), mcpproto.Description("Recent blockhash (base58)")),
	), s.wrap(mcp.ToolSolanaTransfer, s.solanaTransfer))
}

func invalid(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", mcp.ErrInvalidArgument, name, err)
}

func (s *WalletServer) evmConnect(ctx context.Context, _ mcpproto.CallToolRequest) (any, error) {
	accounts, err := s.evm.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.ConnectResult{Accounts: accounts, ChainID: string(s.evm.ChainID())}, nil
}

func (s *WalletServer) evmAccounts(context.Context, mcpproto.CallToolRequest) (any, error) {
	accounts := s.evm.Accounts()
	if accounts == nil {
		accounts = []string{}
	}
	return mcp.AccountsResult{
		Connected: s.evm.Connected(),
		Accounts:  accounts,
		ChainID:   string(s.evm.ChainID()),
	}, nil
}

func (s *WalletServer) evmSwitchChain(_ context.Context, req mcpproto.CallToolRequest) (any, error) {
	chain, err := argument(req, "chain")
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(chain, "0x") || strings.HasPrefix(chain, "0X") {
		err = s.evm.SwitchChainHex(chain)
	} else {
		if verr := validation.ValidateChainID(walletbridge.ChainID(chain)); verr != nil {
			return nil, invalid("chain", verr)
		}
		err = s.evm.SwitchChain(walletbridge.ChainID(chain))
	}
	if err != nil {
		return nil, err
	}
	return mcp.ConnectResult{Accounts: s.evm.Accounts(), ChainID: string(s.evm.ChainID())}, nil
}

func (s *WalletServer) evmSignMessage(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	message, err := argument(req, "message")
	if err != nil {
		return nil, err
	}
	account := req.GetString("account", "")
	switch {
	case account == "":
		if account, err = s.defaultAccount(); err != nil {
			return nil, err
		}
	case strings.Count(account, ":") == 2:
		// eip155:<chain>:<address>
		if err := validation.ValidateAccount(account); err != nil {
			return nil, invalid("account", err)
		}
		acct, _ := walletbridge.ParseAccount(account)
		account = acct.Address
	default:
		if err := validation.ValidateAddress(account, walletbridge.FamilyEVM); err != nil {
			return nil, invalid("account", err)
		}
	}
	sig, err := s.evm.SignMessage(ctx, account, message)
	if err != nil {
		return nil, err
	}
	return mcp.SignatureResult{Signature: sig}, nil
}

func (s *WalletServer) evmSendTransaction(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	raw, err := argument(req, "transaction")
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: transaction is not a JSON object: %v", mcp.ErrInvalidArgument, err)
	}
	if from, _ := fields["from"].(string); from == "" {
		if fields["from"], err = s.defaultAccount(); err != nil {
			return nil, err
		}
	}
	if to, ok := fields["to"].(string); ok {
		if err := validation.ValidateAddress(to, walletbridge.FamilyEVM); err != nil {
			return nil, invalid("to", err)
		}
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	tx, err := evm.DecodeTransaction(body)
	if err != nil {
		return nil, err
	}
	hash, err := s.evm.SendTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return mcp.TransactionResult{Hash: hash}, nil
}

func (s *WalletServer) evmRequest(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	method, err := argument(req, "method")
	if err != nil {
		return nil, err
	}
	var params json.RawMessage
	if p := req.GetString("params", ""); p != "" {
		params = json.RawMessage(p)
	}

	op, err := evm.ParseOperation(method, params)
	if err != nil {
		return nil, err
	}
	out, err := s.evm.Request(ctx, op)
	if err != nil {
		return nil, err
	}
	result, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return mcp.RequestResult{Method: method, Result: result}, nil
}

func (s *WalletServer) solanaConnect(ctx context.Context, _ mcpproto.CallToolRequest) (any, error) {
	if _, err := s.solana.Connect(ctx); err != nil {
		return nil, err
	}
	return mcp.ConnectResult{Accounts: s.solana.Accounts(), ChainID: string(s.solana.CurrentChain())}, nil
}

func (s *WalletServer) solanaSignMessage(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	message, err := argument(req, "message")
	if err != nil {
		return nil, err
	}
	data := []byte(message)
	if enc := req.GetString("encoding", "utf8"); enc != "utf8" {
		if data, err = encoding.Decode(message, walletbridge.Encoding(enc)); err != nil {
			return nil, fmt.Errorf("%w: message: %v", mcp.ErrInvalidArgument, err)
		}
	}

	sig, err := s.solana.SignMessage(ctx, data)
	if err != nil {
		return nil, err
	}
	return mcp.SignatureResult{Signature: sig.String()}, nil
}

// solanaTransaction decodes the transaction argument and returns it with the
// encoding it was written in.
func solanaTransaction(req mcpproto.CallToolRequest) (*solana.Transaction, walletbridge.Encoding, error) {
	raw, err := argument(req, "transaction")
	if err != nil {
		return nil, "", err
	}
	enc := walletbridge.Encoding(req.GetString("encoding", string(walletbridge.EncodingBase64)))
	data, err := encoding.Decode(raw, enc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: transaction: %v", mcp.ErrInvalidArgument, err)
	}
	tx, err := solana.TransactionFromBytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: transaction: %v", mcp.ErrInvalidArgument, err)
	}
	return tx, enc, nil
}

func (s *WalletServer) solanaSignTransaction(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	tx, enc, err := solanaTransaction(req)
	if err != nil {
		return nil, err
	}
	signed, err := s.solana.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	out := mcp.SignedTransactionResult{Encoding: string(enc)}
	if sig, ok := signed.Signature(); ok {
		out.Signature = sig.String()
	}
	if signed.Transaction != nil {
		data, err := signed.Transaction.MarshalBinary()
		if err != nil {
			return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "failed to encode signed transaction", err)
		}
		if out.Transaction, err = encoding.Encode(data, enc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *WalletServer) solanaSignAndSend(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	tx, _, err := solanaTransaction(req)
	if err != nil {
		return nil, err
	}
	var opts *rpc.TransactionOpts
	if req.GetBool("skip_preflight", false) {
		opts = &rpc.TransactionOpts{SkipPreflight: true}
	}
	sig, err := s.solana.SignAndSendTransaction(ctx, tx, opts)
	if err != nil {
		return nil, err
	}
	return mcp.SignatureResult{Signature: sig.String()}, nil
}

func (s *WalletServer) solanaTransfer(ctx context.Context, req mcpproto.CallToolRequest) (any, error) {
	to, err := argument(req, "to")
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateAddress(to, walletbridge.FamilySolana); err != nil {
		return nil, invalid("to", err)
	}
	amount, err := argument(req, "lamports")
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, invalid("lamports", err)
	}
	lamports, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return nil, invalid("lamports", err)
	}
	raw, err := argument(req, "blockhash")
	if err != nil {
		return nil, err
	}
	blockhash, err := solana.HashFromBase58(raw)
	if err != nil {
		return nil, invalid("blockhash", err)
	}

	accounts := s.solana.Accounts()
	if len(accounts) == 0 {
		return nil, walletbridge.NewProviderError(walletbridge.CodeDisconnected, "not connected", nil)
	}
	from, err := solana.PublicKeyFromBase58(accounts[0])
	if err != nil {
		return nil, walletbridge.NewProviderError(walletbridge.CodeInternalError, "connected key is not a public key", err)
	}

	tx, err := svm.NewTransfer(from, solana.MustPublicKeyFromBase58(to), lamports, blockhash)
	if err != nil {
		return nil, err
	}
	sig, err := s.solana.SignAndSendTransaction(ctx, tx, nil)
	if err != nil {
		return nil, err
	}
	return mcp.SignatureResult{Signature: sig.String()}, nil
}
