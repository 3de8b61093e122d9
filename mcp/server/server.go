package server

import (
	"context"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/walletbridge-go"
	"github.com/mark3labs/walletbridge-go/evm"
	"github.com/mark3labs/walletbridge-go/svm"
)

// EVMWallet is the part of evm.Provider the tools use.
type EVMWallet interface {
	Connect(ctx context.Context) ([]string, error)
	Connected() bool
	Accounts() []string
	ChainID() walletbridge.ChainID
	SwitchChain(chain walletbridge.ChainID) error
	SwitchChainHex(hex string) error
	SignMessage(ctx context.Context, account, message string) (string, error)
	SendTransaction(ctx context.Context, tx evm.Transaction) (string, error)
	Request(ctx context.Context, op evm.Operation) (any, error)
}

// SolanaWallet is the part of svm.Provider the tools use.
type SolanaWallet interface {
	Connect(ctx context.Context) (solana.PublicKey, error)
	Accounts() []string
	CurrentChain() walletbridge.ChainID
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*svm.SignedTransaction, error)
	SignAndSendTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.TransactionOpts) (solana.Signature, error)
}

var (
	_ EVMWallet    = (*evm.Provider)(nil)
	_ SolanaWallet = (*svm.Provider)(nil)
)

// WalletServer exposes popup wallets to MCP clients. Each tool call that needs
// the user opens the wallet and waits for an answer.
type WalletServer struct {
	mcpServer *mcpserver.MCPServer
	config    *Config
	evm       EVMWallet
	solana    SolanaWallet
}

// NewWalletServer creates a server with tools for the wallets given. Either
// wallet may be nil, in which case its tools are not registered.
func NewWalletServer(name, version string, evmWallet EVMWallet, solanaWallet SolanaWallet, opts ...Option) *WalletServer {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	s := &WalletServer{
		mcpServer: mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(false)),
		config:    config,
		evm:       evmWallet,
		solana:    solanaWallet,
	}
	if evmWallet != nil {
		s.registerEVM()
	}
	if solanaWallet != nil {
		s.registerSolana()
	}
	return s
}

// Handler returns the streamable HTTP handler.
func (s *WalletServer) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start serves the handler on addr.
func (s *WalletServer) Start(addr string) error {
	s.config.Logger.Info("starting wallet MCP server",
		"addr", addr,
		"evm", s.evm != nil,
		"solana", s.solana != nil)
	return http.ListenAndServe(addr, s.Handler())
}

// MCPServer returns the underlying MCP server.
func (s *WalletServer) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *WalletServer) defaultAccount() (string, error) {
	accounts := s.evm.Accounts()
	if len(accounts) == 0 {
		return "", walletbridge.NewProviderError(walletbridge.CodeDisconnected, "not connected", nil)
	}
	return accounts[0], nil
}
