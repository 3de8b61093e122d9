// Package walletbridge lets a caller obtain blockchain accounts and signatures
// from a wallet that runs in a separate browsing context. It holds the shared
// vocabulary used by the transports, the correlator and the per-family
// providers: error codes, chain identifiers, the wire envelope, negotiation
// payloads and the session model.
package walletbridge

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Family identifies a blockchain ecosystem and scopes chain identifiers,
// accounts and methods.
type Family string

const (
	// FamilyEVM is the namespace of account-based EVM chains.
	FamilyEVM Family = "eip155"
	// FamilySolana is the namespace of Solana clusters.
	FamilySolana Family = "solana"
)

// Valid reports whether f is a family this module knows how to serve.
func (f Family) Valid() bool {
	return f == FamilyEVM || f == FamilySolana
}

// AddressEqual compares two addresses using the family's rules. EVM addresses
// are hex and compared case-insensitively so checksummed and lower-case forms
// match; Solana addresses are compared exactly.
func (f Family) AddressEqual(a, b string) bool {
	if f == FamilyEVM {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Decimals returns the base-unit scale of the family's native currency.
func (f Family) Decimals() uint8 {
	switch f {
	case FamilyEVM:
		return 18
	case FamilySolana:
		return 9
	default:
		return 0
	}
}

// ChainID is a namespaced chain identifier of the form "<family>:<reference>".
// It is opaque and compared by value.
type ChainID string

// Family returns the namespace part of the identifier.
func (c ChainID) Family() Family {
	ns, _, _ := strings.Cut(string(c), ":")
	return Family(ns)
}

// Reference returns the part after the namespace, or "" when there is none.
func (c ChainID) Reference() string {
	_, ref, _ := strings.Cut(string(c), ":")
	return ref
}

func (c ChainID) String() string {
	return string(c)
}

// Validate checks that c is a well-formed identifier for a known family.
func (c ChainID) Validate() error {
	ns, ref, ok := strings.Cut(string(c), ":")
	if !ok || ns == "" || ref == "" {
		return fmt.Errorf("chainId: %q is not of the form family:reference", string(c))
	}
	switch Family(ns) {
	case FamilyEVM:
		if _, err := strconv.ParseUint(ref, 10, 64); err != nil {
			return fmt.Errorf("chainId: %q has a non-numeric eip155 reference", string(c))
		}
	case FamilySolana:
		if len(ref) > 32 {
			return fmt.Errorf("chainId: %q has a solana reference longer than 32 characters", string(c))
		}
	default:
		return fmt.Errorf("chainId: unknown family %q", ns)
	}
	return nil
}

// ParseChainID parses and validates a chain identifier.
func ParseChainID(s string) (ChainID, error) {
	c := ChainID(strings.TrimSpace(s))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Account is a chain-qualified address, e.g. "eip155:1:0xabc...".
type Account struct {
	Chain   ChainID
	Address string
}

// ParseAccount splits a namespaced account string at its last colon, so both
// "eip155:1:0xabc" and "chainA:0xabc" are accepted.
func ParseAccount(s string) (Account, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return Account{}, fmt.Errorf("account: %q is not of the form chain:address", s)
	}
	return Account{Chain: ChainID(s[:i]), Address: s[i+1:]}, nil
}

func (a Account) String() string {
	return string(a.Chain) + ":" + a.Address
}

// ChainConfig describes a well-known chain.
type ChainConfig struct {
	// ID is the namespaced chain identifier.
	ID ChainID

	// Name is a human-readable chain name.
	Name string

	// NativeSymbol is the ticker of the native currency.
	NativeSymbol string

	// Decimals is the base-unit scale of the native currency.
	Decimals uint8
}

// EVM chain configurations
var (
	EthereumMainnet = ChainConfig{ID: "eip155:1", Name: "Ethereum", NativeSymbol: "ETH", Decimals: 18}

	EthereumSepolia = ChainConfig{ID: "eip155:11155111", Name: "Sepolia", NativeSymbol: "ETH", Decimals: 18}

	BaseMainnet = ChainConfig{ID: "eip155:8453", Name: "Base", NativeSymbol: "ETH", Decimals: 18}

	BaseSepolia = ChainConfig{ID: "eip155:84532", Name: "Base Sepolia", NativeSymbol: "ETH", Decimals: 18}

	PolygonMainnet = ChainConfig{ID: "eip155:137", Name: "Polygon", NativeSymbol: "POL", Decimals: 18}

	AvalancheMainnet = ChainConfig{ID: "eip155:43114", Name: "Avalanche C-Chain", NativeSymbol: "AVAX", Decimals: 18}
)

// Solana cluster configurations. References are the first 32 characters of
// each cluster's genesis hash.
var (
	SolanaMainnet = ChainConfig{ID: "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", Name: "Solana", NativeSymbol: "SOL", Decimals: 9}

	SolanaDevnet = ChainConfig{ID: "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1", Name: "Solana Devnet", NativeSymbol: "SOL", Decimals: 9}

	SolanaTestnet = ChainConfig{ID: "solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z", Name: "Solana Testnet", NativeSymbol: "SOL", Decimals: 9}
)

var knownChains = []ChainConfig{
	EthereumMainnet,
	EthereumSepolia,
	BaseMainnet,
	BaseSepolia,
	PolygonMainnet,
	AvalancheMainnet,
	SolanaMainnet,
	SolanaDevnet,
	SolanaTestnet,
}

// KnownChains returns a copy of the built-in chain table.
func KnownChains() []ChainConfig {
	out := make([]ChainConfig, len(knownChains))
	copy(out, knownChains)
	return out
}

// LookupChain finds a built-in chain configuration by identifier.
func LookupChain(id ChainID) (ChainConfig, bool) {
	for _, c := range knownChains {
		if c.ID == id {
			return c, true
		}
	}
	return ChainConfig{}, false
}

// DefaultChain returns the chain a session falls back to when the wallet
// declares no usable active chain.
func DefaultChain(f Family) ChainID {
	switch f {
	case FamilyEVM:
		return EthereumMainnet.ID
	case FamilySolana:
		return SolanaMainnet.ID
	default:
		return ""
	}
}

// EVMChainID builds the identifier of an EVM chain from its numeric id.
func EVMChainID(n uint64) ChainID {
	return ChainID(string(FamilyEVM) + ":" + strconv.FormatUint(n, 10))
}

// ChainIDToHex converts an eip155 identifier into the legacy hexadecimal
// chain id, e.g. "eip155:137" becomes "0x89".
func ChainIDToHex(c ChainID) (string, error) {
	if c.Family() != FamilyEVM {
		return "", fmt.Errorf("chainId: %q is not an eip155 chain", string(c))
	}
	n, ok := new(big.Int).SetString(c.Reference(), 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("chainId: %q has a non-numeric reference", string(c))
	}
	return "0x" + n.Text(16), nil
}

// HexToChainID converts a legacy hexadecimal chain id into its eip155 form.
func HexToChainID(hex string) (ChainID, error) {
	s := strings.TrimSpace(hex)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("chainId: %q is missing the 0x prefix", hex)
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return "", fmt.Errorf("chainId: %q is not a hex quantity", hex)
	}
	return EVMChainID(n), nil
}
