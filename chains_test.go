package walletbridge

import "testing"

func TestChainID_Parts(t *testing.T) {
	tests := []struct {
		id     ChainID
		family Family
		ref    string
	}{
		{"eip155:1", FamilyEVM, "1"},
		{SolanaMainnet.ID, FamilySolana, "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"},
		{"chainA", "chainA", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := tt.id.Family(); got != tt.family {
				t.Errorf("Family() = %q, want %q", got, tt.family)
			}
			if got := tt.id.Reference(); got != tt.ref {
				t.Errorf("Reference() = %q, want %q", got, tt.ref)
			}
		})
	}
}

func TestParseChainID(t *testing.T) {
	tests := []struct {
		input   string
		want    ChainID
		wantErr bool
	}{
		{"eip155:1", "eip155:1", false},
		{" eip155:137 ", "eip155:137", false},
		{"solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1", "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1", false},
		{"eip155:0x1", "", true},
		{"eip155:", "", true},
		{":1", "", true},
		{"cosmos:cosmoshub-4", "", true},
		{"solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChainID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChainID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseChainID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAccount(t *testing.T) {
	tests := []struct {
		input   string
		chain   ChainID
		address string
		wantErr bool
	}{
		{"eip155:1:0xAAA", "eip155:1", "0xAAA", false},
		{"chainA:0xAAA", "chainA", "0xAAA", false},
		{"solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp:EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", SolanaMainnet.ID, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", false},
		{"0xAAA", "", "", true},
		{"eip155:1:", "", "", true},
		{":0xAAA", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAccount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAccount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Chain != tt.chain || got.Address != tt.address {
				t.Errorf("ParseAccount() = %+v, want chain %q address %q", got, tt.chain, tt.address)
			}
			if got.String() != tt.input {
				t.Errorf("String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestChainIDHex(t *testing.T) {
	tests := []struct {
		id  ChainID
		hex string
	}{
		{"eip155:1", "0x1"},
		{"eip155:137", "0x89"},
		{"eip155:8453", "0x2105"},
		{"eip155:11155111", "0xaa36a7"},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			got, err := ChainIDToHex(tt.id)
			if err != nil {
				t.Fatalf("ChainIDToHex() error = %v", err)
			}
			if got != tt.hex {
				t.Errorf("ChainIDToHex() = %q, want %q", got, tt.hex)
			}
			back, err := HexToChainID(tt.hex)
			if err != nil {
				t.Fatalf("HexToChainID() error = %v", err)
			}
			if back != tt.id {
				t.Errorf("HexToChainID() = %q, want %q", back, tt.id)
			}
		})
	}

	if _, err := ChainIDToHex(SolanaMainnet.ID); err == nil {
		t.Error("expected error converting a solana chain to hex")
	}
	for _, bad := range []string{"89", "0xzz", ""} {
		if _, err := HexToChainID(bad); err == nil {
			t.Errorf("HexToChainID(%q) should fail", bad)
		}
	}
}

func TestKnownChains(t *testing.T) {
	for _, c := range KnownChains() {
		if err := c.ID.Validate(); err != nil {
			t.Errorf("known chain %s is invalid: %v", c.Name, err)
		}
		if c.Decimals != c.ID.Family().Decimals() {
			t.Errorf("%s decimals = %d, want %d", c.Name, c.Decimals, c.ID.Family().Decimals())
		}
		got, ok := LookupChain(c.ID)
		if !ok || got != c {
			t.Errorf("LookupChain(%s) = %+v, %v", c.ID, got, ok)
		}
	}

	if _, ok := LookupChain("eip155:999999"); ok {
		t.Error("LookupChain should miss unknown chains")
	}

	if DefaultChain(FamilyEVM) != "eip155:1" {
		t.Errorf("DefaultChain(evm) = %q", DefaultChain(FamilyEVM))
	}
	if DefaultChain(FamilySolana) != SolanaMainnet.ID {
		t.Errorf("DefaultChain(solana) = %q", DefaultChain(FamilySolana))
	}
}

func TestAddressEqual(t *testing.T) {
	if !FamilyEVM.AddressEqual("0xAbC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001") {
		t.Error("EVM addresses should compare case-insensitively")
	}
	if FamilySolana.AddressEqual("AbC", "abc") {
		t.Error("Solana addresses should compare exactly")
	}
}
