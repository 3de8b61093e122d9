package walletbridge

import (
	"slices"
)

// Session is one provider's negotiated connection state. A connected
// session always has at least one account on its active chain.
type Session struct {
	// Family is the chain family this session was negotiated for.
	Family Family

	// Connected is true once negotiation succeeded.
	Connected bool

	// ActiveChain is the chain requests are currently scoped to.
	ActiveChain ChainID

	accounts map[ChainID][]string
	chains   []ChainID
}

// Negotiate builds a connected Session from the wallet's connect result.
//
// The namespaced form is canonical; the flat accounts map is read only when
// the result has no namespace entry for family. Supported chains come from the
// explicit chain list when present and are otherwise derived from the account
// strings in first-seen order. The active chain is the declared one if
// supported, else the first supported chain, else defaultChain.
func Negotiate(family Family, res ConnectResult, defaultChain ChainID) (*Session, error) {
	var ns Namespace
	if n, ok := res.Namespaces[family]; ok {
		ns = n
	} else if accts, ok := res.Accounts[family]; ok {
		ns = Namespace{Accounts: accts, ActiveChain: res.ChainID}
	}

	if len(ns.Accounts) == 0 {
		return nil, NewProviderError(CodeUnauthorized, "no accounts available", nil).
			WithDetails("family", string(family))
	}

	s := &Session{
		Family:   family,
		accounts: make(map[ChainID][]string),
	}

	var derived []ChainID
	for _, raw := range ns.Accounts {
		acct, err := ParseAccount(raw)
		if err != nil {
			return nil, NewProviderError(CodeUnauthorized, "no accounts available", err).
				WithDetails("family", string(family))
		}
		if _, seen := s.accounts[acct.Chain]; !seen {
			derived = append(derived, acct.Chain)
		}
		if !containsAddress(family, s.accounts[acct.Chain], acct.Address) {
			s.accounts[acct.Chain] = append(s.accounts[acct.Chain], acct.Address)
		}
	}

	if len(ns.Chains) > 0 {
		for _, c := range ns.Chains {
			if !slices.Contains(s.chains, c) {
				s.chains = append(s.chains, c)
			}
		}
	} else {
		s.chains = derived
	}

	switch {
	case ns.ActiveChain != "" && slices.Contains(s.chains, ns.ActiveChain):
		s.ActiveChain = ns.ActiveChain
	case len(s.chains) > 0:
		s.ActiveChain = s.chains[0]
	default:
		s.ActiveChain = defaultChain
	}

	if len(s.accounts[s.ActiveChain]) == 0 {
		return nil, NewProviderError(CodeUnauthorized, "no accounts available", nil).
			WithDetails("family", string(family)).
			WithDetails("chainId", string(s.ActiveChain))
	}

	s.Connected = true
	return s, nil
}

// CurrentAccounts returns the accounts of the active chain, or an empty list.
func (s *Session) CurrentAccounts() []string {
	if s == nil {
		return []string{}
	}
	return s.Accounts(s.ActiveChain)
}

// Accounts returns a copy of the accounts under chain.
func (s *Session) Accounts(chain ChainID) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.accounts[chain]))
	copy(out, s.accounts[chain])
	return out
}

// SupportedChains returns a copy of the supported chain list.
func (s *Session) SupportedChains() []ChainID {
	if s == nil {
		return []ChainID{}
	}
	out := make([]ChainID, len(s.chains))
	copy(out, s.chains)
	return out
}

// Supports reports whether chain is in the supported list.
func (s *Session) Supports(chain ChainID) bool {
	return s != nil && slices.Contains(s.chains, chain)
}

// HasAccount reports whether addr is one of the active chain's accounts.
func (s *Session) HasAccount(addr string) bool {
	if s == nil {
		return false
	}
	return containsAddress(s.Family, s.accounts[s.ActiveChain], addr)
}

// SwitchChain makes target the active chain. It reports whether the account
// list differs from the previous active chain's list.
func (s *Session) SwitchChain(target ChainID) (accountsChanged bool, err error) {
	if !s.Supports(target) {
		return false, NewProviderError(CodeInvalidParams, "unsupported chain", nil).
			WithDetails("chainId", string(target))
	}
	if len(s.accounts[target]) == 0 {
		return false, NewProviderError(CodeInvalidParams, "chain has no accounts", nil).
			WithDetails("chainId", string(target))
	}
	prev := s.accounts[s.ActiveChain]
	s.ActiveChain = target
	return !slices.Equal(prev, s.accounts[target]), nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{
		Family:      s.Family,
		Connected:   s.Connected,
		ActiveChain: s.ActiveChain,
		accounts:    make(map[ChainID][]string, len(s.accounts)),
		chains:      slices.Clone(s.chains),
	}
	for k, v := range s.accounts {
		c.accounts[k] = slices.Clone(v)
	}
	return c
}

func containsAddress(family Family, list []string, addr string) bool {
	for _, a := range list {
		if family.AddressEqual(a, addr) {
			return true
		}
	}
	return false
}
