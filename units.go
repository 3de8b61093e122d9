package walletbridge

import (
	"errors"
	"math/big"
	"strings"
)

// ErrInvalidAmount indicates a malformed or negative display amount.
var ErrInvalidAmount = errors.New("walletbridge: invalid amount")

// ToBaseUnits converts a decimal display amount (e.g. "1.5" ETH) into base
// units using a 10^decimals scale. Fractional base units beyond the scale are
// truncated, never rounded.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, ErrInvalidAmount
	}
	if !allDigits(whole) || !allDigits(frac) {
		return nil, ErrInvalidAmount
	}

	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// FromBaseUnits converts base units back into an exact decimal display string
// with trailing zeros removed. For example, 1500000000 with 9 decimals
// becomes "1.5".
func FromBaseUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	neg := value.Sign() < 0
	digits := new(big.Int).Abs(value).String()

	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
