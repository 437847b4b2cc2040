package chain

import (
	"math/big"
	"strings"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// ParseDecimalAmount parses a non-negative decimal string into base units with
// the given precision. "1.5" at 18 decimals is 1500000000000000000. Inputs
// with more fractional digits than decimals are rejected, never rounded.
//
//nolint:gocyclo // sequential validation steps
func ParseDecimalAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, invalidAmount(amount, "amount is empty")
	}

	intPart, decPart, hasDot := strings.Cut(amount, ".")
	if strings.Contains(decPart, ".") {
		return nil, invalidAmount(amount, "more than one decimal point")
	}
	if intPart == "" && decPart == "" {
		return nil, invalidAmount(amount, "no digits")
	}
	if !allDigits(intPart) || !allDigits(decPart) {
		return nil, invalidAmount(amount, "only digits and one decimal point are allowed")
	}
	if hasDot && len(decPart) > decimals {
		return nil, invalidAmount(amount, "too many decimal places")
	}

	if intPart == "" {
		intPart = "0"
	}
	decPart += strings.Repeat("0", decimals-len(decPart))

	result, ok := new(big.Int).SetString(intPart+decPart, 10)
	if !ok {
		return nil, invalidAmount(amount, "not a number")
	}
	return result, nil
}

// ParseWholeAmount parses an integer count of whole units and scales it by
// 10^decimals. Fractional input is rejected.
func ParseWholeAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if strings.Contains(amount, ".") {
		return nil, satchelerr.WithSuggestion(
			invalidAmount(amount, "fractional token amounts are not supported"),
			"Enter a whole number of tokens",
		)
	}
	if amount == "" || !allDigits(amount) {
		return nil, invalidAmount(amount, "expected a whole number")
	}

	n, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, invalidAmount(amount, "not a number")
	}
	return n.Mul(n, Pow10(decimals)), nil
}

// Pow10 returns 10^n.
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FormatDecimalAmount formats base units with the given precision.
// Trailing zeros after the decimal point are removed, so 1500000000000000000
// at 18 decimals is "1.5" and 10^18 is "1.0".
func FormatDecimalAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if amount.Sign() < 0 {
		return "-" + FormatDecimalAmount(new(big.Int).Abs(amount), decimals)
	}
	if decimals == 0 {
		return amount.String()
	}

	str := amount.String()
	for len(str) <= decimals {
		str = "0" + str
	}

	pos := len(str) - decimals
	result := str[:pos] + "." + str[pos:]
	for len(result) > 1 && result[len(result)-1] == '0' && result[len(result)-2] != '.' {
		result = result[:len(result)-1]
	}
	return result
}

// ToFloat converts base units to a float for display-only arithmetic such
// as fiat conversion.
func ToFloat(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	f.Quo(f, new(big.Float).SetInt(Pow10(decimals)))
	v, _ := f.Float64()
	return v
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func invalidAmount(amount, reason string) error {
	return satchelerr.WithDetails(satchelerr.ErrInvalidAmount, map[string]string{
		"amount": amount,
		"reason": reason,
	})
}
