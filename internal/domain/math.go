package domain

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// BaseUnitDecimals is the number of decimals of the chain's native unit (wei per ether).
const BaseUnitDecimals = 18

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmountFloat reads the leading numeric prefix of value as a float64, the way the
// wallet clients do. Input without a numeric prefix yields 0.
func ParseAmountFloat(value string) float64 {
	prefix := numericPrefix(strings.TrimLeftFunc(value, unicode.IsSpace))
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return f
}

// numericPrefix returns the longest prefix of s shaped like [+-]digits[.digits][e[+-]digits].
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return s[:i]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ToBaseUnits converts a decimal amount string into integer base units, truncating
// anything beyond BaseUnitDecimals. Invalid input converts to zero.
func ToBaseUnits(amount string) *big.Int {
	return SafeParse(amount).Shift(BaseUnitDecimals).BigInt()
}

// FormatBaseUnits renders integer base units as a decimal string in the native unit.
func FormatBaseUnits(units *big.Int) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -BaseUnitDecimals).String()
}
