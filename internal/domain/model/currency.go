package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged in whole units.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// CurrencyExponent is the number of decimal places of currency's minor unit.
func CurrencyExponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return 0
	}
	return 2
}

// FitsMinorUnit reports whether amount can be expressed in whole minor
// units of currency.
func FitsMinorUnit(amount decimal.Decimal, currency string) bool {
	minor := amount.Shift(CurrencyExponent(currency))
	return minor.Equal(minor.Truncate(0))
}
