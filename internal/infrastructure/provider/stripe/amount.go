package stripe

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// ToMinorUnits converts amount to the smallest unit of currency. Amounts
// finer than that unit fail with ErrInvalidAmount.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if !model.FitsMinorUnit(amount, currency) {
		return 0, domainErrors.NewInvalidAmountError(amount,
			fmt.Sprintf("amount has more precision than %s allows", strings.ToUpper(currency)))
	}
	return amount.Shift(model.CurrencyExponent(currency)).IntPart(), nil
}

// FromMinorUnits converts a minor-unit amount back to a decimal.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -model.CurrencyExponent(currency))
}
