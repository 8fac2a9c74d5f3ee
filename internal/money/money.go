package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor units per major unit for every marketplace currency.
const Scale = 100

// MaxMinor is the largest amount ParseMinor accepts: ten trillion major units.
const MaxMinor int64 = 10_000_000_000_000 * Scale

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrOverflow        = errors.New("amount out of range")
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// ParseMinor converts a decimal string such as "12.5" into minor units (1250).
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	wholePart, fracPart, _ := strings.Cut(trimmed, ".")
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) || (fracPart != "" && !isDigits(fracPart)) {
		return 0, ErrInvalidAmount
	}
	if len(fracPart) > 2 {
		return 0, ErrTooManyDecimals
	}
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil || whole > MaxMinor/Scale {
		return 0, ErrInvalidAmount
	}
	frac := int64(0)
	for i := 0; i < 2; i++ {
		frac *= 10
		if i < len(fracPart) {
			frac += int64(fracPart[i] - '0')
		}
	}
	total := whole*Scale + frac
	if total > MaxMinor {
		return 0, ErrInvalidAmount
	}
	return sign * total, nil
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	formatted := fmt.Sprintf("%d.%02d", value/Scale, value%Scale)
	if negative {
		return "-" + formatted
	}
	return formatted
}

// ApplyRate multiplies an amount in minor units by rate using banker's rounding.
// Results that do not fit in int64 return ErrOverflow.
func ApplyRate(amountMinor int64, rate decimal.Decimal) (int64, error) {
	product := decimal.NewFromInt(amountMinor).Mul(rate).RoundBank(0)
	if product.Abs().GreaterThan(maxInt64) {
		return 0, ErrOverflow
	}
	return product.IntPart(), nil
}

// SplitFee returns the fee taken from gross at feeRate and the remaining net amount.
func SplitFee(grossMinor int64, feeRate decimal.Decimal) (fee int64, net int64, err error) {
	if feeRate.LessThanOrEqual(decimal.Zero) {
		return 0, grossMinor, nil
	}
	fee, err = ApplyRate(grossMinor, feeRate)
	if err != nil {
		return 0, 0, err
	}
	if fee > grossMinor {
		fee = grossMinor
	}
	return fee, grossMinor - fee, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
