// Package pricing считает сумму к оплате. Один и тот же расчет используется
// при создании покупки и при показе цены на странице курса.
package pricing

import (
	"strings"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Валюты без дробной части (ISO 4217, exponent 0)
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// Exponent возвращает число знаков минорной единицы валюты.
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// Charge = round(price * (1 - discount/100)) до минорной единицы валюты.
func Charge(price, discountPercent decimal.Decimal, currency string) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, domain.ErrInvalidPrice
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return decimal.Zero, domain.ErrInvalidDiscount
	}
	off := price.Mul(discountPercent).Div(hundred)
	return price.Sub(off).Round(Exponent(currency)), nil
}

// MinorUnits переводит сумму в целые минорные единицы (центы) для провайдера.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}

// Format - строка с фиксированным числом знаков для ответа API.
func Format(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(Exponent(currency))
}
