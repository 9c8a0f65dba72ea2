package paymentgateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToMinorUnits переводит сумму шлюза вида "299.00" в копейки.
// Суммы с долями копейки и отрицательные суммы отвергаются.
func ToMinorUnits(value string) (int64, error) {
	const op = "paymentgateway.ToMinorUnits"
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%s: negative amount %s", op, value)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%s: amount %s has fractional minor units", op, value)
	}
	return minor.IntPart(), nil
}

// FormatMinorUnits форматирует копейки в строку с двумя знаками после точки.
func FormatMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
