package dataset

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percentage renders part/total*100 with one decimal, rounding half away from
// zero. A zero total yields "0.0".
func percentage(part, total float64) string {
	if total == 0 {
		return "0.0"
	}
	return decimal.NewFromFloat(part).
		Div(decimal.NewFromFloat(total)).
		Mul(hundred).
		StringFixed(1)
}
