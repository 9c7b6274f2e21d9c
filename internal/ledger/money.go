package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Zero

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// marketValue returns price * qty.
func marketValue(price, qty float64) float64 {
	return decToFloat(decFromFloat(price).Mul(decFromFloat(qty)))
}

func add(a, b float64) float64 { return decToFloat(decFromFloat(a).Add(decFromFloat(b))) }
func sub(a, b float64) float64 { return decToFloat(decFromFloat(a).Sub(decFromFloat(b))) }
