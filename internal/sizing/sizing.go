// Package sizing turns an account balance and a price into an order size.
package sizing

import "math"

const sizeDecimals = 4

// Size returns the position size for deploying fraction of balance at
// price, rounded half away from zero to four decimal places. Non-positive
// balance, price, or fraction yields zero.
func Size(balance, price, fraction float64) float64 {
	if balance <= 0 || price <= 0 || fraction <= 0 {
		return 0
	}
	raw := balance * fraction / price
	scale := math.Pow10(sizeDecimals)
	return math.Round(raw*scale) / scale
}
