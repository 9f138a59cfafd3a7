package handlers

import "math"

// platformFeeRate is the fixed organisation skim on every order, computed
// once at creation and stored on the order.
const platformFeeRate = 0.03

func platformFee(totalAmount int64) int64 {
	return int64(math.Round(float64(totalAmount) * platformFeeRate))
}
