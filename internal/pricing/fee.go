package pricing

import "math"

// Delivery fee policy: a flat base fee covers the first 5 km, every
// kilometre beyond that is charged at a marginal rate with the marginal
// portion rounded up to the nearest currency unit.
const (
	// BaseFee is the flat charge for any delivery up to BaseDistanceKm.
	BaseFee Money = 15000
	// BaseDistanceKm is the distance included in the base fee.
	BaseDistanceKm = 5.0
	// PerKmRate is the marginal rate applied beyond BaseDistanceKm.
	PerKmRate = 3000.0
)

// DeliveryFee maps a route distance to a shipping fee. The input must be
// non-negative; a distance of exactly BaseDistanceKm returns the base fee.
func DeliveryFee(distanceKm float64) Money {
	if distanceKm <= BaseDistanceKm {
		return BaseFee
	}
	excess := distanceKm - BaseDistanceKm
	return BaseFee + Money(math.Ceil(excess*PerKmRate))
}
