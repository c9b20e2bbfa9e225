package utils

import "math"

// CalculateFare computes a hitcher's fare for one ride: the ride's per-km
// price times the hitcher's precomputed commute distance. Computed once at
// request time and immutable thereafter; a later price change on the ride
// never touches existing requests.
func CalculateFare(pricePerKm, distanceKm float64) float64 {
	fare := pricePerKm * distanceKm
	// Round to 2 decimal places
	return math.Round(fare*100) / 100
}
