// README: Tariff definition for delivery fee quotes.
package pricing

const (
	// The tariff: a base fee covers one item and the first 3 km; each
	// additional item and each km beyond that adds a fixed increment.
	baseFee      = 25
	perExtraItem = 5
	perExtraKm   = 5
	includedKm   = 3.0

	// Distance assumed when a stop has no usable coordinates. Matches the
	// included distance so an unresolvable stop prices at the base tier.
	fallbackKm = 3.0

	currency = "USD"
)

// quickOfferSteps are the deterministic increments offered to a driver on
// the initial proposal screen, on top of the quoted fee.
var quickOfferSteps = [4]int64{5, 10, 15, 20}
