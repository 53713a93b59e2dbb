// README: Common money value object used across modules.
package types

type Money struct {
	Amount   int64
	Currency string
}

// Add returns m plus n whole currency units. The engine deals in whole
// units only; rounding happens at quote time.
func (m Money) Add(n int64) Money {
	return Money{Amount: m.Amount + n, Currency: m.Currency}
}
