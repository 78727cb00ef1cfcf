package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Payout is the money side of a scorecard, in INR with two decimal places.
type Payout struct {
	Base       decimal.Decimal
	Expected   decimal.Decimal
	Difference decimal.Decimal
}

// ComputePayout scales the base compensation by each score as a fraction of 100.
func ComputePayout(baseINR string, output, availability, stability float64) (Payout, error) {
	base, err := decimal.NewFromString(baseINR)
	if err != nil {
		return Payout{}, fmt.Errorf("base compensation %q: %w", baseINR, err)
	}
	expected := base.
		Mul(decimal.NewFromFloat(output).Div(hundred)).
		Mul(decimal.NewFromFloat(availability).Div(hundred)).
		Mul(decimal.NewFromFloat(stability).Div(hundred)).
		Round(2)
	return Payout{
		Base:       base,
		Expected:   expected,
		Difference: expected.Sub(base),
	}, nil
}
