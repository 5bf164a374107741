package book

// FeeSchedule holds the maker/taker rates applied to trade notional.
// Copied executions always cross the spread, so the taker rate is what the
// simulator actually pays; maker stays for completeness.
type FeeSchedule struct {
	MakerRate float64
	TakerRate float64
}

// DefaultFees is the policy used when configuration does not override it.
var DefaultFees = FeeSchedule{MakerRate: 0.0, TakerRate: 0.01}

// Fee returns the fee for a given notional.
func (f FeeSchedule) Fee(notional float64, taker bool) float64 {
	if taker {
		return notional * f.TakerRate
	}
	return notional * f.MakerRate
}
