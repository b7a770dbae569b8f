package loan

import (
	"math"
	"math/big"
)

// rate values are daily basis points applied to the outstanding principal.
const rateResolution = 10_000

// RateBand is one step of the charge schedule: days up to MaxDay (counted
// from the start of the charge window) accrue at the band's rates.
type RateBand struct {
	MaxDay      uint64
	InterestBps uint64
	FeeBps      uint64
}

// Schedule is an ordered list of bands with ascending MaxDay; the last band
// is the catch-all.
type Schedule []RateBand

// DefaultSchedule carries the reference flat rates: one percent interest and
// half a percent fee per day on the outstanding principal.
var DefaultSchedule = Schedule{
	{MaxDay: math.MaxUint64, InterestBps: 100, FeeBps: 50},
}

// Interest charges the interest rate over the first days of the window.
func (s Schedule) Interest(principal *big.Int, days uint64) *big.Int {
	return s.charge(principal, days, func(b RateBand) uint64 { return b.InterestBps })
}

// Fee charges the fee rate over the first days of the window.
func (s Schedule) Fee(principal *big.Int, days uint64) *big.Int {
	return s.charge(principal, days, func(b RateBand) uint64 { return b.FeeBps })
}

func (s Schedule) charge(principal *big.Int, days uint64, pick func(RateBand) uint64) *big.Int {
	total := big.NewInt(0)
	if principal == nil || principal.Sign() == 0 || days == 0 {
		return total
	}
	covered := uint64(0)
	for _, band := range s {
		if covered >= days {
			break
		}
		upto := band.MaxDay
		if upto > days {
			upto = days
		}
		if upto <= covered {
			continue
		}
		span := upto - covered
		part := new(big.Int).Mul(principal, new(big.Int).SetUint64(pick(band)))
		part.Mul(part, new(big.Int).SetUint64(span))
		part.Quo(part, big.NewInt(rateResolution))
		total.Add(total, part)
		covered = upto
	}
	return total
}
