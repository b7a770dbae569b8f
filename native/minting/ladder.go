package minting

import "math"

// Bracket is one step of the lock-length bonus ladder. A stake whose lock
// length is at most MaxLockDays earns Tenths extra tenths of the base
// payout.
type Bracket struct {
	MaxLockDays uint64
	Tenths      uint64
}

// Ladder is an ordered list of brackets with ascending MaxLockDays. The last
// bracket acts as the catch-all.
type Ladder []Bracket

// DefaultLadder reproduces the reference bonus schedule: locks up to a week
// earn ten times the base payout, longer locks nine times.
var DefaultLadder = Ladder{
	{MaxLockDays: 7, Tenths: 100},
	{MaxLockDays: math.MaxUint64, Tenths: 90},
}

// Tenths resolves the bonus bracket for a lock length.
func (l Ladder) Tenths(lockDays uint64) uint64 {
	for _, b := range l {
		if lockDays <= b.MaxLockDays {
			return b.Tenths
		}
	}
	return 0
}
