package events

import "math/big"

const (
	// TypeMintSettled is emitted whenever an accrual payout completes.
	TypeMintSettled = "mint.settled"
	// TypeDaysClaimed is emitted when served days are settled without payout.
	TypeDaysClaimed = "mint.daysClaimed"
)

// MintSettled captures a reward payout against a stake position.
type MintSettled struct {
	StakeID    uint64
	Claimant   [20]byte
	ServedDays uint64
	Amount     *big.Int
	Instanced  bool
}

// EventType satisfies the Event interface.
func (MintSettled) EventType() string { return TypeMintSettled }

// DaysClaimed captures served days marked as paid with zero payout.
type DaysClaimed struct {
	StakeID    uint64
	Claimant   [20]byte
	ServedDays uint64
	Instanced  bool
}

// EventType satisfies the Event interface.
func (DaysClaimed) EventType() string { return TypeDaysClaimed }
