package events

import "math/big"

const (
	// TypeStakeWrapped is emitted when the registry opens a wrapped stake.
	TypeStakeWrapped = "registry.stakeWrapped"
	// TypeStakeUnwrapped is emitted when a wrapped stake is ended.
	TypeStakeUnwrapped = "registry.stakeUnwrapped"
	// TypeStakeTokenized is emitted when direct ownership becomes a token.
	TypeStakeTokenized = "registry.stakeTokenized"
	// TypeStakeDetokenized is emitted when a token reverts to direct ownership.
	TypeStakeDetokenized = "registry.stakeDetokenized"
	// TypeSupplyBurned is emitted for voluntary allowance burns.
	TypeSupplyBurned = "supply.burned"
)

// StakeWrapped captures a proxy creation.
type StakeWrapped struct {
	ProxyID  uint64
	StakeID  uint64
	Owner    [20]byte
	Amount   *big.Int
	LockDays uint64
}

// EventType satisfies the Event interface.
func (StakeWrapped) EventType() string { return TypeStakeWrapped }

// StakeUnwrapped captures a proxy being ended and funds returned.
type StakeUnwrapped struct {
	ProxyID uint64
	StakeID uint64
	Owner   [20]byte
	Payout  *big.Int
}

// EventType satisfies the Event interface.
func (StakeUnwrapped) EventType() string { return TypeStakeUnwrapped }

// StakeTokenized captures direct ownership converting to a token reference.
type StakeTokenized struct {
	ProxyID uint64
	TokenID uint64
	Owner   [20]byte
}

// EventType satisfies the Event interface.
func (StakeTokenized) EventType() string { return TypeStakeTokenized }

// StakeDetokenized captures a token reverting to direct ownership.
type StakeDetokenized struct {
	ProxyID uint64
	TokenID uint64
	Holder  [20]byte
}

// EventType satisfies the Event interface.
func (StakeDetokenized) EventType() string { return TypeStakeDetokenized }

// SupplyBurned captures a voluntary burn from the caller's own allowance.
type SupplyBurned struct {
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (SupplyBurned) EventType() string { return TypeSupplyBurned }
