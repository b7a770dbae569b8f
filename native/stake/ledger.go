package stake

import (
	"errors"
	"math/big"
)

// Status reports the lifecycle phase of a stake position as seen by the
// external ledger.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusEnded
)

// Position is the read model the ledger exposes for a single stake. The
// share computation behind it belongs to the ledger and is opaque to the
// engine.
type Position struct {
	ID        uint64
	Principal *big.Int
	Shares    *big.Int
	StartDay  uint64
	LockDays  uint64
	Status    Status
}

// ElapsedDays returns the number of days the position has been active as of
// the given day. Pending positions have zero elapsed days.
func (p Position) ElapsedDays(day uint64) uint64 {
	if day <= p.StartDay {
		return 0
	}
	return day - p.StartDay
}

var (
	ErrInvalidAmount   = errors.New("stake: amount must be positive")
	ErrInvalidLock     = errors.New("stake: lock length must be at least one day")
	ErrIndexMismatch   = errors.New("stake: index id mismatch")
	ErrStakeLocked     = errors.New("stake: position still serving its lock")
	ErrInsufficientBal = errors.New("stake: insufficient balance")
	ErrAllowance       = errors.New("stake: transfer amount exceeds allowance")
)

// Ledger is the surface the engine consumes from the external staking
// program. Day numbers come from the engine's clock.
type Ledger interface {
	Open(owner [20]byte, amount *big.Int, lockDays, day uint64) (uint64, error)
	OpenFrom(spender, owner [20]byte, amount *big.Int, lockDays, day uint64) (uint64, error)
	End(owner [20]byte, index int, stakeID, day uint64) (*big.Int, error)
	Query(owner [20]byte, index int, day uint64) (Position, error)
	Count(owner [20]byte) int
	AccountingUpdate(owner [20]byte, index int, stakeID uint64) error
	Transfer(from, to [20]byte, amount *big.Int) error
	TotalStaked() *big.Int
}
