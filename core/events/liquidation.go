package events

import "math/big"

const (
	// TypeLiquidationStarted is emitted when a defaulted loan enters auction.
	TypeLiquidationStarted = "liquidation.started"
	// TypeLiquidationBid is emitted on each accepted bid.
	TypeLiquidationBid = "liquidation.bid"
	// TypeLiquidationSettled is emitted when the auction exits.
	TypeLiquidationSettled = "liquidation.settled"
)

// LiquidationStarted captures a defaulted loan entering auction.
type LiquidationStarted struct {
	LiquidationID uint64
	ProxyID       uint64
	Borrower      [20]byte
	Liquidator    [20]byte
	OpeningBid    *big.Int
	EndsAt        int64
}

// EventType satisfies the Event interface.
func (LiquidationStarted) EventType() string { return TypeLiquidationStarted }

// LiquidationBid captures an accepted ascending bid.
type LiquidationBid struct {
	LiquidationID uint64
	Bidder        [20]byte
	Amount        *big.Int
	EndsAt        int64
	Extended      bool
}

// EventType satisfies the Event interface.
func (LiquidationBid) EventType() string { return TypeLiquidationBid }

// LiquidationSettled captures the final settlement of an auction.
type LiquidationSettled struct {
	LiquidationID uint64
	ProxyID       uint64
	Winner        [20]byte
	WinningBid    *big.Int
	DebtCleared   *big.Int
	Remainder     *big.Int
}

// EventType satisfies the Event interface.
func (LiquidationSettled) EventType() string { return TypeLiquidationSettled }
