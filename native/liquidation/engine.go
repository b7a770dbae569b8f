package liquidation

import (
	"errors"
	"math/big"

	"lockmint/core/events"
	nativecommon "lockmint/native/common"
)

var (
	errNilState       = errors.New("liquidation engine: state not configured")
	ErrNotFound       = errors.New("liquidation: auction not found")
	ErrAlreadyStarted = errors.New("liquidation: auction already started")
	ErrAuctionActive  = errors.New("liquidation: auction still active")
	ErrAuctionClosed  = errors.New("liquidation: auction has ended")
	ErrBidTooLow      = errors.New("liquidation: bid below required minimum")
)

const moduleName = "liquidation"

const (
	// AuctionSeconds is the base duration of a liquidation auction.
	AuctionSeconds int64 = 24 * 60 * 60
	// ExtensionSeconds is the anti-snipe window. A bid landing inside it
	// pushes the close out to now plus this value.
	ExtensionSeconds int64 = 300
)

type State uint8

const (
	StateOpen State = iota
	StateSettled
)

// Liquidation is an ascending auction for a defaulted wrapped stake. The
// liquidator funds the opening bid at the outstanding debt; later bidders
// refund the one they outbid.
type Liquidation struct {
	ID        uint64   `json:"id"`
	ProxyID   uint64   `json:"proxyId"`
	Borrower  [20]byte `json:"borrower"`
	Debt      *big.Int `json:"debt"`
	BidAmount *big.Int `json:"bidAmount"`
	Bidder    [20]byte `json:"bidder"`
	EndsAt    int64    `json:"endsAt"`
	State     State    `json:"state"`
}

// Clone returns a deep copy of the liquidation record.
func (l *Liquidation) Clone() *Liquidation {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Debt != nil {
		clone.Debt = new(big.Int).Set(l.Debt)
	}
	if l.BidAmount != nil {
		clone.BidAmount = new(big.Int).Set(l.BidAmount)
	}
	return &clone
}

// minNextBid is the smallest acceptable next bid, one unit over the last.
func (l *Liquidation) minNextBid() *big.Int {
	return new(big.Int).Add(l.BidAmount, big.NewInt(1))
}

type engineState interface {
	GetLiquidation(id uint64) *Liquidation
	PutLiquidation(liq *Liquidation)
	DeleteLiquidation(id uint64)
	LiquidationByProxy(proxyID uint64) *Liquidation
	NextLiquidationID() uint64
}

// Engine runs liquidation auctions. Escrow of bid funds is the caller's
// responsibility; the engine tracks who holds the winning bid and tells the
// caller which previous bidder to refund.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewEngine(state engineState) *Engine {
	return &Engine{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Get returns a copy of the auction, or nil.
func (e *Engine) Get(id uint64) *Liquidation {
	if e == nil || e.state == nil {
		return nil
	}
	return e.state.GetLiquidation(id).Clone()
}

// ActiveForProxy returns the open auction on the proxy, if any.
func (e *Engine) ActiveForProxy(proxyID uint64) *Liquidation {
	if e == nil || e.state == nil {
		return nil
	}
	liq := e.state.LiquidationByProxy(proxyID)
	if liq == nil || liq.State != StateOpen {
		return nil
	}
	return liq.Clone()
}

// Start opens the auction with the liquidator's opening bid covering the
// outstanding debt. The caller has already verified default and escrowed the
// opening bid.
func (e *Engine) Start(liquidator, borrower [20]byte, proxyID uint64, debt *big.Int, now int64) (*Liquidation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if existing := e.state.LiquidationByProxy(proxyID); existing != nil && existing.State == StateOpen {
		return nil, ErrAlreadyStarted
	}

	liq := &Liquidation{
		ID:        e.state.NextLiquidationID(),
		ProxyID:   proxyID,
		Borrower:  borrower,
		Debt:      new(big.Int).Set(debt),
		BidAmount: new(big.Int).Set(debt),
		Bidder:    liquidator,
		EndsAt:    now + AuctionSeconds,
	}
	e.state.PutLiquidation(liq)

	e.emitter.Emit(events.LiquidationStarted{
		LiquidationID: liq.ID,
		ProxyID:       proxyID,
		Borrower:      borrower,
		Liquidator:    liquidator,
		OpeningBid:    new(big.Int).Set(debt),
		EndsAt:        liq.EndsAt,
	})
	return liq.Clone(), nil
}

// Bid replaces the winning bid. The displaced bidder and amount are returned
// so the caller can refund the escrow. A bid inside the anti-snipe window
// extends the auction.
func (e *Engine) Bid(bidder [20]byte, id uint64, amount *big.Int, now int64) (prevBidder [20]byte, prevAmount *big.Int, err error) {
	if e == nil || e.state == nil {
		return prevBidder, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return prevBidder, nil, err
	}
	liq := e.state.GetLiquidation(id)
	if liq == nil {
		return prevBidder, nil, ErrNotFound
	}
	if liq.State != StateOpen || now >= liq.EndsAt {
		return prevBidder, nil, ErrAuctionClosed
	}
	if amount == nil || amount.Cmp(liq.minNextBid()) < 0 {
		return prevBidder, nil, ErrBidTooLow
	}

	prevBidder = liq.Bidder
	prevAmount = liq.BidAmount
	liq.Bidder = bidder
	liq.BidAmount = new(big.Int).Set(amount)

	extended := false
	if liq.EndsAt-now < ExtensionSeconds {
		liq.EndsAt = now + ExtensionSeconds
		extended = true
	}
	e.state.PutLiquidation(liq)

	e.emitter.Emit(events.LiquidationBid{
		LiquidationID: id,
		Bidder:        bidder,
		Amount:        new(big.Int).Set(amount),
		EndsAt:        liq.EndsAt,
		Extended:      extended,
	})
	return prevBidder, prevAmount, nil
}

// Exit settles a finished auction, removes its record and returns the final
// state: the winning bidder takes the proxy, the debt portion of the bid is
// burned by the caller and any remainder goes to the borrower.
func (e *Engine) Exit(id uint64, now int64) (*Liquidation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	liq := e.state.GetLiquidation(id)
	if liq == nil {
		return nil, ErrNotFound
	}
	if liq.State != StateOpen {
		return nil, ErrAuctionClosed
	}
	if now < liq.EndsAt {
		return nil, ErrAuctionActive
	}

	liq.State = StateSettled
	e.state.DeleteLiquidation(id)

	remainder := new(big.Int).Sub(liq.BidAmount, liq.Debt)
	if remainder.Sign() < 0 {
		remainder.SetInt64(0)
	}
	e.emitter.Emit(events.LiquidationSettled{
		LiquidationID: id,
		ProxyID:       liq.ProxyID,
		Winner:        liq.Bidder,
		WinningBid:    new(big.Int).Set(liq.BidAmount),
		DebtCleared:   new(big.Int).Set(liq.Debt),
		Remainder:     remainder,
	})
	return liq.Clone(), nil
}
