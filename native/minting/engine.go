package minting

import (
	"errors"
	"math/big"

	"lockmint/core/events"
	nativecommon "lockmint/native/common"
	"lockmint/native/stake"
)

var (
	errNilState     = errors.New("minting engine: state not configured")
	ErrStakePending = errors.New("minting: cannot mint against a pending stake")
	ErrLoanActive   = errors.New("minting: cannot mint against a loaned stake")
)

const moduleName = "minting"

// Record tracks how many served days of a stake position have already been
// paid out, and whether a loan currently blocks minting.
type Record struct {
	StakeID    uint64 `json:"stakeId"`
	MintedDays uint64 `json:"mintedDays"`
	Loaned     bool   `json:"loaned"`
}

type engineState interface {
	GetMintRecord(stakeID uint64) *Record
	PutMintRecord(record *Record)
}

type tokenMinter interface {
	Mint(addr [20]byte, amount *big.Int) error
}

// Engine computes and pays reward-token accrual for stake positions. It owns
// the mint-once-per-served-day bookkeeping; position state and supply totals
// belong to its collaborators.
type Engine struct {
	state   engineState
	tokens  tokenMinter
	ladder  Ladder
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewEngine(state engineState, tokens tokenMinter) *Engine {
	return &Engine{
		state:   state,
		tokens:  tokens,
		ladder:  DefaultLadder,
		emitter: events.NoopEmitter{},
	}
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

// SetLadder overrides the bonus bracket table.
func (e *Engine) SetLadder(ladder Ladder) {
	if len(ladder) == 0 {
		e.ladder = DefaultLadder
		return
	}
	e.ladder = ladder
}

// Mint pays the accrued reward for every served day not yet minted and
// credits the claimant. Zero served days succeed with a zero payout.
func (e *Engine) Mint(claimant [20]byte, pos stake.Position, day uint64, instanced bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if pos.Status == stake.StatusPending {
		return nil, ErrStakePending
	}

	record := e.record(pos.ID)
	if record.Loaned {
		return nil, ErrLoanActive
	}

	served := e.servedDays(record, pos, day)
	payout := e.payout(pos.Shares, served, pos.LockDays)
	if payout.Sign() > 0 {
		if err := e.tokens.Mint(claimant, payout); err != nil {
			return nil, err
		}
	}

	record.MintedDays += served
	e.state.PutMintRecord(record)

	e.emitter.Emit(events.MintSettled{
		StakeID:    pos.ID,
		Claimant:   claimant,
		ServedDays: served,
		Amount:     new(big.Int).Set(payout),
		Instanced:  instanced,
	})
	return payout, nil
}

// Claim marks served days as minted with zero payout. Unlike Mint it is
// valid against pending and loaned stakes; a pending stake simply has no
// served days to settle.
func (e *Engine) Claim(claimant [20]byte, pos stake.Position, day uint64, instanced bool) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}

	record := e.record(pos.ID)
	served := e.servedDays(record, pos, day)
	record.MintedDays += served
	e.state.PutMintRecord(record)

	e.emitter.Emit(events.DaysClaimed{
		StakeID:    pos.ID,
		Claimant:   claimant,
		ServedDays: served,
		Instanced:  instanced,
	})
	return served, nil
}

// Loaned reports whether minting against the stake is blocked by a loan.
func (e *Engine) Loaned(stakeID uint64) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.record(stakeID).Loaned
}

// SetLoaned toggles the loan lock on a stake's mint record.
func (e *Engine) SetLoaned(stakeID uint64, loaned bool) {
	if e == nil || e.state == nil {
		return
	}
	record := e.record(stakeID)
	record.Loaned = loaned
	e.state.PutMintRecord(record)
}

// MintedDays reports how many served days have been settled for the stake.
func (e *Engine) MintedDays(stakeID uint64) uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.record(stakeID).MintedDays
}

func (e *Engine) record(stakeID uint64) *Record {
	if record := e.state.GetMintRecord(stakeID); record != nil {
		return record
	}
	return &Record{StakeID: stakeID}
}

// servedDays caps accrual at the lock length so mintedDays never exceeds
// min(elapsedDays, lockDays).
func (e *Engine) servedDays(record *Record, pos stake.Position, day uint64) uint64 {
	accrued := pos.ElapsedDays(day)
	if accrued > pos.LockDays {
		accrued = pos.LockDays
	}
	if accrued <= record.MintedDays {
		return 0
	}
	return accrued - record.MintedDays
}

func (e *Engine) payout(shares *big.Int, servedDays, lockDays uint64) *big.Int {
	if shares == nil || servedDays == 0 {
		return big.NewInt(0)
	}
	base := new(big.Int).Mul(shares, new(big.Int).SetUint64(servedDays))
	bonus := new(big.Int).Mul(base, new(big.Int).SetUint64(e.ladder.Tenths(lockDays)))
	bonus.Quo(bonus, big.NewInt(10))
	return base.Add(base, bonus)
}
