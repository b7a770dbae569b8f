package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"lockmint/core/events"
	"lockmint/crypto"
	"lockmint/native/accrual"
	"lockmint/native/liquidation"
	"lockmint/native/loan"
	"lockmint/native/minting"
	"lockmint/native/registry"
	"lockmint/native/stake"
	"lockmint/native/token"
)

var (
	// ErrNotActive is returned by every mutating operation before launch.
	ErrNotActive = errors.New("core: engine not active before launch")
	// ErrNotInDefault rejects liquidating a loan that is still current.
	ErrNotInDefault = errors.New("core: loan is not in default")
)

const dayLength = 24 * time.Hour

// Engine wires the token ledger, the external stake ledger and the native
// engines into the public operation surface. All mutating operations are
// serialised under one mutex and advance the day ledger before touching
// state; validation precedes mutation so a failed operation leaves state
// untouched.
type Engine struct {
	mu sync.Mutex

	state        *State
	tokens       *token.Ledger
	stakes       stake.Ledger
	days         *accrual.Ledger
	minting      *minting.Engine
	loans        *loan.Engine
	liquidations *liquidation.Engine
	registry     *registry.Registry

	emitter events.Emitter
	clock   func() time.Time
	launch  time.Time

	engineAddr  [20]byte
	auctionAddr [20]byte
}

// NewEngine builds a fully wired engine over the given stake ledger. The
// launch timestamp gates all mutating operations and anchors day zero.
func NewEngine(launch time.Time, stakes stake.Ledger) *Engine {
	e := &Engine{
		state:       NewState(),
		tokens:      token.NewLedger(),
		stakes:      stakes,
		days:        accrual.NewLedger(),
		emitter:     events.NoopEmitter{},
		clock:       time.Now,
		launch:      launch,
		engineAddr:  crypto.ModuleAddress("engine").Array(),
		auctionAddr: crypto.ModuleAddress("liquidation").Array(),
	}
	e.minting = minting.NewEngine(e.state, e.tokens)
	e.loans = loan.NewEngine(e.state, e.tokens)
	e.liquidations = liquidation.NewEngine(e.state)
	e.registry = registry.NewRegistry(stakes, ProxyCustody)
	e.registry.SetLoans(e.loans)
	e.minting.SetPauses(e.state)
	e.loans.SetPauses(e.state)
	e.liquidations.SetPauses(e.state)
	e.registry.SetPauses(e.state)
	return e
}

// ProxyCustody derives the custody address that holds a wrapped stake.
func ProxyCustody(proxyID uint64) [20]byte {
	return crypto.ModuleAddress(fmt.Sprintf("proxy/%d", proxyID)).Array()
}

// SetClock replaces the time source. Used by tests and the daemon.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	e.clock = clock
}

// SetEmitter fans the emitter out to every native engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.minting.SetEmitter(emitter)
	e.loans.SetEmitter(emitter)
	e.liquidations.SetEmitter(emitter)
	e.registry.SetEmitter(emitter)
}

// SetLadder overrides the mint bonus ladder.
func (e *Engine) SetLadder(ladder minting.Ladder) {
	e.minting.SetLadder(ladder)
}

// SetRateSchedule overrides the loan charge schedule.
func (e *Engine) SetRateSchedule(schedule loan.Schedule) {
	e.loans.SetSchedule(schedule)
}

// SetPaused toggles the administrative pause flag for a native module.
func (e *Engine) SetPaused(module string, paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SetPaused(module, paused)
}

// EngineAddress is the allowance target for voluntary burns.
func (e *Engine) EngineAddress() [20]byte { return e.engineAddr }

// AuctionAddress is the escrow account holding liquidation bids.
func (e *Engine) AuctionAddress() [20]byte { return e.auctionAddr }

// Tokens exposes the reward token ledger for genesis wiring and queries.
func (e *Engine) Tokens() *token.Ledger { return e.tokens }

// Stakes exposes the underlying stake ledger.
func (e *Engine) Stakes() stake.Ledger { return e.stakes }

// CurrentDay reports full days elapsed since launch, zero before launch.
func (e *Engine) CurrentDay() uint64 {
	now := e.clock()
	if now.Before(e.launch) {
		return 0
	}
	return uint64(now.Sub(e.launch) / dayLength)
}

// begin gates a mutating operation on launch and rolls the day ledger
// forward to today.
func (e *Engine) begin() (uint64, error) {
	now := e.clock()
	if now.Before(e.launch) {
		return 0, ErrNotActive
	}
	day := uint64(now.Sub(e.launch) / dayLength)
	e.days.Advance(day, e.tokens.TotalSupply(), e.stakes.TotalStaked())
	return day, nil
}

// MintNative settles accrued mint rewards on a stake the caller holds
// directly on the stake ledger.
func (e *Engine) MintNative(caller [20]byte, index int, stakeID uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, err
	}
	pos, err := e.stakes.Query(caller, index, day)
	if err != nil {
		return nil, err
	}
	if pos.ID != stakeID {
		return nil, stake.ErrIndexMismatch
	}
	return e.minting.Mint(caller, pos, day, false)
}

// ClaimNative settles served days on a directly held stake without payout.
func (e *Engine) ClaimNative(caller [20]byte, index int, stakeID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return 0, err
	}
	pos, err := e.stakes.Query(caller, index, day)
	if err != nil {
		return 0, err
	}
	if pos.ID != stakeID {
		return 0, stake.ErrIndexMismatch
	}
	return e.minting.Claim(caller, pos, day, false)
}

// MintInstanced settles accrued mint rewards on a wrapped stake. The proxy
// is addressed by the caller's (index, proxyId) pair; a stale pair is
// rejected.
func (e *Engine) MintInstanced(caller [20]byte, index int, proxyID uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, err
	}
	if _, err := e.ownedProxyAt(caller, index, proxyID); err != nil {
		return nil, err
	}
	pos, err := e.registry.Position(proxyID, day)
	if err != nil {
		return nil, err
	}
	return e.minting.Mint(caller, pos, day, true)
}

// ClaimInstanced settles served days on a wrapped stake without payout.
func (e *Engine) ClaimInstanced(caller [20]byte, index int, proxyID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return 0, err
	}
	if _, err := e.ownedProxyAt(caller, index, proxyID); err != nil {
		return 0, err
	}
	pos, err := e.registry.Position(proxyID, day)
	if err != nil {
		return 0, err
	}
	return e.minting.Claim(caller, pos, day, true)
}

// LoanInstanced issues a lump-sum advance against a wrapped stake and mints
// it to the borrower. The stake is locked against further minting until the
// loan clears.
func (e *Engine) LoanInstanced(caller [20]byte, index int, proxyID uint64) (*loan.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, err
	}
	if _, err := e.ownedProxyAt(caller, index, proxyID); err != nil {
		return nil, err
	}
	pos, err := e.registry.Position(proxyID, day)
	if err != nil {
		return nil, err
	}
	if pos.Status == stake.StatusPending {
		return nil, minting.ErrStakePending
	}

	bonus := e.days.BonusMultiplier(e.tokens.TotalSupply())
	opened, err := e.loans.Open(caller, proxyID, pos.ID, pos.Shares, pos.LockDays, day, bonus)
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Mint(caller, opened.Principal); err != nil {
		return nil, err
	}
	e.minting.SetLoaned(pos.ID, true)
	e.days.AddLoaned(opened.Principal)
	return opened, nil
}

// CalcLoanPayment quotes the interim payment charge for a proxy, whether or
// not a loan is already open against it. Quotes follow the launch gate like
// every other operation.
func (e *Engine) CalcLoanPayment(proxyID uint64) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, nil, err
	}
	pos, err := e.registry.Position(proxyID, day)
	if err != nil {
		return nil, nil, err
	}
	due, fee := e.loans.CalcPayment(proxyID, pos.Shares, pos.LockDays)
	return due, fee, nil
}

// CalcLoanPayoff quotes the charge to close the proxy's loan today.
func (e *Engine) CalcLoanPayoff(proxyID uint64) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, nil, err
	}
	return e.loans.CalcPayoff(proxyID, day)
}

// LoanPayment settles the interim charge on the caller's loan.
func (e *Engine) LoanPayment(caller [20]byte, proxyID uint64) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.ownedProxy(caller, proxyID); err != nil {
		return nil, nil, err
	}
	if e.liquidations.ActiveForProxy(proxyID) != nil {
		return nil, nil, liquidation.ErrAuctionActive
	}
	return e.loans.Payment(caller, proxyID, day)
}

// LoanPayoff closes the caller's loan and restores the stake's mint rights.
func (e *Engine) LoanPayoff(caller [20]byte, proxyID uint64) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.ownedProxy(caller, proxyID); err != nil {
		return nil, nil, err
	}
	if e.liquidations.ActiveForProxy(proxyID) != nil {
		return nil, nil, liquidation.ErrAuctionActive
	}
	cleared, due, fee, err := e.loans.Payoff(caller, proxyID, day)
	if err != nil {
		return nil, nil, err
	}
	e.minting.SetLoaned(cleared.StakeID, false)
	e.days.SubLoaned(cleared.Principal)
	return due, fee, nil
}

// LoanLiquidate opens an auction on a defaulted loan. The liquidator names
// the borrower and the proxy's position in the borrower's list, and funds
// the opening bid at the full outstanding debt.
func (e *Engine) LoanLiquidate(liquidator, borrower [20]byte, index int, proxyID uint64) (*liquidation.Liquidation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, err
	}
	target := e.loans.Get(proxyID)
	if target == nil {
		return nil, loan.ErrLoanNotFound
	}
	if err := e.registry.VerifyHeld(borrower, index, proxyID); err != nil {
		return nil, err
	}
	if !e.loans.InDefault(proxyID, day) {
		return nil, ErrNotInDefault
	}
	debt, err := e.loans.OutstandingDebt(proxyID, day)
	if err != nil {
		return nil, err
	}
	if e.tokens.BalanceOf(liquidator).Cmp(debt) < 0 {
		return nil, token.ErrInsufficientBalance
	}

	liq, err := e.liquidations.Start(liquidator, target.Borrower, proxyID, debt, e.clock().Unix())
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(liquidator, e.auctionAddr, debt); err != nil {
		return nil, err
	}
	return liq, nil
}

// LoanLiquidateBid escrows a higher bid and refunds the displaced bidder.
func (e *Engine) LoanLiquidateBid(bidder [20]byte, liquidationID uint64, amount *big.Int) (*liquidation.Liquidation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return nil, err
	}
	if amount == nil || e.tokens.BalanceOf(bidder).Cmp(amount) < 0 {
		return nil, token.ErrInsufficientBalance
	}
	prevBidder, prevAmount, err := e.liquidations.Bid(bidder, liquidationID, amount, e.clock().Unix())
	if err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(bidder, e.auctionAddr, amount); err != nil {
		return nil, err
	}
	if err := e.tokens.Transfer(e.auctionAddr, prevBidder, prevAmount); err != nil {
		return nil, err
	}
	return e.liquidations.Get(liquidationID), nil
}

// LoanLiquidateExit settles a finished auction: the debt is burned from
// escrow, any surplus goes to the defaulted borrower, and the proxy moves
// to the winning bidder with its mint rights restored.
func (e *Engine) LoanLiquidateExit(liquidationID uint64) (*liquidation.Liquidation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return nil, err
	}
	liq, err := e.liquidations.Exit(liquidationID, e.clock().Unix())
	if err != nil {
		return nil, err
	}
	cleared, err := e.loans.Detach(liq.ProxyID)
	if err != nil {
		return nil, err
	}
	e.minting.SetLoaned(cleared.StakeID, false)
	e.days.SubLoaned(cleared.Principal)

	if err := e.tokens.Burn(e.auctionAddr, liq.Debt); err != nil {
		return nil, err
	}
	remainder := new(big.Int).Sub(liq.BidAmount, liq.Debt)
	if remainder.Sign() > 0 {
		if err := e.tokens.Transfer(e.auctionAddr, liq.Borrower, remainder); err != nil {
			return nil, err
		}
	}
	if liq.Bidder != liq.Borrower {
		if err := e.registry.TransferProxy(liq.Borrower, liq.Bidder, liq.ProxyID); err != nil {
			return nil, err
		}
	}
	return liq, nil
}

// ProofOfBenevolence burns tokens from the caller's own allowance grant to
// the engine address, permanently reducing supply.
func (e *Engine) ProofOfBenevolence(caller [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return err
	}
	if err := e.tokens.BurnFrom(caller, e.engineAddr, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.SupplyBurned{Account: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

// StakeStart opens a wrapped stake funded from the owner's allowance grant
// to the proxy's custody address.
func (e *Engine) StakeStart(owner [20]byte, amount *big.Int, lockDays uint64) (*registry.Proxy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, err
	}
	return e.registry.Create(owner, amount, lockDays, day)
}

// StakeEnd closes a wrapped stake and pays the proceeds to the owner.
func (e *Engine) StakeEnd(caller [20]byte, index int, proxyID uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	day, err := e.begin()
	if err != nil {
		return nil, err
	}
	return e.registry.End(caller, index, proxyID, day)
}

// StakeTokenize converts direct proxy ownership into a transferable token.
func (e *Engine) StakeTokenize(caller [20]byte, proxyID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return 0, err
	}
	return e.registry.Tokenize(caller, proxyID)
}

// StakeDetokenize burns the token and restores direct ownership.
func (e *Engine) StakeDetokenize(caller [20]byte, tokenID uint64) (*registry.Proxy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return nil, err
	}
	return e.registry.Detokenize(caller, tokenID)
}

// TransferStakeToken moves a tokenized proxy between holders.
func (e *Engine) TransferStakeToken(from, to [20]byte, tokenID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return err
	}
	return e.registry.TransferToken(from, to, tokenID)
}

// GoodAccounting runs the stake ledger's maintenance hook on a proxy.
func (e *Engine) GoodAccounting(proxyID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.begin(); err != nil {
		return err
	}
	return e.registry.AccountingUpdate(proxyID)
}

// TotalSupply reports the reward token supply.
func (e *Engine) TotalSupply() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens.TotalSupply()
}

// LoanedSupply reports the principal sum of all open loans.
func (e *Engine) LoanedSupply() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.days.LoanedSupply()
}

// BalanceOf reports an account's reward token balance.
func (e *Engine) BalanceOf(addr [20]byte) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens.BalanceOf(addr)
}

// DayEntry returns the recorded ledger entry for a past day.
func (e *Engine) DayEntry(day uint64) (accrual.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.days.Entry(day)
}

// RoyaltyInfo reports the royalty due on a token sale and its receiver.
func (e *Engine) RoyaltyInfo(salePrice *big.Int) ([20]byte, *big.Int) {
	return e.engineAddr, e.registry.RoyaltyInfo(salePrice)
}

// ProxyCount reports how many proxies the owner holds directly.
func (e *Engine) ProxyCount(owner [20]byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.CountOwned(owner)
}

// ProxyAt returns the owner's proxy at the given list position.
func (e *Engine) ProxyAt(owner [20]byte, index int) (*registry.Proxy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.OwnedAt(owner, index)
}

// Proxy returns the proxy record by id.
func (e *Engine) Proxy(proxyID uint64) (*registry.Proxy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(proxyID)
}

// Loan returns the open loan on a proxy, or nil.
func (e *Engine) Loan(proxyID uint64) *loan.Loan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loans.Get(proxyID)
}

// Liquidation returns the auction record by id, or nil.
func (e *Engine) Liquidation(id uint64) *liquidation.Liquidation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidations.Get(id)
}

func (e *Engine) ownedProxy(caller [20]byte, proxyID uint64) (*registry.Proxy, error) {
	proxy, err := e.registry.Get(proxyID)
	if err != nil {
		return nil, err
	}
	if proxy.Ownership.Kind == registry.KindToken {
		return nil, registry.ErrTokenized
	}
	if proxy.Ownership.Owner != caller {
		return nil, registry.ErrNotOwner
	}
	return proxy, nil
}

// ownedProxyAt resolves a proxy addressed by the caller's (index, proxyId)
// pair.
func (e *Engine) ownedProxyAt(caller [20]byte, index int, proxyID uint64) (*registry.Proxy, error) {
	proxy, err := e.ownedProxy(caller, proxyID)
	if err != nil {
		return nil, err
	}
	if err := e.registry.VerifyHeld(caller, index, proxyID); err != nil {
		return nil, err
	}
	return proxy, nil
}
