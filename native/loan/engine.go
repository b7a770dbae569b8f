package loan

import (
	"errors"
	"math/big"

	"lockmint/core/events"
	nativecommon "lockmint/native/common"
)

var (
	errNilState     = errors.New("loan engine: state not configured")
	ErrLoanExists   = errors.New("loan: loan already exists")
	ErrLoanNotFound = errors.New("loan: cannot settle a non-existent loan")
)

const moduleName = "loan"

// Loan is the lump-sum advance attached to a wrapped stake. PaidDays records
// how much of the term has been amortised by payments; LastInteraction feeds
// the default rule.
type Loan struct {
	ProxyID         uint64   `json:"proxyId"`
	StakeID         uint64   `json:"stakeId"`
	Borrower        [20]byte `json:"borrower"`
	Shares          *big.Int `json:"shares"`
	Principal       *big.Int `json:"principal"`
	TermDays        uint64   `json:"termDays"`
	StartDay        uint64   `json:"startDay"`
	LastInteraction uint64   `json:"lastInteraction"`
	PaidDays        uint64   `json:"paidDays"`
}

// Clone returns a deep copy so callers can safely hold the result.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Shares != nil {
		clone.Shares = new(big.Int).Set(l.Shares)
	}
	if l.Principal != nil {
		clone.Principal = new(big.Int).Set(l.Principal)
	}
	return &clone
}

// windowDays is the unamortised remainder of the loan term.
func (l *Loan) windowDays() uint64 {
	if l.PaidDays >= l.TermDays {
		return 0
	}
	return l.TermDays - l.PaidDays
}

// outstandingPrincipal is the share value still owed over the open window.
func (l *Loan) outstandingPrincipal() *big.Int {
	return new(big.Int).Mul(l.Shares, new(big.Int).SetUint64(l.windowDays()))
}

type engineState interface {
	GetLoan(proxyID uint64) *Loan
	PutLoan(loan *Loan)
	DeleteLoan(proxyID uint64)
}

type tokenBurner interface {
	Burn(addr [20]byte, amount *big.Int) error
}

// Engine issues and settles loans against wrapped stakes. Advances are
// minted and charges burned through the token ledger; supply accounting and
// mint-record locking belong to the caller.
type Engine struct {
	state    engineState
	tokens   tokenBurner
	schedule Schedule
	emitter  events.Emitter
	pauses   nativecommon.PauseView
}

func NewEngine(state engineState, tokens tokenBurner) *Engine {
	return &Engine{
		state:    state,
		tokens:   tokens,
		schedule: DefaultSchedule,
		emitter:  events.NoopEmitter{},
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

// SetSchedule overrides the charge schedule.
func (e *Engine) SetSchedule(s Schedule) {
	if len(s) == 0 {
		e.schedule = DefaultSchedule
		return
	}
	e.schedule = s
}

// Get returns a copy of the active loan for the proxy, or nil.
func (e *Engine) Get(proxyID uint64) *Loan {
	if e == nil || e.state == nil {
		return nil
	}
	return e.state.GetLoan(proxyID).Clone()
}

// Active reports whether the proxy currently carries a loan.
func (e *Engine) Active(proxyID uint64) bool {
	return e != nil && e.state != nil && e.state.GetLoan(proxyID) != nil
}

// Open issues the advance: the position's full undiscounted share value over
// its lock, scaled up by the loan-to-mint bonus in tenths. The advance is
// recorded here; minting it and flagging the stake loaned is the caller's
// side of the transaction.
func (e *Engine) Open(borrower [20]byte, proxyID, stakeID uint64, shares *big.Int, lockDays, day, bonusTenths uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.state.GetLoan(proxyID) != nil {
		return nil, ErrLoanExists
	}

	advance := new(big.Int).Mul(shares, new(big.Int).SetUint64(lockDays))
	if bonusTenths > 0 {
		bonus := new(big.Int).Mul(advance, new(big.Int).SetUint64(bonusTenths))
		bonus.Quo(bonus, big.NewInt(10))
		advance.Add(advance, bonus)
	}

	stored := &Loan{
		ProxyID:         proxyID,
		StakeID:         stakeID,
		Borrower:        borrower,
		Shares:          new(big.Int).Set(shares),
		Principal:       advance,
		TermDays:        lockDays,
		StartDay:        day,
		LastInteraction: day,
	}
	e.state.PutLoan(stored)

	e.emitter.Emit(events.LoanOpened{
		ProxyID:    proxyID,
		Borrower:   borrower,
		Principal:  new(big.Int).Set(advance),
		BonusTenth: bonusTenths,
		TermDays:   lockDays,
	})
	return stored.Clone(), nil
}

// CalcPayment quotes the charge that settles the loan's open window. The
// first component is the outstanding principal plus interest over the full
// unamortised term; the second is the fee over that same window. Callers
// without an active loan receive the quote for a would-be loan over the
// given lock length.
func (e *Engine) CalcPayment(proxyID uint64, shares *big.Int, lockDays uint64) (*big.Int, *big.Int) {
	window := lockDays
	principal := new(big.Int)
	if shares != nil {
		principal.Mul(shares, new(big.Int).SetUint64(lockDays))
	}
	if loan := e.state.GetLoan(proxyID); loan != nil {
		window = loan.windowDays()
		principal = loan.outstandingPrincipal()
	}
	due := new(big.Int).Add(principal, e.schedule.Interest(principal, window))
	return due, e.schedule.Fee(principal, window)
}

// CalcPayoff quotes the charge to close the loan now: the same
// principal-plus-interest component, but the fee restricted to elapsed days
// only. There is no forward-looking fee charge.
func (e *Engine) CalcPayoff(proxyID, day uint64) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	loan := e.state.GetLoan(proxyID)
	if loan == nil {
		return nil, nil, ErrLoanNotFound
	}
	window := loan.windowDays()
	principal := loan.outstandingPrincipal()
	due := new(big.Int).Add(principal, e.schedule.Interest(principal, window))
	return due, e.schedule.Fee(principal, loan.elapsed(day)), nil
}

func (l *Loan) elapsed(day uint64) uint64 {
	if day <= l.LastInteraction {
		return 0
	}
	elapsed := day - l.LastInteraction
	if window := l.windowDays(); elapsed > window {
		return window
	}
	return elapsed
}

// Payment burns the window charge from the borrower, amortises the window
// and resets the default clock. The loan stays active.
func (e *Engine) Payment(caller [20]byte, proxyID, day uint64) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	loan := e.state.GetLoan(proxyID)
	if loan == nil {
		return nil, nil, ErrLoanNotFound
	}

	due, fee := e.CalcPayment(proxyID, loan.Shares, loan.TermDays)
	if err := e.burnCharge(caller, due, fee); err != nil {
		return nil, nil, err
	}

	loan.PaidDays += loan.windowDays()
	loan.LastInteraction = day
	e.state.PutLoan(loan)

	e.emitter.Emit(events.LoanPaid{
		ProxyID:  proxyID,
		Borrower: loan.Borrower,
		Due:      new(big.Int).Set(due),
		Fee:      new(big.Int).Set(fee),
	})
	return due, fee, nil
}

// Payoff burns the elapsed-day charge from the borrower and removes the
// loan. The returned loan lets the caller unwind supply accounting and the
// stake's mint lock.
func (e *Engine) Payoff(caller [20]byte, proxyID, day uint64) (*Loan, *big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, nil, err
	}
	loan := e.state.GetLoan(proxyID)
	if loan == nil {
		return nil, nil, nil, ErrLoanNotFound
	}

	due, fee, err := e.CalcPayoff(proxyID, day)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := e.burnCharge(caller, due, fee); err != nil {
		return nil, nil, nil, err
	}

	e.state.DeleteLoan(proxyID)

	e.emitter.Emit(events.LoanPaid{
		ProxyID:  proxyID,
		Borrower: loan.Borrower,
		Due:      new(big.Int).Set(due),
		Fee:      new(big.Int).Set(fee),
		Payoff:   true,
	})
	e.emitter.Emit(events.LoanClosed{ProxyID: proxyID, Borrower: loan.Borrower})
	return loan.Clone(), due, fee, nil
}

// InDefault reports whether the loan's default clock has run out: more days
// have elapsed since the last interaction than the full loan term.
func (e *Engine) InDefault(proxyID, day uint64) bool {
	loan := e.state.GetLoan(proxyID)
	if loan == nil {
		return false
	}
	return day > loan.LastInteraction+loan.TermDays
}

// OutstandingDebt is the amount a liquidation must recover: the full payoff
// charge at the given day.
func (e *Engine) OutstandingDebt(proxyID, day uint64) (*big.Int, error) {
	due, fee, err := e.CalcPayoff(proxyID, day)
	if err != nil {
		return nil, err
	}
	return due.Add(due, fee), nil
}

// Detach removes the loan without settlement; used when a liquidation takes
// over the debt obligation.
func (e *Engine) Detach(proxyID uint64) (*Loan, error) {
	loan := e.state.GetLoan(proxyID)
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	e.state.DeleteLoan(proxyID)
	return loan.Clone(), nil
}

func (e *Engine) burnCharge(caller [20]byte, due, fee *big.Int) error {
	total := new(big.Int).Add(due, fee)
	if total.Sign() == 0 {
		return nil
	}
	return e.tokens.Burn(caller, total)
}
