package accrual

import (
	"math/big"
)

// Entry is the per-day snapshot of aggregate supply recorded when the ledger
// rolls forward.
type Entry struct {
	Day          uint64   `json:"day"`
	MintedSupply *big.Int `json:"mintedSupply"`
	LoanedSupply *big.Int `json:"loanedSupply"`
	StakedValue  *big.Int `json:"stakedValue"`
}

// Ledger keeps the day-indexed accrual history plus the running loaned
// supply. It advances lazily: callers invoke Advance as a precondition of
// every mutating operation and repeated calls for the same day are no-ops.
type Ledger struct {
	entries []Entry
	loaned  *big.Int
}

func NewLedger() *Ledger {
	return &Ledger{loaned: big.NewInt(0)}
}

// Advance rolls the ledger forward to the given day, snapshotting the
// supplied totals for every day not yet recorded. Idempotent.
func (l *Ledger) Advance(day uint64, minted, staked *big.Int) {
	for next := uint64(len(l.entries)); next <= day; next++ {
		l.entries = append(l.entries, Entry{
			Day:          next,
			MintedSupply: copyOrZero(minted),
			LoanedSupply: new(big.Int).Set(l.loaned),
			StakedValue:  copyOrZero(staked),
		})
	}
}

// LastRecordedDay reports the most recent day with an entry. The second
// return is false before the first Advance.
func (l *Ledger) LastRecordedDay() (uint64, bool) {
	if len(l.entries) == 0 {
		return 0, false
	}
	return uint64(len(l.entries)) - 1, true
}

// Entry returns the snapshot for a recorded day.
func (l *Ledger) Entry(day uint64) (Entry, bool) {
	if day >= uint64(len(l.entries)) {
		return Entry{}, false
	}
	e := l.entries[day]
	return Entry{
		Day:          e.Day,
		MintedSupply: new(big.Int).Set(e.MintedSupply),
		LoanedSupply: new(big.Int).Set(e.LoanedSupply),
		StakedValue:  new(big.Int).Set(e.StakedValue),
	}, true
}

// LoanedSupply returns a copy of the outstanding loan-advanced supply.
func (l *Ledger) LoanedSupply() *big.Int {
	return new(big.Int).Set(l.loaned)
}

// AddLoaned grows the outstanding loaned supply when an advance is issued.
func (l *Ledger) AddLoaned(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.loaned = new(big.Int).Add(l.loaned, amount)
}

// SubLoaned shrinks the outstanding loaned supply when a loan leaves the
// books. The value never goes negative.
func (l *Ledger) SubLoaned(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	next := new(big.Int).Sub(l.loaned, amount)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	l.loaned = next
}

// BonusMultiplier derives the loan-to-mint bonus in tenths applied to loan
// advances: max(0, loanedPercent-50)*2 where loanedPercent is the loaned
// share of the total minted supply. Zero while no supply exists.
func (l *Ledger) BonusMultiplier(totalSupply *big.Int) uint64 {
	if totalSupply == nil || totalSupply.Sign() == 0 || l.loaned.Sign() == 0 {
		return 0
	}
	percent := new(big.Int).Mul(l.loaned, big.NewInt(100))
	percent.Quo(percent, totalSupply)
	if percent.Cmp(big.NewInt(50)) <= 0 {
		return 0
	}
	percent.Sub(percent, big.NewInt(50))
	percent.Mul(percent, big.NewInt(2))
	return percent.Uint64()
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Snapshot is the JSON-serialisable form of the ledger.
type Snapshot struct {
	Entries []Entry  `json:"entries"`
	Loaned  *big.Int `json:"loaned"`
}

func (l *Ledger) Snapshot() *Snapshot {
	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, Entry{
			Day:          e.Day,
			MintedSupply: new(big.Int).Set(e.MintedSupply),
			LoanedSupply: new(big.Int).Set(e.LoanedSupply),
			StakedValue:  new(big.Int).Set(e.StakedValue),
		})
	}
	return &Snapshot{Entries: entries, Loaned: new(big.Int).Set(l.loaned)}
}

func (l *Ledger) Restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	l.entries = nil
	for _, e := range snap.Entries {
		l.entries = append(l.entries, Entry{
			Day:          e.Day,
			MintedSupply: copyOrZero(e.MintedSupply),
			LoanedSupply: copyOrZero(e.LoanedSupply),
			StakedValue:  copyOrZero(e.StakedValue),
		})
	}
	l.loaned = big.NewInt(0)
	if snap.Loaned != nil {
		l.loaned = new(big.Int).Set(snap.Loaned)
	}
	return nil
}
