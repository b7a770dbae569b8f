package events

import "math/big"

const (
	// TypeLoanOpened is emitted when a lump-sum advance is issued.
	TypeLoanOpened = "loan.opened"
	// TypeLoanPaid is emitted for both interim payments and payoffs.
	TypeLoanPaid = "loan.paid"
	// TypeLoanClosed is emitted when a payoff clears the loan.
	TypeLoanClosed = "loan.closed"
)

// LoanOpened captures the advance issued against a wrapped stake.
type LoanOpened struct {
	ProxyID    uint64
	Borrower   [20]byte
	Principal  *big.Int
	BonusTenth uint64
	TermDays   uint64
}

// EventType satisfies the Event interface.
func (LoanOpened) EventType() string { return TypeLoanOpened }

// LoanPaid captures a settled charge: principal plus interest, and the fee.
type LoanPaid struct {
	ProxyID  uint64
	Borrower [20]byte
	Due      *big.Int
	Fee      *big.Int
	Payoff   bool
}

// EventType satisfies the Event interface.
func (LoanPaid) EventType() string { return TypeLoanPaid }

// LoanClosed captures the loan leaving the books after a payoff.
type LoanClosed struct {
	ProxyID  uint64
	Borrower [20]byte
}

// EventType satisfies the Event interface.
func (LoanClosed) EventType() string { return TypeLoanClosed }
