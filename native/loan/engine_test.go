package loan

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockState struct {
	loans map[uint64]*Loan
}

func newMockState() *mockState {
	return &mockState{loans: make(map[uint64]*Loan)}
}

func (m *mockState) GetLoan(proxyID uint64) *Loan { return m.loans[proxyID] }
func (m *mockState) PutLoan(loan *Loan)           { m.loans[loan.ProxyID] = loan }
func (m *mockState) DeleteLoan(proxyID uint64)    { delete(m.loans, proxyID) }

type mockBurner struct {
	burned map[[20]byte]*big.Int
	err    error
}

func newMockBurner() *mockBurner {
	return &mockBurner{burned: make(map[[20]byte]*big.Int)}
}

func (m *mockBurner) Burn(addr [20]byte, amount *big.Int) error {
	if m.err != nil {
		return m.err
	}
	total, ok := m.burned[addr]
	if !ok {
		total = new(big.Int)
		m.burned[addr] = total
	}
	total.Add(total, amount)
	return nil
}

func newTestEngine() (*Engine, *mockState, *mockBurner) {
	state := newMockState()
	burner := newMockBurner()
	return NewEngine(state, burner), state, burner
}

var borrower = [20]byte{0xbb}

func TestOpenComputesAdvance(t *testing.T) {
	engine, state, _ := newTestEngine()

	loan, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 5, 0)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3000), loan.Principal)
	require.Equal(t, uint64(30), loan.TermDays)
	require.Equal(t, uint64(5), loan.LastInteraction)
	require.NotNil(t, state.GetLoan(1))
}

func TestOpenAppliesBonusTenths(t *testing.T) {
	engine, _, _ := newTestEngine()

	// 40 tenths lift the 3000 base advance by 40/10.
	loan, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 40)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(15000), loan.Principal)
}

func TestOpenRejectsSecondLoan(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.NoError(t, err)
	_, err = engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.ErrorIs(t, err, ErrLoanExists)
}

func TestCalcPaymentBeforeOpen(t *testing.T) {
	engine, _, _ := newTestEngine()

	// Quote for a would-be loan: principal 100*30 over a 30-day window.
	due, fee := engine.CalcPayment(1, big.NewInt(100), 30)
	require.Equal(t, big.NewInt(3900), due) // 3000 + 3000 * 100bps * 30
	require.Equal(t, big.NewInt(450), fee)  // 3000 * 50bps * 30
}

func TestPaymentAndPayoffAgreeAtOpen(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 10, 0)
	require.NoError(t, err)

	payDue, payFee := engine.CalcPayment(1, nil, 0)
	offDue, offFee, err := engine.CalcPayoff(1, 10)
	require.NoError(t, err)

	require.Equal(t, payDue, offDue)
	require.Equal(t, big.NewInt(0), offFee)
	require.True(t, payFee.Sign() > 0)
}

func TestPayoffFeeTracksElapsedDays(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.NoError(t, err)

	_, feeEarly, err := engine.CalcPayoff(1, 5)
	require.NoError(t, err)
	_, feeLate, err := engine.CalcPayoff(1, 20)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(75), feeEarly)  // 3000 * 50bps * 5
	require.Equal(t, big.NewInt(300), feeLate)  // 3000 * 50bps * 20
	require.True(t, feeLate.Cmp(feeEarly) > 0)

	// Fee never exceeds the full-window payment fee.
	_, payFee := engine.CalcPayment(1, nil, 0)
	_, feeCapped, err := engine.CalcPayoff(1, 200)
	require.NoError(t, err)
	require.Equal(t, payFee, feeCapped)
}

func TestCalcPayoffUnknownLoan(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, _, err := engine.CalcPayoff(99, 0)
	require.ErrorIs(t, err, ErrLoanNotFound)
}

func TestPaymentAmortisesWindow(t *testing.T) {
	engine, state, burner := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.NoError(t, err)

	due, fee, err := engine.Payment(borrower, 1, 12)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3900), due)
	require.Equal(t, big.NewInt(450), fee)
	require.Equal(t, big.NewInt(4350), burner.burned[borrower])

	loan := state.GetLoan(1)
	require.Equal(t, uint64(30), loan.PaidDays)
	require.Equal(t, uint64(12), loan.LastInteraction)

	// Fully amortised: the next charge is zero and burns nothing.
	due, fee, err = engine.Payment(borrower, 1, 20)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), due)
	require.Equal(t, big.NewInt(0), fee)
	require.Equal(t, big.NewInt(4350), burner.burned[borrower])
}

func TestPayoffRemovesLoan(t *testing.T) {
	engine, state, burner := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.NoError(t, err)

	loan, due, fee, err := engine.Payoff(borrower, 1, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(7), loan.StakeID)
	require.Equal(t, big.NewInt(3900), due)
	require.Equal(t, big.NewInt(150), fee) // elapsed 10 days
	require.Equal(t, big.NewInt(4050), burner.burned[borrower])
	require.Nil(t, state.GetLoan(1))

	_, _, _, err = engine.Payoff(borrower, 1, 10)
	require.ErrorIs(t, err, ErrLoanNotFound)
}

func TestInDefaultRequiresTermToLapse(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 100, 0)
	require.NoError(t, err)

	require.False(t, engine.InDefault(1, 100))
	require.False(t, engine.InDefault(1, 130))
	require.True(t, engine.InDefault(1, 131))

	// A payment resets the default clock.
	_, _, err = engine.Payment(borrower, 1, 125)
	require.NoError(t, err)
	require.False(t, engine.InDefault(1, 131))
	require.True(t, engine.InDefault(1, 156))
}

func TestOutstandingDebt(t *testing.T) {
	engine, _, _ := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.NoError(t, err)

	debt, err := engine.OutstandingDebt(1, 10)
	require.NoError(t, err)
	// due 3000 + 900 interest, plus the fee over 10 elapsed days
	require.Equal(t, big.NewInt(4050), debt)

	_, err = engine.OutstandingDebt(99, 10)
	require.ErrorIs(t, err, ErrLoanNotFound)
}

func TestDetach(t *testing.T) {
	engine, state, burner := newTestEngine()

	_, err := engine.Open(borrower, 1, 7, big.NewInt(100), 30, 0, 0)
	require.NoError(t, err)

	loan, err := engine.Detach(1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3000), loan.Principal)
	require.Nil(t, state.GetLoan(1))
	require.Empty(t, burner.burned)
}
