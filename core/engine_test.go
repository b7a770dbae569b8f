package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lockmint/native/liquidation"
	"lockmint/native/loan"
	"lockmint/native/minting"
	"lockmint/native/registry"
	"lockmint/native/stake"
	"lockmint/native/token"
)

var launch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advanceDays(n uint64) {
	c.now = c.now.Add(time.Duration(n) * 24 * time.Hour)
}

func newTestEngine(t *testing.T) (*Engine, *stake.MemLedger, *testClock) {
	t.Helper()
	ledger := stake.NewMemLedger()
	engine := NewEngine(launch, ledger)
	clock := &testClock{now: launch}
	engine.SetClock(clock.Now)
	return engine, ledger, clock
}

var (
	alice      = [20]byte{0xa1}
	bob        = [20]byte{0xb2}
	liquidator = [20]byte{0xc3}
)

// wrapStake funds and approves the next proxy's custody, then opens the
// wrapped stake.
func wrapStake(t *testing.T, engine *Engine, ledger *stake.MemLedger, owner [20]byte, amount int64, lockDays uint64) *registry.Proxy {
	t.Helper()
	ledger.Fund(owner, big.NewInt(amount))
	count := uint64(1)
	for {
		custody := ProxyCustody(count)
		if _, err := engine.Proxy(count); err != nil {
			ledger.Approve(owner, custody, big.NewInt(amount))
			break
		}
		count++
	}
	proxy, err := engine.StakeStart(owner, big.NewInt(amount), lockDays)
	require.NoError(t, err)
	return proxy
}

func TestMutationsBlockedBeforeLaunch(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	clock.now = launch.Add(-time.Hour)

	_, err := engine.MintNative(alice, 0, 1)
	require.ErrorIs(t, err, ErrNotActive)
	_, err = engine.StakeStart(alice, big.NewInt(100), 10)
	require.ErrorIs(t, err, ErrNotActive)

	// Loan quotes follow the same gate as the mutating operations.
	_, _, err = engine.CalcLoanPayment(1)
	require.ErrorIs(t, err, ErrNotActive)
	_, _, err = engine.CalcLoanPayoff(1)
	require.ErrorIs(t, err, ErrNotActive)
	require.Equal(t, uint64(0), engine.CurrentDay())
}

func TestMintNativeShortLockFullBonus(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	// 100-share stake with a 1-day lock opened on day 0 serves its full
	// lock by day 2.
	ledger.Fund(alice, big.NewInt(100))
	stakeID, err := ledger.Open(alice, big.NewInt(100), 1, engine.CurrentDay())
	require.NoError(t, err)

	clock.advanceDays(2)
	payout, err := engine.MintNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1100), payout)
	require.Equal(t, big.NewInt(1100), engine.BalanceOf(alice))
	require.Equal(t, big.NewInt(1100), engine.TotalSupply())

	// Nothing further accrues on a fully served stake.
	payout, err = engine.MintNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), payout)
}

func TestMintNativeLongLockReducedBonus(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	ledger.Fund(alice, big.NewInt(100))
	stakeID, err := ledger.Open(alice, big.NewInt(100), 10, engine.CurrentDay())
	require.NoError(t, err)

	// Active but zero served days: the mint succeeds and pays nothing.
	clock.advanceDays(1)
	payout, err := engine.MintNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), payout)

	// One served day at the 9x bracket.
	clock.advanceDays(1)
	payout, err = engine.MintNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), payout)
}

func TestMintNativePendingAndMismatch(t *testing.T) {
	engine, ledger, _ := newTestEngine(t)

	ledger.Fund(alice, big.NewInt(100))
	stakeID, err := ledger.Open(alice, big.NewInt(100), 10, engine.CurrentDay())
	require.NoError(t, err)

	_, err = engine.MintNative(alice, 0, stakeID)
	require.ErrorIs(t, err, minting.ErrStakePending)

	_, err = engine.MintNative(alice, 0, stakeID+1)
	require.ErrorIs(t, err, stake.ErrIndexMismatch)
}

func TestClaimNativeSettlesWithoutPayout(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	ledger.Fund(alice, big.NewInt(100))
	stakeID, err := ledger.Open(alice, big.NewInt(100), 10, engine.CurrentDay())
	require.NoError(t, err)

	clock.advanceDays(4)
	served, err := engine.ClaimNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), served)
	require.Equal(t, big.NewInt(0), engine.TotalSupply())

	// A later mint only pays the days after the claim.
	clock.advanceDays(1)
	payout, err := engine.MintNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), payout)
}

func TestInstancedLifecycle(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 5)
	require.Equal(t, 1, engine.ProxyCount(alice))

	// Only the owner mints against the proxy.
	clock.advanceDays(3)
	_, err := engine.MintInstanced(bob, 0, proxy.ID)
	require.ErrorIs(t, err, registry.ErrNotOwner)

	payout, err := engine.MintInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2200), payout) // 2 served days at 10x

	clock.advanceDays(3)
	refund, err := engine.StakeEnd(alice, 0, proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), refund)
	require.Equal(t, big.NewInt(100), ledger.BalanceOf(alice))
	require.Equal(t, 0, engine.ProxyCount(alice))
}

func TestInstancedOpsRejectStaleIndex(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	first := wrapStake(t, engine, ledger, alice, 100, 5)
	second := wrapStake(t, engine, ledger, alice, 100, 5)

	// Ending the first proxy swaps the second into slot zero.
	refund, err := engine.StakeEnd(alice, 0, first.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), refund)

	clock.advanceDays(3)
	_, err = engine.MintInstanced(alice, 1, second.ID)
	require.ErrorIs(t, err, registry.ErrIndexMismatch)
	_, err = engine.ClaimInstanced(alice, 1, second.ID)
	require.ErrorIs(t, err, registry.ErrIndexMismatch)
	_, err = engine.LoanInstanced(alice, 1, second.ID)
	require.ErrorIs(t, err, registry.ErrIndexMismatch)
	_, err = engine.StakeEnd(alice, 1, second.ID)
	require.ErrorIs(t, err, registry.ErrIndexMismatch)

	payout, err := engine.MintInstanced(alice, 0, second.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2200), payout)
}

func TestTokenizeBlocksDirectOps(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 5)
	clock.advanceDays(2)

	tokenID, err := engine.StakeTokenize(alice, proxy.ID)
	require.NoError(t, err)

	_, err = engine.MintInstanced(alice, 0, proxy.ID)
	require.ErrorIs(t, err, registry.ErrTokenized)

	require.NoError(t, engine.TransferStakeToken(alice, bob, tokenID))
	restored, err := engine.StakeDetokenize(bob, tokenID)
	require.NoError(t, err)
	require.Equal(t, bob, restored.Ownership.Owner)

	_, err = engine.MintInstanced(bob, 0, proxy.ID)
	require.NoError(t, err)
}

func TestLoanInstancedAdvanceAndPayoff(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 30)
	clock.advanceDays(2)

	opened, err := engine.LoanInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3000), opened.Principal)
	require.Equal(t, big.NewInt(3000), engine.BalanceOf(alice))
	require.Equal(t, big.NewInt(3000), engine.LoanedSupply())

	// Loaned stakes cannot mint and cannot be re-loaned or ended.
	_, err = engine.MintInstanced(alice, 0, proxy.ID)
	require.ErrorIs(t, err, minting.ErrLoanActive)
	_, err = engine.LoanInstanced(alice, 0, proxy.ID)
	require.ErrorIs(t, err, loan.ErrLoanExists)
	_, err = engine.StakeEnd(alice, 0, proxy.ID)
	require.ErrorIs(t, err, registry.ErrLoanActive)

	due, fee, err := engine.CalcLoanPayoff(proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3900), due)
	require.Equal(t, big.NewInt(0), fee)

	// Top the borrower up to cover the interest and settle.
	require.NoError(t, engine.Tokens().Mint(alice, big.NewInt(900)))
	due, fee, err = engine.LoanPayoff(alice, proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3900), due)
	require.Equal(t, big.NewInt(0), fee)
	require.Equal(t, big.NewInt(0), engine.BalanceOf(alice))
	require.Equal(t, big.NewInt(0), engine.LoanedSupply())
	require.Nil(t, engine.Loan(proxy.ID))

	// Mint rights come back with the payoff.
	clock.advanceDays(1)
	payout, err := engine.MintInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)
	require.True(t, payout.Sign() > 0)
}

func TestLoanPaymentQuoteMatchesCharge(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 30)
	clock.advanceDays(2)

	// The payment quote is available before any loan exists.
	due, fee, err := engine.CalcLoanPayment(proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3900), due)
	require.Equal(t, big.NewInt(450), fee)

	_, err = engine.LoanInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)
	require.NoError(t, engine.Tokens().Mint(alice, big.NewInt(1350)))

	paidDue, paidFee, err := engine.LoanPayment(alice, proxy.ID)
	require.NoError(t, err)
	require.Equal(t, due, paidDue)
	require.Equal(t, fee, paidFee)
	require.Equal(t, big.NewInt(0), engine.BalanceOf(alice))

	// The loan survives the payment with its window amortised.
	require.NotNil(t, engine.Loan(proxy.ID))
	due, fee, err = engine.CalcLoanPayoff(proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), due)
	require.Equal(t, big.NewInt(0), fee)
}

func TestLiquidationLifecycle(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 30)
	clock.advanceDays(2)
	_, err := engine.LoanInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)

	// Still current: cannot liquidate.
	_, err = engine.LoanLiquidate(liquidator, alice, 0, proxy.ID)
	require.ErrorIs(t, err, ErrNotInDefault)

	// 31 days past the last interaction the loan is in default. The
	// outstanding debt caps the fee at the full 30-day window.
	clock.advanceDays(31)
	require.NoError(t, engine.Tokens().Mint(liquidator, big.NewInt(4350)))

	// A stale borrower-list position is rejected.
	_, err = engine.LoanLiquidate(liquidator, alice, 1, proxy.ID)
	require.ErrorIs(t, err, registry.ErrIndexMismatch)

	liq, err := engine.LoanLiquidate(liquidator, alice, 0, proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4350), liq.BidAmount)
	require.Equal(t, big.NewInt(0), engine.BalanceOf(liquidator))

	// The loan is frozen while the auction runs.
	_, _, err = engine.LoanPayoff(alice, proxy.ID)
	require.ErrorIs(t, err, liquidation.ErrAuctionActive)

	// A rival outbids; the opening bidder is refunded.
	require.NoError(t, engine.Tokens().Mint(bob, big.NewInt(5000)))
	liq, err = engine.LoanLiquidateBid(bob, liq.ID, big.NewInt(5000))
	require.NoError(t, err)
	require.Equal(t, bob, liq.Bidder)
	require.Equal(t, big.NewInt(4350), engine.BalanceOf(liquidator))

	_, err = engine.LoanLiquidateExit(liq.ID)
	require.ErrorIs(t, err, liquidation.ErrAuctionActive)

	clock.now = clock.now.Add(25 * time.Hour)
	settled, err := engine.LoanLiquidateExit(liq.ID)
	require.NoError(t, err)
	require.Equal(t, liquidation.StateSettled, settled.State)

	// Debt burned from escrow, the surplus credited to the borrower, and
	// the proxy handed to the winner with mint rights restored.
	require.Equal(t, big.NewInt(650), new(big.Int).Sub(engine.BalanceOf(alice), big.NewInt(3000)))
	require.Equal(t, 0, engine.ProxyCount(alice))
	require.Equal(t, 1, engine.ProxyCount(bob))
	require.Nil(t, engine.Loan(proxy.ID))
	require.Equal(t, big.NewInt(0), engine.LoanedSupply())

	// The auction record leaves with the loan.
	require.Nil(t, engine.Liquidation(liq.ID))

	got, err := engine.Proxy(proxy.ID)
	require.NoError(t, err)
	require.Equal(t, bob, got.Ownership.Owner)
}

func TestLiquidateWithoutFundsFails(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 30)
	clock.advanceDays(2)
	_, err := engine.LoanInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)

	clock.advanceDays(31)
	_, err = engine.LoanLiquidate(liquidator, alice, 0, proxy.ID)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
}

func TestProofOfBenevolence(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	require.NoError(t, engine.Tokens().Mint(alice, big.NewInt(1000)))

	err := engine.ProofOfBenevolence(alice, big.NewInt(400))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.NoError(t, engine.Tokens().Approve(alice, engine.EngineAddress(), big.NewInt(400)))
	require.NoError(t, engine.ProofOfBenevolence(alice, big.NewInt(400)))
	require.Equal(t, big.NewInt(600), engine.BalanceOf(alice))
	require.Equal(t, big.NewInt(600), engine.TotalSupply())
}

func TestDayLedgerRecordsSkippedDays(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	ledger.Fund(alice, big.NewInt(100))
	stakeID, err := ledger.Open(alice, big.NewInt(100), 1, engine.CurrentDay())
	require.NoError(t, err)

	clock.advanceDays(5)
	_, err = engine.MintNative(alice, 0, stakeID)
	require.NoError(t, err)
	require.Equal(t, uint64(5), engine.CurrentDay())

	// The lazy advance backfilled every skipped day.
	for day := uint64(0); day <= 5; day++ {
		entry, ok := engine.DayEntry(day)
		require.True(t, ok, "missing day %d", day)
		require.Equal(t, day, entry.Day)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	engine, ledger, clock := newTestEngine(t)

	proxy := wrapStake(t, engine, ledger, alice, 100, 30)
	clock.advanceDays(2)
	_, err := engine.LoanInstanced(alice, 0, proxy.ID)
	require.NoError(t, err)

	snap := engine.Snapshot()

	restoredLedger := stake.NewMemLedger()
	restored := NewEngine(launch, restoredLedger)
	restored.SetClock(clock.Now)
	require.NoError(t, restored.Restore(snap))

	require.Equal(t, engine.TotalSupply(), restored.TotalSupply())
	require.Equal(t, engine.LoanedSupply(), restored.LoanedSupply())
	require.Equal(t, 1, restored.ProxyCount(alice))
	require.NotNil(t, restored.Loan(proxy.ID))

	due, fee, err := restored.CalcLoanPayoff(proxy.ID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3900), due)
	require.Equal(t, big.NewInt(0), fee)
}
