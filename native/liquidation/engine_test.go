package liquidation

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockState struct {
	liquidations map[uint64]*Liquidation
	nextID       uint64
}

func newMockState() *mockState {
	return &mockState{liquidations: make(map[uint64]*Liquidation), nextID: 1}
}

func (m *mockState) GetLiquidation(id uint64) *Liquidation { return m.liquidations[id] }
func (m *mockState) PutLiquidation(liq *Liquidation)       { m.liquidations[liq.ID] = liq }
func (m *mockState) DeleteLiquidation(id uint64)           { delete(m.liquidations, id) }

func (m *mockState) LiquidationByProxy(proxyID uint64) *Liquidation {
	for _, liq := range m.liquidations {
		if liq.ProxyID == proxyID {
			return liq
		}
	}
	return nil
}

func (m *mockState) NextLiquidationID() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

var (
	liquidator = [20]byte{0x11}
	defaulter  = [20]byte{0x22}
	rival      = [20]byte{0x33}
)

func TestStartOpensAtDebt(t *testing.T) {
	engine := NewEngine(newMockState())

	liq, err := engine.Start(liquidator, defaulter, 7, big.NewInt(5000), 1000)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5000), liq.BidAmount)
	require.Equal(t, liquidator, liq.Bidder)
	require.Equal(t, int64(1000)+AuctionSeconds, liq.EndsAt)
	require.Equal(t, StateOpen, liq.State)
}

func TestStartRejectsSecondAuction(t *testing.T) {
	engine := NewEngine(newMockState())

	_, err := engine.Start(liquidator, defaulter, 7, big.NewInt(5000), 1000)
	require.NoError(t, err)
	_, err = engine.Start(rival, defaulter, 7, big.NewInt(5000), 1001)
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestBidMustExceedCurrent(t *testing.T) {
	engine := NewEngine(newMockState())

	liq, err := engine.Start(liquidator, defaulter, 7, big.NewInt(10000), 0)
	require.NoError(t, err)

	// Matching the current bid is not enough; one unit over is.
	_, _, err = engine.Bid(rival, liq.ID, big.NewInt(10000), 100)
	require.ErrorIs(t, err, ErrBidTooLow)

	prevBidder, prevAmount, err := engine.Bid(rival, liq.ID, big.NewInt(10001), 100)
	require.NoError(t, err)
	require.Equal(t, liquidator, prevBidder)
	require.Equal(t, big.NewInt(10000), prevAmount)

	refreshed := engine.Get(liq.ID)
	require.Equal(t, rival, refreshed.Bidder)
	require.Equal(t, big.NewInt(10001), refreshed.BidAmount)
}

func TestSmallStepOverLargeBidAccepted(t *testing.T) {
	engine := NewEngine(newMockState())

	debt := big.NewInt(100_000_000_000)
	liq, err := engine.Start(liquidator, defaulter, 7, debt, 0)
	require.NoError(t, err)

	// A tiny absolute step over a very large opening bid clears.
	next := new(big.Int).Add(debt, big.NewInt(1000))
	_, _, err = engine.Bid(rival, liq.ID, next, 100)
	require.NoError(t, err)
	require.Equal(t, next, engine.Get(liq.ID).BidAmount)
}

func TestBidAfterCloseRejected(t *testing.T) {
	engine := NewEngine(newMockState())

	liq, err := engine.Start(liquidator, defaulter, 7, big.NewInt(10000), 0)
	require.NoError(t, err)

	_, _, err = engine.Bid(rival, liq.ID, big.NewInt(20000), AuctionSeconds)
	require.ErrorIs(t, err, ErrAuctionClosed)
}

func TestLateBidExtendsAuction(t *testing.T) {
	engine := NewEngine(newMockState())

	liq, err := engine.Start(liquidator, defaulter, 7, big.NewInt(10000), 0)
	require.NoError(t, err)

	// A bid landing 10 seconds before close pushes the end out.
	late := AuctionSeconds - 10
	_, _, err = engine.Bid(rival, liq.ID, big.NewInt(10500), late)
	require.NoError(t, err)
	require.Equal(t, late+ExtensionSeconds, engine.Get(liq.ID).EndsAt)

	// An early bid leaves the close untouched.
	engine2 := NewEngine(newMockState())
	liq2, err := engine2.Start(liquidator, defaulter, 7, big.NewInt(10000), 0)
	require.NoError(t, err)
	_, _, err = engine2.Bid(rival, liq2.ID, big.NewInt(10500), 100)
	require.NoError(t, err)
	require.Equal(t, AuctionSeconds, engine2.Get(liq2.ID).EndsAt)
}

func TestExitBeforeEndFails(t *testing.T) {
	engine := NewEngine(newMockState())

	liq, err := engine.Start(liquidator, defaulter, 7, big.NewInt(10000), 0)
	require.NoError(t, err)

	_, err = engine.Exit(liq.ID, AuctionSeconds-1)
	require.ErrorIs(t, err, ErrAuctionActive)

	settled, err := engine.Exit(liq.ID, AuctionSeconds)
	require.NoError(t, err)
	require.Equal(t, StateSettled, settled.State)
	require.Equal(t, liquidator, settled.Bidder)

	// The record is gone once settled.
	require.Nil(t, engine.Get(liq.ID))
	_, err = engine.Exit(liq.ID, AuctionSeconds)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExitUnknownAuction(t *testing.T) {
	engine := NewEngine(newMockState())

	_, err := engine.Exit(42, 0)
	require.ErrorIs(t, err, ErrNotFound)
}
