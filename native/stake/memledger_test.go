package stake

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func addr(suffix byte) [20]byte {
	var out [20]byte
	out[19] = suffix
	return out
}

func TestOpenPendingThenActive(t *testing.T) {
	l := NewMemLedger()
	owner := addr(1)
	l.Fund(owner, big.NewInt(1000))

	id, err := l.Open(owner, big.NewInt(100), 10, 5)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(900), l.BalanceOf(owner))
	require.Equal(t, big.NewInt(100), l.TotalStaked())

	pos, err := l.Query(owner, 0, 5)
	require.NoError(t, err)
	require.Equal(t, id, pos.ID)
	require.Equal(t, StatusPending, pos.Status)
	require.Equal(t, uint64(0), pos.ElapsedDays(5))

	pos, err = l.Query(owner, 0, 6)
	require.NoError(t, err)
	require.Equal(t, StatusActive, pos.Status)
	require.Equal(t, uint64(2), pos.ElapsedDays(8))

	pos, err = l.Query(owner, 0, 16)
	require.NoError(t, err)
	require.Equal(t, StatusEnded, pos.Status)
}

func TestEndRules(t *testing.T) {
	l := NewMemLedger()
	owner := addr(1)
	l.Fund(owner, big.NewInt(1000))

	id, err := l.Open(owner, big.NewInt(100), 10, 0)
	require.NoError(t, err)

	// Pending cancel refunds the principal.
	payout, err := l.End(owner, 0, id, 0)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), payout)
	require.Equal(t, big.NewInt(1000), l.BalanceOf(owner))
	require.Equal(t, 0, l.Count(owner))

	id, err = l.Open(owner, big.NewInt(100), 10, 0)
	require.NoError(t, err)

	// Cannot end while serving.
	_, err = l.End(owner, 0, id, 5)
	require.ErrorIs(t, err, ErrStakeLocked)

	// Fully served pays out.
	payout, err = l.End(owner, 0, id, 11)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), payout)
	require.Equal(t, big.NewInt(0), l.TotalStaked())
}

func TestOpenFromRequiresAllowance(t *testing.T) {
	l := NewMemLedger()
	owner, custodian := addr(1), addr(2)
	l.Fund(owner, big.NewInt(500))

	_, err := l.OpenFrom(custodian, owner, big.NewInt(100), 5, 0)
	require.ErrorIs(t, err, ErrAllowance)

	l.Approve(owner, custodian, big.NewInt(150))
	id, err := l.OpenFrom(custodian, owner, big.NewInt(100), 5, 0)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), l.Allowance(owner, custodian))
	require.Equal(t, 1, l.Count(custodian))
	require.Equal(t, 0, l.Count(owner))

	pos, err := l.Query(custodian, 0, 1)
	require.NoError(t, err)
	require.Equal(t, id, pos.ID)
}

func TestSwapWithLastRemoval(t *testing.T) {
	l := NewMemLedger()
	owner := addr(1)
	l.Fund(owner, big.NewInt(1000))

	id1, err := l.Open(owner, big.NewInt(100), 1, 0)
	require.NoError(t, err)
	id2, err := l.Open(owner, big.NewInt(200), 1, 0)
	require.NoError(t, err)
	id3, err := l.Open(owner, big.NewInt(300), 1, 0)
	require.NoError(t, err)

	// Id mismatch against a valid index.
	_, err = l.End(owner, 0, id2, 3)
	require.ErrorIs(t, err, ErrIndexMismatch)

	_, err = l.End(owner, 0, id1, 3)
	require.NoError(t, err)

	// The last entry moved into slot zero.
	pos, err := l.Query(owner, 0, 3)
	require.NoError(t, err)
	require.Equal(t, id3, pos.ID)

	pos, err = l.Query(owner, 1, 3)
	require.NoError(t, err)
	require.Equal(t, id2, pos.ID)

	require.NoError(t, l.AccountingUpdate(owner, 0, id3))
	require.ErrorIs(t, l.AccountingUpdate(owner, 0, id1), ErrIndexMismatch)
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := NewMemLedger()
	owner := addr(1)
	l.Fund(owner, big.NewInt(1000))
	l.Approve(owner, addr(2), big.NewInt(40))
	_, err := l.Open(owner, big.NewInt(250), 7, 2)
	require.NoError(t, err)

	restored := NewMemLedger()
	require.NoError(t, restored.Restore(l.Snapshot()))

	require.Equal(t, l.BalanceOf(owner), restored.BalanceOf(owner))
	require.Equal(t, l.TotalStaked(), restored.TotalStaked())
	require.Equal(t, l.Allowance(owner, addr(2)), restored.Allowance(owner, addr(2)))

	want, err := l.Query(owner, 0, 4)
	require.NoError(t, err)
	got, err := restored.Query(owner, 0, 4)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
