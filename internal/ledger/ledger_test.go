package ledger

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/hotpotato/internal/potato"
)

var (
	alice = potato.AccountFromName("alice")
	bob   = potato.AccountFromName("bob")
)

func TestTransfer(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Airdrop(alice, 100))

	require.NoError(t, m.Transfer(alice, bob, 40))
	assert.Equal(t, uint64(60), m.Balance(alice))
	assert.Equal(t, uint64(40), m.Balance(bob))

	err := m.Transfer(alice, bob, 61)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(60), m.Balance(alice), "failed transfer moves nothing")
	assert.Equal(t, uint64(100), m.Total())
}

func TestDebitCreditConserveTotal(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Airdrop(alice, 100))

	require.NoError(t, m.Debit(alice, 30))
	assert.Equal(t, uint64(70), m.Total())
	m.Credit(bob, 20)
	m.Credit(alice, 10)
	assert.Equal(t, uint64(100), m.Total())
	assert.Equal(t, uint64(80), m.Balance(alice))

	assert.ErrorIs(t, m.Debit(bob, 21), ErrInsufficientFunds)
}

func TestAirdropOverflow(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Airdrop(alice, math.MaxUint64))
	assert.ErrorIs(t, m.Airdrop(bob, 1), ErrOverflow)
	assert.Equal(t, uint64(0), m.Balance(bob))
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Airdrop(alice, 5))
	require.NoError(t, m.Airdrop(bob, 7))
	require.NoError(t, m.Transfer(alice, bob, 5))

	snap := m.Snapshot()
	require.Len(t, snap, 1, "empty balances are skipped")

	restored := NewMemory()
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, uint64(12), restored.Balance(bob))
	assert.Equal(t, uint64(12), restored.Total())

	err := restored.Restore([]Entry{{alice, math.MaxUint64}, {bob, 1}})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestConcurrentTransfers(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Airdrop(alice, 1000))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Transfer(alice, bob, 10)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(0), m.Balance(alice))
	assert.Equal(t, uint64(1000), m.Balance(bob))
}
