package potato

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeShare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		amount   uint64
		permille uint16
		want     uint64
	}{
		{"zero rate", 1000, 0, 0},
		{"full rate", 1000, 1000, 1000},
		{"five percent", 100, 50, 5},
		{"truncates", 99, 35, 3},
		{"max amount full rate", math.MaxUint64, 1000, math.MaxUint64},
		{"max amount half rate", math.MaxUint64, 500, math.MaxUint64 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeeShare(tt.amount, tt.permille))
		})
	}
}

func TestPlanPaymentChunkSplitsEveryTurn(t *testing.T) {
	t.Parallel()

	for permille := uint16(0); permille <= PermilleBase; permille += 7 {
		q := NewQueue()
		fillQueue(t, q, 3, 997)
		require.NoError(t, q.AdvanceTurn())

		c, err := q.PlanPaymentChunk([]Account{holder(0), holder(1), holder(2)}, 0, permille, 1_000_000)
		require.NoError(t, err)
		require.Len(t, c.Payments, 3)
		for _, p := range c.Payments {
			assert.Equal(t, uint64(997), p.Amount+p.Fee, "permille %d", permille)
		}
		assert.Equal(t, uint64(3*997), c.TotalPaid)
		assert.Equal(t, uint64(1_000_000-3*997), c.RemainingPot)
		assert.False(t, c.Overdrawn)
	}
}

func TestPlanPaymentChunkDoesNotMutate(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 2, 100)
	require.NoError(t, q.AdvanceTurn())

	_, err := q.PlanPaymentChunk([]Account{holder(0), holder(1)}, 0, 50, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, q.Pending())
}

func TestPlanPaymentChunkErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 3, 100)
	require.NoError(t, q.AdvanceTurn())

	t.Run("wrong order", func(t *testing.T) {
		_, err := q.PlanPaymentChunk([]Account{holder(1), holder(0)}, 0, 50, 1000)
		assert.ErrorIs(t, err, ErrSlotMismatch)
	})

	t.Run("stale offset", func(t *testing.T) {
		_, err := q.PlanPaymentChunk([]Account{holder(0)}, 1, 50, 1000)
		assert.ErrorIs(t, err, ErrSlotMismatch)
	})

	t.Run("past the tail", func(t *testing.T) {
		_, err := q.PlanPaymentChunk([]Account{holder(2), holder(3)}, 2, 50, 1000)
		assert.ErrorIs(t, err, ErrSlotMismatch)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := q.PlanPaymentChunk([]Account{holder(0)}, -1, 50, 1000)
		assert.ErrorIs(t, err, ErrSlotMismatch)
	})

	t.Run("impossible fee", func(t *testing.T) {
		_, err := q.PlanPaymentChunk([]Account{holder(0)}, 0, 1001, 1000)
		assert.ErrorIs(t, err, ErrImpossibleFee)
	})

	t.Run("nothing pending", func(t *testing.T) {
		_, err := q.ProcessPaymentChunk([]Account{holder(0)}, 0, 50, 1000)
		require.NoError(t, err)
		_, err = q.PlanPaymentChunk([]Account{holder(0)}, 0, 50, 1000)
		assert.ErrorIs(t, err, ErrNothingPending)
	})
}

func TestPlanPaymentChunkOverdraw(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 4, 100)
	require.NoError(t, q.AdvanceTurn())

	payees := []Account{holder(0), holder(1), holder(2), holder(3)}

	// The pot covers the first holder in full and 50 of the second.
	c, err := q.PlanPaymentChunk(payees, 0, 100, 150)
	require.NoError(t, err)

	require.Len(t, c.Payments, 2, "scan halts at the overdrawn holder")
	assert.True(t, c.Overdrawn)
	assert.Equal(t, uint64(90), c.Payments[0].Amount)
	assert.Equal(t, uint64(10), c.Payments[0].Fee)

	// Fee is taken first, then the payee gets what is left.
	assert.Equal(t, uint64(10), c.Payments[1].Fee)
	assert.Equal(t, uint64(40), c.Payments[1].Amount)
	assert.Equal(t, uint64(150), c.TotalPaid)
	assert.Equal(t, uint64(20), c.TotalFee)
	assert.Equal(t, uint64(0), c.RemainingPot)

	q.ApplyPaymentChunk(c)
	assert.Equal(t, []int{2, 3}, q.Pending())
}

func TestPlanPaymentChunkOverdrawNeverExceedsPot(t *testing.T) {
	t.Parallel()

	for pot := uint64(0); pot < 100; pot += 3 {
		q := NewQueue()
		fillQueue(t, q, 1, 100)
		require.NoError(t, q.AdvanceTurn())

		c, err := q.PlanPaymentChunk([]Account{holder(0)}, 0, 35, pot)
		require.NoError(t, err)
		assert.True(t, c.Overdrawn)
		assert.LessOrEqual(t, c.TotalPaid, pot)
		assert.Equal(t, pot-c.TotalPaid, c.RemainingPot)
	}
}

func TestEmptyChunk(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	c, err := q.PlanPaymentChunk(nil, 0, 50, 500)
	require.NoError(t, err)
	assert.Empty(t, c.Payments)
	assert.Equal(t, uint64(500), c.RemainingPot)
	assert.False(t, c.Overdrawn)
}
