package potato

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holder(i int) Account {
	return AccountFromName(fmt.Sprintf("player-%d", i))
}

func fillQueue(t *testing.T, q *Queue, n int, amount uint64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, q.Enqueue(Record{Participant: holder(i), TurnAmount: amount}))
	}
}

func TestNewQueueIsEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Head())
	assert.Equal(t, 0, q.Tail())
	assert.False(t, q.Full())
	assert.Empty(t, q.Records())
	assert.Empty(t, q.Pending())
}

func TestEnqueueCapacity(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, Capacity-1, 10)
	assert.False(t, q.Full())
	assert.Equal(t, Capacity-1, q.Len())

	require.NoError(t, q.Enqueue(Record{Participant: holder(Capacity), TurnAmount: 10}))
	assert.True(t, q.Full(), "exactly Capacity records fill the board")
	assert.Equal(t, Capacity, q.Len())
	assert.Equal(t, q.Head(), q.Tail())

	err := q.Enqueue(Record{Participant: holder(Capacity + 1), TurnAmount: 10})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, Capacity, q.Len())
}

func TestAdvanceTurnVisitsInEnqueueOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 5, 10)
	require.NoError(t, q.AdvanceTurn())

	records := q.Records()
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, holder(i), r.Participant, "offset %d", i)
		assert.Equal(t, uint64(1), r.TurnNumber)
		assert.Equal(t, uint64(1), r.PaymentPending)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.Pending())
}

func TestAdvanceTurnTwiceWithoutPayingFails(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 3, 10)
	require.NoError(t, q.AdvanceTurn())

	// Pay the first holder only; the others still owe the previous turn.
	_, err := q.ProcessPaymentChunk([]Account{holder(0)}, 0, 0, 1000)
	require.NoError(t, err)

	err = q.AdvanceTurn()
	require.ErrorIs(t, err, ErrPaymentStillDue)

	// Nothing was credited by the failed call.
	records := q.Records()
	assert.Equal(t, uint64(1), records[0].TurnNumber)
	assert.Equal(t, uint64(0), records[0].PaymentPending)
	assert.Equal(t, uint64(1), records[1].TurnNumber)
	assert.Equal(t, uint64(1), records[1].PaymentPending)
}

func TestAdvanceTurnOnEmptyBoard(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	assert.NoError(t, q.AdvanceTurn())
	assert.Empty(t, q.Pending())
}

func TestAtBounds(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 2, 10)

	r, ok := q.At(1)
	require.True(t, ok)
	assert.Equal(t, holder(1), r.Participant)

	_, ok = q.At(2)
	assert.False(t, ok)
	_, ok = q.At(-1)
	assert.False(t, ok)
}

func TestHolderRetiresAfterMaxTurns(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 1, 100)

	for turn := 1; turn <= MaxTurns; turn++ {
		require.NoError(t, q.AdvanceTurn(), "turn %d", turn)
		if turn == MaxTurns {
			break
		}
		_, err := q.ProcessPaymentChunk([]Account{holder(0)}, 0, 0, 1_000_000)
		require.NoError(t, err, "turn %d", turn)
		assert.Equal(t, 1, q.Len(), "holder stays until its last payout")
	}

	// A late joiner sits behind the finishing holder.
	require.NoError(t, q.Enqueue(Record{Participant: holder(1), TurnAmount: 100}))

	c, err := q.PlanPaymentChunk([]Account{holder(0)}, 0, 0, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(MaxTurns), c.Payments[0].Turn)
	released := q.ApplyPaymentChunk(c)

	assert.Equal(t, 1, released)
	assert.Equal(t, 1, q.Head())
	assert.Equal(t, 1, q.Len())

	r, ok := q.At(0)
	require.True(t, ok)
	assert.Equal(t, holder(1), r.Participant, "offsets count from the new head")

	require.NoError(t, q.AdvanceTurn())
	r, _ = q.At(0)
	assert.Equal(t, uint64(1), r.TurnNumber)
}

func TestRetiredSlotCanBeReused(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, Capacity, 1)
	require.True(t, q.Full())

	// Pretend the head holder has been paid for every turn.
	q.slots[q.head].TurnNumber = MaxTurns
	assert.Equal(t, 1, q.retire())
	assert.False(t, q.Full())
	assert.Equal(t, Capacity-1, q.Len())

	require.NoError(t, q.Enqueue(Record{Participant: holder(Capacity), TurnAmount: 1}))
	assert.True(t, q.Full())
	assert.Equal(t, 1, q.Tail(), "the tail wrapped into the released slot")

	last, ok := q.At(Capacity - 1)
	require.True(t, ok)
	assert.Equal(t, holder(Capacity), last.Participant)
}

func TestQueueBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	fillQueue(t, q, 3, 42)
	require.NoError(t, q.AdvanceTurn())

	data, err := q.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, QueueLayoutSize)

	var decoded Queue
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, q.Records(), decoded.Records())
	assert.Equal(t, q.Head(), decoded.Head())
	assert.Equal(t, q.Tail(), decoded.Tail())
}

func TestQueueUnmarshalRejectsBadHeader(t *testing.T) {
	t.Parallel()

	var q Queue
	assert.ErrorIs(t, q.UnmarshalBinary(make([]byte, 10)), ErrInvalidLayout)

	data, err := NewQueue().MarshalBinary()
	require.NoError(t, err)
	data[8] = 0xff
	data[9] = 0xff
	assert.ErrorIs(t, q.UnmarshalBinary(data), ErrInvalidLayout)
}
