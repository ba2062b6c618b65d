package potato

import (
	"encoding/binary"
	"fmt"
)

const (
	// Capacity is the number of slots on a board.
	Capacity = 10_000

	// MaxTurns is the number of payouts a holder receives before its slot
	// is released.
	MaxTurns = 150
)

// queueHeaderSize covers the full flag and the head and tail cursors.
const queueHeaderSize = 3 * 8

// QueueLayoutSize is the encoded size of a Queue.
const QueueLayoutSize = queueHeaderSize + Capacity*RecordSize

// Queue is a fixed-capacity ring of holder records.
//
// A Queue is not safe for concurrent use; the owning game serialises access.
type Queue struct {
	full  bool
	head  int
	tail  int
	slots [Capacity]Record
}

// NewQueue returns an empty board.
func NewQueue() *Queue {
	return &Queue{}
}

// Head returns the slot index of the oldest holder.
func (q *Queue) Head() int { return q.head }

// Tail returns the slot index the next holder will be written to.
func (q *Queue) Tail() int { return q.tail }

// Full reports whether every slot is occupied.
func (q *Queue) Full() bool { return q.full }

// Len returns the number of occupied slots.
func (q *Queue) Len() int {
	if q.full {
		return Capacity
	}
	return (q.tail - q.head + Capacity) % Capacity
}

// slot maps an offset from the head to a slot index.
func (q *Queue) slot(offset int) int {
	return (q.head + offset) % Capacity
}

// Enqueue writes r at the tail.
func (q *Queue) Enqueue(r Record) error {
	if q.full {
		return ErrQueueFull
	}
	q.slots[q.tail] = r
	q.tail = (q.tail + 1) % Capacity
	if q.tail == q.head {
		q.full = true
	}
	return nil
}

// At returns the record offset positions after the head.
func (q *Queue) At(offset int) (Record, bool) {
	if offset < 0 || offset >= q.Len() {
		return Record{}, false
	}
	return q.slots[q.slot(offset)], true
}

// Records returns a copy of the occupied records in FIFO order.
func (q *Queue) Records() []Record {
	n := q.Len()
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = q.slots[q.slot(i)]
	}
	return out
}

// Pending returns the offsets of holders with a payment due, in FIFO order.
func (q *Queue) Pending() []int {
	var offsets []int
	for i, n := 0, q.Len(); i < n; i++ {
		if q.slots[q.slot(i)].PaymentPending > 0 {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// AdvanceTurn credits one more turn to every holder still owed turns.
//
// The whole board is checked before anything is mutated, so a holder that
// has not been paid for the previous turn fails the call without crediting
// anyone.
func (q *Queue) AdvanceTurn() error {
	n := q.Len()
	for i := 0; i < n; i++ {
		r := &q.slots[q.slot(i)]
		if r.PaymentPending > 0 {
			return fmt.Errorf("%w: offset %d held by %s", ErrPaymentStillDue, i, r.Participant.Short())
		}
	}
	for i := 0; i < n; i++ {
		r := &q.slots[q.slot(i)]
		if r.TurnNumber >= MaxTurns {
			continue
		}
		r.PaymentPending++
		r.TurnNumber++
	}
	return nil
}

// retire releases finished holders from the head and returns how many were
// released.
func (q *Queue) retire() int {
	released := 0
	for q.Len() > 0 {
		r := &q.slots[q.head]
		if !r.Finished() {
			break
		}
		*r = Record{}
		q.head = (q.head + 1) % Capacity
		q.full = false
		released++
	}
	return released
}

// MarshalBinary encodes the board in its fixed-size layout.
func (q *Queue) MarshalBinary() ([]byte, error) {
	b := make([]byte, QueueLayoutSize)
	var full uint64
	if q.full {
		full = 1
	}
	binary.LittleEndian.PutUint64(b[0:], full)
	binary.LittleEndian.PutUint64(b[8:], uint64(q.head))
	binary.LittleEndian.PutUint64(b[16:], uint64(q.tail))
	for i := range q.slots {
		off := queueHeaderSize + i*RecordSize
		q.slots[i].put(b[off : off+RecordSize])
	}
	return b, nil
}

// UnmarshalBinary decodes a board produced by MarshalBinary.
func (q *Queue) UnmarshalBinary(data []byte) error {
	if len(data) != QueueLayoutSize {
		return fmt.Errorf("%w: board is %d bytes, want %d", ErrInvalidLayout, len(data), QueueLayoutSize)
	}
	full := binary.LittleEndian.Uint64(data[0:])
	head := binary.LittleEndian.Uint64(data[8:])
	tail := binary.LittleEndian.Uint64(data[16:])
	if full > 1 || head >= Capacity || tail >= Capacity {
		return fmt.Errorf("%w: header full=%d head=%d tail=%d", ErrInvalidLayout, full, head, tail)
	}
	if full == 1 && head != tail {
		return fmt.Errorf("%w: full board with head %d != tail %d", ErrInvalidLayout, head, tail)
	}
	q.full = full == 1
	q.head = int(head)
	q.tail = int(tail)
	for i := range q.slots {
		off := queueHeaderSize + i*RecordSize
		q.slots[i].get(data[off : off+RecordSize])
	}
	return nil
}
