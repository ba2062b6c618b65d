// Package potato implements the board of a hot potato game: a fixed-capacity
// ring of holder records and the batch scans that mark turns payable and plan
// their payout.
//
// The board is a flat array addressed modulo Capacity with explicit head and
// tail cursors and a full flag. Records are never moved; a holder keeps its
// slot until it has been paid MaxTurns times and reaches the head, at which
// point the slot is cleared and the head advances.
//
// # Basic Usage
//
//	q := potato.NewQueue()
//	_ = q.Enqueue(potato.Record{Participant: alice, TurnAmount: 100})
//	_ = q.AdvanceTurn() // every holder now has one payment pending
//	chunk, err := q.PlanPaymentChunk([]potato.Account{alice}, 0, 35, pot)
//	if err == nil {
//	    q.ApplyPaymentChunk(chunk)
//	}
//
// Planning is pure so that callers can move funds between planning and
// applying, and abandon the chunk if the transfer fails.
package potato
