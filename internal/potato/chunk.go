package potato

import (
	"fmt"
	"math/bits"
)

// PermilleBase is the denominator of fee rates.
const PermilleBase = 1000

// FeeShare returns floor(amount * permille / 1000) without overflowing.
// permille must not exceed PermilleBase.
func FeeShare(amount uint64, permille uint16) uint64 {
	hi, lo := bits.Mul64(amount, uint64(permille))
	// hi < PermilleBase because permille <= PermilleBase, so Div64 cannot panic.
	quo, _ := bits.Div64(hi, lo, PermilleBase)
	return quo
}

// Payment is one planned payout within a chunk.
type Payment struct {
	Offset      int     `json:"offset"`
	Slot        int     `json:"slot"`
	Participant Account `json:"participant"`
	Turn        uint64  `json:"turn"`
	Amount      uint64  `json:"amount"` // payee share
	Fee         uint64  `json:"fee"`
}

// Chunk is the outcome of planning a disbursement over part of the board.
type Chunk struct {
	Payments     []Payment `json:"payments"`
	TotalPaid    uint64    `json:"totalPaid"` // payee shares plus fees
	TotalFee     uint64    `json:"totalFee"`
	RemainingPot uint64    `json:"remainingPot"`
	Overdrawn    bool      `json:"overdrawn"`
}

// PlanPaymentChunk pairs payees[i] with the holder at offset+i from the head
// and computes what each is owed out of pot. It does not modify the board.
//
// When a holder's turn amount exceeds what is left of the pot, the fee and
// then the payee share are each capped at the remainder and planning stops
// after that holder with Overdrawn set.
func (q *Queue) PlanPaymentChunk(payees []Account, offset int, feePermille uint16, pot uint64) (Chunk, error) {
	if feePermille > PermilleBase {
		return Chunk{}, ErrImpossibleFee
	}
	if offset < 0 {
		return Chunk{}, fmt.Errorf("%w: negative offset %d", ErrSlotMismatch, offset)
	}

	chunk := Chunk{RemainingPot: pot}
	n := q.Len()
	for i, payee := range payees {
		pos := offset + i
		if pos >= n {
			return Chunk{}, fmt.Errorf("%w: offset %d is past the last holder", ErrSlotMismatch, pos)
		}
		slot := q.slot(pos)
		r := q.slots[slot]
		if r.Participant != payee {
			return Chunk{}, fmt.Errorf("%w: offset %d held by %s, got %s", ErrSlotMismatch, pos, r.Participant.Short(), payee.Short())
		}
		if r.PaymentPending == 0 {
			return Chunk{}, fmt.Errorf("%w: offset %d", ErrNothingPending, pos)
		}

		fee := FeeShare(r.TurnAmount, feePermille)
		share := r.TurnAmount - fee
		overdraw := r.TurnAmount > chunk.RemainingPot
		if overdraw {
			fee = min(fee, chunk.RemainingPot)
			chunk.RemainingPot -= fee
			share = min(share, chunk.RemainingPot)
			chunk.RemainingPot -= share
		} else {
			chunk.RemainingPot -= r.TurnAmount
		}

		chunk.Payments = append(chunk.Payments, Payment{
			Offset:      pos,
			Slot:        slot,
			Participant: r.Participant,
			Turn:        r.TurnNumber,
			Amount:      share,
			Fee:         fee,
		})
		chunk.TotalPaid += share + fee
		chunk.TotalFee += fee

		if overdraw {
			chunk.Overdrawn = true
			break
		}
	}
	return chunk, nil
}

// ApplyPaymentChunk marks every payment in c as settled and releases holders
// that have now been paid in full. It returns the number of released slots.
// c must have been planned against the current board.
func (q *Queue) ApplyPaymentChunk(c Chunk) int {
	for _, p := range c.Payments {
		q.slots[p.Slot].PaymentPending = 0
	}
	return q.retire()
}

// ProcessPaymentChunk plans and applies a chunk in one step.
func (q *Queue) ProcessPaymentChunk(payees []Account, offset int, feePermille uint16, pot uint64) (Chunk, error) {
	c, err := q.PlanPaymentChunk(payees, offset, feePermille, pot)
	if err != nil {
		return Chunk{}, err
	}
	q.ApplyPaymentChunk(c)
	return c, nil
}
