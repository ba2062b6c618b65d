package game

import (
	"fmt"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/potato"
)

// Disbursement reports what a single Disburse call paid out
type Disbursement struct {
	potato.Chunk
	Retired int  `json:"retired"` // holders released from the head of the board
	Closed  bool `json:"closed"`
}

// Disburse pays payees[i] as the holder at offset+i from the head of the
// board. The game master collects the fees. If the pot runs out part way
// the last holder paid gets the remainder and the game closes.
func (g *Game) Disburse(caller potato.Account, offset int, payees []potato.Account) (Disbursement, error) {
	if caller != g.master {
		return Disbursement{}, ErrNotGameMaster
	}
	if g.state.Phase() != PhaseActive {
		return Disbursement{}, fmt.Errorf("%w: game is %s", ErrNotActive, g.state.Phase())
	}
	if len(payees) > MaxChunkSize {
		return Disbursement{}, fmt.Errorf("%w: %d payees, at most %d", ErrChunkTooLarge, len(payees), MaxChunkSize)
	}

	chunk, err := g.board.PlanPaymentChunk(payees, offset, g.params.FeePermille, g.pot)
	if err != nil {
		return Disbursement{}, err
	}
	if chunk.TotalPaid > 0 {
		if err := g.ledger.Debit(g.escrow, chunk.TotalPaid); err != nil {
			return Disbursement{}, fmt.Errorf("%w: debit %d: %w", ErrEscrowAccounting, chunk.TotalPaid, err)
		}
	}
	for _, p := range chunk.Payments {
		if p.Amount > 0 {
			g.ledger.Credit(p.Participant, p.Amount)
		}
	}
	if chunk.TotalFee > 0 {
		g.ledger.Credit(g.master, chunk.TotalFee)
	}

	result := Disbursement{Chunk: chunk}
	result.Retired = g.board.ApplyPaymentChunk(chunk)
	g.pot = chunk.RemainingPot

	now := g.now()
	for _, p := range chunk.Payments {
		g.sink.Publish(events.NewPotatoHolderPaid(now, g.id, p.Participant, p.Amount, p.Turn))
	}
	if len(chunk.Payments) > 0 {
		g.sink.Publish(events.NewGameMasterPaid(now, g.id, chunk.TotalFee))
	}
	g.logger.Debug("Disbursed", "offset", offset, "payments", len(chunk.Payments),
		"paid", chunk.TotalPaid, "fee", chunk.TotalFee, "pot", g.pot, "retired", result.Retired)

	if chunk.Overdrawn {
		next, err := transition(g.state, triggerOverdraw, now, g.params)
		if err != nil {
			return result, err
		}
		g.logger.Info("Pot exhausted, closing game", "remaining", g.pot)
		g.setState(next, now)
		result.Closed = true
	}
	return result, nil
}
