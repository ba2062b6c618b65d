package game

import (
	"fmt"
	"math"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/potato"
)

// RequestEntry charges participant for a ticket and puts them at the back of
// the board. The first entry of a pending game starts staging. It returns the
// record that was enqueued.
func (g *Game) RequestEntry(participant potato.Account, ticket uint64) (potato.Record, error) {
	if participant == g.master {
		return potato.Record{}, ErrCallerIsGameMaster
	}
	if ticket < g.params.MinimumTicketEntry {
		return potato.Record{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, ticket, g.params.MinimumTicketEntry)
	}
	now := g.now()
	next, err := transition(g.state, triggerEntry, now, g.params)
	if err != nil {
		return potato.Record{}, err
	}
	if participant.IsZero() {
		return potato.Record{}, fmt.Errorf("%w: empty participant", ErrInvalidAccount)
	}
	if g.board.Full() {
		return potato.Record{}, ErrBoardFull
	}

	turnAmount, charged := SplitTicket(ticket, g.params.FeePermille)
	if turnAmount == 0 {
		return potato.Record{}, fmt.Errorf("%w: %d", ErrTicketTooSmall, ticket)
	}
	if charged > math.MaxUint64-g.pot {
		return potato.Record{}, ErrPotOverflow
	}

	if err := g.ledger.Transfer(participant, g.escrow, charged); err != nil {
		return potato.Record{}, fmt.Errorf("charge ticket entry: %w", err)
	}
	record := potato.Record{Participant: participant, TurnAmount: turnAmount}
	if err := g.board.Enqueue(record); err != nil {
		// Full was checked above; hand the charge back if that ever changes.
		if refundErr := g.ledger.Transfer(g.escrow, participant, charged); refundErr != nil {
			g.logger.Error("Failed to refund ticket entry", "player", participant.Short(), "amount", charged, "error", refundErr)
		}
		return potato.Record{}, err
	}
	g.pot += charged

	g.logger.Debug("Entry accepted", "player", participant.Short(), "ticket", ticket, "charged", charged, "turn_amount", turnAmount)
	g.sink.Publish(events.NewPotatoReceived(now, g.id, participant, charged, turnAmount))
	if next.Phase() != g.state.Phase() {
		g.logger.Info("Staging started", "ending", next.Deadline())
		g.setState(next, now)
	}
	return record, nil
}
