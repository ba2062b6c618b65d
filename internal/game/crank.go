package game

import (
	"fmt"

	"github.com/lox/hotpotato/internal/potato"
)

// Crank ends staging or the current turn, whichever is running, and marks
// every holder on the board payable for one more turn. It fails without
// changing anything if a holder has not been paid for the previous turn.
func (g *Game) Crank(caller potato.Account) error {
	if caller != g.master {
		return ErrNotGameMaster
	}
	now := g.now()
	next, err := transition(g.state, triggerCrank, now, g.params)
	if err != nil {
		return err
	}
	if err := g.board.AdvanceTurn(); err != nil {
		return fmt.Errorf("crank: %w", err)
	}

	g.logger.Info("Cranked", "from", g.state.Phase(), "next_crank", next.Deadline(), "holders", g.board.Len())
	g.setState(next, now)
	return nil
}
