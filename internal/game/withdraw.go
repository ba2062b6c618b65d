package game

import (
	"fmt"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/potato"
)

// WithdrawRemainingFunds hands whatever is left in the pot to the game
// master. It is only allowed before the game starts or after it closes.
func (g *Game) WithdrawRemainingFunds(caller potato.Account) (uint64, error) {
	if caller != g.master {
		return 0, ErrNotGameMaster
	}
	switch g.state.(type) {
	case Pending, Closed:
	default:
		return 0, fmt.Errorf("%w: game is %s", ErrProhibitedInStagingOrActive, g.state.Phase())
	}

	amount := g.pot
	if amount > 0 {
		if err := g.ledger.Transfer(g.escrow, g.master, amount); err != nil {
			return 0, fmt.Errorf("%w: withdraw %d: %w", ErrEscrowAccounting, amount, err)
		}
	}
	g.pot = 0

	g.logger.Info("Remaining funds withdrawn", "amount", amount)
	g.sink.Publish(events.NewFundsWithdrawn(g.now(), g.id, g.master, amount))
	return amount, nil
}
