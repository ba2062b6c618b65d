package game

import (
	"fmt"
	"time"

	"github.com/lox/hotpotato/internal/potato"
)

const (
	// TicketEntrySplit is the number of installments a ticket is split into
	TicketEntrySplit = 100
	// MaxChunkSize bounds the payees of a single disbursement
	MaxChunkSize = 25
)

// Params are fixed when a game is created
type Params struct {
	StagingPeriod      time.Duration `json:"stagingPeriod"`
	TurnPeriod         time.Duration `json:"turnPeriod"`
	MinimumTicketEntry uint64        `json:"minimumTicketEntry"`
	FeePermille        uint16        `json:"feePermille"`
}

// Validate checks the parameters can run a game
func (p Params) Validate() error {
	if p.FeePermille > potato.PermilleBase {
		return fmt.Errorf("%w: %d permille", ErrImpossibleFee, p.FeePermille)
	}
	if p.StagingPeriod < 0 || p.TurnPeriod < 0 {
		return fmt.Errorf("%w: periods must not be negative", ErrInvalidParams)
	}
	if p.StagingPeriod%time.Second != 0 || p.TurnPeriod%time.Second != 0 {
		return fmt.Errorf("%w: periods must be whole seconds", ErrInvalidParams)
	}
	return nil
}

// SplitTicket returns the per-turn amount a ticket buys and the amount
// actually charged for it. Both are zero when the ticket is smaller than
// TicketEntrySplit.
func SplitTicket(ticket uint64, feePermille uint16) (turnAmount, charged uint64) {
	installment := ticket / TicketEntrySplit
	fee := potato.FeeShare(installment, feePermille)
	net := potato.FeeShare(installment, potato.PermilleBase-feePermille)
	turnAmount = fee + net
	return turnAmount, turnAmount * TicketEntrySplit
}
