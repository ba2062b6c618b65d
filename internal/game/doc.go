// Package game implements the hot potato settlement engine.
//
// A Game owns exactly one board (a potato.Queue) and an escrow account. It
// moves through Pending, Staging, Active and Closed as entries arrive and the
// game master cranks turns.
//
// # Basic Usage
//
//	g, err := game.New(gameid.Generate(), master, game.Params{
//	    StagingPeriod:      100 * time.Second,
//	    TurnPeriod:         50 * time.Second,
//	    MinimumTicketEntry: 1000,
//	    FeePermille:        50,
//	}, ledger, game.WithClock(clock))
//
//	g.RequestEntry(alice, 10_000) // Pending -> Staging
//	// ...after the staging period...
//	g.Crank(master)               // Staging -> Active, first round payable
//	g.Disburse(master, 0, []potato.Account{alice})
//
// # Settlement
//
// Each ticket is split into TicketEntrySplit equal installments. The fee and
// net share of an installment are truncated independently and their sum
// becomes the record's turn amount; only TicketEntrySplit times that amount
// is charged. A crank marks every holder payable for one more turn and a
// disbursement pays a contiguous run of holders out of the pot. When the pot
// can no longer cover a holder in full, that holder receives what is left,
// the run stops and the game closes.
//
// # Concurrency
//
// A Game performs no locking. Callers serialise every operation against one
// game, as the server does with a per-game mutex.
package game
