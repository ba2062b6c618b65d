// Package events defines the notifications a hot potato game emits and the
// bus that fans them out to subscribers.
package events

import (
	"time"

	"github.com/lox/hotpotato/internal/potato"
)

// EventType represents a game event type with type safety
type EventType string

const (
	EventTypeGameInitialized  EventType = "game_initialized"
	EventTypeGameStateChanged EventType = "game_state_changed"
	EventTypePotatoReceived   EventType = "potato_received"
	EventTypePotatoHolderPaid EventType = "potato_holder_paid"
	EventTypeGameMasterPaid   EventType = "game_master_paid"
	EventTypeFundsWithdrawn   EventType = "funds_withdrawn"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is anything that happens to a game
type Event interface {
	EventType() EventType
	GameID() string
	Timestamp() time.Time
}

// GameInitialized is published when a game and its board are created
type GameInitialized struct {
	Game               string         `json:"game"`
	GameMaster         potato.Account `json:"gameMaster"`
	Escrow             potato.Account `json:"escrow"`
	StagingPeriod      time.Duration  `json:"stagingPeriod"`
	TurnPeriod         time.Duration  `json:"turnPeriod"`
	MinimumTicketEntry uint64         `json:"minimumTicketEntry"`
	FeePermille        uint16         `json:"feePermille"`
	timestamp          time.Time
}

func (e GameInitialized) EventType() EventType { return EventTypeGameInitialized }
func (e GameInitialized) GameID() string       { return e.Game }
func (e GameInitialized) Timestamp() time.Time { return e.timestamp }

// NewGameInitialized creates a game initialized event
func NewGameInitialized(at time.Time, game string, gameMaster, escrow potato.Account, staging, turn time.Duration, minimum uint64, fee uint16) GameInitialized {
	return GameInitialized{
		Game:               game,
		GameMaster:         gameMaster,
		Escrow:             escrow,
		StagingPeriod:      staging,
		TurnPeriod:         turn,
		MinimumTicketEntry: minimum,
		FeePermille:        fee,
		timestamp:          at,
	}
}

// GameStateChanged is published on every state transition, including an
// active game re-arming its next crank
type GameStateChanged struct {
	Game      string    `json:"game"`
	State     string    `json:"state"`
	Deadline  time.Time `json:"deadline,omitzero"` // staging end or next crank
	timestamp time.Time
}

func (e GameStateChanged) EventType() EventType { return EventTypeGameStateChanged }
func (e GameStateChanged) GameID() string       { return e.Game }
func (e GameStateChanged) Timestamp() time.Time { return e.timestamp }

// NewGameStateChanged creates a state change event
func NewGameStateChanged(at time.Time, game, state string, deadline time.Time) GameStateChanged {
	return GameStateChanged{
		Game:      game,
		State:     state,
		Deadline:  deadline,
		timestamp: at,
	}
}

// PotatoReceived is published when a participant joins the board
type PotatoReceived struct {
	Game        string         `json:"game"`
	Player      potato.Account `json:"player"`
	TicketEntry uint64         `json:"ticketEntry"` // amount actually charged
	TurnAmount  uint64         `json:"turnAmount"`
	timestamp   time.Time
}

func (e PotatoReceived) EventType() EventType { return EventTypePotatoReceived }
func (e PotatoReceived) GameID() string       { return e.Game }
func (e PotatoReceived) Timestamp() time.Time { return e.timestamp }

// NewPotatoReceived creates a potato received event
func NewPotatoReceived(at time.Time, game string, player potato.Account, ticketEntry, turnAmount uint64) PotatoReceived {
	return PotatoReceived{
		Game:        game,
		Player:      player,
		TicketEntry: ticketEntry,
		TurnAmount:  turnAmount,
		timestamp:   at,
	}
}

// PotatoHolderPaid is published for every payout to a holder
type PotatoHolderPaid struct {
	Game      string         `json:"game"`
	Player    potato.Account `json:"player"`
	Amount    uint64         `json:"amount"`
	Turn      uint64         `json:"turn"`
	timestamp time.Time
}

func (e PotatoHolderPaid) EventType() EventType { return EventTypePotatoHolderPaid }
func (e PotatoHolderPaid) GameID() string       { return e.Game }
func (e PotatoHolderPaid) Timestamp() time.Time { return e.timestamp }

// NewPotatoHolderPaid creates a holder payout event
func NewPotatoHolderPaid(at time.Time, game string, player potato.Account, amount, turn uint64) PotatoHolderPaid {
	return PotatoHolderPaid{
		Game:      game,
		Player:    player,
		Amount:    amount,
		Turn:      turn,
		timestamp: at,
	}
}

// GameMasterPaid is published once per disbursement with the fees collected
type GameMasterPaid struct {
	Game      string `json:"game"`
	Amount    uint64 `json:"amount"`
	timestamp time.Time
}

func (e GameMasterPaid) EventType() EventType { return EventTypeGameMasterPaid }
func (e GameMasterPaid) GameID() string       { return e.Game }
func (e GameMasterPaid) Timestamp() time.Time { return e.timestamp }

// NewGameMasterPaid creates a game master payout event
func NewGameMasterPaid(at time.Time, game string, amount uint64) GameMasterPaid {
	return GameMasterPaid{
		Game:      game,
		Amount:    amount,
		timestamp: at,
	}
}

// FundsWithdrawn is published when the game master empties the escrow
type FundsWithdrawn struct {
	Game       string         `json:"game"`
	GameMaster potato.Account `json:"gameMaster"`
	Amount     uint64         `json:"amount"`
	timestamp  time.Time
}

func (e FundsWithdrawn) EventType() EventType { return EventTypeFundsWithdrawn }
func (e FundsWithdrawn) GameID() string       { return e.Game }
func (e FundsWithdrawn) Timestamp() time.Time { return e.timestamp }

// NewFundsWithdrawn creates a withdrawal event
func NewFundsWithdrawn(at time.Time, game string, gameMaster potato.Account, amount uint64) FundsWithdrawn {
	return FundsWithdrawn{
		Game:       game,
		GameMaster: gameMaster,
		Amount:     amount,
		timestamp:  at,
	}
}
