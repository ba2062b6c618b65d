package server

import (
	"encoding/json"
	"time"

	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/potato"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	Token string `json:"token"`
}

// CreateGameData creates a game mastered by the caller. A non-empty Preset
// names a configured game block and overrides Params.
type CreateGameData struct {
	Preset string      `json:"preset,omitempty"`
	Params game.Params `json:"params"`
}

type RequestEntryData struct {
	GameID      string `json:"gameId"`
	TicketEntry uint64 `json:"ticketEntry"`
}

// GameRefData addresses a single game. Used by crank, withdraw, get_game,
// watch_game and unwatch_game.
type GameRefData struct {
	GameID string `json:"gameId"`
}

type DisburseData struct {
	GameID string           `json:"gameId"`
	Offset int              `json:"offset"`
	Payees []potato.Account `json:"payees"`
}

type AirdropData struct {
	Amount uint64 `json:"amount"`
}

// BalanceQueryData asks for an account balance. A zero account means the
// caller's own.
type BalanceQueryData struct {
	Account potato.Account `json:"account,omitzero"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success bool           `json:"success"`
	Account potato.Account `json:"account,omitzero"`
	Name    string         `json:"name,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameStateData struct {
	Game game.Info `json:"game"`
}

type EntryAcceptedData struct {
	GameID string        `json:"gameId"`
	Record potato.Record `json:"record"`
	Pot    uint64        `json:"pot"`
	Phase  string        `json:"phase"`
}

type DisbursedData struct {
	GameID       string            `json:"gameId"`
	Disbursement game.Disbursement `json:"disbursement"`
}

type WithdrawnData struct {
	GameID string `json:"gameId"`
	Amount uint64 `json:"amount"`
}

// GameSummary is a board-free description of a game for listings
type GameSummary struct {
	ID         string         `json:"id"`
	GameMaster potato.Account `json:"gameMaster"`
	Phase      string         `json:"phase"`
	Deadline   time.Time      `json:"deadline,omitzero"`
	Pot        uint64         `json:"pot"`
	Holders    int            `json:"holders"`
	Pending    int            `json:"pending"`
}

type GameListData struct {
	Games []GameSummary `json:"games"`
}

type BalanceData struct {
	Account potato.Account `json:"account"`
	Balance uint64         `json:"balance"`
}

// SummaryFromInfo drops the board from a game view
func SummaryFromInfo(info game.Info) GameSummary {
	return GameSummary{
		ID:         info.ID,
		GameMaster: info.GameMaster,
		Phase:      info.Phase,
		Deadline:   info.Deadline,
		Pot:        info.Pot,
		Holders:    len(info.Holders),
		Pending:    len(info.Pending),
	}
}
