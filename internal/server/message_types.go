package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeAuth         MessageType = "auth"
	MessageTypeCreateGame   MessageType = "create_game"
	MessageTypeRequestEntry MessageType = "request_entry"
	MessageTypeCrank        MessageType = "crank"
	MessageTypeDisburse     MessageType = "disburse"
	MessageTypeWithdraw     MessageType = "withdraw"
	MessageTypeGetGame      MessageType = "get_game"
	MessageTypeListGames    MessageType = "list_games"
	MessageTypeWatchGame    MessageType = "watch_game"
	MessageTypeUnwatchGame  MessageType = "unwatch_game"
	MessageTypeAirdrop      MessageType = "airdrop"
	MessageTypeGetBalance   MessageType = "balance"

	// Server to client messages
	MessageTypeAuthResponse  MessageType = "auth_response"
	MessageTypeError         MessageType = "error"
	MessageTypeGameCreated   MessageType = "game_created"
	MessageTypeEntryAccepted MessageType = "entry_accepted"
	MessageTypeCranked       MessageType = "cranked"
	MessageTypeDisbursed     MessageType = "disbursed"
	MessageTypeWithdrawn     MessageType = "withdrawn"
	MessageTypeGameState     MessageType = "game_state"
	MessageTypeGameList      MessageType = "game_list"
	MessageTypeUnwatched     MessageType = "unwatched"
	MessageTypeBalance       MessageType = "balance_response"

	// Engine events forwarded to watchers, wrapped in an events.Envelope
	MessageTypeGameEvent MessageType = "game_event"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
