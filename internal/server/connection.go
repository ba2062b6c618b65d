package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/hotpotato/internal/auth"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn        *websocket.Conn
	send        chan *Message
	identity    *auth.Identity
	watching    map[string]bool
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	closeOnce   sync.Once
	gameService *GameService
	validator   auth.Validator
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, gameService *GameService, validator auth.Validator) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:        conn,
		send:        make(chan *Message, 256),
		watching:    make(map[string]bool),
		logger:      logger.WithPrefix("conn"),
		ctx:         ctx,
		cancel:      cancel,
		gameService: gameService,
		validator:   validator,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetIdentity associates this connection with an authenticated caller
func (c *Connection) SetIdentity(id *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// Identity returns the authenticated caller, or nil
func (c *Connection) Identity() *auth.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Connection) name() string {
	if id := c.Identity(); id != nil {
		return id.Name
	}
	return ""
}

// Watch subscribes the connection to a game's events
func (c *Connection) Watch(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching[gameID] = true
}

// Unwatch stops delivering a game's events
func (c *Connection) Unwatch(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watching, gameID)
}

// IsWatching reports whether the connection watches gameID
func (c *Connection) IsWatching(gameID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching[gameID]
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A full disburse request is
	// 25 hex accounts, well under this.
	maxMessageSize = 8192

	// Time allowed for a token to be validated
	authTimeout = 5 * time.Second
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "caller", c.name(), "request", msg.RequestID)

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if c.parse(msg, &data) {
			c.handleAuth(msg.RequestID, data)
		}

	case MessageTypeCreateGame:
		var data CreateGameData
		if c.parse(msg, &data) {
			c.handleCreateGame(msg.RequestID, data)
		}

	case MessageTypeRequestEntry:
		var data RequestEntryData
		if c.parse(msg, &data) {
			c.handleRequestEntry(msg.RequestID, data)
		}

	case MessageTypeCrank:
		var data GameRefData
		if c.parse(msg, &data) {
			c.handleCrank(msg.RequestID, data)
		}

	case MessageTypeDisburse:
		var data DisburseData
		if c.parse(msg, &data) {
			c.handleDisburse(msg.RequestID, data)
		}

	case MessageTypeWithdraw:
		var data GameRefData
		if c.parse(msg, &data) {
			c.handleWithdraw(msg.RequestID, data)
		}

	case MessageTypeGetGame:
		var data GameRefData
		if c.parse(msg, &data) {
			c.handleGetGame(msg.RequestID, data)
		}

	case MessageTypeListGames:
		c.handleListGames(msg.RequestID)

	case MessageTypeWatchGame:
		var data GameRefData
		if c.parse(msg, &data) {
			c.handleWatchGame(msg.RequestID, data)
		}

	case MessageTypeUnwatchGame:
		var data GameRefData
		if c.parse(msg, &data) {
			c.Unwatch(data.GameID)
			c.reply(msg.RequestID, MessageTypeUnwatched, data)
		}

	case MessageTypeAirdrop:
		var data AirdropData
		if c.parse(msg, &data) {
			c.handleAirdrop(msg.RequestID, data)
		}

	case MessageTypeGetBalance:
		var data BalanceQueryData
		if len(msg.Data) == 0 || c.parse(msg, &data) {
			c.handleBalance(msg.RequestID, data)
		}

	default:
		c.sendError(msg.RequestID, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// parse decodes the message payload into v, replying with an error on failure
func (c *Connection) parse(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(msg.RequestID, "invalid_message", "Failed to parse "+msg.Type.String()+" data")
		return false
	}
	return true
}

// reply sends a response correlated with requestID
func (c *Connection) reply(requestID string, messageType MessageType, data any) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	c.reply(requestID, MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
}

func (c *Connection) sendFailure(requestID string, err error) {
	c.sendError(requestID, ErrorCode(err), err.Error())
}

// caller returns the authenticated identity or replies not_authenticated
func (c *Connection) caller(requestID string) (*auth.Identity, bool) {
	id := c.Identity()
	if id == nil {
		c.sendError(requestID, "not_authenticated", "Must authenticate first")
		return nil, false
	}
	return id, true
}

func (c *Connection) handleAuth(requestID string, data AuthData) {
	ctx, cancel := context.WithTimeout(c.ctx, authTimeout)
	defer cancel()

	id, err := c.validator.Validate(ctx, data.Token)
	switch {
	case errors.Is(err, auth.ErrUnavailable):
		c.logger.Warn("Auth service unavailable", "error", err)
		c.sendError(requestID, "auth_unavailable", "Authentication service unavailable")
		return
	case err != nil:
		c.logger.Info("Auth rejected", "error", err)
		c.sendError(requestID, "invalid_token", "Invalid token")
		return
	}

	c.SetIdentity(id)
	c.logger.Info("Authenticated", "name", id.Name, "account", id.Account.Short())
	c.reply(requestID, MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		Account: id.Account,
		Name:    id.Name,
	})
}

func (c *Connection) handleCreateGame(requestID string, data CreateGameData) {
	id, ok := c.caller(requestID)
	if !ok {
		return
	}

	var err error
	var info GameStateData
	if data.Preset != "" {
		info.Game, err = c.gameService.CreateFromPreset(id.Account, data.Preset)
	} else {
		info.Game, err = c.gameService.CreateGame(id.Account, data.Params)
	}
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}

	c.logger.Info("Game created", "game", info.Game.ID, "master", id.Name)
	c.Watch(info.Game.ID)
	c.reply(requestID, MessageTypeGameCreated, info)
}

func (c *Connection) handleRequestEntry(requestID string, data RequestEntryData) {
	id, ok := c.caller(requestID)
	if !ok {
		return
	}

	rec, info, err := c.gameService.RequestEntry(data.GameID, id.Account, data.TicketEntry)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeEntryAccepted, EntryAcceptedData{
		GameID: data.GameID,
		Record: rec,
		Pot:    info.Pot,
		Phase:  info.Phase,
	})
}

func (c *Connection) handleCrank(requestID string, data GameRefData) {
	id, ok := c.caller(requestID)
	if !ok {
		return
	}

	info, err := c.gameService.Crank(data.GameID, id.Account)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeCranked, GameStateData{Game: info})
}

func (c *Connection) handleDisburse(requestID string, data DisburseData) {
	id, ok := c.caller(requestID)
	if !ok {
		return
	}

	d, err := c.gameService.Disburse(data.GameID, id.Account, data.Offset, data.Payees)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeDisbursed, DisbursedData{GameID: data.GameID, Disbursement: d})
}

func (c *Connection) handleWithdraw(requestID string, data GameRefData) {
	id, ok := c.caller(requestID)
	if !ok {
		return
	}

	amount, err := c.gameService.Withdraw(data.GameID, id.Account)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeWithdrawn, WithdrawnData{GameID: data.GameID, Amount: amount})
}

func (c *Connection) handleGetGame(requestID string, data GameRefData) {
	info, err := c.gameService.Game(data.GameID)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeGameState, GameStateData{Game: info})
}

func (c *Connection) handleListGames(requestID string) {
	infos := c.gameService.ListGames()
	games := make([]GameSummary, len(infos))
	for i, info := range infos {
		games[i] = SummaryFromInfo(info)
	}
	c.reply(requestID, MessageTypeGameList, GameListData{Games: games})
}

func (c *Connection) handleWatchGame(requestID string, data GameRefData) {
	info, err := c.gameService.Game(data.GameID)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.Watch(data.GameID)
	c.reply(requestID, MessageTypeGameState, GameStateData{Game: info})
}

func (c *Connection) handleAirdrop(requestID string, data AirdropData) {
	id, ok := c.caller(requestID)
	if !ok {
		return
	}

	balance, err := c.gameService.Airdrop(id.Account, data.Amount)
	if err != nil {
		c.sendFailure(requestID, err)
		return
	}
	c.reply(requestID, MessageTypeBalance, BalanceData{Account: id.Account, Balance: balance})
}

func (c *Connection) handleBalance(requestID string, data BalanceQueryData) {
	account := data.Account
	if account.IsZero() {
		id, ok := c.caller(requestID)
		if !ok {
			return
		}
		account = id.Account
	}
	c.reply(requestID, MessageTypeBalance, BalanceData{Account: account, Balance: c.gameService.Balance(account)})
}
