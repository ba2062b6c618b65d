package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/potato"
	"github.com/lox/hotpotato/internal/server" // Reuse message types
)

// ErrDisconnected is returned for requests outstanding when the connection drops
var ErrDisconnected = errors.New("client disconnected")

// RemoteError is an error reply from the server. It matches the engine or
// service sentinel for its code with errors.Is.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel for the code, if known
func (e *RemoteError) Unwrap() error {
	return server.ErrorForCode(e.Code)
}

// Client is a WebSocket client for a hotpotato server
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *server.Message
	receive   chan *server.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	identity  server.AuthResponseData
	closeOnce sync.Once

	pending       map[string]chan *server.Message
	eventHandlers map[server.MessageType][]EventHandler
}

// EventHandler handles messages that are not replies to a request
type EventHandler func(*server.Message)

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL:     serverURL,
		send:          make(chan *server.Message, 256),
		receive:       make(chan *server.Message, 256),
		logger:        logger.WithPrefix("client"),
		ctx:           ctx,
		cancel:        cancel,
		pending:       make(map[string]chan *server.Message),
		eventHandlers: make(map[server.MessageType][]EventHandler),
	}
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to server", "url", c.serverURL)

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.eventProcessor()

	c.logger.Info("Connected to server")
	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close()
			c.connected = false
		}

		c.logger.Info("Disconnected from server")
	})
	return nil
}

// Done is closed once the client has disconnected
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Identity returns the account the server authenticated
func (c *Client) Identity() server.AuthResponseData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SendMessage sends a message to the server
func (c *Client) SendMessage(msg *server.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrDisconnected
	default:
		return fmt.Errorf("send buffer full")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		_ = c.Disconnect()
	}()

	for {
		var msg server.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

		if msg.RequestID != "" && c.resolve(&msg) {
			continue
		}

		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

// resolve hands a reply to the request waiting for it
func (c *Client) resolve(msg *server.Message) bool {
	c.mu.Lock()
	ch, ok := c.pending[msg.RequestID]
	delete(c.pending, msg.RequestID)
	c.mu.Unlock()

	if ok {
		ch <- msg
	}
	return ok
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// eventProcessor dispatches unsolicited messages to handlers in arrival order
func (c *Client) eventProcessor() {
	for {
		select {
		case msg := <-c.receive:
			c.handleMessage(msg)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg *server.Message) {
	c.mu.RLock()
	handlers := c.eventHandlers[msg.Type]
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for message type", "type", msg.Type)
		return
	}
	for _, handler := range handlers {
		handler(msg)
	}
}

// AddEventHandler adds a handler for a message type
func (c *Client) AddEventHandler(messageType server.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eventHandlers[messageType] = append(c.eventHandlers[messageType], handler)
}

// OnGameEvent registers a handler for events of watched games
func (c *Client) OnGameEvent(handler func(events.Envelope)) {
	c.AddEventHandler(server.MessageTypeGameEvent, func(msg *server.Message) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			c.logger.Warn("Dropping malformed game event", "error", err)
			return
		}
		handler(env)
	})
}

// Request sends a message and waits for the reply with the same request
// id. Error replies are returned as *RemoteError. When out is non-nil the
// reply payload is decoded into it.
func (c *Client) Request(ctx context.Context, messageType server.MessageType, data, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ctx.Err() != nil {
		return ErrDisconnected
	}

	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return err
	}
	msg.RequestID = uuid.NewString()

	reply := make(chan *server.Message, 1)
	c.mu.Lock()
	c.pending[msg.RequestID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
	}()

	if err := c.SendMessage(msg); err != nil {
		return err
	}

	select {
	case resp := <-reply:
		if resp.Type == server.MessageTypeError {
			var e server.ErrorData
			if err := json.Unmarshal(resp.Data, &e); err != nil {
				return fmt.Errorf("decode error reply: %w", err)
			}
			return &RemoteError{Code: e.Code, Message: e.Message}
		}
		if out != nil {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("decode %s reply: %w", resp.Type, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrDisconnected
	}
}

// Auth authenticates the connection with a token
func (c *Client) Auth(ctx context.Context, token string) (server.AuthResponseData, error) {
	var resp server.AuthResponseData
	if err := c.Request(ctx, server.MessageTypeAuth, server.AuthData{Token: token}, &resp); err != nil {
		return resp, err
	}
	c.mu.Lock()
	c.identity = resp
	c.mu.Unlock()
	return resp, nil
}

// CreateGame creates a game mastered by the authenticated caller
func (c *Client) CreateGame(ctx context.Context, params game.Params) (game.Info, error) {
	var resp server.GameStateData
	err := c.Request(ctx, server.MessageTypeCreateGame, server.CreateGameData{Params: params}, &resp)
	return resp.Game, err
}

// CreateFromPreset creates a game from a server-side preset
func (c *Client) CreateFromPreset(ctx context.Context, preset string) (game.Info, error) {
	var resp server.GameStateData
	err := c.Request(ctx, server.MessageTypeCreateGame, server.CreateGameData{Preset: preset}, &resp)
	return resp.Game, err
}

// RequestEntry buys a place on a game's board
func (c *Client) RequestEntry(ctx context.Context, gameID string, ticket uint64) (server.EntryAcceptedData, error) {
	var resp server.EntryAcceptedData
	err := c.Request(ctx, server.MessageTypeRequestEntry, server.RequestEntryData{GameID: gameID, TicketEntry: ticket}, &resp)
	return resp, err
}

// Crank advances a game
func (c *Client) Crank(ctx context.Context, gameID string) (game.Info, error) {
	var resp server.GameStateData
	err := c.Request(ctx, server.MessageTypeCrank, server.GameRefData{GameID: gameID}, &resp)
	return resp.Game, err
}

// Disburse pays a chunk of holders starting at offset
func (c *Client) Disburse(ctx context.Context, gameID string, offset int, payees []potato.Account) (game.Disbursement, error) {
	var resp server.DisbursedData
	err := c.Request(ctx, server.MessageTypeDisburse, server.DisburseData{GameID: gameID, Offset: offset, Payees: payees}, &resp)
	return resp.Disbursement, err
}

// Withdraw returns a game's remaining pot to its master
func (c *Client) Withdraw(ctx context.Context, gameID string) (uint64, error) {
	var resp server.WithdrawnData
	err := c.Request(ctx, server.MessageTypeWithdraw, server.GameRefData{GameID: gameID}, &resp)
	return resp.Amount, err
}

// Game fetches a game snapshot
func (c *Client) Game(ctx context.Context, gameID string) (game.Info, error) {
	var resp server.GameStateData
	err := c.Request(ctx, server.MessageTypeGetGame, server.GameRefData{GameID: gameID}, &resp)
	return resp.Game, err
}

// ListGames lists every game on the server
func (c *Client) ListGames(ctx context.Context) ([]server.GameSummary, error) {
	var resp server.GameListData
	err := c.Request(ctx, server.MessageTypeListGames, struct{}{}, &resp)
	return resp.Games, err
}

// Watch subscribes to a game's events and returns its current snapshot
func (c *Client) Watch(ctx context.Context, gameID string) (game.Info, error) {
	var resp server.GameStateData
	err := c.Request(ctx, server.MessageTypeWatchGame, server.GameRefData{GameID: gameID}, &resp)
	return resp.Game, err
}

// Unwatch stops a game's events
func (c *Client) Unwatch(ctx context.Context, gameID string) error {
	return c.Request(ctx, server.MessageTypeUnwatchGame, server.GameRefData{GameID: gameID}, nil)
}

// Airdrop asks the faucet for funds and returns the new balance
func (c *Client) Airdrop(ctx context.Context, amount uint64) (uint64, error) {
	var resp server.BalanceData
	err := c.Request(ctx, server.MessageTypeAirdrop, server.AirdropData{Amount: amount}, &resp)
	return resp.Balance, err
}

// Balance returns the balance of account, or the caller's own when zero
func (c *Client) Balance(ctx context.Context, account potato.Account) (uint64, error) {
	var resp server.BalanceData
	err := c.Request(ctx, server.MessageTypeGetBalance, server.BalanceQueryData{Account: account}, &resp)
	return resp.Balance, err
}
