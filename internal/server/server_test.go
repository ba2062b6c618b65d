package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/potato"
)

var (
	start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	testParams = game.Params{
		StagingPeriod:      100 * time.Second,
		TurnPeriod:         50 * time.Second,
		MinimumTicketEntry: 1000,
		FeePermille:        50,
	}
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type harness struct {
	clock   *quartz.Mock
	service *GameService
	server  *Server
	http    *httptest.Server
}

func newHarness(t *testing.T, opts ...ServiceOption) *harness {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(start)

	opts = append([]ServiceOption{WithServiceClock(clock), WithFaucet(1_000_000)}, opts...)
	service := NewGameService(ledger.NewMemory(), quietLogger(), opts...)
	srv := NewServer("", quietLogger(), service, nil)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
		ts.Close()
	})
	return &harness{clock: clock, service: service, server: srv, http: ts}
}

type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	seq    int
	events []events.Envelope
}

func (h *harness) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

// login dials and authenticates with a noop token
func (h *harness) login(t *testing.T, name string) *wsClient {
	t.Helper()
	c := h.dial(t)
	var resp AuthResponseData
	c.expect(MessageTypeAuth, AuthData{Token: name}, MessageTypeAuthResponse, &resp)
	require.True(t, resp.Success)
	require.Equal(t, potato.AccountFromName(name), resp.Account)
	return c
}

func (c *wsClient) read() *Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return &msg
}

// request sends a message and returns the reply carrying the same request
// id. Events that arrive first are kept.
func (c *wsClient) request(typ MessageType, data any) *Message {
	c.t.Helper()
	c.seq++
	msg, err := NewMessage(typ, data)
	require.NoError(c.t, err)
	msg.RequestID = fmt.Sprintf("req-%d", c.seq)
	require.NoError(c.t, c.conn.WriteJSON(msg))

	for {
		reply := c.read()
		if reply.Type == MessageTypeGameEvent {
			var env events.Envelope
			require.NoError(c.t, json.Unmarshal(reply.Data, &env))
			c.events = append(c.events, env)
			continue
		}
		require.Equal(c.t, msg.RequestID, reply.RequestID)
		return reply
	}
}

func (c *wsClient) expect(typ MessageType, data any, want MessageType, out any) {
	c.t.Helper()
	reply := c.request(typ, data)
	require.Equal(c.t, want, reply.Type, "reply: %s", reply.Data)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(reply.Data, out))
	}
}

func (c *wsClient) expectError(typ MessageType, data any, code string) {
	c.t.Helper()
	var e ErrorData
	c.expect(typ, data, MessageTypeError, &e)
	assert.Equal(c.t, code, e.Code, e.Message)
}

func (c *wsClient) eventTypes() []events.EventType {
	out := make([]events.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	resp, err := http.Get(h.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestGameOverWebSocket(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	gm := h.login(t, "gm")
	alice := h.login(t, "alice")

	var created GameStateData
	gm.expect(MessageTypeCreateGame, CreateGameData{Params: testParams}, MessageTypeGameCreated, &created)
	id := created.Game.ID
	assert.Equal(t, "pending", created.Game.Phase)
	assert.Equal(t, potato.AccountFromName("gm"), created.Game.GameMaster)

	var bal BalanceData
	alice.expect(MessageTypeAirdrop, AirdropData{Amount: 10_000}, MessageTypeBalance, &bal)
	assert.Equal(t, uint64(10_000), bal.Balance)

	var accepted EntryAcceptedData
	alice.expect(MessageTypeRequestEntry, RequestEntryData{GameID: id, TicketEntry: 10_000}, MessageTypeEntryAccepted, &accepted)
	assert.Equal(t, uint64(100), accepted.Record.TurnAmount)
	assert.Equal(t, uint64(10_000), accepted.Pot)
	assert.Equal(t, "staging", accepted.Phase)

	gm.expectError(MessageTypeCrank, GameRefData{GameID: id}, "crank_too_early")
	alice.expectError(MessageTypeCrank, GameRefData{GameID: id}, "not_game_master")

	h.clock.Advance(100 * time.Second)
	var cranked GameStateData
	gm.expect(MessageTypeCrank, GameRefData{GameID: id}, MessageTypeCranked, &cranked)
	assert.Equal(t, "active", cranked.Game.Phase)
	assert.Equal(t, []int{0}, cranked.Game.Pending)

	var paid DisbursedData
	gm.expect(MessageTypeDisburse, DisburseData{GameID: id, Offset: 0, Payees: []potato.Account{potato.AccountFromName("alice")}}, MessageTypeDisbursed, &paid)
	assert.Equal(t, uint64(100), paid.Disbursement.TotalPaid)
	assert.Equal(t, uint64(5), paid.Disbursement.TotalFee)
	assert.Equal(t, uint64(9_900), paid.Disbursement.RemainingPot)

	alice.expect(MessageTypeGetBalance, BalanceQueryData{}, MessageTypeBalance, &bal)
	assert.Equal(t, uint64(95), bal.Balance)
	gm.expect(MessageTypeGetBalance, BalanceQueryData{}, MessageTypeBalance, &bal)
	assert.Equal(t, uint64(5), bal.Balance)

	// The creator watches its game from the moment it is created.
	assert.Equal(t, []events.EventType{
		events.EventTypePotatoReceived,
		events.EventTypeGameStateChanged,
		events.EventTypeGameStateChanged,
		events.EventTypePotatoHolderPaid,
		events.EventTypeGameMasterPaid,
	}, gm.eventTypes())
	assert.Empty(t, alice.events)

	var list GameListData
	alice.expect(MessageTypeListGames, nil, MessageTypeGameList, &list)
	require.Len(t, list.Games, 1)
	assert.Equal(t, id, list.Games[0].ID)
	assert.Equal(t, uint64(9_900), list.Games[0].Pot)
	assert.Equal(t, 1, list.Games[0].Holders)
}

func TestWatchAndUnwatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	gm := h.login(t, "gm")
	watcher := h.dial(t)
	alice := h.login(t, "alice")

	var created GameStateData
	gm.expect(MessageTypeCreateGame, CreateGameData{Params: testParams}, MessageTypeGameCreated, &created)
	id := created.Game.ID

	var state GameStateData
	watcher.expect(MessageTypeWatchGame, GameRefData{GameID: id}, MessageTypeGameState, &state)
	assert.Equal(t, id, state.Game.ID)

	alice.expect(MessageTypeAirdrop, AirdropData{}, MessageTypeBalance, nil)
	alice.expect(MessageTypeRequestEntry, RequestEntryData{GameID: id, TicketEntry: 5_000}, MessageTypeEntryAccepted, nil)

	// get_game is answered after the entry's events were queued
	watcher.expect(MessageTypeGetGame, GameRefData{GameID: id}, MessageTypeGameState, &state)
	assert.Equal(t, []events.EventType{events.EventTypePotatoReceived, events.EventTypeGameStateChanged}, watcher.eventTypes())
	assert.Equal(t, id, watcher.events[0].Game)

	watcher.expect(MessageTypeUnwatchGame, GameRefData{GameID: id}, MessageTypeUnwatched, nil)
	alice.expect(MessageTypeRequestEntry, RequestEntryData{GameID: id, TicketEntry: 5_000}, MessageTypeEntryAccepted, nil)
	watcher.expect(MessageTypeGetGame, GameRefData{GameID: id}, MessageTypeGameState, &state)
	assert.Len(t, watcher.events, 2)
	assert.Len(t, state.Game.Holders, 2)
}

func TestProtocolErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	anon := h.dial(t)

	anon.expectError(MessageTypeCrank, GameRefData{GameID: "x"}, "not_authenticated")
	anon.expectError(MessageTypeGetBalance, BalanceQueryData{}, "not_authenticated")
	anon.expectError(MessageType("bogus"), nil, "unknown_message_type")
	anon.expectError(MessageTypeAuth, AuthData{}, "invalid_token")

	// Malformed payload
	anon.seq++
	require.NoError(t, anon.conn.WriteJSON(map[string]any{
		"type":      MessageTypeRequestEntry,
		"data":      "not an object",
		"requestId": "bad",
	}))
	reply := anon.read()
	assert.Equal(t, MessageTypeError, reply.Type)
	assert.Equal(t, "bad", reply.RequestID)

	alice := h.login(t, "alice")
	alice.expectError(MessageTypeGetGame, GameRefData{GameID: "01h2xcejqtf2nbrexx3vqjhp41"}, "game_not_found")
	alice.expectError(MessageTypeCreateGame, CreateGameData{Preset: "nope"}, "unknown_preset")
	alice.expectError(MessageTypeCreateGame, CreateGameData{Params: game.Params{FeePermille: 1001}}, "impossible_fee")
	alice.expectError(MessageTypeAirdrop, AirdropData{Amount: 2_000_000}, "faucet_limit")

	var created GameStateData
	alice.expect(MessageTypeCreateGame, CreateGameData{Params: testParams}, MessageTypeGameCreated, &created)
	alice.expectError(MessageTypeRequestEntry, RequestEntryData{GameID: created.Game.ID, TicketEntry: 5_000}, "game_master_cannot_play")

	bob := h.login(t, "bob")
	bob.expectError(MessageTypeRequestEntry, RequestEntryData{GameID: created.Game.ID, TicketEntry: 500}, "below_minimum")
	bob.expectError(MessageTypeRequestEntry, RequestEntryData{GameID: created.Game.ID, TicketEntry: 5_000}, "insufficient_funds")
	bob.expectError(MessageTypeWithdraw, GameRefData{GameID: created.Game.ID}, "not_game_master")
}

func TestCreateFromPreset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithPresets(map[string]game.Params{"quick": testParams}))
	gm := h.login(t, "gm")

	var created GameStateData
	gm.expect(MessageTypeCreateGame, CreateGameData{Preset: "quick"}, MessageTypeGameCreated, &created)
	assert.Equal(t, testParams, created.Game.Params)
}

func TestFaucetDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, WithFaucet(0))
	alice := h.login(t, "alice")
	alice.expectError(MessageTypeAirdrop, AirdropData{Amount: 1}, "faucet_disabled")
}

func TestErrorCodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrGameNotFound, ErrUnknownPreset, ErrFaucetDisabled, ErrFaucetLimit, game.ErrCrankTooEarly} {
		assert.Equal(t, err, ErrorForCode(ErrorCode(err)))
	}
	assert.Equal(t, "game_not_found", ErrorCode(fmt.Errorf("wrapped: %w", ErrGameNotFound)))
	assert.Nil(t, ErrorForCode("internal"))
}
