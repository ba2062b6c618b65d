package client

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/potato"
	"github.com/lox/hotpotato/internal/server"
)

var testParams = game.Params{
	StagingPeriod:      100 * time.Second,
	TurnPeriod:         50 * time.Second,
	MinimumTicketEntry: 1000,
	FeePermille:        50,
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func startServer(t *testing.T) (string, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	svc := server.NewGameService(ledger.NewMemory(), quietLogger(),
		server.WithServiceClock(clock), server.WithFaucet(100_000))
	srv := server.NewServer("", quietLogger(), svc, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
		ts.Close()
	})
	return ts.URL, clock
}

func connect(t *testing.T, url, name string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewClient(url, quietLogger())
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Disconnect() })

	resp, err := c.Auth(ctx, name)
	require.NoError(t, err)
	require.Equal(t, potato.AccountFromName(name), resp.Account)
	assert.Equal(t, name, c.Identity().Name)
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClientPlaysAGame(t *testing.T) {
	t.Parallel()

	url, clock := startServer(t)
	ctx := testContext(t)
	gm := connect(t, url, "gm")
	alice := connect(t, url, "alice")

	info, err := gm.CreateGame(ctx, testParams)
	require.NoError(t, err)
	assert.Equal(t, "pending", info.Phase)

	balance, err := alice.Airdrop(ctx, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), balance)

	entry, err := alice.RequestEntry(ctx, info.ID, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), entry.Record.TurnAmount)

	_, err = gm.Crank(ctx, info.ID)
	assert.ErrorIs(t, err, game.ErrCrankTooEarly)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "crank_too_early", remote.Code)

	clock.Advance(100 * time.Second)
	info, err = gm.Crank(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, "active", info.Phase)

	chunk, ok := info.NextChunk(game.MaxChunkSize)
	require.True(t, ok)
	d, err := gm.Disburse(ctx, info.ID, chunk.Offset, chunk.Payees)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), d.TotalPaid)

	balance, err = alice.Balance(ctx, potato.Account{})
	require.NoError(t, err)
	assert.Equal(t, uint64(95), balance)
	balance, err = alice.Balance(ctx, potato.AccountFromName("gm"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)

	games, err := alice.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, uint64(9_900), games[0].Pot)

	_, err = alice.Withdraw(ctx, info.ID)
	assert.ErrorIs(t, err, game.ErrNotGameMaster)
	_, err = gm.Withdraw(ctx, info.ID)
	assert.ErrorIs(t, err, game.ErrProhibitedInStagingOrActive)
}

func TestClientReceivesEvents(t *testing.T) {
	t.Parallel()

	url, _ := startServer(t)
	ctx := testContext(t)
	gm := connect(t, url, "gm")
	alice := connect(t, url, "alice")
	watcher := connect(t, url, "watcher")

	var mu sync.Mutex
	var got []events.Envelope
	watcher.OnGameEvent(func(env events.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, env)
	})

	info, err := gm.CreateGame(ctx, testParams)
	require.NoError(t, err)
	_, err = watcher.Watch(ctx, info.ID)
	require.NoError(t, err)

	_, err = alice.Airdrop(ctx, 0)
	require.NoError(t, err)
	_, err = alice.RequestEntry(ctx, info.ID, 5_000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.EventTypePotatoReceived, got[0].Type)
	assert.Equal(t, events.EventTypeGameStateChanged, got[1].Type)

	e, err := got[0].Open()
	require.NoError(t, err)
	received, ok := e.(events.PotatoReceived)
	require.True(t, ok)
	assert.Equal(t, potato.AccountFromName("alice"), received.Player)
	assert.Equal(t, uint64(4_900), received.TicketEntry) // the amount actually charged
}

func TestClientErrorsAndCancellation(t *testing.T) {
	t.Parallel()

	url, _ := startServer(t)
	c := connect(t, url, "alice")

	_, err := c.Game(testContext(t), "01h2xcejqtf2nbrexx3vqjhp41")
	assert.ErrorIs(t, err, server.ErrGameNotFound)

	_, err = c.Airdrop(testContext(t), 1_000_000)
	assert.ErrorIs(t, err, server.ErrFaucetLimit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ListGames(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
	_, err = c.ListGames(testContext(t))
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestRemoteErrorUnknownCode(t *testing.T) {
	t.Parallel()

	err := &RemoteError{Code: "mystery", Message: "something odd"}
	assert.Equal(t, "mystery: something odd", err.Error())
	assert.NotErrorIs(t, err, game.ErrGameClosed)
	assert.Nil(t, err.Unwrap())
}

func TestLoadClientConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), cfg)
	require.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  url = "https://potato.example"
}
player {
  name  = "alice"
}
ui {
  log_level = "debug"
}
`), 0o644))
	cfg, err = LoadClientConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://potato.example", cfg.Server.URL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, "alice", cfg.AuthToken())

	cfg.Player.Token = "jwt"
	assert.Equal(t, "jwt", cfg.AuthToken())
	cfg.UI.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}
