package game

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/gameid"
	"github.com/lox/hotpotato/internal/potato"
)

// Ledger moves value between accounts. Each call is atomic.
type Ledger interface {
	Transfer(from, to potato.Account, amount uint64) error
	Credit(account potato.Account, amount uint64)
	Debit(account potato.Account, amount uint64) error
}

// Clock supplies wall time. quartz.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

// EventSink receives notifications. Publish must not block for long and its
// failures are the sink's problem.
type EventSink interface {
	Publish(event events.Event)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type discardSink struct{}

func (discardSink) Publish(events.Event) {}

// Option configures a Game
type Option func(*Game)

// WithClock sets the clock the game reads time from
func WithClock(c Clock) Option {
	return func(g *Game) { g.clock = c }
}

// WithEvents sets the sink that receives the game's events
func WithEvents(sink EventSink) Option {
	return func(g *Game) { g.sink = sink }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(g *Game) { g.logger = logger }
}

// Game is one hot potato game and its board
type Game struct {
	id     string
	master potato.Account
	escrow potato.Account
	params Params
	pot    uint64
	state  State
	board  *potato.Queue

	ledger Ledger
	clock  Clock
	sink   EventSink
	logger *log.Logger
}

// EscrowAccount returns the account that holds a game's pot
func EscrowAccount(id string) potato.Account {
	return potato.AccountFromName("escrow:" + id)
}

// New creates a pending game with an empty board and publishes GameInitialized
func New(id string, master potato.Account, params Params, ledger Ledger, opts ...Option) (*Game, error) {
	if err := gameid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGameID, err)
	}
	if master.IsZero() {
		return nil, fmt.Errorf("%w: game master must be set", ErrInvalidAccount)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	g := newGame(id, master, params, ledger, opts)
	g.state = Pending{}
	g.board = potato.NewQueue()

	g.logger.Info("Game created", "master", master.Short(), "min", params.MinimumTicketEntry, "fee", params.FeePermille)
	g.sink.Publish(events.NewGameInitialized(g.now(), id, master, g.escrow,
		params.StagingPeriod, params.TurnPeriod, params.MinimumTicketEntry, params.FeePermille))
	return g, nil
}

func newGame(id string, master potato.Account, params Params, ledger Ledger, opts []Option) *Game {
	g := &Game{
		id:     id,
		master: master,
		escrow: EscrowAccount(id),
		params: params,
		ledger: ledger,
		clock:  realClock{},
		sink:   discardSink{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	g.logger = g.logger.WithPrefix("game").With("game", id)
	return g
}

// now reads the clock once at one-second resolution
func (g *Game) now() time.Time {
	return time.Unix(g.clock.Now().Unix(), 0).UTC()
}

func (g *Game) setState(s State, at time.Time) {
	g.state = s
	g.sink.Publish(events.NewGameStateChanged(at, g.id, s.Phase().String(), s.Deadline()))
}

// ID returns the game id
func (g *Game) ID() string { return g.id }

// GameMaster returns the account allowed to crank, disburse and withdraw
func (g *Game) GameMaster() potato.Account { return g.master }

// Escrow returns the account holding the pot
func (g *Game) Escrow() potato.Account { return g.escrow }

// Params returns the creation parameters
func (g *Game) Params() Params { return g.params }

// Pot returns the escrowed value still owed to holders
func (g *Game) Pot() uint64 { return g.pot }

// State returns the current state
func (g *Game) State() State { return g.state }
