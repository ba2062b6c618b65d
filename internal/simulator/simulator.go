// Package simulator plays complete games in-process on a simulated clock,
// for exploring how parameters change who gets paid.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/gameid"
	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/potato"
	"github.com/lox/hotpotato/internal/randutil"
	"github.com/lox/hotpotato/internal/statistics"
)

// Config describes one simulated game
type Config struct {
	Params game.Params

	// Players enter while the game is staging
	Players int
	// LateJoinChance is the probability, per turn, that a new player joins
	// an active game
	LateJoinChance float64
	// Tickets are drawn uniformly from [MinTicket, MaxTicket]
	MinTicket uint64
	MaxTicket uint64
	// MaxRounds stops a game that never runs dry
	MaxRounds int
}

// DefaultConfig is a small game with a two and a half percent fee
func DefaultConfig() Config {
	return Config{
		Params: game.Params{
			StagingPeriod:      5 * time.Minute,
			TurnPeriod:         time.Minute,
			MinimumTicketEntry: 1_000,
			FeePermille:        25,
		},
		Players:        20,
		LateJoinChance: 0.1,
		MinTicket:      1_000,
		MaxTicket:      50_000,
		MaxRounds:      10_000,
	}
}

// Validate checks the configuration can run
func (c Config) Validate() error {
	if c.Players < 1 {
		return fmt.Errorf("need at least one player")
	}
	if c.MinTicket < c.Params.MinimumTicketEntry {
		return fmt.Errorf("minimum ticket %d is below the game minimum %d", c.MinTicket, c.Params.MinimumTicketEntry)
	}
	if c.MaxTicket < c.MinTicket {
		return fmt.Errorf("maximum ticket %d is below minimum ticket %d", c.MaxTicket, c.MinTicket)
	}
	if c.LateJoinChance < 0 || c.LateJoinChance > 1 {
		return fmt.Errorf("late join chance %v is not a probability", c.LateJoinChance)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be positive")
	}
	return c.Params.Validate()
}

// Report summarises a simulated game
type Report struct {
	Seed      uint64 `json:"seed"`
	GameID    string `json:"gameId"`
	Rounds    int    `json:"rounds"`
	Entrants  int    `json:"entrants"`
	Deposited uint64 `json:"deposited"` // ticket entries actually charged
	Paid      uint64 `json:"paid"`      // to holders
	Fees      uint64 `json:"fees"`      // to the game master
	Withdrawn uint64 `json:"withdrawn"`
	Remaining uint64 `json:"remaining"` // still in escrow
	MadeWhole int    `json:"madeWhole"` // entrants paid at least what they were charged
	Closed    bool   `json:"closed"`

	Events map[events.EventType]int `json:"events"`
}

// stepClock only moves when told to
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

type run struct {
	cfg    Config
	rng    *rand.Rand
	ledger *ledger.Memory
	clock  *stepClock
	game   *game.Game
	master potato.Account
	logger *log.Logger

	report   Report
	charged  map[potato.Account]uint64
	received map[potato.Account]uint64
}

// Run plays one game to completion with randomness drawn from seed
func Run(ctx context.Context, cfg Config, seed uint64, logger *log.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	r := &run{
		cfg:      cfg,
		rng:      randutil.New(seed),
		ledger:   ledger.NewMemory(),
		clock:    &stepClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		master:   potato.AccountFromName(fmt.Sprintf("sim-master-%d", seed)),
		logger:   logger.WithPrefix("sim").With("seed", seed),
		report:   Report{Seed: seed, Events: make(map[events.EventType]int)},
		charged:  make(map[potato.Account]uint64),
		received: make(map[potato.Account]uint64),
	}

	bus := events.NewBus(r.logger)
	bus.Subscribe(events.SubscriberFunc(r.observe))

	g, err := game.New(gameid.Generate(), r.master, cfg.Params, r.ledger,
		game.WithClock(r.clock), game.WithEvents(bus), game.WithLogger(r.logger))
	if err != nil {
		return Report{}, err
	}
	r.game = g
	r.report.GameID = g.ID()

	if err := r.play(ctx); err != nil {
		return r.report, err
	}
	r.finish()
	r.logger.Debug("Simulation finished", "rounds", r.report.Rounds, "entrants", r.report.Entrants,
		"paid", r.report.Paid, "fees", r.report.Fees, "made_whole", r.report.MadeWhole)
	return r.report, nil
}

func (r *run) observe(e events.Event) {
	r.report.Events[e.EventType()]++
	switch e := e.(type) {
	case events.PotatoReceived:
		r.charged[e.Player] += e.TicketEntry
		r.report.Deposited += e.TicketEntry
	case events.PotatoHolderPaid:
		r.received[e.Player] += e.Amount
		r.report.Paid += e.Amount
	case events.GameMasterPaid:
		r.report.Fees += e.Amount
	case events.FundsWithdrawn:
		r.report.Withdrawn += e.Amount
	}
}

func (r *run) ticket() uint64 {
	span := r.cfg.MaxTicket - r.cfg.MinTicket
	if span == 0 {
		return r.cfg.MinTicket
	}
	return r.cfg.MinTicket + r.rng.Uint64N(span+1)
}

// join funds a fresh player and buys them in. A full board is not an error.
func (r *run) join() error {
	player := potato.AccountFromName(fmt.Sprintf("%s/player-%d", r.report.GameID, r.report.Entrants))
	ticket := r.ticket()
	if err := r.ledger.Airdrop(player, ticket); err != nil {
		return err
	}
	if _, err := r.game.RequestEntry(player, ticket); err != nil {
		if errors.Is(err, game.ErrBoardFull) || errors.Is(err, game.ErrTicketTooSmall) {
			return nil
		}
		return err
	}
	r.report.Entrants++
	return nil
}

func (r *run) play(ctx context.Context) error {
	for range r.cfg.Players {
		if err := r.join(); err != nil {
			return fmt.Errorf("entry: %w", err)
		}
	}

	for r.report.Rounds < r.cfg.MaxRounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		state := r.game.State()
		if state.Phase() == game.PhaseClosed {
			return nil
		}

		r.clock.set(state.Deadline())
		if err := r.game.Crank(r.master); err != nil {
			return fmt.Errorf("round %d: %w", r.report.Rounds, err)
		}
		r.report.Rounds++

		if err := r.payAll(); err != nil {
			return fmt.Errorf("round %d: %w", r.report.Rounds, err)
		}
		if r.game.State().Phase() == game.PhaseActive && r.rng.Float64() < r.cfg.LateJoinChance {
			if err := r.join(); err != nil {
				return fmt.Errorf("late entry: %w", err)
			}
		}
	}
	return nil
}

func (r *run) payAll() error {
	for {
		info := r.game.Snapshot()
		if info.Phase != game.PhaseActive.String() {
			return nil
		}
		chunk, ok := info.NextChunk(game.MaxChunkSize)
		if !ok {
			return nil
		}
		if _, err := r.game.Disburse(r.master, chunk.Offset, chunk.Payees); err != nil {
			return err
		}
	}
}

func (r *run) finish() {
	if r.game.State().Phase() == game.PhaseClosed {
		r.report.Closed = true
		if r.game.Pot() > 0 {
			if _, err := r.game.WithdrawRemainingFunds(r.master); err != nil {
				r.logger.Warn("Withdraw failed", "error", err)
			}
		}
	}
	r.report.Remaining = r.game.Pot()
	for player, charged := range r.charged {
		if r.received[player] >= charged {
			r.report.MadeWhole++
		}
	}
}

// RunBatch plays one game per seed, at most workers at a time. Reports are
// returned in seed order.
func RunBatch(ctx context.Context, cfg Config, seeds []uint64, workers int, logger *log.Logger) ([]Report, error) {
	if workers < 1 {
		workers = 1
	}
	reports := make([]Report, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seed := range seeds {
		g.Go(func() error {
			report, err := Run(ctx, cfg, seed, logger)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Summary aggregates a batch of reports
type Summary struct {
	Games      int     `json:"games"`
	Closed     int     `json:"closed"`
	MeanRounds float64 `json:"meanRounds"`
	P50Rounds  float64 `json:"p50Rounds"`
	P90Rounds  float64 `json:"p90Rounds"`
	Entrants   int     `json:"entrants"`
	MadeWhole  int     `json:"madeWhole"`
	Deposited  uint64  `json:"deposited"`
	Paid       uint64  `json:"paid"`
	Fees       uint64  `json:"fees"`

	// Payout is the share of deposits returned to holders, per game
	PayoutMean float64 `json:"payoutMean"`
	PayoutLow  float64 `json:"payoutLow"`  // 95% confidence interval
	PayoutHigh float64 `json:"payoutHigh"` // for the mean
}

// Summarize totals reports
func Summarize(reports []Report) Summary {
	var (
		s              Summary
		rounds, payout statistics.Sample
	)
	for _, r := range reports {
		s.Games++
		if r.Closed {
			s.Closed++
		}
		rounds.Add(float64(r.Rounds))
		if r.Deposited > 0 {
			payout.Add(float64(r.Paid) / float64(r.Deposited))
		}
		s.Entrants += r.Entrants
		s.MadeWhole += r.MadeWhole
		s.Deposited += r.Deposited
		s.Paid += r.Paid
		s.Fees += r.Fees
	}
	if s.Games == 0 {
		return s
	}

	s.MeanRounds = rounds.Mean()
	s.P50Rounds = rounds.Median()
	s.P90Rounds = rounds.Percentile(0.9)
	s.PayoutMean = payout.Mean()
	s.PayoutLow, s.PayoutHigh = payout.ConfidenceInterval95()
	return s
}
