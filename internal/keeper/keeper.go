// Package keeper runs the game master's side of a game: it cranks when a
// turn is due, pays every pending holder in chunks and withdraws what is
// left once the game closes.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/potato"
)

// Operator performs game master calls on one server. *client.Client
// satisfies it, as does Local.
type Operator interface {
	Game(ctx context.Context, gameID string) (game.Info, error)
	Crank(ctx context.Context, gameID string) (game.Info, error)
	Disburse(ctx context.Context, gameID string, offset int, payees []potato.Account) (game.Disbursement, error)
	Withdraw(ctx context.Context, gameID string) (uint64, error)
}

// Stats counts what a keeper has done
type Stats struct {
	Cranks        int    `json:"cranks"`
	Disbursements int    `json:"disbursements"`
	Payments      int    `json:"payments"`
	Paid          uint64 `json:"paid"`
	Fees          uint64 `json:"fees"`
	Withdrawn     uint64 `json:"withdrawn"`
}

// Option configures a Keeper
type Option func(*Keeper)

// WithClock sets the clock used for the poll ticker and crank timing
func WithClock(clock quartz.Clock) Option {
	return func(k *Keeper) { k.clock = clock }
}

// WithInterval sets how often the game is polled
func WithInterval(d time.Duration) Option {
	return func(k *Keeper) { k.interval = d }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(k *Keeper) { k.logger = logger }
}

// WithoutWithdraw leaves the remaining pot in escrow when the game closes
func WithoutWithdraw() Option {
	return func(k *Keeper) { k.withdraw = false }
}

// Keeper looks after a single game
type Keeper struct {
	op       Operator
	gameID   string
	clock    quartz.Clock
	interval time.Duration
	withdraw bool
	logger   *log.Logger
	stats    Stats
}

// New creates a keeper for gameID
func New(op Operator, gameID string, opts ...Option) *Keeper {
	k := &Keeper{
		op:       op,
		gameID:   gameID,
		clock:    quartz.NewReal(),
		interval: time.Second,
		withdraw: true,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	k.logger = k.logger.WithPrefix("keeper").With("game", gameID)
	return k
}

// GameID returns the game being kept
func (k *Keeper) GameID() string { return k.gameID }

// Stats returns the running totals. It is not safe to call while Run is
// in progress.
func (k *Keeper) Stats() Stats { return k.stats }

// Step does everything currently due and reports whether the game is
// finished: closed, and withdrawn unless withdrawal is disabled.
func (k *Keeper) Step(ctx context.Context) (done bool, err error) {
	info, err := k.op.Game(ctx, k.gameID)
	if err != nil {
		return false, err
	}

	switch info.Phase {
	case game.PhasePending.String():
		return false, nil
	case game.PhaseClosed.String():
		return true, k.finish(ctx, info)
	}

	// Outstanding payments block the next crank, so settle first.
	if info, err = k.payAll(ctx, info); err != nil {
		return false, err
	}
	if info.Phase == game.PhaseClosed.String() {
		return true, k.finish(ctx, info)
	}

	if !info.CrankDue(k.clock.Now()) {
		return false, nil
	}
	info, err = k.op.Crank(ctx, k.gameID)
	switch {
	case errors.Is(err, game.ErrCrankTooEarly):
		// Our clock runs ahead of the server's
		k.logger.Debug("Crank refused as early", "error", err)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("crank: %w", err)
	}
	k.stats.Cranks++
	k.logger.Debug("Cranked", "phase", info.Phase, "pending", len(info.Pending))

	if info, err = k.payAll(ctx, info); err != nil {
		return false, err
	}
	if info.Phase == game.PhaseClosed.String() {
		return true, k.finish(ctx, info)
	}
	return false, nil
}

// payAll disburses pending holders one chunk at a time until none are left
// or the game closes
func (k *Keeper) payAll(ctx context.Context, info game.Info) (game.Info, error) {
	for {
		chunk, ok := info.NextChunk(game.MaxChunkSize)
		if !ok || info.Phase != game.PhaseActive.String() {
			return info, nil
		}

		d, err := k.op.Disburse(ctx, k.gameID, chunk.Offset, chunk.Payees)
		if err != nil {
			return info, fmt.Errorf("disburse at %d: %w", chunk.Offset, err)
		}
		k.stats.Disbursements++
		k.stats.Payments += len(d.Payments)
		k.stats.Paid += d.TotalPaid - d.TotalFee
		k.stats.Fees += d.TotalFee
		k.logger.Debug("Disbursed", "offset", chunk.Offset, "payees", len(chunk.Payees), "paid", d.TotalPaid, "pot", d.RemainingPot)

		if info, err = k.op.Game(ctx, k.gameID); err != nil {
			return info, err
		}
	}
}

func (k *Keeper) finish(ctx context.Context, info game.Info) error {
	if !k.withdraw || info.Pot == 0 {
		return nil
	}
	amount, err := k.op.Withdraw(ctx, k.gameID)
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	k.stats.Withdrawn += amount
	k.logger.Info("Withdrew remaining pot", "amount", amount)
	return nil
}

// Run steps the game every interval until it is finished or ctx ends.
// Failed steps are logged and retried on the next tick.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.Info("Keeping game", "interval", k.interval)

	ticker := k.clock.NewTicker(k.interval, "keeper")
	defer ticker.Stop()

	for {
		done, err := k.Step(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			k.logger.Warn("Step failed", "error", err)
		case done:
			k.logger.Info("Game finished", "cranks", k.stats.Cranks, "payments", k.stats.Payments,
				"paid", k.stats.Paid, "fees", k.stats.Fees, "withdrawn", k.stats.Withdrawn)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunAll runs every keeper concurrently and returns the first error
func RunAll(ctx context.Context, keepers []*Keeper) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, k := range keepers {
		g.Go(func() error {
			if err := k.Run(ctx); err != nil {
				return fmt.Errorf("game %s: %w", k.GameID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
