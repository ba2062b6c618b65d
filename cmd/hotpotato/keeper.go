package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lox/hotpotato/internal/keeper"
)

// KeeperCmd cranks and disburses games until they close
type KeeperCmd struct {
	ClientFlags `embed:""`

	Games      []string      `arg:"" optional:"" help:"Game IDs to keep (default: every open game you master)"`
	Interval   time.Duration `default:"1s" env:"HOTPOTATO_KEEPER_INTERVAL" help:"How often to check each game"`
	NoWithdraw bool          `help:"Leave the remainder of closed games in escrow"`
}

func (c *KeeperCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := setupSignalHandler(s.logger)
	defer cancel()

	ids := c.Games
	if len(ids) == 0 {
		rctx, rcancel := s.request(ctx)
		games, err := s.client.ListGames(rctx)
		rcancel()
		if err != nil {
			return err
		}
		ids = keeper.Owned(games, s.client.Identity().Account)
	}
	if len(ids) == 0 {
		fmt.Println("No games to keep")
		return nil
	}

	opts := []keeper.Option{
		keeper.WithInterval(c.Interval),
		keeper.WithLogger(s.logger),
	}
	if c.NoWithdraw {
		opts = append(opts, keeper.WithoutWithdraw())
	}
	keepers := make([]*keeper.Keeper, len(ids))
	for i, id := range ids {
		keepers[i] = keeper.New(s.client, id, opts...)
	}

	s.logger.Info("Keeping games", "count", len(ids), "interval", c.Interval)
	err = keeper.RunAll(ctx, keepers)
	for _, k := range keepers {
		st := k.Stats()
		fmt.Printf("%s: %d cranks, %d payments, paid %d, fees %d, withdrew %d\n",
			k.GameID(), st.Cranks, st.Payments, st.Paid, st.Fees, st.Withdrawn)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
