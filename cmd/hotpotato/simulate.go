package main

import (
	"fmt"
	"time"

	"github.com/lox/hotpotato/internal/randutil"
	"github.com/lox/hotpotato/internal/simulator"
)

// SimulateCmd plays a batch of seeded games in-process
type SimulateCmd struct {
	Games     int     `short:"n" default:"100" help:"Number of games to play"`
	Seed      uint64  `default:"1" help:"First seed; game i uses seed+i"`
	Workers   int     `short:"w" default:"4" help:"Games to play at once"`
	Players   int     `default:"20" help:"Players entering during staging"`
	LateJoin  float64 `default:"0.1" help:"Chance per turn that a new player joins"`
	MinTicket uint64  `default:"1000" help:"Smallest ticket drawn"`
	MaxTicket uint64  `default:"50000" help:"Largest ticket drawn"`
	Fee       uint16  `default:"25" help:"Game master fee in permille"`
	MaxRounds int     `default:"10000" help:"Give up on a game after this many turns"`
	LogLevel  string  `short:"l" default:"warn" env:"HOTPOTATO_LOG_LEVEL" help:"Log level"`
	JSON      bool    `help:"Print the summary and every report as JSON"`
}

func (c *SimulateCmd) config() simulator.Config {
	cfg := simulator.DefaultConfig()
	cfg.Players = c.Players
	cfg.LateJoinChance = c.LateJoin
	cfg.MinTicket = c.MinTicket
	cfg.MaxTicket = c.MaxTicket
	cfg.MaxRounds = c.MaxRounds
	cfg.Params.FeePermille = c.Fee
	if cfg.Params.MinimumTicketEntry > c.MinTicket {
		cfg.Params.MinimumTicketEntry = c.MinTicket
	}
	return cfg
}

func (c *SimulateCmd) Run() error {
	logger, closeLog, err := setupLogger(c.LogLevel, "")
	if err != nil {
		return err
	}
	defer closeLog()

	if c.Games < 1 {
		return fmt.Errorf("need at least one game")
	}
	seeds := randutil.Seeds(c.Seed, c.Games)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	started := time.Now()
	reports, err := simulator.RunBatch(ctx, c.config(), seeds, c.Workers, logger)
	if err != nil {
		return err
	}
	summary := simulator.Summarize(reports)

	if c.JSON {
		return printJSON(struct {
			Summary simulator.Summary  `json:"summary"`
			Reports []simulator.Report `json:"reports"`
		}{summary, reports})
	}

	t := newTable("Games", "Closed", "Turns (mean/p50/p90)", "Entrants", "Made whole", "Deposited", "Paid", "Fees")
	t.Row(fmt.Sprint(summary.Games), fmt.Sprint(summary.Closed),
		fmt.Sprintf("%.1f/%.0f/%.0f", summary.MeanRounds, summary.P50Rounds, summary.P90Rounds),
		fmt.Sprint(summary.Entrants), fmt.Sprint(summary.MadeWhole),
		fmt.Sprint(summary.Deposited), fmt.Sprint(summary.Paid), fmt.Sprint(summary.Fees))
	fmt.Println(t)
	if summary.Entrants > 0 {
		fmt.Printf("%.1f%% of entrants were made whole\n", 100*float64(summary.MadeWhole)/float64(summary.Entrants))
	}
	fmt.Printf("Holders got back %.1f%% of deposits (95%% CI %.1f%%-%.1f%%)\n",
		100*summary.PayoutMean, 100*summary.PayoutLow, 100*summary.PayoutHigh)
	fmt.Printf("Played %d games in %s\n", summary.Games, time.Since(started).Round(time.Millisecond))
	return nil
}
