package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/tui"
)

// EnterCmd buys into a game
type EnterCmd struct {
	ClientFlags `embed:""`

	Game   string `arg:"" help:"Game ID"`
	Ticket uint64 `arg:"" help:"Ticket entry to pay; only whole installments are charged"`
}

func (c *EnterCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.request(context.Background())
	defer cancel()
	entry, err := s.client.RequestEntry(ctx, c.Game, c.Ticket)
	if err != nil {
		return err
	}

	charged := entry.Record.TurnAmount * game.TicketEntrySplit
	fmt.Printf("Entered %s: charged %d, paid %d per turn for %d turns\n",
		entry.GameID, charged, entry.Record.TurnAmount, game.TicketEntrySplit)
	fmt.Printf("Game is %s with %d in the pot\n", entry.Phase, entry.Pot)
	return nil
}

// CrankCmd advances a game
type CrankCmd struct {
	ClientFlags `embed:""`

	Game string `arg:"" help:"Game ID"`
}

func (c *CrankCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.request(context.Background())
	defer cancel()
	info, err := s.client.Crank(ctx, c.Game)
	if err != nil {
		return err
	}
	fmt.Printf("Cranked %s: %s, %d holders owed\n", info.ID, info.Phase, len(info.Pending))
	if !info.Deadline.IsZero() {
		fmt.Printf("Next crank due at %s\n", info.Deadline.Local().Format(time.DateTime))
	}
	return nil
}

// DisburseCmd pays every pending holder, a chunk at a time
type DisburseCmd struct {
	ClientFlags `embed:""`

	Game      string `arg:"" help:"Game ID"`
	ChunkSize int    `default:"25" help:"Holders to pay per request"`
}

func (c *DisburseCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	size := min(max(c.ChunkSize, 1), game.MaxChunkSize)
	var paid, fees uint64
	var payments int
	for {
		ctx, cancel := s.request(context.Background())
		info, err := s.client.Game(ctx, c.Game)
		cancel()
		if err != nil {
			return err
		}
		chunk, ok := info.NextChunk(size)
		if !ok || info.Phase != game.PhaseActive.String() {
			break
		}

		ctx, cancel = s.request(context.Background())
		d, err := s.client.Disburse(ctx, c.Game, chunk.Offset, chunk.Payees)
		cancel()
		if err != nil {
			return err
		}
		paid += d.TotalPaid - d.TotalFee
		fees += d.TotalFee
		payments += len(d.Payments)
		if d.Closed {
			fmt.Println("The pot ran dry; the game is closed")
			break
		}
	}

	fmt.Printf("Paid %d holders %d in total, %d in fees\n", payments, paid, fees)
	return nil
}

// WithdrawCmd takes what is left of a closed game
type WithdrawCmd struct {
	ClientFlags `embed:""`

	Game string `arg:"" help:"Game ID"`
}

func (c *WithdrawCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.request(context.Background())
	defer cancel()
	amount, err := s.client.Withdraw(ctx, c.Game)
	if err != nil {
		return err
	}
	fmt.Printf("Withdrew %d from %s\n", amount, c.Game)
	return nil
}

// AirdropCmd asks the faucet for funds
type AirdropCmd struct {
	ClientFlags `embed:""`

	Amount uint64 `arg:"" optional:"" help:"Amount to request (default: the faucet amount)"`
}

func (c *AirdropCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.request(context.Background())
	defer cancel()
	balance, err := s.client.Airdrop(ctx, c.Amount)
	if err != nil {
		return err
	}
	fmt.Printf("Balance of %s is now %d\n", s.client.Identity().Name, balance)
	return nil
}

// StatusCmd shows a game, or every game
type StatusCmd struct {
	ClientFlags `embed:""`

	Game string `arg:"" optional:"" help:"Game ID (default: list all games)"`
	JSON bool   `help:"Print JSON"`
}

func (c *StatusCmd) Run() error {
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.request(context.Background())
	defer cancel()

	if c.Game == "" {
		games, err := s.client.ListGames(ctx)
		if err != nil {
			return err
		}
		if c.JSON {
			return printJSON(games)
		}
		if len(games) == 0 {
			fmt.Println("No games")
			return nil
		}
		t := newTable("ID", "Phase", "Pot", "Holders", "Owed", "Deadline")
		for _, g := range games {
			t.Row(g.ID, g.Phase, fmt.Sprint(g.Pot), fmt.Sprint(g.Holders), fmt.Sprint(g.Pending), formatDeadline(g.Deadline))
		}
		fmt.Println(t)
		return nil
	}

	info, err := s.client.Game(ctx, c.Game)
	if err != nil {
		return err
	}
	balance, err := s.client.Balance(ctx, s.client.Identity().Account)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(info)
	}
	fmt.Print(formatInfo(info, time.Now()))
	fmt.Printf("Your balance: %d\n", balance)
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tui.InfoStyle).
		Headers(headers...)
}

func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// formatInfo renders a game and its board as text
func formatInfo(info game.Info, now time.Time) string {
	out := fmt.Sprintf("Game %s\n", info.ID)
	out += fmt.Sprintf("  phase     %s (%s)\n", info.Phase, tui.Countdown(info, now))
	out += fmt.Sprintf("  master    %s\n", info.GameMaster.Short())
	out += fmt.Sprintf("  escrow    %s\n", info.Escrow)
	out += fmt.Sprintf("  pot       %d\n", info.Pot)
	out += fmt.Sprintf("  params    staging %s, turn %s, minimum %d, fee %d‰\n",
		info.Params.StagingPeriod, info.Params.TurnPeriod, info.Params.MinimumTicketEntry, info.Params.FeePermille)
	out += fmt.Sprintf("  holders   %d of %d, %d owed\n", len(info.Holders), info.Capacity, len(info.Pending))

	if len(info.Holders) == 0 {
		return out
	}
	t := newTable("#", "Holder", "Turn", "Owed", "Per turn")
	for _, h := range info.Holders {
		t.Row(fmt.Sprint(h.Offset), h.Participant.Short(),
			fmt.Sprintf("%d/%d", h.TurnNumber, game.TicketEntrySplit),
			fmt.Sprint(h.PaymentPending), fmt.Sprint(h.TurnAmount))
	}
	return out + t.String() + "\n"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
