package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/hotpotato/internal/client"
	"github.com/lox/hotpotato/internal/potato"
	"github.com/lox/hotpotato/internal/tui"
)

// WatchCmd opens the live dashboard for a game
type WatchCmd struct {
	ClientFlags `embed:""`

	Game string `arg:"" help:"Game ID"`
}

func (c *WatchCmd) Run() error {
	// Logs would tear the alt screen, so they go to a file or nowhere
	if c.LogFile == "" {
		c.LogLevel = "error"
	}
	s, err := c.open(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	me := s.client.Identity()
	dashboard := tui.NewDashboard(c.Game, s.logger,
		tui.WithNames(map[potato.Account]string{me.Account: me.Name}))
	program := tea.NewProgram(dashboard, tea.WithAltScreen())

	go func() {
		if err := tui.Follow(ctx, s.client, c.Game, program); err != nil {
			program.Send(tui.ErrMsg{Err: err})
		}
	}()
	go func() {
		select {
		case <-s.client.Done():
			program.Send(tui.ErrMsg{Err: client.ErrDisconnected})
		case <-ctx.Done():
		}
	}()

	_, err = program.Run()
	return err
}
