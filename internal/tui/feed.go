package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
)

// Source is the part of the client a dashboard is fed from
type Source interface {
	Watch(ctx context.Context, gameID string) (game.Info, error)
	Game(ctx context.Context, gameID string) (game.Info, error)
	OnGameEvent(handler func(events.Envelope))
}

// Sender receives messages for a running program, normally *tea.Program
type Sender interface {
	Send(msg tea.Msg)
}

// Follow watches gameID on src and forwards its state and events to p. Every
// event is followed by a refreshed state so the board stays current.
func Follow(ctx context.Context, src Source, gameID string, p Sender) error {
	src.OnGameEvent(func(env events.Envelope) {
		if env.Game != gameID {
			return
		}
		p.Send(GameEventMsg{Envelope: env})
		info, err := src.Game(ctx, gameID)
		if err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(GameStateMsg{Info: info})
	})

	info, err := src.Watch(ctx, gameID)
	if err != nil {
		return err
	}
	p.Send(GameStateMsg{Info: info})
	return nil
}
