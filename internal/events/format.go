package events

import (
	"fmt"
	"time"

	"github.com/lox/hotpotato/internal/potato"
)

// FormattingOptions controls how events are rendered for people
type FormattingOptions struct {
	ShowGameID bool                      // Prefix lines with the game id (for multi-game logs)
	Names      map[potato.Account]string // Known account names, shown instead of hex
}

// Formatter renders events as single human readable lines
type Formatter struct {
	opts FormattingOptions
}

// NewFormatter creates a formatter with the given options
func NewFormatter(opts FormattingOptions) *Formatter {
	return &Formatter{opts: opts}
}

func (f *Formatter) name(a potato.Account) string {
	if n, ok := f.opts.Names[a]; ok {
		return n
	}
	return a.Short()
}

// Format returns a one line description of event
func (f *Formatter) Format(event Event) string {
	var line string
	switch e := event.(type) {
	case GameInitialized:
		line = fmt.Sprintf("game created by %s (staging %s, turn %s, minimum %d, fee %d‰)",
			f.name(e.GameMaster), e.StagingPeriod, e.TurnPeriod, e.MinimumTicketEntry, e.FeePermille)
	case GameStateChanged:
		if e.Deadline.IsZero() {
			line = fmt.Sprintf("game is now %s", e.State)
		} else {
			line = fmt.Sprintf("game is now %s until %s", e.State, e.Deadline.UTC().Format(time.RFC3339))
		}
	case PotatoReceived:
		line = fmt.Sprintf("%s caught the potato for %d (%d per turn)", f.name(e.Player), e.TicketEntry, e.TurnAmount)
	case PotatoHolderPaid:
		line = fmt.Sprintf("%s paid %d for turn %d", f.name(e.Player), e.Amount, e.Turn)
	case GameMasterPaid:
		line = fmt.Sprintf("game master collected %d in fees", e.Amount)
	case FundsWithdrawn:
		line = fmt.Sprintf("%s withdrew %d", f.name(e.GameMaster), e.Amount)
	default:
		line = string(event.EventType())
	}

	if f.opts.ShowGameID {
		return fmt.Sprintf("[%s] %s", event.GameID(), line)
	}
	return line
}
