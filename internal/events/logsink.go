package events

import "github.com/charmbracelet/log"

// LogSink writes every event to a structured logger
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a subscriber that logs events at info level
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.WithPrefix("events")}
}

// OnEvent implements Subscriber
func (s *LogSink) OnEvent(event Event) {
	kv := []any{"game", event.GameID()}
	switch e := event.(type) {
	case GameInitialized:
		kv = append(kv, "master", e.GameMaster.Short(), "min", e.MinimumTicketEntry, "fee", e.FeePermille)
	case GameStateChanged:
		kv = append(kv, "state", e.State)
		if !e.Deadline.IsZero() {
			kv = append(kv, "deadline", e.Deadline)
		}
	case PotatoReceived:
		kv = append(kv, "player", e.Player.Short(), "ticket", e.TicketEntry, "turn_amount", e.TurnAmount)
	case PotatoHolderPaid:
		kv = append(kv, "player", e.Player.Short(), "amount", e.Amount, "turn", e.Turn)
	case GameMasterPaid:
		kv = append(kv, "amount", e.Amount)
	case FundsWithdrawn:
		kv = append(kv, "master", e.GameMaster.Short(), "amount", e.Amount)
	}
	s.logger.Info(event.EventType().String(), kv...)
}
