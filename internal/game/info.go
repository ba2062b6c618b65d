package game

import (
	"time"

	"github.com/lox/hotpotato/internal/potato"
)

// Holder is a board record with its offset from the head
type Holder struct {
	Offset int `json:"offset"`
	potato.Record
}

// Info is a read-only view of a game for transport and display
type Info struct {
	ID         string         `json:"id"`
	GameMaster potato.Account `json:"gameMaster"`
	Escrow     potato.Account `json:"escrow"`
	Phase      string         `json:"phase"`
	Deadline   time.Time      `json:"deadline,omitzero"`
	Pot        uint64         `json:"pot"`
	Params     Params         `json:"params"`
	Capacity   int            `json:"capacity"`
	Holders    []Holder       `json:"holders"`
	Pending    []int          `json:"pending"` // offsets with a payment due
}

// Snapshot returns the current view of the game
func (g *Game) Snapshot() Info {
	records := g.board.Records()
	holders := make([]Holder, len(records))
	for i, r := range records {
		holders[i] = Holder{Offset: i, Record: r}
	}
	pending := g.board.Pending()
	if pending == nil {
		pending = []int{}
	}
	return Info{
		ID:         g.id,
		GameMaster: g.master,
		Escrow:     g.escrow,
		Phase:      g.state.Phase().String(),
		Deadline:   g.state.Deadline(),
		Pot:        g.pot,
		Params:     g.params,
		Capacity:   potato.Capacity,
		Holders:    holders,
		Pending:    pending,
	}
}

// CrankDue reports whether a crank at now would pass the time gate
func (i Info) CrankDue(now time.Time) bool {
	switch i.Phase {
	case PhaseStaging.String(), PhaseActive.String():
		return !now.Before(i.Deadline)
	default:
		return false
	}
}

// Chunk is a contiguous run of pending holders that one Disburse call can pay
type Chunk struct {
	Offset int              `json:"offset"`
	Payees []potato.Account `json:"payees"`
}

// NextChunk returns the first run of consecutive pending holders, at most
// size long. ok is false when nothing is pending.
func (i Info) NextChunk(size int) (c Chunk, ok bool) {
	if len(i.Pending) == 0 || size <= 0 {
		return Chunk{}, false
	}
	c.Offset = i.Pending[0]
	for n, off := range i.Pending {
		if off != c.Offset+n || n == size {
			break
		}
		c.Payees = append(c.Payees, i.Holders[off].Participant)
	}
	return c, true
}
