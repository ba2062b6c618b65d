package game

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lox/hotpotato/internal/gameid"
	"github.com/lox/hotpotato/internal/potato"
)

// Game record layout, little endian. The leading size field versions the
// layout; a record of any other size is rejected.
const (
	offSize     = 0
	offID       = offSize + 4
	offMaster   = offID + gameid.Length
	offEscrow   = offMaster + potato.AccountSize
	offPot      = offEscrow + potato.AccountSize
	offStaging  = offPot + 8
	offTurn     = offStaging + 8
	offMinimum  = offTurn + 8
	offFee      = offMinimum + 8
	offPhase    = offFee + 2
	offDeadline = offPhase + 1
	offBoard    = offDeadline + 8

	// GameRecordSize is the size of the fixed game record
	GameRecordSize = offBoard + gameid.Length

	// SnapshotSize is a game record followed by its board
	SnapshotSize = GameRecordSize + potato.QueueLayoutSize
)

func putTime(b []byte, t time.Time) {
	var v int64
	if !t.IsZero() {
		v = t.Unix()
	}
	binary.LittleEndian.PutUint64(b, uint64(v))
}

func getTime(b []byte) time.Time {
	v := int64(binary.LittleEndian.Uint64(b))
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

// MarshalBinary encodes the game record and its board
func (g *Game) MarshalBinary() ([]byte, error) {
	board, err := g.board.MarshalBinary()
	if err != nil {
		return nil, err
	}

	b := make([]byte, GameRecordSize, SnapshotSize)
	binary.LittleEndian.PutUint32(b[offSize:], GameRecordSize)
	copy(b[offID:offMaster], g.id)
	copy(b[offMaster:offEscrow], g.master[:])
	copy(b[offEscrow:offPot], g.escrow[:])
	binary.LittleEndian.PutUint64(b[offPot:], g.pot)
	binary.LittleEndian.PutUint64(b[offStaging:], uint64(g.params.StagingPeriod/time.Second))
	binary.LittleEndian.PutUint64(b[offTurn:], uint64(g.params.TurnPeriod/time.Second))
	binary.LittleEndian.PutUint64(b[offMinimum:], g.params.MinimumTicketEntry)
	binary.LittleEndian.PutUint16(b[offFee:], g.params.FeePermille)
	b[offPhase] = byte(g.state.Phase())
	putTime(b[offDeadline:], g.state.Deadline())
	copy(b[offBoard:GameRecordSize], g.id)
	return append(b, board...), nil
}

// Restore rebuilds a game from MarshalBinary output
func Restore(data []byte, ledger Ledger, opts ...Option) (*Game, error) {
	if len(data) != SnapshotSize {
		return nil, fmt.Errorf("%w: snapshot is %d bytes, want %d", ErrInvalidLayout, len(data), SnapshotSize)
	}
	if size := binary.LittleEndian.Uint32(data[offSize:]); size != GameRecordSize {
		return nil, fmt.Errorf("%w: game record version %d, want %d", ErrInvalidLayout, size, GameRecordSize)
	}

	id := string(data[offID:offMaster])
	if err := gameid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGameID, err)
	}
	if owner := string(data[offBoard:GameRecordSize]); owner != id {
		return nil, fmt.Errorf("%w: board owned by %q", ErrBoardMismatch, owner)
	}

	var master, escrow potato.Account
	copy(master[:], data[offMaster:offEscrow])
	copy(escrow[:], data[offEscrow:offPot])
	if escrow != EscrowAccount(id) {
		return nil, fmt.Errorf("%w: escrow does not match game id", ErrInvalidLayout)
	}

	params := Params{
		StagingPeriod:      time.Duration(binary.LittleEndian.Uint64(data[offStaging:])) * time.Second,
		TurnPeriod:         time.Duration(binary.LittleEndian.Uint64(data[offTurn:])) * time.Second,
		MinimumTicketEntry: binary.LittleEndian.Uint64(data[offMinimum:]),
		FeePermille:        binary.LittleEndian.Uint16(data[offFee:]),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	state, err := stateFrom(Phase(data[offPhase]), getTime(data[offDeadline:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}

	board := new(potato.Queue)
	if err := board.UnmarshalBinary(data[GameRecordSize:]); err != nil {
		return nil, err
	}

	g := newGame(id, master, params, ledger, opts)
	g.pot = binary.LittleEndian.Uint64(data[offPot:])
	g.state = state
	g.board = board
	return g, nil
}
