package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	p := Params{StagingPeriod: 100 * time.Second, TurnPeriod: 50 * time.Second}
	now := start
	later := now.Add(time.Minute)

	tests := []struct {
		name    string
		from    State
		trigger trigger
		want    State
		wantErr error
	}{
		{"first entry arms staging", Pending{}, triggerEntry, Staging{Ending: now.Add(100 * time.Second)}, nil},
		{"crank while pending", Pending{}, triggerCrank, nil, ErrCrankWhilePending},
		{"entry while staging", Staging{Ending: later}, triggerEntry, Staging{Ending: later}, nil},
		{"crank before staging ends", Staging{Ending: later}, triggerCrank, nil, ErrCrankTooEarly},
		{"crank when staging ends", Staging{Ending: now}, triggerCrank, Active{NextCrank: now.Add(50 * time.Second)}, nil},
		{"entry while active", Active{NextCrank: later}, triggerEntry, Active{NextCrank: later}, nil},
		{"crank too early", Active{NextCrank: later}, triggerCrank, nil, ErrCrankTooEarly},
		{"crank re-arms", Active{NextCrank: now.Add(-time.Second)}, triggerCrank, Active{NextCrank: now.Add(50 * time.Second)}, nil},
		{"overdraw closes", Active{NextCrank: later}, triggerOverdraw, Closed{}, nil},
		{"entry when closed", Closed{}, triggerEntry, nil, ErrGameClosed},
		{"crank when closed", Closed{}, triggerCrank, nil, ErrGameClosed},
		{"overdraw while staging", Staging{Ending: later}, triggerOverdraw, nil, ErrInvalidTransition},
		{"overdraw while pending", Pending{}, triggerOverdraw, nil, ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transition(tt.from, tt.trigger, now, p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhaseStrings(t *testing.T) {
	t.Parallel()

	for p := PhasePending; p <= PhaseClosed; p++ {
		parsed, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)

		s, err := stateFrom(p, start)
		require.NoError(t, err)
		assert.Equal(t, p, s.Phase())
	}

	_, err := ParsePhase("bogus")
	assert.Error(t, err)
	_, err = stateFrom(Phase(9), start)
	assert.Error(t, err)
	assert.Equal(t, "phase(9)", Phase(9).String())
}

func TestSplitTicket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ticket   uint64
		permille uint16
		turn     uint64
		charged  uint64
	}{
		{10_000, 50, 100, 10_000},
		{1000, 50, 9, 900}, // 0.5 fee and 9.5 net both truncate
		{12_345, 35, 122, 12_200},
		{99, 0, 0, 0},
		{1_000_000, 1000, 10_000, 1_000_000},
		{1_000_000, 0, 10_000, 1_000_000},
	}
	for _, tt := range tests {
		turn, charged := SplitTicket(tt.ticket, tt.permille)
		assert.Equal(t, tt.turn, turn, "ticket %d at %d", tt.ticket, tt.permille)
		assert.Equal(t, tt.charged, charged, "ticket %d at %d", tt.ticket, tt.permille)
		assert.LessOrEqual(t, charged, tt.ticket)
	}
}

func TestErrorCodes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "crank_too_early", Code(ErrCrankTooEarly))
	assert.Equal(t, ClassState, ClassOf(ErrCrankTooEarly))
	assert.Equal(t, "board_full", Code(ErrBoardFull))
	assert.Equal(t, ClassCapacity, ClassOf(ErrBoardFull))
	assert.Equal(t, "internal", Code(assert.AnError))
	assert.Equal(t, ClassInternal, ClassOf(assert.AnError))

	seen := map[string]bool{}
	for _, c := range codes {
		assert.False(t, seen[c.code], "duplicate code %s", c.code)
		seen[c.code] = true
		assert.Equal(t, c.err, ErrorForCode(c.code))
	}
	assert.Nil(t, ErrorForCode("nope"))
}
