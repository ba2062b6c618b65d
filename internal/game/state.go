package game

import (
	"fmt"
	"time"
)

// Phase names the variant of a State
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseStaging
	PhaseActive
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseStaging:
		return "staging"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// ParsePhase is the inverse of Phase.String
func ParsePhase(s string) (Phase, error) {
	for p := PhasePending; p <= PhaseClosed; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// State is one of Pending, Staging, Active or Closed
type State interface {
	Phase() Phase
	// Deadline is the staging end or next crank time, zero for other phases
	Deadline() time.Time
	sealed()
}

// Pending is a game with no entries yet
type Pending struct{}

// Staging accepts entries until Ending
type Staging struct{ Ending time.Time }

// Active pays out one turn per crank; the next crank is allowed at NextCrank
type Active struct{ NextCrank time.Time }

// Closed is terminal
type Closed struct{}

func (Pending) Phase() Phase { return PhasePending }
func (Staging) Phase() Phase { return PhaseStaging }
func (Active) Phase() Phase  { return PhaseActive }
func (Closed) Phase() Phase  { return PhaseClosed }

func (Pending) Deadline() time.Time   { return time.Time{} }
func (s Staging) Deadline() time.Time { return s.Ending }
func (s Active) Deadline() time.Time  { return s.NextCrank }
func (Closed) Deadline() time.Time    { return time.Time{} }

func (Pending) sealed() {}
func (Staging) sealed() {}
func (Active) sealed()  {}
func (Closed) sealed()  {}

type trigger uint8

const (
	triggerEntry trigger = iota
	triggerCrank
	triggerOverdraw
)

func (t trigger) String() string {
	switch t {
	case triggerEntry:
		return "entry"
	case triggerCrank:
		return "crank"
	case triggerOverdraw:
		return "overdraw"
	default:
		return "unknown"
	}
}

// transition is the whole state machine. It returns the state the game moves
// to when t happens at now, or the error that rejects t.
func transition(s State, t trigger, now time.Time, p Params) (State, error) {
	switch s := s.(type) {
	case Pending:
		switch t {
		case triggerEntry:
			return Staging{Ending: now.Add(p.StagingPeriod)}, nil
		case triggerCrank:
			return nil, ErrCrankWhilePending
		}
	case Staging:
		switch t {
		case triggerEntry:
			return s, nil
		case triggerCrank:
			if now.Before(s.Ending) {
				return nil, fmt.Errorf("%w: staging ends in %s", ErrCrankTooEarly, s.Ending.Sub(now))
			}
			return Active{NextCrank: now.Add(p.TurnPeriod)}, nil
		}
	case Active:
		switch t {
		case triggerEntry:
			return s, nil
		case triggerCrank:
			if now.Before(s.NextCrank) {
				return nil, fmt.Errorf("%w: next crank in %s", ErrCrankTooEarly, s.NextCrank.Sub(now))
			}
			return Active{NextCrank: now.Add(p.TurnPeriod)}, nil
		case triggerOverdraw:
			return Closed{}, nil
		}
	case Closed:
		return nil, ErrGameClosed
	}
	return nil, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, t, s.Phase())
}

// stateFrom rebuilds a State from its phase and deadline
func stateFrom(p Phase, deadline time.Time) (State, error) {
	switch p {
	case PhasePending:
		return Pending{}, nil
	case PhaseStaging:
		return Staging{Ending: deadline}, nil
	case PhaseActive:
		return Active{NextCrank: deadline}, nil
	case PhaseClosed:
		return Closed{}, nil
	default:
		return nil, fmt.Errorf("unknown %s", p)
	}
}
