package game

import (
	"errors"

	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/potato"
)

// Authorization
var (
	ErrNotGameMaster      = errors.New("caller is not the game master")
	ErrCallerIsGameMaster = errors.New("game master cannot play")
)

// State gating
var (
	ErrCrankWhilePending           = errors.New("cannot crank while pending")
	ErrCrankTooEarly               = errors.New("crank not allowed yet")
	ErrNotActive                   = errors.New("cannot disburse when not active")
	ErrGameClosed                  = errors.New("game closed")
	ErrProhibitedInStagingOrActive = errors.New("prohibited while staging or active")
	ErrInvalidTransition           = errors.New("invalid state transition")
)

// Capacity
var (
	ErrBoardFull     = potato.ErrQueueFull
	ErrChunkTooLarge = errors.New("disbursement chunk too large")
)

// Consistency
var (
	ErrSlotMismatch     = potato.ErrSlotMismatch
	ErrNothingPending   = potato.ErrNothingPending
	ErrPaymentStillDue  = potato.ErrPaymentStillDue
	ErrBoardMismatch    = errors.New("board does not belong to game")
	ErrInvalidLayout    = potato.ErrInvalidLayout
	ErrInvalidAccount   = errors.New("invalid account")
	ErrInvalidGameID    = errors.New("invalid game id")
	ErrEscrowAccounting = errors.New("escrow accounting failed")
)

// Funding
var (
	ErrBelowMinimum      = errors.New("below ticket entry minimum")
	ErrTicketTooSmall    = errors.New("ticket entry too small to split")
	ErrImpossibleFee     = potato.ErrImpossibleFee
	ErrInvalidParams     = errors.New("invalid game parameters")
	ErrPotOverflow       = errors.New("pot overflow")
	ErrInsufficientFunds = ledger.ErrInsufficientFunds
)

// Class groups errors by what the caller did wrong
type Class string

const (
	ClassAuthorization Class = "authorization"
	ClassState         Class = "state"
	ClassCapacity      Class = "capacity"
	ClassConsistency   Class = "consistency"
	ClassFunding       Class = "funding"
	ClassInternal      Class = "internal"
)

var codes = []struct {
	err   error
	code  string
	class Class
}{
	{ErrNotGameMaster, "not_game_master", ClassAuthorization},
	{ErrCallerIsGameMaster, "game_master_cannot_play", ClassAuthorization},
	{ErrCrankWhilePending, "crank_while_pending", ClassState},
	{ErrCrankTooEarly, "crank_too_early", ClassState},
	{ErrNotActive, "not_active", ClassState},
	{ErrGameClosed, "game_closed", ClassState},
	{ErrProhibitedInStagingOrActive, "prohibited_in_staging_or_active", ClassState},
	{ErrInvalidTransition, "invalid_transition", ClassState},
	{ErrBoardFull, "board_full", ClassCapacity},
	{ErrChunkTooLarge, "chunk_too_large", ClassCapacity},
	{ErrSlotMismatch, "slot_mismatch", ClassConsistency},
	{ErrNothingPending, "nothing_pending", ClassConsistency},
	{ErrPaymentStillDue, "payment_still_due", ClassConsistency},
	{ErrBoardMismatch, "board_mismatch", ClassConsistency},
	{ErrInvalidLayout, "invalid_layout", ClassConsistency},
	{ErrInvalidAccount, "invalid_account", ClassConsistency},
	{ErrInvalidGameID, "invalid_game_id", ClassConsistency},
	{ErrEscrowAccounting, "escrow_accounting", ClassConsistency},
	{ErrBelowMinimum, "below_minimum", ClassFunding},
	{ErrTicketTooSmall, "ticket_too_small", ClassFunding},
	{ErrImpossibleFee, "impossible_fee", ClassFunding},
	{ErrInvalidParams, "invalid_params", ClassFunding},
	{ErrPotOverflow, "pot_overflow", ClassFunding},
	{ErrInsufficientFunds, "insufficient_funds", ClassFunding},
}

// Code returns a stable wire identifier for err, or "internal"
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// ClassOf returns the error class of err
func ClassOf(err error) Class {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return ClassInternal
}

// ErrorForCode returns the sentinel for a wire code, or nil
func ErrorForCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
