package potato

import "errors"

var (
	// ErrQueueFull is returned by Enqueue when every slot is occupied.
	ErrQueueFull = errors.New("board is full")

	// ErrPaymentStillDue is returned by AdvanceTurn when a holder has not
	// been paid for the previous turn.
	ErrPaymentStillDue = errors.New("payment still due from a previous turn")

	// ErrSlotMismatch is returned when a payee does not hold the slot it
	// was paired with.
	ErrSlotMismatch = errors.New("payee does not match board slot")

	// ErrNothingPending is returned when a payee has no turn awaiting payment.
	ErrNothingPending = errors.New("no payment pending for slot")

	// ErrImpossibleFee is returned for fee rates above 1000 permille.
	ErrImpossibleFee = errors.New("fee permille must be between 0 and 1000")

	// ErrInvalidLayout is returned when decoding malformed binary data.
	ErrInvalidLayout = errors.New("invalid binary layout")
)
