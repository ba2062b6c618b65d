package potato

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the encoded size of a Record: the participant identity
// followed by three little endian uint64 fields.
const RecordSize = AccountSize + 3*8

// Record is one holder's entry on the board.
type Record struct {
	Participant    Account `json:"participant"`
	TurnNumber     uint64  `json:"turnNumber"`     // turns credited so far
	PaymentPending uint64  `json:"paymentPending"` // credited turns not yet paid out
	TurnAmount     uint64  `json:"turnAmount"`     // fixed at enqueue time
}

// IsEmpty reports whether the slot holding r is unused.
func (r Record) IsEmpty() bool {
	return r.Participant.IsZero()
}

// Finished reports whether the holder has been paid for every turn it is owed.
func (r Record) Finished() bool {
	return r.TurnNumber >= MaxTurns && r.PaymentPending == 0
}

// put encodes r into b, which must be at least RecordSize long.
func (r Record) put(b []byte) {
	copy(b[:AccountSize], r.Participant[:])
	binary.LittleEndian.PutUint64(b[AccountSize:], r.TurnNumber)
	binary.LittleEndian.PutUint64(b[AccountSize+8:], r.PaymentPending)
	binary.LittleEndian.PutUint64(b[AccountSize+16:], r.TurnAmount)
}

func (r *Record) get(b []byte) {
	copy(r.Participant[:], b[:AccountSize])
	r.TurnNumber = binary.LittleEndian.Uint64(b[AccountSize:])
	r.PaymentPending = binary.LittleEndian.Uint64(b[AccountSize+8:])
	r.TurnAmount = binary.LittleEndian.Uint64(b[AccountSize+16:])
}

// MarshalBinary encodes the record in its fixed-size layout.
func (r Record) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	r.put(b)
	return b, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("%w: record is %d bytes, want %d", ErrInvalidLayout, len(data), RecordSize)
	}
	r.get(data)
	return nil
}
