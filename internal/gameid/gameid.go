// Package gameid mints and checks game identifiers: a UUIDv7 written as 26
// characters of Crockford base32, so ids sort by creation time.
package gameid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the number of characters in a game id
const Length = 26

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// ErrInvalid is returned by Validate for malformed ids
var ErrInvalid = errors.New("invalid game id")

// Generate returns a new time-ordered game id
func Generate() string {
	return Encode(uuid.Must(uuid.NewV7()))
}

// Encode writes a UUID as a game id
func Encode(id uuid.UUID) string {
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])

	var out [Length]byte
	for i := Length - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// Validate checks that id is 26 base32 characters encoding at most 128 bits
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("%w: must be exactly %d characters, got %d", ErrInvalid, Length, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("%w: first character must be 0-7, got %c", ErrInvalid, id[0])
	}
	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(alphabet, rune(id[i])) {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalid, id[i], i)
		}
	}
	return nil
}
