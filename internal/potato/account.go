package potato

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// AccountSize is the width of an account identity in bytes.
const AccountSize = 32

// Account is an opaque, fixed-size identity. The zero value marks an empty
// board slot and never identifies a real participant.
type Account [AccountSize]byte

// AccountFromName derives a deterministic account from a human readable name.
func AccountFromName(name string) Account {
	return Account(blake3.Sum256([]byte(name)))
}

// ParseAccount parses the hex text form produced by Account.String.
func ParseAccount(s string) (Account, error) {
	var a Account
	if len(s) != hex.EncodedLen(AccountSize) {
		return a, fmt.Errorf("account must be %d hex characters, got %d", hex.EncodedLen(AccountSize), len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("invalid account: %w", err)
	}
	return a, nil
}

// IsZero reports whether a is the empty identity.
func (a Account) IsZero() bool {
	return a == Account{}
}

func (a Account) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns an abbreviated form for logs and tables.
func (a Account) Short() string {
	s := a.String()
	return s[:6] + ".." + s[len(s)-4:]
}

func (a Account) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Account) UnmarshalText(text []byte) error {
	parsed, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
