package gameid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	id := Generate()
	assert.Len(t, id, Length)
	require.NoError(t, Validate(id))
}

func TestGenerateIsUniqueAndSorted(t *testing.T) {
	t.Parallel()

	prev := Generate()
	seen := map[string]bool{prev: true}
	for i := 0; i < 200; i++ {
		id := Generate()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Less(t, prev, id)
		prev = id
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00000000000000000000000000", Encode(uuid.UUID{}))

	var top uuid.UUID
	for i := range top {
		top[i] = 0xff
	}
	assert.Equal(t, "7zzzzzzzzzzzzzzzzzzzzzzzzz", Encode(top))

	var one uuid.UUID
	one[15] = 1
	assert.Equal(t, "00000000000000000000000001", Encode(one))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "01h2xcejqtf2nbrexx3vqjhp41", false},
		{"too short", "01h2xcejqtf2nbrexx3vqjhp4", true},
		{"too long", "01h2xcejqtf2nbrexx3vqjhp411", true},
		{"first char too large", "81h2xcejqtf2nbrexx3vqjhp41", true},
		{"excluded letter", "01h2xcejqtf2nbrexx3vqjhpi1", true},
		{"uppercase", "01H2XCEJQTF2NBREXX3VQJHP41", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
