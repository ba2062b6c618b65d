package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/gameid"
	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/potato"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data"), nil)
	require.NoError(t, err)
	return s
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	id := gameid.Generate()

	require.NoError(t, s.Save(id, []byte("payload")))
	data, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	require.NoError(t, s.Delete(id))
	require.NoError(t, s.Delete(id))
	_, err = s.Load(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadDetectsCorruption(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	id := gameid.Generate()
	require.NoError(t, s.Save(id, []byte("payload")))

	path := filepath.Join(s.Dir(), id+extension)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	raw[len(magic)] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	_, err = s.Load(id)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(path, []byte("HP"), 0o644))
	_, err = s.Load(id)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRejectsInvalidIDs(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	assert.ErrorIs(t, s.Save("../escape", nil), gameid.ErrInvalid)
	_, err := s.Load("../escape")
	assert.ErrorIs(t, err, gameid.ErrInvalid)

	// Stray files are ignored by List.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.hpot"), nil, 0o644))
	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGameAndLedgerRoundTrip(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	clock := quartz.NewMock(t)
	l := ledger.NewMemory()
	master := potato.AccountFromName("gm")
	alice := potato.AccountFromName("alice")
	require.NoError(t, l.Airdrop(alice, 5_000))

	g, err := game.New(gameid.Generate(), master, game.Params{
		StagingPeriod: time.Minute,
		TurnPeriod:    time.Minute,
		FeePermille:   20,
	}, l, game.WithClock(clock))
	require.NoError(t, err)
	_, err = g.RequestEntry(alice, 5_000)
	require.NoError(t, err)

	require.NoError(t, s.SaveGame(g))
	require.NoError(t, s.SaveLedger(l))

	restoredLedger := ledger.NewMemory()
	require.NoError(t, s.LoadLedger(restoredLedger))
	assert.Equal(t, l.Snapshot(), restoredLedger.Snapshot())

	restored, err := s.LoadGame(g.ID(), restoredLedger, game.WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, g.Snapshot(), restored.Snapshot())
	assert.Equal(t, restored.Pot(), restoredLedger.Balance(restored.Escrow()))
}

func TestLoadLedgerMissingFile(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	l := ledger.NewMemory()
	require.NoError(t, l.Airdrop(potato.AccountFromName("x"), 1))
	require.NoError(t, s.LoadLedger(l))
	assert.Equal(t, uint64(1), l.Total())
}
