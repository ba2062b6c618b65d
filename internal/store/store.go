// Package store persists game snapshots and ledger balances to a directory.
//
// Each game lives in <dir>/<id>.hpot as a four byte magic, the game's binary
// snapshot and a BLAKE3-256 checksum of everything before it. Ledger
// balances live in <dir>/ledger.json. Every write goes through
// fileutil.WriteFileAtomic.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"lukechampine.com/blake3"

	"github.com/lox/hotpotato/internal/fileutil"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/gameid"
	"github.com/lox/hotpotato/internal/ledger"
)

const (
	magic        = "HPOT"
	checksumSize = 32
	extension    = ".hpot"
	ledgerFile   = "ledger.json"
)

var (
	// ErrNotFound is returned when no snapshot exists for a game
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt is returned when a snapshot fails its checksum
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Store is a directory of snapshots
type Store struct {
	dir    string
	logger *log.Logger
}

// Open creates dir if needed and returns a store rooted there
func Open(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Store{dir: dir, logger: logger.WithPrefix("store")}, nil
}

// Dir returns the root directory
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+extension)
}

// Save writes data as the snapshot for id
func (s *Store) Save(id string, data []byte) error {
	if err := gameid.Validate(id); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	buf := make([]byte, 0, len(magic)+len(data)+checksumSize)
	buf = append(buf, magic...)
	buf = append(buf, data...)
	sum := blake3.Sum256(buf)
	buf = append(buf, sum[:]...)

	if err := fileutil.WriteFileAtomic(s.path(id), buf, 0o644); err != nil {
		return fmt.Errorf("store: save %s: %w", id, err)
	}
	s.logger.Debug("Saved snapshot", "game", id, "bytes", len(buf))
	return nil
}

// Load returns the snapshot data for id
func (s *Store) Load(id string) ([]byte, error) {
	if err := gameid.Validate(id); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	buf, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("store: %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", id, err)
	}

	if len(buf) < len(magic)+checksumSize || string(buf[:len(magic)]) != magic {
		return nil, fmt.Errorf("store: %s: %w: bad header", id, ErrCorrupt)
	}
	body, trailer := buf[:len(buf)-checksumSize], buf[len(buf)-checksumSize:]
	sum := blake3.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("store: %s: %w: checksum mismatch", id, ErrCorrupt)
	}
	return body[len(magic):], nil
}

// Delete removes the snapshot for id, if any
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// List returns the ids of every stored game in ascending (creation) order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, extension) {
			continue
		}
		id := strings.TrimSuffix(name, extension)
		if gameid.Validate(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveGame snapshots g
func (s *Store) SaveGame(g *game.Game) error {
	data, err := g.MarshalBinary()
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", g.ID(), err)
	}
	return s.Save(g.ID(), data)
}

// LoadGame restores the game saved under id
func (s *Store) LoadGame(id string, l game.Ledger, opts ...game.Option) (*game.Game, error) {
	data, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	g, err := game.Restore(data, l, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: restore %s: %w", id, err)
	}
	return g, nil
}

// SaveLedger writes every balance in m
func (s *Store) SaveLedger(m *ledger.Memory) error {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode ledger: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(s.dir, ledgerFile), data, 0o644); err != nil {
		return fmt.Errorf("store: save ledger: %w", err)
	}
	return nil
}

// LoadLedger replaces the balances in m with the saved ones. A missing file
// leaves m untouched.
func (s *Store) LoadLedger(m *ledger.Memory) error {
	data, err := os.ReadFile(filepath.Join(s.dir, ledgerFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: load ledger: %w", err)
	}
	var entries []ledger.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("store: decode ledger: %w", err)
	}
	return m.Restore(entries)
}
