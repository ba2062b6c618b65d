package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const maxJournalFailures = 3

// Envelope is the on-disk and on-wire form of an event
type Envelope struct {
	Type      EventType       `json:"type"`
	Game      string          `json:"game"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Seal wraps an event in an envelope
func Seal(event Event) (Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	return Envelope{
		Type:      event.EventType(),
		Game:      event.GameID(),
		Timestamp: event.Timestamp(),
		Data:      data,
	}, nil
}

// Open decodes the event carried by an envelope
func (env Envelope) Open() (Event, error) {
	var (
		event Event
		err   error
	)
	switch env.Type {
	case EventTypeGameInitialized:
		var e GameInitialized
		err = json.Unmarshal(env.Data, &e)
		e.timestamp = env.Timestamp
		event = e
	case EventTypeGameStateChanged:
		var e GameStateChanged
		err = json.Unmarshal(env.Data, &e)
		e.timestamp = env.Timestamp
		event = e
	case EventTypePotatoReceived:
		var e PotatoReceived
		err = json.Unmarshal(env.Data, &e)
		e.timestamp = env.Timestamp
		event = e
	case EventTypePotatoHolderPaid:
		var e PotatoHolderPaid
		err = json.Unmarshal(env.Data, &e)
		e.timestamp = env.Timestamp
		event = e
	case EventTypeGameMasterPaid:
		var e GameMasterPaid
		err = json.Unmarshal(env.Data, &e)
		e.timestamp = env.Timestamp
		event = e
	case EventTypeFundsWithdrawn:
		var e FundsWithdrawn
		err = json.Unmarshal(env.Data, &e)
		e.timestamp = env.Timestamp
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return event, nil
}

// Journal appends every event it receives to a JSON lines file.
// After repeated write failures it disables itself and logs once.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	logger   *log.Logger
	failures int
	disabled bool
}

// OpenJournal opens (or creates) the journal at path for appending
func OpenJournal(path string, logger *log.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return &Journal{
		file:   file,
		enc:    json.NewEncoder(file),
		logger: logger.WithPrefix("journal"),
	}, nil
}

// OnEvent implements Subscriber
func (j *Journal) OnEvent(event Event) {
	env, err := Seal(event)
	if err != nil {
		j.logger.Error("Failed to seal event", "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.disabled {
		return
	}
	if err := j.enc.Encode(env); err != nil {
		j.failures++
		j.logger.Warn("Failed to append event", "error", err, "failures", j.failures)
		if j.failures >= maxJournalFailures {
			j.disabled = true
			j.logger.Error("Journal disabled after repeated failures", "path", j.file.Name())
		}
		return
	}
	j.failures = 0
}

// Close closes the underlying file
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.disabled = true
	return j.file.Close()
}

// ReadJournal decodes every envelope in r, in order
func ReadJournal(r io.Reader) ([]Envelope, error) {
	var envs []Envelope
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			return envs, fmt.Errorf("line %d: %w", line, err)
		}
		envs = append(envs, env)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return envs, err
	}
	return envs, nil
}
