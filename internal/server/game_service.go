package server

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/gameid"
	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/potato"
	"github.com/lox/hotpotato/internal/store"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrUnknownPreset  = errors.New("unknown game preset")
	ErrFaucetDisabled = errors.New("faucet disabled")
	ErrFaucetLimit    = errors.New("airdrop exceeds faucet amount")
)

var serviceCodes = []struct {
	err  error
	code string
}{
	{ErrGameNotFound, "game_not_found"},
	{ErrUnknownPreset, "unknown_preset"},
	{ErrFaucetDisabled, "faucet_disabled"},
	{ErrFaucetLimit, "faucet_limit"},
}

// ErrorCode returns the wire code for an error from the service or engine
func ErrorCode(err error) string {
	for _, c := range serviceCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return game.Code(err)
}

// ErrorForCode returns the sentinel for a wire code, or nil
func ErrorForCode(code string) error {
	for _, c := range serviceCodes {
		if c.code == code {
			return c.err
		}
	}
	return game.ErrorForCode(code)
}

// Broadcaster delivers a message to every connection watching a game
type Broadcaster interface {
	BroadcastToGame(gameID string, msg *Message)
}

type gameEntry struct {
	mu   sync.Mutex
	game *game.Game
}

// GameService owns every game on the server. Operations on one game are
// serialised by that game's mutex; different games proceed in parallel.
type GameService struct {
	mu    sync.RWMutex
	games map[string]*gameEntry

	ledger  *ledger.Memory
	store   *store.Store
	bus     *events.Bus
	clock   quartz.Clock
	logger  *log.Logger
	faucet  uint64
	presets map[string]game.Params

	persistMu sync.Mutex

	bmu         sync.RWMutex
	broadcaster Broadcaster
}

// ServiceOption configures a GameService
type ServiceOption func(*GameService)

// WithStore persists games and balances after every mutation
func WithStore(st *store.Store) ServiceOption {
	return func(s *GameService) { s.store = st }
}

// WithServiceClock sets the clock handed to every game
func WithServiceClock(clock quartz.Clock) ServiceOption {
	return func(s *GameService) { s.clock = clock }
}

// WithFaucet lets callers airdrop themselves up to amount per request
func WithFaucet(amount uint64) ServiceOption {
	return func(s *GameService) { s.faucet = amount }
}

// WithPresets registers named parameter sets for create_game
func WithPresets(presets map[string]game.Params) ServiceOption {
	return func(s *GameService) { s.presets = presets }
}

// NewGameService creates a game service over l
func NewGameService(l *ledger.Memory, logger *log.Logger, opts ...ServiceOption) *GameService {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &GameService{
		games:  make(map[string]*gameEntry),
		ledger: l,
		clock:  quartz.NewReal(),
		logger: logger.WithPrefix("games"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bus = events.NewBus(s.logger)
	s.bus.Subscribe(events.SubscriberFunc(s.forward))
	return s
}

// Bus returns the bus every game publishes to
func (s *GameService) Bus() *events.Bus { return s.bus }

// Ledger returns the balances backing every game
func (s *GameService) Ledger() *ledger.Memory { return s.ledger }

// SetBroadcaster sets where engine events are forwarded
func (s *GameService) SetBroadcaster(b Broadcaster) {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	s.broadcaster = b
}

func (s *GameService) forward(event events.Event) {
	s.bmu.RLock()
	b := s.broadcaster
	s.bmu.RUnlock()
	if b == nil {
		return
	}

	env, err := events.Seal(event)
	if err != nil {
		s.logger.Error("Failed to seal event", "type", event.EventType(), "error", err)
		return
	}
	msg, err := NewMessage(MessageTypeGameEvent, env)
	if err != nil {
		s.logger.Error("Failed to create event message", "type", event.EventType(), "error", err)
		return
	}
	b.BroadcastToGame(event.GameID(), msg)
}

func (s *GameService) gameOptions() []game.Option {
	return []game.Option{
		game.WithClock(s.clock),
		game.WithEvents(s.bus),
		game.WithLogger(s.logger),
	}
}

// LoadAll restores balances and every stored game. Snapshots that fail to
// load are logged and skipped.
func (s *GameService) LoadAll() (int, error) {
	if s.store == nil {
		return 0, nil
	}
	if err := s.store.LoadLedger(s.ledger); err != nil {
		return 0, err
	}
	ids, err := s.store.List()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, id := range ids {
		g, err := s.store.LoadGame(id, s.ledger, s.gameOptions()...)
		if err != nil {
			s.logger.Error("Skipping unreadable game", "game", id, "error", err)
			continue
		}
		s.games[id] = &gameEntry{game: g}
		loaded++
	}
	s.logger.Info("Loaded games", "count", loaded, "dir", s.store.Dir())
	return loaded, nil
}

// CreateGame creates a pending game mastered by master
func (s *GameService) CreateGame(master potato.Account, params game.Params) (game.Info, error) {
	g, err := game.New(gameid.Generate(), master, params, s.ledger, s.gameOptions()...)
	if err != nil {
		return game.Info{}, err
	}

	s.mu.Lock()
	s.games[g.ID()] = &gameEntry{game: g}
	s.mu.Unlock()

	s.persist(g)
	return g.Snapshot(), nil
}

// CreateFromPreset creates a game from a named parameter set
func (s *GameService) CreateFromPreset(master potato.Account, preset string) (game.Info, error) {
	params, ok := s.presets[preset]
	if !ok {
		return game.Info{}, fmt.Errorf("%w: %s", ErrUnknownPreset, preset)
	}
	return s.CreateGame(master, params)
}

// HasGames reports whether any game is registered
func (s *GameService) HasGames() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games) > 0
}

func (s *GameService) entry(id string) (*gameEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return e, nil
}

// withGame runs fn under the game's lock. Mutating calls are persisted
// afterwards whether or not fn failed.
func (s *GameService) withGame(id string, mutate bool, fn func(g *game.Game) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	err = fn(e.game)
	if mutate {
		s.persist(e.game)
	}
	return err
}

func (s *GameService) persist(g *game.Game) {
	if s.store == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.store.SaveGame(g); err != nil {
		s.logger.Error("Failed to save game", "game", g.ID(), "error", err)
	}
	if err := s.store.SaveLedger(s.ledger); err != nil {
		s.logger.Error("Failed to save ledger", "error", err)
	}
}

// RequestEntry buys caller a place on the board
func (s *GameService) RequestEntry(id string, caller potato.Account, ticket uint64) (rec potato.Record, info game.Info, err error) {
	err = s.withGame(id, true, func(g *game.Game) error {
		rec, err = g.RequestEntry(caller, ticket)
		info = g.Snapshot()
		return err
	})
	return rec, info, err
}

// Crank advances the game's clock-driven state
func (s *GameService) Crank(id string, caller potato.Account) (info game.Info, err error) {
	err = s.withGame(id, true, func(g *game.Game) error {
		err := g.Crank(caller)
		info = g.Snapshot()
		return err
	})
	return info, err
}

// Disburse pays a chunk of holders
func (s *GameService) Disburse(id string, caller potato.Account, offset int, payees []potato.Account) (d game.Disbursement, err error) {
	err = s.withGame(id, true, func(g *game.Game) error {
		d, err = g.Disburse(caller, offset, payees)
		return err
	})
	return d, err
}

// Withdraw returns the pot to the game master
func (s *GameService) Withdraw(id string, caller potato.Account) (amount uint64, err error) {
	err = s.withGame(id, true, func(g *game.Game) error {
		amount, err = g.WithdrawRemainingFunds(caller)
		return err
	})
	return amount, err
}

// Game returns a snapshot of one game
func (s *GameService) Game(id string) (info game.Info, err error) {
	err = s.withGame(id, false, func(g *game.Game) error {
		info = g.Snapshot()
		return nil
	})
	return info, err
}

// ListGames returns a snapshot of every game, oldest first
func (s *GameService) ListGames() []game.Info {
	s.mu.RLock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	infos := make([]game.Info, 0, len(ids))
	for _, id := range ids {
		info, err := s.Game(id)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// Airdrop mints test funds for account. Zero asks for the full faucet amount.
func (s *GameService) Airdrop(account potato.Account, amount uint64) (uint64, error) {
	if s.faucet == 0 {
		return 0, ErrFaucetDisabled
	}
	if amount == 0 {
		amount = s.faucet
	}
	if amount > s.faucet {
		return 0, fmt.Errorf("%w: %d > %d", ErrFaucetLimit, amount, s.faucet)
	}
	if err := s.ledger.Airdrop(account, amount); err != nil {
		return 0, err
	}
	s.logger.Info("Airdrop", "account", account.Short(), "amount", amount)

	if s.store != nil {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if err := s.store.SaveLedger(s.ledger); err != nil {
			s.logger.Error("Failed to save ledger", "error", err)
		}
	}
	return s.ledger.Balance(account), nil
}

// Balance returns the balance of account
func (s *GameService) Balance(account potato.Account) uint64 {
	return s.ledger.Balance(account)
}
