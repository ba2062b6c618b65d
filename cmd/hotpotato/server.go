package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/hotpotato/internal/auth"
	"github.com/lox/hotpotato/internal/events"
	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/ledger"
	"github.com/lox/hotpotato/internal/server"
	"github.com/lox/hotpotato/internal/store"
)

// ServerCmd runs the WebSocket game server
type ServerCmd struct {
	Config    string `short:"c" default:"hotpotato.hcl" env:"HOTPOTATO_CONFIG" help:"Path to HCL configuration file"`
	Addr      string `short:"a" env:"HOTPOTATO_ADDR" help:"Address to bind as host:port (overrides config)"`
	LogLevel  string `short:"l" env:"HOTPOTATO_LOG_LEVEL" help:"Log level (overrides config)"`
	DataDir   string `env:"HOTPOTATO_DATA_DIR" help:"Directory for game snapshots (overrides config)"`
	JWTSecret string `env:"HOTPOTATO_JWT_SECRET" help:"Secret for jwt auth mode (overrides config)"`
}

func (c *ServerCmd) load() (*server.ServerConfig, error) {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return nil, err
	}

	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", c.Addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", port, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = p
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.DataDir != "" {
		cfg.Server.DataDir = c.DataDir
	}
	if c.JWTSecret != "" {
		cfg.Server.JWTSecret = c.JWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newValidator(s server.ServerSettings) (auth.Validator, error) {
	switch s.AuthMode {
	case server.AuthModeJWT:
		v, err := auth.NewJWTValidator(s.JWTSecret)
		if err != nil {
			return nil, err
		}
		return v, nil
	case server.AuthModeHTTP:
		return auth.NewHTTPValidator(s.AuthURL, s.AuthSecret), nil
	default:
		return auth.NewNoopValidator(), nil
	}
}

func presets(cfg *server.ServerConfig) map[string]game.Params {
	out := make(map[string]game.Params, len(cfg.Games))
	for _, g := range cfg.Games {
		// Validate has already checked every block
		p, _ := g.Params()
		out[g.Name] = p
	}
	return out
}

func (c *ServerCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	validator, err := newValidator(cfg.Server)
	if err != nil {
		return err
	}

	opts := []server.ServiceOption{
		server.WithFaucet(cfg.Server.FaucetAmount),
		server.WithPresets(presets(cfg)),
	}
	if cfg.Server.DataDir != "" {
		st, err := store.Open(cfg.Server.DataDir, logger)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithStore(st))
	}

	svc := server.NewGameService(ledger.NewMemory(), logger, opts...)
	svc.Bus().Subscribe(events.NewLogSink(logger))
	if cfg.Server.Journal != "" {
		journal, err := events.OpenJournal(cfg.Server.Journal, logger)
		if err != nil {
			return err
		}
		defer func() { _ = journal.Close() }()
		svc.Bus().Subscribe(journal)
	}

	loaded, err := svc.LoadAll()
	if err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	if loaded == 0 {
		startGames(cfg, svc, logger)
	}

	logger.Info("Starting hotpotato server",
		"addr", cfg.Address(),
		"auth", cfg.Server.AuthMode,
		"presets", len(cfg.Games),
		"games", len(svc.ListGames()),
		"faucet", cfg.Server.FaucetAmount)

	srv := server.NewServer(cfg.Address(), logger, svc, validator)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// startGames creates one game per preset marked start
func startGames(cfg *server.ServerConfig, svc *server.GameService, logger *log.Logger) {
	for _, g := range cfg.Games {
		if !g.Start {
			continue
		}
		master := resolveAccount(g.GameMaster)
		info, err := svc.CreateFromPreset(master, g.Name)
		if err != nil {
			logger.Error("Failed to start game", "preset", g.Name, "error", err)
			continue
		}
		logger.Info("Started game", "preset", g.Name, "id", info.ID, "master", master.Short())
	}
}
