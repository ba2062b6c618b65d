package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/hotpotato/internal/client"
)

// ClientFlags are shared by every command that talks to a server
type ClientFlags struct {
	ClientConfig string `name:"client-config" default:"hotpotato-client.hcl" env:"HOTPOTATO_CLIENT_CONFIG" help:"Path to client HCL configuration"`
	ServerURL    string `name:"server" short:"s" env:"HOTPOTATO_SERVER" help:"Server URL (overrides config)"`
	Player       string `short:"p" env:"HOTPOTATO_PLAYER" help:"Player name (overrides config)"`
	Token        string `env:"HOTPOTATO_TOKEN" help:"Auth token (overrides config)"`
	LogLevel     string `short:"l" env:"HOTPOTATO_LOG_LEVEL" help:"Log level (overrides config)"`
	LogFile      string `env:"HOTPOTATO_LOG_FILE" help:"Log file (overrides config)"`
}

func (f *ClientFlags) load() (*client.ClientConfig, error) {
	cfg, err := client.LoadClientConfig(f.ClientConfig)
	if err != nil {
		return nil, err
	}
	if f.ServerURL != "" {
		cfg.Server.URL = f.ServerURL
	}
	if f.Player != "" {
		cfg.Player.Name = f.Player
	}
	if f.Token != "" {
		cfg.Player.Token = f.Token
	}
	if f.LogLevel != "" {
		cfg.UI.LogLevel = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.UI.LogFile = f.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.AuthToken() == "" {
		return nil, errors.New("a player name or token is required (--player or --token)")
	}
	return cfg, nil
}

// session is an authenticated connection plus the config it came from
type session struct {
	cfg      *client.ClientConfig
	logger   *log.Logger
	client   *client.Client
	closeLog func()
}

func (f *ClientFlags) open(ctx context.Context) (*session, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := setupLogger(cfg.UI.LogLevel, cfg.UI.LogFile)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, closeLog: closeLog}
	if err := s.connect(ctx); err != nil {
		closeLog()
		return nil, err
	}
	return s, nil
}

func (s *session) connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout())
	defer cancel()

	c := client.NewClient(s.cfg.Server.URL, s.logger)
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Server.URL, err)
	}
	if _, err := c.Auth(ctx, s.cfg.AuthToken()); err != nil {
		_ = c.Disconnect()
		return fmt.Errorf("authenticate: %w", err)
	}
	s.client = c
	return nil
}

// request bounds one round trip by the configured request timeout
func (s *session) request(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.RequestTimeout())
}

func (s *session) Close() {
	if s.client != nil {
		_ = s.client.Disconnect()
	}
	s.closeLog()
}
