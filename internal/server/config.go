package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/potato"
)

// Auth modes
const (
	AuthModeNoop = "noop"
	AuthModeJWT  = "jwt"
	AuthModeHTTP = "http"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Games  []GameConfig   `hcl:"game,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address      string `hcl:"address,optional"`
	Port         int    `hcl:"port,optional"`
	LogLevel     string `hcl:"log_level,optional"`
	LogFile      string `hcl:"log_file,optional"`
	DataDir      string `hcl:"data_dir,optional"`
	Journal      string `hcl:"journal,optional"`
	AuthMode     string `hcl:"auth_mode,optional"`
	JWTSecret    string `hcl:"jwt_secret,optional"`
	AuthURL      string `hcl:"auth_url,optional"`
	AuthSecret   string `hcl:"auth_secret,optional"`
	FaucetAmount uint64 `hcl:"faucet_amount,optional"`
}

// GameConfig is a named set of game parameters. Clients may create games
// from it by name; with start set, the server also creates one at startup
// when it has no games yet.
type GameConfig struct {
	Name               string `hcl:"name,label"`
	GameMaster         string `hcl:"game_master,optional"`
	StagingPeriod      string `hcl:"staging_period,optional"`
	TurnPeriod         string `hcl:"turn_period,optional"`
	MinimumTicketEntry uint64 `hcl:"minimum_ticket_entry,optional"`
	FeePermille        int    `hcl:"fee_permille,optional"`
	Start              bool   `hcl:"start,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
			AuthMode: AuthModeNoop,
		},
		Games: []GameConfig{
			{
				Name:               "default",
				StagingPeriod:      "5m",
				TurnPeriod:         "1m",
				MinimumTicketEntry: 1000,
				FeePermille:        25,
			},
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.AuthMode == "" {
		c.Server.AuthMode = AuthModeNoop
	}
	for i := range c.Games {
		if c.Games[i].StagingPeriod == "" {
			c.Games[i].StagingPeriod = "5m"
		}
		if c.Games[i].TurnPeriod == "" {
			c.Games[i].TurnPeriod = "1m"
		}
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Server.AuthMode {
	case AuthModeNoop:
	case AuthModeJWT:
		if c.Server.JWTSecret == "" {
			return fmt.Errorf("auth mode jwt requires jwt_secret")
		}
	case AuthModeHTTP:
		if c.Server.AuthURL == "" {
			return fmt.Errorf("auth mode http requires auth_url")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s", c.Server.AuthMode)
	}

	seen := make(map[string]bool)
	for _, g := range c.Games {
		if seen[g.Name] {
			return fmt.Errorf("game %s: defined more than once", g.Name)
		}
		seen[g.Name] = true

		if _, err := g.Params(); err != nil {
			return fmt.Errorf("game %s: %w", g.Name, err)
		}
		if g.Start && g.GameMaster == "" {
			return fmt.Errorf("game %s: start requires game_master", g.Name)
		}
	}

	return nil
}

// Address returns the full server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Preset returns the game block with the given name
func (c *ServerConfig) Preset(name string) *GameConfig {
	for i := range c.Games {
		if c.Games[i].Name == name {
			return &c.Games[i]
		}
	}
	return nil
}

// Params converts the block into validated game parameters
func (g GameConfig) Params() (game.Params, error) {
	staging, err := time.ParseDuration(g.StagingPeriod)
	if err != nil {
		return game.Params{}, fmt.Errorf("%w: staging_period: %v", game.ErrInvalidParams, err)
	}
	turn, err := time.ParseDuration(g.TurnPeriod)
	if err != nil {
		return game.Params{}, fmt.Errorf("%w: turn_period: %v", game.ErrInvalidParams, err)
	}
	if g.FeePermille < 0 || g.FeePermille > potato.PermilleBase {
		return game.Params{}, fmt.Errorf("%w: %d permille", game.ErrImpossibleFee, g.FeePermille)
	}
	p := game.Params{
		StagingPeriod:      staging,
		TurnPeriod:         turn,
		MinimumTicketEntry: g.MinimumTicketEntry,
		FeePermille:        uint16(g.FeePermille),
	}
	return p, p.Validate()
}
