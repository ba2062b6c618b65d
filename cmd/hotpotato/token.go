package main

import (
	"fmt"
	"time"

	"github.com/lox/hotpotato/internal/auth"
)

// TokenCmd issues a JWT for a player, for servers in jwt auth mode
type TokenCmd struct {
	Name   string        `arg:"" help:"Player name to issue the token for"`
	Secret string        `required:"" env:"HOTPOTATO_JWT_SECRET" help:"Shared signing secret"`
	TTL    time.Duration `default:"24h" help:"How long the token is valid"`
}

func (c *TokenCmd) Run() error {
	v, err := auth.NewJWTValidator(c.Secret)
	if err != nil {
		return err
	}
	token, err := v.Issue(c.Name, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
