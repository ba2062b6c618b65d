package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Server   ServerCmd        `cmd:"" help:"Run the game server"`
	Keeper   KeeperCmd        `cmd:"" help:"Crank and disburse the games you master"`
	Enter    EnterCmd         `cmd:"" help:"Buy into a game"`
	Crank    CrankCmd         `cmd:"" help:"Advance a game to its next turn"`
	Disburse DisburseCmd      `cmd:"" help:"Pay every holder with a payment due"`
	Withdraw WithdrawCmd      `cmd:"" help:"Withdraw what is left in a closed game"`
	Status   StatusCmd        `cmd:"" help:"Show one game, or list every game"`
	Watch    WatchCmd         `cmd:"" help:"Watch a game live"`
	Airdrop  AirdropCmd       `cmd:"" help:"Request test funds from the server faucet"`
	Simulate SimulateCmd      `cmd:"" help:"Play simulated games in-process"`
	Token    TokenCmd         `cmd:"" help:"Issue a signed auth token"`
	Account  AccountCmd       `cmd:"" help:"Show the account derived from a name"`
}

func main() {
	// A missing .env is fine; flags and the environment still apply
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("hotpotato"),
		kong.Description("Hot potato escrow game server and tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
