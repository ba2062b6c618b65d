package keeper

import (
	"context"

	"github.com/lox/hotpotato/internal/game"
	"github.com/lox/hotpotato/internal/potato"
	"github.com/lox/hotpotato/internal/server"
)

// Local operates games in an in-process GameService as master
type Local struct {
	service *server.GameService
	master  potato.Account
}

// NewLocal returns an Operator acting as master on service
func NewLocal(service *server.GameService, master potato.Account) *Local {
	return &Local{service: service, master: master}
}

func (l *Local) Game(_ context.Context, gameID string) (game.Info, error) {
	return l.service.Game(gameID)
}

func (l *Local) Crank(_ context.Context, gameID string) (game.Info, error) {
	return l.service.Crank(gameID, l.master)
}

func (l *Local) Disburse(_ context.Context, gameID string, offset int, payees []potato.Account) (game.Disbursement, error) {
	return l.service.Disburse(gameID, l.master, offset, payees)
}

func (l *Local) Withdraw(_ context.Context, gameID string) (uint64, error) {
	return l.service.Withdraw(gameID, l.master)
}

// Owned returns the ids of the games mastered by master that still need
// keeping: open, or closed with a pot left to withdraw
func Owned(games []server.GameSummary, master potato.Account) []string {
	var ids []string
	for _, info := range games {
		if info.GameMaster != master {
			continue
		}
		if info.Phase != game.PhaseClosed.String() || info.Pot > 0 {
			ids = append(ids, info.ID)
		}
	}
	return ids
}
