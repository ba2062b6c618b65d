// Package ledger keeps the balances games settle against. The escrow for
// each game is an ordinary account here; the game engine only ever moves
// funds through Transfer, Credit and Debit.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lox/hotpotato/internal/potato"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrOverflow is returned when a credit would overflow a balance
	ErrOverflow = errors.New("balance overflow")
)

// Memory is an in-process ledger. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	balances map[potato.Account]uint64
	total    uint64
}

// NewMemory returns an empty ledger
func NewMemory() *Memory {
	return &Memory{balances: make(map[potato.Account]uint64)}
}

// Balance returns the funds held by account
func (m *Memory) Balance(account potato.Account) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account]
}

// Total returns the sum of every balance
func (m *Memory) Total() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Airdrop mints amount into account. It is how funds enter the system.
func (m *Memory) Airdrop(account potato.Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > math.MaxUint64-m.total {
		return fmt.Errorf("airdrop %d: %w", amount, ErrOverflow)
	}
	m.balances[account] += amount
	m.total += amount
	return nil
}

// Transfer moves amount between two accounts, or nothing at all
func (m *Memory) Transfer(from, to potato.Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, from.Short(), ErrInsufficientFunds)
	}
	// total is conserved so the receiving balance cannot overflow
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

// Debit removes amount from account. Funds debited must be credited back
// out by the caller; together they behave like a transfer with many payees.
func (m *Memory) Debit(account potato.Account, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[account] < amount {
		return fmt.Errorf("debit %d from %s: %w", amount, account.Short(), ErrInsufficientFunds)
	}
	m.balances[account] -= amount
	m.total -= amount
	return nil
}

// Credit adds amount to account
func (m *Memory) Credit(account potato.Account, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
	m.total += amount
}

// Entry is a single balance in a snapshot
type Entry struct {
	Account potato.Account `json:"account"`
	Balance uint64         `json:"balance"`
}

// Snapshot returns every non-zero balance ordered by account
func (m *Memory) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.balances))
	for a, b := range m.balances {
		if b > 0 {
			out = append(out, Entry{Account: a, Balance: b})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Account.String() < out[j].Account.String()
	})
	return out
}

// Restore replaces the ledger contents with entries
func (m *Memory) Restore(entries []Entry) error {
	balances := make(map[potato.Account]uint64, len(entries))
	var total uint64
	for _, e := range entries {
		if e.Balance > math.MaxUint64-total {
			return fmt.Errorf("restore: %w", ErrOverflow)
		}
		balances[e.Account] += e.Balance
		total += e.Balance
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = balances
	m.total = total
	return nil
}
