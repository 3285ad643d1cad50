// Package custody models the vault's physical possession of assets,
// independent of ledger attribution. Custody can hold assets with no
// corresponding ledger balance (conversion dust, a converted amount whose
// credit was rejected by the cap) — the sweep path exists to recover
// those.
package custody

import (
	"context"
	"fmt"
	"sync"
)

// Holdings is the transport boundary for moving value in and out of the
// vault. Amounts are always in the asset's native base.
type Holdings interface {
	// BalanceOf reports how much of an asset the vault physically holds.
	BalanceOf(ctx context.Context, assetSymbol string) (int64, error)

	// Pull moves amount of an asset from the owner's address into the
	// vault. The transfer result must be validated, not merely attempted.
	Pull(ctx context.Context, assetSymbol, owner string, amount int64) error

	// Release moves amount of an asset from the vault to a recipient.
	Release(ctx context.Context, assetSymbol, recipient string, amount int64) error
}

// Memory is an in-process Holdings used by tests and single-node
// deployments. It tracks vault balances per asset and per external
// address, so failed transfers behave like the real boundary (a pull from
// an underfunded owner fails, a release larger than custody fails).
type Memory struct {
	mu       sync.Mutex
	vault    map[string]int64            // asset -> vault holdings
	external map[string]map[string]int64 // asset -> address -> holdings
}

func NewMemory() *Memory {
	return &Memory{
		vault:    make(map[string]int64),
		external: make(map[string]map[string]int64),
	}
}

func (m *Memory) BalanceOf(_ context.Context, assetSymbol string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vault[assetSymbol], nil
}

func (m *Memory) Pull(_ context.Context, assetSymbol, owner string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("pull amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.external[assetSymbol][owner]
	if held < amount {
		return fmt.Errorf("transfer from %s failed: holds %d %s, need %d", owner, held, assetSymbol, amount)
	}
	m.external[assetSymbol][owner] = held - amount
	m.vault[assetSymbol] += amount
	return nil
}

func (m *Memory) Release(_ context.Context, assetSymbol, recipient string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("release amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.vault[assetSymbol]
	if held < amount {
		return fmt.Errorf("custody holds %d %s, cannot release %d", held, assetSymbol, amount)
	}
	m.vault[assetSymbol] = held - amount
	m.creditExternal(assetSymbol, recipient, amount)
	return nil
}

// CreditVault adds value directly to the vault's holdings. The exchange
// settles swap output this way, and tests use it to seed custody.
func (m *Memory) CreditVault(assetSymbol string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vault[assetSymbol] += amount
}

// DebitVault removes value from the vault's holdings, failing if custody
// does not cover it. The exchange consumes swap input this way.
func (m *Memory) DebitVault(assetSymbol string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held := m.vault[assetSymbol]; held < amount {
		return fmt.Errorf("custody holds %d %s, cannot debit %d", held, assetSymbol, amount)
	}
	m.vault[assetSymbol] -= amount
	return nil
}

// CreditExternal funds an external address, for test setup.
func (m *Memory) CreditExternal(assetSymbol, addr string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditExternal(assetSymbol, addr, amount)
}

// ExternalBalance reads an external address's holdings, for assertions.
func (m *Memory) ExternalBalance(assetSymbol, addr string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.external[assetSymbol][addr]
}

func (m *Memory) creditExternal(assetSymbol, addr string, amount int64) {
	if m.external[assetSymbol] == nil {
		m.external[assetSymbol] = make(map[string]int64)
	}
	m.external[assetSymbol][addr] += amount
}
