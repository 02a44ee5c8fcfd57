// Package assetbook provides the typed-asset transfer capability the engine
// settles against. Accounts hold a balance of exactly one asset type and are
// moved only by their authority; escrow holdings are owned by their offer's
// derived address, so the engine can spend them only on behalf of a record
// it has validated.
package assetbook

import (
	"math"
	"sync"

	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
)

// Account is a typed asset balance.
type Account struct {
	// Asset identifies the asset type bound to the account.
	Asset keylet.Address

	// Authority is the identity allowed to move funds out.
	Authority keylet.Address

	Balance uint64
	Frozen  bool
}

// Book moves quantities of typed assets between accounts.
type Book interface {
	// Create allocates an empty account bound to an asset type.
	Create(addr, asset, authority keylet.Address) error

	// Get returns a snapshot of an account.
	Get(addr keylet.Address) (Account, error)

	// Transfer moves amount from one account to another. It fails if either
	// account is missing or frozen, the asset types differ, the balance is
	// insufficient, or the authority is not the source's.
	Transfer(from, to keylet.Address, amount uint64, authority keylet.Address) error

	// CloseAccount removes a drained account. The balance must be zero.
	CloseAccount(addr, authority keylet.Address) error
}

// Memory is an in-process Book.
type Memory struct {
	mu       sync.Mutex
	accounts map[keylet.Address]*Account
}

// NewMemory returns an empty in-memory book.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[keylet.Address]*Account)}
}

// Create implements Book.
func (m *Memory) Create(addr, asset, authority keylet.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[addr]; ok {
		return dexerr.ErrInternal
	}
	m.accounts[addr] = &Account{Asset: asset, Authority: authority}
	return nil
}

// Get implements Book.
func (m *Memory) Get(addr keylet.Address) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return Account{}, dexerr.ErrNotFound
	}
	return *acc, nil
}

// Transfer implements Book.
func (m *Memory) Transfer(from, to keylet.Address, amount uint64, authority keylet.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.accounts[from]
	if !ok {
		return dexerr.ErrNotFound
	}
	dst, ok := m.accounts[to]
	if !ok {
		return dexerr.ErrNotFound
	}
	if src.Authority != authority {
		return dexerr.ErrUnauthorized
	}
	if src.Frozen || dst.Frozen {
		return dexerr.ErrAssetFrozen
	}
	if src.Asset != dst.Asset {
		return dexerr.ErrAssetMismatch
	}
	if src.Balance < amount {
		return dexerr.ErrInsufficientBalance
	}
	if dst.Balance > math.MaxUint64-amount {
		return dexerr.ErrOverflow
	}
	if amount == 0 {
		return nil
	}
	src.Balance -= amount
	dst.Balance += amount
	return nil
}

// CloseAccount implements Book.
func (m *Memory) CloseAccount(addr, authority keylet.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return dexerr.ErrNotFound
	}
	if acc.Authority != authority {
		return dexerr.ErrUnauthorized
	}
	if acc.Balance != 0 {
		return dexerr.ErrInternal
	}
	delete(m.accounts, addr)
	return nil
}

// Mint credits freshly issued units to an account. Test and genesis helper;
// not part of the Book surface the engine sees.
func (m *Memory) Mint(addr keylet.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return dexerr.ErrNotFound
	}
	if acc.Balance > math.MaxUint64-amount {
		return dexerr.ErrOverflow
	}
	acc.Balance += amount
	return nil
}

// SetFrozen flips an account's frozen flag.
func (m *Memory) SetFrozen(addr keylet.Address, frozen bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[addr]
	if !ok {
		return dexerr.ErrNotFound
	}
	acc.Frozen = frozen
	return nil
}
