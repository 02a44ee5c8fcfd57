// Package recordstore persists fixed-size engine records keyed by their
// 256-bit derived address, together with the native deposit ledger that
// funds record storage. Allocating a record charges its payer a deposit
// sized to the byte layout; deallocating zeroes the bytes and refunds the
// deposit to a target.
//
// Two backends are provided: an in-memory store for tests and a pebble
// store with lz4 block compression and an LRU read cache.
package recordstore

import (
	"errors"
	"fmt"

	"github.com/LeJamon/simpledexd/internal/core/keylet"
)

var (
	// ErrNotFound indicates the address holds no record.
	ErrNotFound = errors.New("record not found")

	// ErrExists indicates an allocation at an occupied address.
	ErrExists = errors.New("record already allocated")

	// ErrSizeMismatch indicates a write that does not span the allocated size.
	ErrSizeMismatch = errors.New("write does not match allocated size")

	// ErrInsufficientDeposit indicates the payer cannot fund the storage deposit.
	ErrInsufficientDeposit = errors.New("insufficient balance for storage deposit")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrDataCorrupt indicates stored bytes failed decoding.
	ErrDataCorrupt = errors.New("data corruption detected")
)

// Address is the 32-byte derived record key.
type Address = keylet.Address

// DepositSchedule prices record storage.
type DepositSchedule struct {
	// Base is charged per record regardless of size.
	Base uint64

	// PerByte is charged per byte of record layout.
	PerByte uint64
}

// DefaultDepositSchedule mirrors the deployed pricing.
func DefaultDepositSchedule() DepositSchedule {
	return DepositSchedule{Base: 128, PerByte: 8}
}

// For returns the deposit required for a record of the given byte size.
func (s DepositSchedule) For(size int) uint64 {
	return s.Base + s.PerByte*uint64(size)
}

// Store is fixed-size record storage plus the native deposit ledger.
type Store interface {
	// Allocate reserves size bytes at addr, charging the payer the deposit.
	Allocate(addr Address, size int, payer Address) error

	// Read returns the record bytes at addr.
	Read(addr Address) ([]byte, error)

	// Write replaces the record bytes at addr. The length must equal the
	// allocated size.
	Write(addr Address, data []byte) error

	// Deallocate zeroes and removes the record at addr and transfers its
	// storage deposit to depositTo.
	Deallocate(addr Address, depositTo Address) error

	// Exists reports whether addr holds a record.
	Exists(addr Address) (bool, error)

	// Credit adds native deposit-currency units to an address.
	Credit(addr Address, amount uint64) error

	// Balance returns an address's native deposit-currency balance.
	Balance(addr Address) (uint64, error)

	// Close releases backend resources.
	Close() error
}

// Option configures a store at construction.
type Option func(*options)

type options struct {
	deposits  DepositSchedule
	cacheSize int
}

func defaultOptions() options {
	return options{
		deposits:  DefaultDepositSchedule(),
		cacheSize: 4096,
	}
}

// WithDepositSchedule overrides the storage deposit pricing.
func WithDepositSchedule(s DepositSchedule) Option {
	return func(o *options) { o.deposits = s }
}

// WithCacheSize sets the read-cache capacity in records (pebble backend).
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// New opens a store backend by name: "memory" or "pebble". The pebble
// backend stores its files under path.
func New(backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case "memory":
		return NewMemory(opts...), nil
	case "pebble":
		return NewPebble(path, opts...)
	default:
		return nil, fmt.Errorf("unknown recordstore backend: %s", backend)
	}
}
