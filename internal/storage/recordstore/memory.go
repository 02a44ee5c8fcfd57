package recordstore

import (
	"math"
	"sync"
)

type memoryRecord struct {
	data    []byte
	deposit uint64
}

// Memory is an in-process Store used by tests and standalone runs.
type Memory struct {
	mu       sync.RWMutex
	records  map[Address]*memoryRecord
	balances map[Address]uint64
	deposits DepositSchedule
	closed   bool
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory{
		records:  make(map[Address]*memoryRecord),
		balances: make(map[Address]uint64),
		deposits: o.deposits,
	}
}

// Allocate implements Store.
func (m *Memory) Allocate(addr Address, size int, payer Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.records[addr]; ok {
		return ErrExists
	}
	deposit := m.deposits.For(size)
	if m.balances[payer] < deposit {
		return ErrInsufficientDeposit
	}
	m.balances[payer] -= deposit
	m.records[addr] = &memoryRecord{
		data:    make([]byte, size),
		deposit: deposit,
	}
	return nil
}

// Read implements Store.
func (m *Memory) Read(addr Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	rec, ok := m.records[addr]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(rec.data))
	copy(out, rec.data)
	return out, nil
}

// Write implements Store.
func (m *Memory) Write(addr Address, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	rec, ok := m.records[addr]
	if !ok {
		return ErrNotFound
	}
	if len(data) != len(rec.data) {
		return ErrSizeMismatch
	}
	copy(rec.data, data)
	return nil
}

// Deallocate implements Store.
func (m *Memory) Deallocate(addr Address, depositTo Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	rec, ok := m.records[addr]
	if !ok {
		return ErrNotFound
	}
	if m.balances[depositTo] > math.MaxUint64-rec.deposit {
		return ErrInsufficientDeposit
	}
	for i := range rec.data {
		rec.data[i] = 0
	}
	m.balances[depositTo] += rec.deposit
	delete(m.records, addr)
	return nil
}

// Exists implements Store.
func (m *Memory) Exists(addr Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.records[addr]
	return ok, nil
}

// Credit implements Store.
func (m *Memory) Credit(addr Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.balances[addr] > math.MaxUint64-amount {
		return ErrInsufficientDeposit
	}
	m.balances[addr] += amount
	return nil
}

// Balance implements Store.
func (m *Memory) Balance(addr Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return m.balances[addr], nil
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	m.balances = nil
	return nil
}
