package recordstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pierrec/lz4"
)

const (
	recordKeyPrefix  = 'r'
	balanceKeyPrefix = 'b'

	// recordHeaderSize is size(4) + deposit(8) + compressed(1).
	recordHeaderSize = 4 + 8 + 1

	// minCompressionSize skips compression for records too small to gain.
	minCompressionSize = 128
)

// Pebble is a persistent Store backed by pebble with lz4 block compression
// and an LRU read cache of decoded records.
type Pebble struct {
	mu       sync.Mutex
	db       *pebble.DB
	cache    *lru.Cache[Address, []byte]
	deposits DepositSchedule
	closed   bool
}

// NewPebble opens (or creates) a pebble-backed store at path.
func NewPebble(path string, opts ...Option) (*Pebble, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store at %s: %w", path, err)
	}
	cache, err := lru.New[Address, []byte](o.cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Pebble{
		db:       db,
		cache:    cache,
		deposits: o.deposits,
	}, nil
}

func recordKey(addr Address) []byte {
	key := make([]byte, 1+len(addr))
	key[0] = recordKeyPrefix
	copy(key[1:], addr[:])
	return key
}

func balanceKey(addr Address) []byte {
	key := make([]byte, 1+len(addr))
	key[0] = balanceKeyPrefix
	copy(key[1:], addr[:])
	return key
}

// encodeRecord lays out the header and (possibly compressed) payload.
func encodeRecord(data []byte, deposit uint64) []byte {
	payload := data
	compressed := byte(0)
	if len(data) >= minCompressionSize {
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		if n, err := lz4.CompressBlock(data, buf, nil); err == nil && n > 0 && n < len(data) {
			payload = buf[:n]
			compressed = 1
		}
	}
	out := make([]byte, recordHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint64(out[4:12], deposit)
	out[12] = compressed
	copy(out[recordHeaderSize:], payload)
	return out
}

// decodeRecord reverses encodeRecord, returning the record bytes and deposit.
func decodeRecord(value []byte) ([]byte, uint64, error) {
	if len(value) < recordHeaderSize {
		return nil, 0, ErrDataCorrupt
	}
	size := binary.LittleEndian.Uint32(value[0:4])
	deposit := binary.LittleEndian.Uint64(value[4:12])
	payload := value[recordHeaderSize:]
	if value[12] == 0 {
		if uint32(len(payload)) != size {
			return nil, 0, ErrDataCorrupt
		}
		out := make([]byte, size)
		copy(out, payload)
		return out, deposit, nil
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil || uint32(n) != size {
		return nil, 0, ErrDataCorrupt
	}
	return out, deposit, nil
}

func (p *Pebble) readBalanceLocked(addr Address) (uint64, error) {
	value, closer, err := p.db.Get(balanceKey(addr))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(value) != 8 {
		return 0, ErrDataCorrupt
	}
	return binary.LittleEndian.Uint64(value), nil
}

func (p *Pebble) writeBalance(batch *pebble.Batch, addr Address, balance uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, balance)
	return batch.Set(balanceKey(addr), buf, nil)
}

// Allocate implements Store.
func (p *Pebble) Allocate(addr Address, size int, payer Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	if _, closer, err := p.db.Get(recordKey(addr)); err == nil {
		closer.Close()
		return ErrExists
	} else if err != pebble.ErrNotFound {
		return err
	}

	deposit := p.deposits.For(size)
	balance, err := p.readBalanceLocked(payer)
	if err != nil {
		return err
	}
	if balance < deposit {
		return ErrInsufficientDeposit
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	if err := p.writeBalance(batch, payer, balance-deposit); err != nil {
		return err
	}
	if err := batch.Set(recordKey(addr), encodeRecord(make([]byte, size), deposit), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	p.cache.Add(addr, make([]byte, size))
	return nil
}

// Read implements Store.
func (p *Pebble) Read(addr Address) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	if data, ok := p.cache.Get(addr); ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	value, closer, err := p.db.Get(recordKey(addr))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	data, _, err := decodeRecord(value)
	if err != nil {
		return nil, err
	}
	p.cache.Add(addr, data)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write implements Store.
func (p *Pebble) Write(addr Address, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	value, closer, err := p.db.Get(recordKey(addr))
	if err == pebble.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	old, deposit, derr := decodeRecord(value)
	closer.Close()
	if derr != nil {
		return derr
	}
	if len(data) != len(old) {
		return ErrSizeMismatch
	}

	if err := p.db.Set(recordKey(addr), encodeRecord(data, deposit), pebble.Sync); err != nil {
		return err
	}
	cached := make([]byte, len(data))
	copy(cached, data)
	p.cache.Add(addr, cached)
	return nil
}

// Deallocate implements Store.
func (p *Pebble) Deallocate(addr Address, depositTo Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	value, closer, err := p.db.Get(recordKey(addr))
	if err == pebble.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, deposit, derr := decodeRecord(value)
	closer.Close()
	if derr != nil {
		return derr
	}

	balance, err := p.readBalanceLocked(depositTo)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-deposit {
		return ErrInsufficientDeposit
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(recordKey(addr), nil); err != nil {
		return err
	}
	if err := p.writeBalance(batch, depositTo, balance+deposit); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	p.cache.Remove(addr)
	return nil
}

// Exists implements Store.
func (p *Pebble) Exists(addr Address) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ErrClosed
	}
	if _, ok := p.cache.Get(addr); ok {
		return true, nil
	}
	_, closer, err := p.db.Get(recordKey(addr))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// Credit implements Store.
func (p *Pebble) Credit(addr Address, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	balance, err := p.readBalanceLocked(addr)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return ErrInsufficientDeposit
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := p.writeBalance(batch, addr, balance+amount); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Balance implements Store.
func (p *Pebble) Balance(addr Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	return p.readBalanceLocked(addr)
}

// Close implements Store.
func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cache.Purge()
	return p.db.Close()
}
