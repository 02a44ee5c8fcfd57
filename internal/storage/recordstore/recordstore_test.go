package recordstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testAddr(b byte) Address {
	var a Address
	for i := range a {
		a[i] = b
	}
	return a
}

// openStores returns each backend under test, pebble against a temp dir.
func openStores(t *testing.T, opts ...Option) map[string]Store {
	t.Helper()
	pebbleStore, err := NewPebble(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { pebbleStore.Close() })
	memStore := NewMemory(opts...)
	t.Cleanup(func() { memStore.Close() })
	return map[string]Store{
		"memory": memStore,
		"pebble": pebbleStore,
	}
}

func TestAllocateReadWrite(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			payer := testAddr(1)
			rec := testAddr(2)
			require.NoError(t, store.Credit(payer, 1_000_000))

			require.NoError(t, store.Allocate(rec, 219, payer))

			// Freshly allocated records are zeroed.
			data, err := store.Read(rec)
			require.NoError(t, err)
			require.Equal(t, make([]byte, 219), data)

			payload := make([]byte, 219)
			for i := range payload {
				payload[i] = byte(i)
			}
			require.NoError(t, store.Write(rec, payload))

			got, err := store.Read(rec)
			require.NoError(t, err)
			require.Equal(t, payload, got)

			exists, err := store.Exists(rec)
			require.NoError(t, err)
			require.True(t, exists)
		})
	}
}

func TestAllocateChargesDeposit(t *testing.T) {
	schedule := DepositSchedule{Base: 100, PerByte: 2}
	for name, store := range openStores(t, WithDepositSchedule(schedule)) {
		t.Run(name, func(t *testing.T) {
			payer := testAddr(1)
			refundTo := testAddr(3)
			require.NoError(t, store.Credit(payer, 600))

			// 100 + 2*219 = 538
			require.NoError(t, store.Allocate(testAddr(2), 219, payer))
			balance, err := store.Balance(payer)
			require.NoError(t, err)
			require.Equal(t, uint64(600-538), balance)

			// The full deposit comes back on deallocation.
			require.NoError(t, store.Deallocate(testAddr(2), refundTo))
			refunded, err := store.Balance(refundTo)
			require.NoError(t, err)
			require.Equal(t, uint64(538), refunded)
		})
	}
}

func TestAllocateFailures(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			payer := testAddr(1)

			// Broke payer.
			require.ErrorIs(t, store.Allocate(testAddr(2), 219, payer), ErrInsufficientDeposit)

			require.NoError(t, store.Credit(payer, 1_000_000))
			require.NoError(t, store.Allocate(testAddr(2), 219, payer))
			require.ErrorIs(t, store.Allocate(testAddr(2), 219, payer), ErrExists)
		})
	}
}

func TestDeallocateRemovesRecord(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			payer := testAddr(1)
			rec := testAddr(2)
			require.NoError(t, store.Credit(payer, 1_000_000))
			require.NoError(t, store.Allocate(rec, 64, payer))
			require.NoError(t, store.Deallocate(rec, payer))

			_, err := store.Read(rec)
			require.ErrorIs(t, err, ErrNotFound)
			exists, err := store.Exists(rec)
			require.NoError(t, err)
			require.False(t, exists)

			require.ErrorIs(t, store.Deallocate(rec, payer), ErrNotFound)
		})
	}
}

func TestWriteSizeMismatch(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			payer := testAddr(1)
			require.NoError(t, store.Credit(payer, 1_000_000))
			require.NoError(t, store.Allocate(testAddr(2), 32, payer))
			require.ErrorIs(t, store.Write(testAddr(2), make([]byte, 31)), ErrSizeMismatch)
			require.ErrorIs(t, store.Write(testAddr(9), make([]byte, 32)), ErrNotFound)
		})
	}
}

func TestPebbleRecordSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	payer := testAddr(1)
	rec := testAddr(2)
	payload := make([]byte, 219)
	for i := range payload {
		payload[i] = byte(255 - i)
	}

	store, err := NewPebble(dir)
	require.NoError(t, err)
	require.NoError(t, store.Credit(payer, 1_000_000))
	require.NoError(t, store.Allocate(rec, len(payload), payer))
	require.NoError(t, store.Write(rec, payload))
	require.NoError(t, store.Close())

	reopened, err := NewPebble(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Read(rec)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	balance, err := reopened.Balance(payer)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000)-DefaultDepositSchedule().For(len(payload)), balance)
}

func TestCompressionRoundTrip(t *testing.T) {
	store, err := NewPebble(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	payer := testAddr(1)
	require.NoError(t, store.Credit(payer, 10_000_000))

	// Large repetitive record compresses; it must still read back exactly.
	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte(i % 7)
	}
	rec := testAddr(5)
	require.NoError(t, store.Allocate(rec, len(big), payer))
	require.NoError(t, store.Write(rec, big))

	// Force the read through the decode path rather than the cache.
	store.cache.Purge()
	got, err := store.Read(rec)
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New("memory", "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = New("pebble", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = New("bolt", "")
	require.Error(t, err)
}
