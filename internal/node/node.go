// Package node assembles the running daemon: the record store, the asset
// book, the engine, and the slot clock. It serializes engine invocations the
// way the hosting transaction environment would, so the engine itself never
// sees concurrent access to a record pair.
package node

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeJamon/simpledexd/internal/config"
	"github.com/LeJamon/simpledexd/internal/core/assetbook"
	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/engine"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/core/offer"
	"github.com/LeJamon/simpledexd/internal/storage/recordstore"
)

// Node is the assembled daemon.
type Node struct {
	cfg   *config.Config
	store recordstore.Store
	book  *assetbook.Memory
	eng   *engine.Engine

	// facilitators maps an asset to the account credited with that
	// asset's fees and bonuses.
	facilitators map[keylet.Address]keylet.Address

	// mu serializes all engine invocations.
	mu sync.Mutex

	slot    atomic.Uint64
	started time.Time
	stopc   chan struct{}
	done    sync.WaitGroup
}

// Open builds a node from configuration. The optional publisher receives
// lifecycle events once operations settle.
func Open(cfg *config.Config, events engine.EventPublisher) (*Node, error) {
	store, err := recordstore.New(cfg.Store.Backend, cfg.DatabaseDir(),
		recordstore.WithCacheSize(cfg.Store.CacheSize),
		recordstore.WithDepositSchedule(recordstore.DepositSchedule{
			Base:    cfg.Store.DepositBase,
			PerByte: cfg.Store.DepositPerByte,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	facilitators := make(map[keylet.Address]keylet.Address, len(cfg.Fees.FacilitatorAccounts))
	for assetHex, accountHex := range cfg.Fees.FacilitatorAccounts {
		asset, err := keylet.AddressFromHex(assetHex)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("bad facilitator asset %q: %w", assetHex, err)
		}
		account, err := keylet.AddressFromHex(accountHex)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("bad facilitator account %q: %w", accountHex, err)
		}
		facilitators[asset] = account
	}

	book := assetbook.NewMemory()
	opts := []engine.Option{}
	if events != nil {
		opts = append(opts, engine.WithEvents(events))
	}

	n := &Node{
		cfg:          cfg,
		store:        store,
		book:         book,
		eng:          engine.New(store, book, opts...),
		facilitators: facilitators,
		started:      time.Now(),
		stopc:        make(chan struct{}),
	}
	n.slot.Store(1)
	return n, nil
}

// Start runs the slot clock until Close.
func (n *Node) Start() {
	n.done.Add(1)
	go func() {
		defer n.done.Done()
		ticker := time.NewTicker(n.cfg.Clock.SlotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-n.stopc:
				return
			case <-ticker.C:
				n.slot.Add(1)
			}
		}
	}()
}

// Close stops the clock and releases the store.
func (n *Node) Close() error {
	close(n.stopc)
	n.done.Wait()
	return n.store.Close()
}

// CurrentSlot returns the logical clock value new offers are stamped with.
func (n *Node) CurrentSlot() uint64 {
	return n.slot.Load()
}

// Uptime reports how long the node has been running.
func (n *Node) Uptime() time.Duration {
	return time.Since(n.started)
}

// Backend names the record store backend in use.
func (n *Node) Backend() string {
	return n.cfg.Store.Backend
}

// FaucetEnabled reports whether the dev account methods are exposed.
func (n *Node) FaucetEnabled() bool {
	return n.cfg.Server.EnableFaucet
}

// CreateParams is the node-level create surface: the caller names terms and
// destinations, the node derives the record and escrow addresses and stamps
// the current slot.
type CreateParams struct {
	Owner         keylet.Address
	PayFrom       keylet.Address
	RefundTo      keylet.Address
	CreditTo      keylet.Address
	RefundRentTo  keylet.Address
	OfferAsset    keylet.Address
	AcceptAsset   keylet.Address
	Seed          uint16
	Offering      uint64
	AcceptAtLeast uint64
}

// CreateOffer derives the offer address for the given seed and runs the
// engine's create. The transport layer has already authenticated the owner,
// so the owner doubles as payer and sole signer.
func (n *Node) CreateOffer(p CreateParams) (*offer.Offer, keylet.Address, error) {
	offerAddr, bump := keylet.FindOffer(p.Owner, p.OfferAsset, p.AcceptAsset, p.Seed)

	n.mu.Lock()
	defer n.mu.Unlock()
	o, err := n.eng.CreateOffer(engine.CreateOfferParams{
		Payer:         p.Owner,
		Owner:         p.Owner,
		PayFrom:       p.PayFrom,
		Offer:         offerAddr,
		Holding:       keylet.Holding(offerAddr, p.OfferAsset),
		RefundTo:      p.RefundTo,
		CreditTo:      p.CreditTo,
		RefundRentTo:  p.RefundRentTo,
		OfferAsset:    p.OfferAsset,
		AcceptAsset:   p.AcceptAsset,
		Seed:          p.Seed,
		Bump:          bump,
		Offering:      p.Offering,
		AcceptAtLeast: p.AcceptAtLeast,
		Slot:          n.CurrentSlot(),
		Signers:       []keylet.Address{p.Owner},
	})
	if err != nil {
		return nil, keylet.Address{}, err
	}
	return o, offerAddr, nil
}

// CancelOffer tears down the offer at addr on behalf of owner. The recorded
// refund destinations are used as declared targets.
func (n *Node) CancelOffer(owner, addr keylet.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	o, err := n.eng.GetOffer(addr)
	if err != nil {
		return err
	}
	return n.eng.CancelOffer(engine.CancelOfferParams{
		Owner:        owner,
		Offer:        addr,
		Holding:      o.HoldingKey(),
		RefundTo:     o.RefundTo,
		RefundRentTo: o.RefundRentTo,
		Signers:      []keylet.Address{owner},
	})
}

// MatchOffers crosses the two offers, routing fees to the configured
// facilitator account for each side's asset.
func (n *Node) MatchOffers(addrA, addrB keylet.Address) (*engine.MatchResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	a, err := n.eng.GetOffer(addrA)
	if err != nil {
		return nil, err
	}
	b, err := n.eng.GetOffer(addrB)
	if err != nil {
		return nil, err
	}
	facA, err := n.facilitatorFor(a.OfferAsset)
	if err != nil {
		return nil, err
	}
	facB, err := n.facilitatorFor(b.OfferAsset)
	if err != nil {
		return nil, err
	}
	return n.eng.MatchOffers(engine.MatchOffersParams{
		OfferA:        addrA,
		HoldingA:      a.HoldingKey(),
		OfferB:        addrB,
		HoldingB:      b.HoldingKey(),
		CreditToA:     a.CreditTo,
		RefundToA:     a.RefundTo,
		RefundRentToA: a.RefundRentTo,
		CreditToB:     b.CreditTo,
		RefundToB:     b.RefundTo,
		RefundRentToB: b.RefundRentTo,
		FacilitatorA:  facA,
		FacilitatorB:  facB,
	})
}

func (n *Node) facilitatorFor(asset keylet.Address) (keylet.Address, error) {
	fac, ok := n.facilitators[asset]
	if !ok {
		return keylet.Address{}, fmt.Errorf("no facilitator account configured for asset %s: %w",
			asset, dexerr.ErrNotFound)
	}
	return fac, nil
}

// GetOffer returns the offer record at addr.
func (n *Node) GetOffer(addr keylet.Address) (*offer.Offer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.GetOffer(addr)
}

// GetHolding returns the escrow account behind the offer at addr.
func (n *Node) GetHolding(addr keylet.Address) (assetbook.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.GetHolding(addr)
}

// GetAccount returns an asset account snapshot.
func (n *Node) GetAccount(addr keylet.Address) (assetbook.Account, error) {
	return n.book.Get(addr)
}

// CreateAccount and Mint are the dev faucet. Refused unless enabled in
// configuration.
func (n *Node) CreateAccount(addr, asset, authority keylet.Address) error {
	if !n.cfg.Server.EnableFaucet {
		return dexerr.ErrUnauthorized
	}
	if err := n.book.Create(addr, asset, authority); err != nil {
		return err
	}
	// Account holders also need a store balance to pay record deposits.
	if err := n.store.Credit(authority, 1_000_000); err != nil {
		log.Printf("faucet: failed to credit deposit balance for %s: %v", authority, err)
	}
	return nil
}

// Mint credits freshly issued units to a faucet-created account.
func (n *Node) Mint(addr keylet.Address, amount uint64) error {
	if !n.cfg.Server.EnableFaucet {
		return dexerr.ErrUnauthorized
	}
	return n.book.Mint(addr, amount)
}
