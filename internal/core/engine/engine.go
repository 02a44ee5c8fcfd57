// Package engine implements the offer lifecycle state machine: creating an
// offer with its escrow, canceling it, and matching two offers into a
// settled trade. The engine runs inside a host transaction that serializes
// access to any given record pair and discards all mutations on failure, so
// every operation computes against consistent snapshots and every error is
// terminal for the invocation.
package engine

import (
	"errors"
	"log"

	"github.com/LeJamon/simpledexd/internal/core/assetbook"
	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/core/offer"
	"github.com/LeJamon/simpledexd/internal/storage/recordstore"
)

// EventPublisher receives lifecycle events after an operation has fully
// settled. A nil publisher disables events.
type EventPublisher interface {
	PublishOfferCreated(ev OfferCreatedEvent)
	PublishOffersMatched(ev OffersMatchedEvent)
	PublishOfferCanceled(ev OfferCanceledEvent)
}

// Engine drives offer records and their escrows.
type Engine struct {
	store  recordstore.Store
	book   assetbook.Book
	events EventPublisher
	logger *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents attaches an event publisher.
func WithEvents(p EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an engine over the given record store and asset book.
func New(store recordstore.Store, book assetbook.Book, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		book:   book,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// signedBy reports whether identity is among the invocation's signers.
func signedBy(signers []keylet.Address, identity keylet.Address) bool {
	for _, s := range signers {
		if s == identity {
			return true
		}
	}
	return false
}

// loadOffer reads a record and checks it against its derivation: the stored
// fields plus the recorded bump must reproduce the address it was read from.
func (e *Engine) loadOffer(addr keylet.Address) (*offer.Offer, error) {
	data, err := e.store.Read(addr)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return nil, dexerr.ErrNotFound
		}
		return nil, err
	}
	o, err := offer.Parse(data)
	if err != nil {
		return nil, err
	}
	if o.Key() != addr {
		return nil, dexerr.ErrAddressDerivation
	}
	return o, nil
}

// loadHolding checks a declared escrow address against the offer it must be
// bound to and returns the account behind it.
func (e *Engine) loadHolding(o *offer.Offer, declared keylet.Address) (assetbook.Account, error) {
	if declared != o.HoldingKey() {
		return assetbook.Account{}, dexerr.ErrAddressDerivation
	}
	acc, err := e.book.Get(declared)
	if err != nil {
		return assetbook.Account{}, err
	}
	if acc.Asset != o.OfferAsset {
		return assetbook.Account{}, dexerr.ErrAssetMismatch
	}
	return acc, nil
}

// GetOffer returns the validated offer record at addr. Query surface; no
// state is touched.
func (e *Engine) GetOffer(addr keylet.Address) (*offer.Offer, error) {
	return e.loadOffer(addr)
}

// GetHolding returns the escrow account bound to the offer at addr.
func (e *Engine) GetHolding(addr keylet.Address) (assetbook.Account, error) {
	o, err := e.loadOffer(addr)
	if err != nil {
		return assetbook.Account{}, err
	}
	return e.loadHolding(o, o.HoldingKey())
}
