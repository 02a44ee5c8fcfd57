package engine

import (
	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/fee"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/core/offer"
)

// CreateOfferParams carries everything a create invocation declares up
// front: the identities that must have signed, the addresses the caller
// claims the record and escrow live at, and the offer terms themselves.
type CreateOfferParams struct {
	// Payer funds the storage deposit for the record. Must sign.
	Payer keylet.Address
	// Owner is the offer's authority. Must sign.
	Owner keylet.Address
	// PayFrom is the asset account the escrow is funded from; its
	// authority must be Owner.
	PayFrom keylet.Address
	// Offer and Holding are the declared record and escrow addresses,
	// checked against derivation before anything is touched.
	Offer   keylet.Address
	Holding keylet.Address

	RefundTo     keylet.Address
	CreditTo     keylet.Address
	RefundRentTo keylet.Address

	OfferAsset  keylet.Address
	AcceptAsset keylet.Address

	Seed uint16
	Bump uint8

	Offering      uint64
	AcceptAtLeast uint64

	// Slot is the logical clock value stamped into the record.
	Slot uint64

	Signers []keylet.Address
}

// CreateOffer validates the declared addresses and destinations, allocates
// the record, creates the escrow under the offer's authority, and funds it
// with the offered quantity plus enough to cover one full taker fee.
func (e *Engine) CreateOffer(p CreateOfferParams) (*offer.Offer, error) {
	if !signedBy(p.Signers, p.Payer) || !signedBy(p.Signers, p.Owner) {
		return nil, dexerr.ErrUnauthorized
	}
	if p.Slot == 0 {
		return nil, dexerr.ErrInternal
	}
	// An offer exchanging an asset for itself has no meaningful price and
	// its escrow would hold both legs of any fill.
	if p.OfferAsset == p.AcceptAsset {
		return nil, dexerr.ErrAssetMismatch
	}

	if keylet.CreateOffer(p.Owner, p.OfferAsset, p.AcceptAsset, p.Seed, p.Bump) != p.Offer {
		return nil, dexerr.ErrAddressDerivation
	}
	if keylet.Holding(p.Offer, p.OfferAsset) != p.Holding {
		return nil, dexerr.ErrAddressDerivation
	}

	// The refund destination can never be the escrow itself: a later
	// cancel would refund into the account about to be destroyed.
	if p.RefundTo == p.Holding {
		return nil, dexerr.ErrSelfRefund
	}
	if p.RefundRentTo == p.Offer || p.RefundRentTo == p.Holding {
		return nil, dexerr.ErrSelfRefund
	}

	refundAcc, err := e.book.Get(p.RefundTo)
	if err != nil {
		return nil, err
	}
	if refundAcc.Asset != p.OfferAsset {
		return nil, dexerr.ErrAssetMismatch
	}
	if refundAcc.Frozen {
		return nil, dexerr.ErrAssetFrozen
	}
	creditAcc, err := e.book.Get(p.CreditTo)
	if err != nil {
		return nil, err
	}
	if creditAcc.Asset != p.AcceptAsset {
		return nil, dexerr.ErrAssetMismatch
	}
	if creditAcc.Frozen {
		return nil, dexerr.ErrAssetFrozen
	}

	funding, err := fee.FundingAmount(p.Offering)
	if err != nil {
		return nil, err
	}

	// Escrow first, authority bound to the record address, then the
	// record allocation, then the funding transfer.
	if err := e.book.Create(p.Holding, p.OfferAsset, p.Offer); err != nil {
		return nil, err
	}
	if err := e.store.Allocate(p.Offer, offer.RecordSize, p.Payer); err != nil {
		return nil, err
	}
	if err := e.book.Transfer(p.PayFrom, p.Holding, funding, p.Owner); err != nil {
		return nil, err
	}

	o := &offer.Offer{
		Slot:          p.Slot,
		Offering:      p.Offering,
		AcceptAtLeast: p.AcceptAtLeast,
		Seed:          p.Seed,
		Bump:          p.Bump,
		Owner:         p.Owner,
		OfferAsset:    p.OfferAsset,
		AcceptAsset:   p.AcceptAsset,
		RefundTo:      p.RefundTo,
		CreditTo:      p.CreditTo,
		RefundRentTo:  p.RefundRentTo,
	}
	if err := e.store.Write(p.Offer, o.Serialize()); err != nil {
		return nil, err
	}

	e.logger.Printf("CREATE offer=%s offering=%d of %s accepting at least %d of %s",
		p.Offer, p.Offering, p.OfferAsset, p.AcceptAtLeast, p.AcceptAsset)
	if e.events != nil {
		e.events.PublishOfferCreated(OfferCreatedEvent{
			Offer:         p.Offer,
			Owner:         p.Owner,
			OfferAsset:    p.OfferAsset,
			AcceptAsset:   p.AcceptAsset,
			Offering:      p.Offering,
			AcceptAtLeast: p.AcceptAtLeast,
			Slot:          p.Slot,
		})
	}
	return o, nil
}
