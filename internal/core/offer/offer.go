// Package offer implements the resting declaration at the heart of the
// exchange: an escrowed quantity of one asset and the minimum quantity of a
// second asset its owner will accept for all of it, together with the
// crossing test, the fill-quantity rule, and the partial-fill update.
package offer

import (
	"math/bits"

	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/core/ratio"
)

// Offer is a resting declaration. Offering and AcceptAtLeast jointly encode
// the minimum acceptable unit price AcceptAtLeast/Offering; the offer is
// logically closed once either reaches zero.
type Offer struct {
	// Slot is the logical-clock value at creation. Zero means the record is
	// uninitialized.
	Slot uint64

	// Offering is the remaining escrowed quantity of the offered asset.
	Offering uint64

	// AcceptAtLeast is the minimum quantity of the accept asset the owner
	// will take for the entire remaining Offering.
	AcceptAtLeast uint64

	// Seed disambiguates multiple offers by the same owner on the same pair.
	Seed uint16

	// Bump is the derivation disambiguator recorded at creation.
	Bump uint8

	Owner        keylet.Address
	OfferAsset   keylet.Address
	AcceptAsset  keylet.Address
	RefundTo     keylet.Address
	CreditTo     keylet.Address
	RefundRentTo keylet.Address
}

// Seq is the time-priority relationship between two matched offers.
type Seq int

const (
	// Neither: both offers were created in the same slot.
	Neither Seq = iota
	// Maker: this offer is the earlier of the pair.
	Maker
	// Taker: this offer is the later of the pair.
	Taker
)

// Initialized reports whether the record has been created.
func (o *Offer) Initialized() bool {
	return o.Slot != 0
}

// IsClosed reports whether the offer can no longer trade.
func (o *Offer) IsClosed() bool {
	return o.Offering == 0 || o.AcceptAtLeast == 0
}

// Key returns the offer's derived storage address.
func (o *Offer) Key() keylet.Address {
	return keylet.CreateOffer(o.Owner, o.OfferAsset, o.AcceptAsset, o.Seed, o.Bump)
}

// HoldingKey returns the address of the escrow bound to this offer.
func (o *Offer) HoldingKey() keylet.Address {
	return keylet.Holding(o.Key(), o.OfferAsset)
}

// crosses reports whether the two offers' price ranges overlap:
//
//	a.Offering/a.AcceptAtLeast >= b.AcceptAtLeast/b.Offering
//
// rearranged as a cross multiplication over a 128-bit intermediate so no
// division or overflow is involved.
func crosses(a, b *Offer) bool {
	ohi, olo := bits.Mul64(a.Offering, b.Offering)
	ahi, alo := bits.Mul64(a.AcceptAtLeast, b.AcceptAtLeast)
	if ohi != ahi {
		return ohi > ahi
	}
	return olo >= alo
}

// TryMatch decides whether a and b cross and how much each side gives.
// Exactly one of four fill shapes applies: both sides fill fully, or one
// side is the limiting side and closes fully while the other gives only that
// side's minimum.
func TryMatch(a, b *Offer) (amtAGives, amtBGives uint64, err error) {
	if !crosses(a, b) {
		return 0, 0, dexerr.ErrOffersDoNotMatch
	}
	aCanFillB := a.Offering >= b.AcceptAtLeast
	bCanFillA := b.Offering >= a.AcceptAtLeast
	switch {
	case aCanFillB && bCanFillA:
		return a.Offering, b.Offering, nil
	case aCanFillB:
		return b.AcceptAtLeast, b.Offering, nil
	case bCanFillA:
		return a.Offering, a.AcceptAtLeast, nil
	default:
		// Unreachable once the crossing test has passed.
		return 0, 0, dexerr.ErrInternal
	}
}

// RelationshipWith orders this offer against another by creation slot.
func (o *Offer) RelationshipWith(other *Offer) Seq {
	switch {
	case o.Slot == other.Slot:
		return Neither
	case o.Slot < other.Slot:
		return Maker
	default:
		return Taker
	}
}

// MinWillingToReceiveFor returns the proportional minimum this offer would
// require in exchange for paying out toPay of its offering, rounded in the
// offer owner's favor.
func (o *Offer) MinWillingToReceiveFor(toPay uint64) (uint64, error) {
	if toPay >= o.Offering {
		return o.AcceptAtLeast, nil
	}
	proportion, err := ratio.New(toPay, o.Offering)
	if err != nil {
		return 0, dexerr.ErrInternal
	}
	min, err := proportion.ApplyCeil(o.AcceptAtLeast)
	if err != nil {
		return 0, dexerr.ErrOverflow
	}
	return min, nil
}

// ApplyFill returns the offer as it stands after paying out amountGiven.
// The remaining AcceptAtLeast is the old price applied to the remaining
// offering, rounded up: the remainder is never more generous than the
// original declaration. Persisting or destroying the result is the
// caller's decision.
func (o *Offer) ApplyFill(amountGiven uint64) (Offer, error) {
	acceptOverOffer, err := ratio.New(o.AcceptAtLeast, o.Offering)
	if err != nil {
		return Offer{}, dexerr.ErrInternal
	}
	if amountGiven > o.Offering {
		return Offer{}, dexerr.ErrInternal
	}
	newOffering := o.Offering - amountGiven
	newAcceptAtLeast, err := acceptOverOffer.ApplyCeil(newOffering)
	if err != nil {
		return Offer{}, dexerr.ErrOverflow
	}
	updated := *o
	updated.Offering = newOffering
	updated.AcceptAtLeast = newAcceptAtLeast
	return updated, nil
}
