package engine

import "github.com/LeJamon/simpledexd/internal/core/keylet"

// OfferCreatedEvent is published after a new offer and its funded escrow
// exist on disk.
type OfferCreatedEvent struct {
	Offer         keylet.Address `json:"offer"`
	Owner         keylet.Address `json:"owner"`
	OfferAsset    keylet.Address `json:"offer_asset"`
	AcceptAsset   keylet.Address `json:"accept_asset"`
	Offering      uint64         `json:"offering"`
	AcceptAtLeast uint64         `json:"accept_at_least"`
	Slot          uint64         `json:"slot"`
}

// OffersMatchedEvent is published after both sides of a match have settled.
// The New* fields carry the remainders of each side; a closed side reports
// zero for both.
type OffersMatchedEvent struct {
	OfferA keylet.Address `json:"offer_a"`
	OfferB keylet.Address `json:"offer_b"`

	AssetA keylet.Address `json:"asset_a"`
	AssetB keylet.Address `json:"asset_b"`

	AToB           uint64 `json:"a_to_b"`
	BToA           uint64 `json:"b_to_a"`
	AToFacilitator uint64 `json:"a_to_facilitator"`
	BToFacilitator uint64 `json:"b_to_facilitator"`

	NewOfferingA      uint64 `json:"new_offering_a"`
	NewAcceptAtLeastA uint64 `json:"new_accept_at_least_a"`
	NewOfferingB      uint64 `json:"new_offering_b"`
	NewAcceptAtLeastB uint64 `json:"new_accept_at_least_b"`

	ClosedA bool `json:"closed_a"`
	ClosedB bool `json:"closed_b"`
}

// OfferCanceledEvent is published after an offer has been torn down and its
// escrow refunded.
type OfferCanceledEvent struct {
	Offer    keylet.Address `json:"offer"`
	Owner    keylet.Address `json:"owner"`
	Refunded uint64         `json:"refunded"`
}
