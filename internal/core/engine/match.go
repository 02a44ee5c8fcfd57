package engine

import (
	"math"

	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/fee"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
	"github.com/LeJamon/simpledexd/internal/core/offer"
)

// MatchOffersParams names the two offers to cross, their escrows, the
// destinations each side recorded at create time, and the facilitator's fee
// accounts. The declared destinations must match the recorded ones; the
// facilitator accounts must hold the matching assets.
type MatchOffersParams struct {
	OfferA   keylet.Address
	HoldingA keylet.Address
	OfferB   keylet.Address
	HoldingB keylet.Address

	CreditToA     keylet.Address
	RefundToA     keylet.Address
	RefundRentToA keylet.Address
	CreditToB     keylet.Address
	RefundToB     keylet.Address
	RefundRentToB keylet.Address

	// FacilitatorA receives fees and bonus in A's offered asset,
	// FacilitatorB in B's.
	FacilitatorA keylet.Address
	FacilitatorB keylet.Address
}

// Receipt is the full settlement plan for one match: every quantity that
// will move, fixed before any transfer happens.
type Receipt struct {
	// AToB is paid from A's escrow to B's credit destination, BToA the
	// reverse.
	AToB uint64
	BToA uint64
	// AToFacilitator and BToFacilitator carry the taker fee plus half of
	// any price improvement, in the respective escrow's asset.
	AToFacilitator uint64
	BToFacilitator uint64
}

// SideResult describes what happened to one offer in a match.
type SideResult struct {
	AmountGiven      uint64
	NewOffering      uint64
	NewAcceptAtLeast uint64
	Closed           bool
}

// MatchResult is the outcome of a successful match.
type MatchResult struct {
	Receipt Receipt
	A       SideResult
	B       SideResult
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, dexerr.ErrOverflow
	}
	return a + b, nil
}

// calcReceipt splits the two gross fill quantities into counterparty
// payments and facilitator takes. The taker side pays the full fee on what
// it gives, the maker pays none; when neither side has time priority each
// pays half its fee. Any excess one side gives beyond what the other's
// declared price requires is split evenly between that side's counterparty
// and the facilitator.
func calcReceipt(a, b *offer.Offer, amtAGives, amtBGives uint64) (Receipt, error) {
	feeOnA, err := fee.Calc(amtAGives)
	if err != nil {
		return Receipt{}, err
	}
	feeOnB, err := fee.Calc(amtBGives)
	if err != nil {
		return Receipt{}, err
	}
	var aToFac, bToFac uint64
	switch a.RelationshipWith(b) {
	case offer.Maker:
		bToFac = feeOnB
	case offer.Taker:
		aToFac = feeOnA
	case offer.Neither:
		aToFac = feeOnA / 2
		bToFac = feeOnB / 2
	}

	minForB, err := b.MinWillingToReceiveFor(amtBGives)
	if err != nil {
		return Receipt{}, err
	}
	minForA, err := a.MinWillingToReceiveFor(amtAGives)
	if err != nil {
		return Receipt{}, err
	}
	bonusFromA := saturatingSub(amtAGives, minForB) / fee.BonusDivisor
	bonusFromB := saturatingSub(amtBGives, minForA) / fee.BonusDivisor

	if aToFac, err = checkedAdd(aToFac, bonusFromA); err != nil {
		return Receipt{}, err
	}
	if bToFac, err = checkedAdd(bToFac, bonusFromB); err != nil {
		return Receipt{}, err
	}
	return Receipt{
		AToB:           amtAGives - bonusFromA,
		BToA:           amtBGives - bonusFromB,
		AToFacilitator: aToFac,
		BToFacilitator: bToFac,
	}, nil
}

// MatchOffers crosses the offers at addrA and addrB. The whole receipt is
// computed before the first transfer, then A's escrow pays B's credit
// destination and the facilitator, B's escrow pays the mirror image, and
// each side is either rewritten with its remainder or fully torn down.
func (e *Engine) MatchOffers(p MatchOffersParams) (*MatchResult, error) {
	// An offer cannot cross itself: both sides would settle out of the
	// same escrow.
	if p.OfferA == p.OfferB {
		return nil, dexerr.ErrOffersDoNotMatch
	}
	a, err := e.loadOffer(p.OfferA)
	if err != nil {
		return nil, err
	}
	b, err := e.loadOffer(p.OfferB)
	if err != nil {
		return nil, err
	}
	if _, err := e.loadHolding(a, p.HoldingA); err != nil {
		return nil, err
	}
	if _, err := e.loadHolding(b, p.HoldingB); err != nil {
		return nil, err
	}
	if a.OfferAsset != b.AcceptAsset || a.AcceptAsset != b.OfferAsset {
		return nil, dexerr.ErrAssetMismatch
	}

	if p.CreditToA != a.CreditTo || p.RefundToA != a.RefundTo || p.RefundRentToA != a.RefundRentTo {
		return nil, dexerr.ErrUnauthorized
	}
	if p.CreditToB != b.CreditTo || p.RefundToB != b.RefundTo || p.RefundRentToB != b.RefundRentTo {
		return nil, dexerr.ErrUnauthorized
	}

	amtAGives, amtBGives, err := offer.TryMatch(a, b)
	if err != nil {
		return nil, err
	}
	receipt, err := calcReceipt(a, b, amtAGives, amtBGives)
	if err != nil {
		return nil, err
	}

	if err := e.book.Transfer(p.HoldingA, b.CreditTo, receipt.AToB, p.OfferA); err != nil {
		return nil, err
	}
	if err := e.book.Transfer(p.HoldingA, p.FacilitatorA, receipt.AToFacilitator, p.OfferA); err != nil {
		return nil, err
	}
	if err := e.book.Transfer(p.HoldingB, a.CreditTo, receipt.BToA, p.OfferB); err != nil {
		return nil, err
	}
	if err := e.book.Transfer(p.HoldingB, p.FacilitatorB, receipt.BToFacilitator, p.OfferB); err != nil {
		return nil, err
	}

	resA, err := e.settleSide(a, p.OfferA, p.HoldingA, amtAGives)
	if err != nil {
		return nil, err
	}
	resB, err := e.settleSide(b, p.OfferB, p.HoldingB, amtBGives)
	if err != nil {
		return nil, err
	}

	e.logger.Printf("MATCH a=%s b=%s a_to_b=%d b_to_a=%d a_fee=%d b_fee=%d",
		p.OfferA, p.OfferB, receipt.AToB, receipt.BToA,
		receipt.AToFacilitator, receipt.BToFacilitator)
	if e.events != nil {
		e.events.PublishOffersMatched(OffersMatchedEvent{
			OfferA:            p.OfferA,
			OfferB:            p.OfferB,
			AssetA:            a.OfferAsset,
			AssetB:            b.OfferAsset,
			AToB:              receipt.AToB,
			BToA:              receipt.BToA,
			AToFacilitator:    receipt.AToFacilitator,
			BToFacilitator:    receipt.BToFacilitator,
			NewOfferingA:      resA.NewOffering,
			NewAcceptAtLeastA: resA.NewAcceptAtLeast,
			NewOfferingB:      resB.NewOffering,
			NewAcceptAtLeastB: resB.NewAcceptAtLeast,
			ClosedA:           resA.Closed,
			ClosedB:           resB.Closed,
		})
	}
	return &MatchResult{Receipt: receipt, A: resA, B: resB}, nil
}

// settleSide applies one side's fill and either persists the remainder or,
// if the offer is spent, refunds what is left in the escrow and tears the
// offer down.
func (e *Engine) settleSide(o *offer.Offer, offerAddr, holdingAddr keylet.Address, amountGiven uint64) (SideResult, error) {
	updated, err := o.ApplyFill(amountGiven)
	if err != nil {
		return SideResult{}, err
	}
	res := SideResult{
		AmountGiven:      amountGiven,
		NewOffering:      updated.Offering,
		NewAcceptAtLeast: updated.AcceptAtLeast,
		Closed:           updated.IsClosed(),
	}
	if !res.Closed {
		if err := e.store.Write(offerAddr, updated.Serialize()); err != nil {
			return SideResult{}, err
		}
		return res, nil
	}
	res.NewOffering = 0
	res.NewAcceptAtLeast = 0
	acc, err := e.book.Get(holdingAddr)
	if err != nil {
		return SideResult{}, err
	}
	if acc.Balance > 0 {
		if err := e.book.Transfer(holdingAddr, o.RefundTo, acc.Balance, offerAddr); err != nil {
			return SideResult{}, err
		}
	}
	if err := e.book.CloseAccount(holdingAddr, offerAddr); err != nil {
		return SideResult{}, err
	}
	if err := e.store.Deallocate(offerAddr, o.RefundRentTo); err != nil {
		return SideResult{}, err
	}
	return res, nil
}
