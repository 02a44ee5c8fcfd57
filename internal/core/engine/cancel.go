package engine

import (
	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
)

// CancelOfferParams names the offer to tear down and the destinations the
// caller believes the refunds go to. The declared destinations must match
// the ones recorded at create time.
type CancelOfferParams struct {
	Owner        keylet.Address
	Offer        keylet.Address
	Holding      keylet.Address
	RefundTo     keylet.Address
	RefundRentTo keylet.Address

	Signers []keylet.Address
}

// CancelOffer refunds whatever remains in the escrow to the recorded refund
// destination, destroys the escrow, and deallocates the record with its
// deposit going to the recorded rent destination. Only the recorded owner
// may cancel.
func (e *Engine) CancelOffer(p CancelOfferParams) error {
	o, err := e.loadOffer(p.Offer)
	if err != nil {
		return err
	}
	holdingAcc, err := e.loadHolding(o, p.Holding)
	if err != nil {
		return err
	}

	if !signedBy(p.Signers, p.Owner) || p.Owner != o.Owner {
		return dexerr.ErrUnauthorized
	}
	if p.RefundTo != o.RefundTo || p.RefundRentTo != o.RefundRentTo {
		return dexerr.ErrUnauthorized
	}

	refunded := holdingAcc.Balance
	if refunded > 0 {
		if err := e.book.Transfer(p.Holding, o.RefundTo, refunded, p.Offer); err != nil {
			return err
		}
	}
	if err := e.book.CloseAccount(p.Holding, p.Offer); err != nil {
		return err
	}
	if err := e.store.Deallocate(p.Offer, o.RefundRentTo); err != nil {
		return err
	}

	e.logger.Printf("CANCEL offer=%s refunded=%d", p.Offer, refunded)
	if e.events != nil {
		e.events.PublishOfferCanceled(OfferCanceledEvent{
			Offer:    p.Offer,
			Owner:    o.Owner,
			Refunded: refunded,
		})
	}
	return nil
}
