// Package fee implements the engine's fee schedule: a fixed basis-point
// taker fee, prepaid by the offer creator on top of the escrowed amount, and
// the divisor used to split price-improvement excess with the facilitator.
package fee

import (
	"math"

	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/ratio"
)

// TakerFeeBps is the fee levied on the taker side of a match, in basis
// points of the amount given.
const TakerFeeBps = 10

const bpsBase = 10_000

// BonusDivisor is the share of price-improvement excess diverted to the
// facilitator: bonus = excess / BonusDivisor.
const BonusDivisor = 2

var feeRatio = ratio.MustNew(TakerFeeBps, bpsBase)

// Calc returns the fee owed on amountGiven, rounded down.
func Calc(amountGiven uint64) (uint64, error) {
	f, err := feeRatio.ApplyFloor(amountGiven)
	if err != nil {
		return 0, dexerr.ErrOverflow
	}
	return f, nil
}

// FundingAmount returns the escrow balance required to back a fresh offer:
// the offering itself plus the prepaid fee on it.
func FundingAmount(offering uint64) (uint64, error) {
	f, err := Calc(offering)
	if err != nil {
		return 0, err
	}
	if offering > math.MaxUint64-f {
		return 0, dexerr.ErrOverflow
	}
	return offering + f, nil
}
