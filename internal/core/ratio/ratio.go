// Package ratio provides exact fixed-point multiply-then-divide over uint64
// amounts. The intermediate product is held in 128 bits so n*a can never
// overflow, and every operation is plain integer arithmetic: independent
// executions of the engine reach bit-identical results.
package ratio

import (
	"errors"
	"math"
	"math/bits"
)

var (
	// ErrDivisionByZero is returned by New for a zero denominator.
	ErrDivisionByZero = errors.New("ratio: division by zero")

	// ErrOverflow is returned when a result does not fit in uint64.
	ErrOverflow = errors.New("ratio: result exceeds uint64")
)

// Ratio is an exact num/denom rational that can be applied to amounts.
// The zero value is not usable; construct with New or MustNew.
type Ratio struct {
	num   uint64
	denom uint64
}

// New returns the ratio num/denom, failing on a zero denominator.
func New(num, denom uint64) (Ratio, error) {
	if denom == 0 {
		return Ratio{}, ErrDivisionByZero
	}
	return Ratio{num: num, denom: denom}, nil
}

// MustNew is New for ratios known valid at compile time, such as the fee
// schedule.
func MustNew(num, denom uint64) Ratio {
	r, err := New(num, denom)
	if err != nil {
		panic(err)
	}
	return r
}

// ApplyFloor returns floor(num * amount / denom).
func (r Ratio) ApplyFloor(amount uint64) (uint64, error) {
	hi, lo := bits.Mul64(r.num, amount)
	if hi >= r.denom {
		// Quotient would need more than 64 bits; Div64 would panic.
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, r.denom)
	return q, nil
}

// ApplyCeil returns ceil(num * amount / denom).
func (r Ratio) ApplyCeil(amount uint64) (uint64, error) {
	hi, lo := bits.Mul64(r.num, amount)
	if hi >= r.denom {
		return 0, ErrOverflow
	}
	q, rem := bits.Div64(hi, lo, r.denom)
	if rem == 0 {
		return q, nil
	}
	if q == math.MaxUint64 {
		return 0, ErrOverflow
	}
	return q + 1, nil
}
