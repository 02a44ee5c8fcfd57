// Package dexerr defines the terminal error kinds an engine invocation can
// fail with. Every failure aborts the whole invocation; the surrounding host
// transaction discards any partial mutation, so there is no local recovery.
package dexerr

import "errors"

var (
	// ErrInternal marks a should-be-unreachable state, e.g. the crossing
	// test passed but the fill rule found neither side fillable.
	ErrInternal = errors.New("internal consistency failure")

	// ErrSerialization is returned for malformed or uninitialized on-disk
	// records.
	ErrSerialization = errors.New("malformed record")

	// ErrAddressDerivation is returned when a declared record address does
	// not match its recomputed derivation, or the bump does not agree.
	ErrAddressDerivation = errors.New("address does not match derivation")

	// ErrOffersDoNotMatch is returned when two offers' price ranges do not
	// cross.
	ErrOffersDoNotMatch = errors.New("offers do not match")

	// ErrUnauthorized covers a missing signer, a wrong owner, and a wrong
	// declared refund or credit target.
	ErrUnauthorized = errors.New("insufficient authorization")

	// ErrAssetMismatch is returned when an account is bound to a different
	// asset type than the one required.
	ErrAssetMismatch = errors.New("asset type mismatch")

	// ErrAssetFrozen is returned when a referenced asset account is frozen.
	ErrAssetFrozen = errors.New("asset account frozen")

	// ErrSelfRefund rejects refund or rent-refund targets that point back at
	// the offer's own record or escrow.
	ErrSelfRefund = errors.New("refund target is an offer account")

	// ErrOverflow is returned on checked-arithmetic failure. Arithmetic in
	// the engine never wraps.
	ErrOverflow = errors.New("numerical overflow")

	// ErrNotFound is returned when a referenced record does not exist, for
	// example after its offer has been closed.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientBalance is returned when an asset transfer exceeds the
	// source account's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
