// Package keylet derives the canonical storage addresses of engine records.
//
// An offer's address is a keyed hash of its identifying fields (owner, asset
// pair, seed) plus a bump disambiguator, so one logical offer binds to
// exactly one storage location and a record cannot be forged at another
// address. The holding escrow's address derives from its offer's, binding
// the pair 1:1. A derived offer address also acts as the signing authority
// for transfers out of its holding.
package keylet

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	crypto "github.com/LeJamon/simpledexd/internal/crypto/common"
)

// Space identifiers prepended to every derivation input.
const (
	spaceOffer   uint16 = 'o' // Offer record
	spaceHolding uint16 = 'h' // Holding escrow account
)

// Address is a 256-bit storage address.
type Address [32]byte

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the address as lowercase hex.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalJSON encodes the address as its lowercase hex string, the same
// form every other wire surface uses.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses a 64-character hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AddressFromHex parses a 64-character hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	if len(b) != len(a) {
		return Address{}, hex.ErrLength
	}
	copy(a[:], b)
	return a, nil
}

// indexHash computes an address by hashing the space tag and derivation data.
func indexHash(space uint16, data ...[]byte) Address {
	spaceBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(spaceBytes, space)

	inputs := make([][]byte, 0, len(data)+1)
	inputs = append(inputs, spaceBytes)
	inputs = append(inputs, data...)

	return crypto.Sha512Half(inputs...)
}

// CreateOffer recomputes the offer address for a known bump. Loading code
// uses it to check a declared address against its derivation.
func CreateOffer(owner, offerAsset, acceptAsset Address, seed uint16, bump uint8) Address {
	seedBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(seedBytes, seed)
	return indexHash(spaceOffer, owner[:], offerAsset[:], acceptAsset[:], seedBytes, []byte{bump})
}

// FindOffer searches bump values from 255 downward and returns the first
// usable offer address together with the bump that produced it. The bump is
// recorded on the offer and becomes part of its identity.
func FindOffer(owner, offerAsset, acceptAsset Address, seed uint16) (Address, uint8) {
	for bump := 255; bump >= 0; bump-- {
		candidate := CreateOffer(owner, offerAsset, acceptAsset, seed, uint8(bump))
		if usable(candidate) {
			return candidate, uint8(bump)
		}
	}
	// 256 consecutive reserved digests do not occur.
	return Address{}, 0
}

// Holding returns the escrow account address bound to an offer. One offer,
// one holding; the offer address signs for it.
func Holding(offer, offerAsset Address) Address {
	return indexHash(spaceHolding, offer[:], offerAsset[:])
}

// usable rejects addresses in the reserved range. Addresses with a zero
// leading byte are kept for internal singletons, so derivation skips them by
// decrementing the bump.
func usable(a Address) bool {
	return a[0] != 0x00
}

// Compare orders two addresses lexicographically.
func Compare(a, b Address) int {
	return bytes.Compare(a[:], b[:])
}
