package offer

import (
	"encoding/binary"

	"github.com/LeJamon/simpledexd/internal/core/dexerr"
	"github.com/LeJamon/simpledexd/internal/core/keylet"
)

// RecordSize is the fixed byte length of a serialized offer record.
// Fields are little-endian, in declaration order. The layout is wire
// compatible with records already on disk, so field order and widths must
// not change.
const RecordSize = 8 + 8 + 8 + 2 + 1 + 6*32

// Serialize packs the offer into its fixed-width record layout.
func (o *Offer) Serialize() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], o.Slot)
	binary.LittleEndian.PutUint64(buf[8:16], o.Offering)
	binary.LittleEndian.PutUint64(buf[16:24], o.AcceptAtLeast)
	binary.LittleEndian.PutUint16(buf[24:26], o.Seed)
	buf[26] = o.Bump
	off := 27
	for _, a := range []keylet.Address{
		o.Owner, o.OfferAsset, o.AcceptAsset, o.RefundTo, o.CreditTo, o.RefundRentTo,
	} {
		copy(buf[off:off+32], a[:])
		off += 32
	}
	return buf
}

// Parse unpacks a fixed-width offer record. A record of the wrong length or
// with a zero slot (never written by the engine) is malformed.
func Parse(data []byte) (*Offer, error) {
	if len(data) != RecordSize {
		return nil, dexerr.ErrSerialization
	}
	o := &Offer{
		Slot:          binary.LittleEndian.Uint64(data[0:8]),
		Offering:      binary.LittleEndian.Uint64(data[8:16]),
		AcceptAtLeast: binary.LittleEndian.Uint64(data[16:24]),
		Seed:          binary.LittleEndian.Uint16(data[24:26]),
		Bump:          data[26],
	}
	off := 27
	for _, dst := range []*keylet.Address{
		&o.Owner, &o.OfferAsset, &o.AcceptAsset, &o.RefundTo, &o.CreditTo, &o.RefundRentTo,
	} {
		copy(dst[:], data[off:off+32])
		off += 32
	}
	if !o.Initialized() {
		return nil, dexerr.ErrSerialization
	}
	return o, nil
}
