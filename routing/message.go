// Package routing implements the 128-bit routing message format and the
// in-memory routing table that stores it.
//
// A message occupies half of a 32-byte cell. The bit layout follows the
// fabric's router datapath:
//
//	[3:0]    sparse nibble, stored but never interpreted
//	[5:4]    zero
//	[11:6]   y, signed row coordinate
//	[17:12]  x, signed column coordinate
//	[31:18]  a0, unsigned start address
//	[43:32]  cnt, unsigned unit count, 0 meaning 1
//	[55:44]  a_offset, signed group stride
//	[62:56]  const, group size minus one
//	[63]     handshake flag
//	[71:64]  tag id
//	[72]     enable flag
//	[127:73] zero
package routing

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidField is returned when a message or primitive field does
// not fit its bit width.
var ErrInvalidField = errors.New("field out of range")

// A Message is the decoded form of one routing table entry.
type Message struct {
	Sparse    uint8
	Y         int8
	X         int8
	A0        uint16
	Cnt       uint16
	AOffset   int16
	Const     uint8
	Handshake bool
	TagID     uint8
	En        bool
}

// A Word is the 128-bit wire form of a message, split into its low and
// high 64-bit halves.
type Word struct {
	Lo uint64
	Hi uint64
}

// UnitCount returns the number of units the message transfers. A stored
// cnt of 0 transfers one unit.
func (m Message) UnitCount() int {
	if m.Cnt == 0 {
		return 1
	}

	return int(m.Cnt)
}

// GroupSize returns the number of units that advance by one before the
// group stride applies.
func (m Message) GroupSize() int {
	return int(m.Const) + 1
}

func (m Message) String() string {
	return fmt.Sprintf(
		"tag=%#04x en=%t hs=%t d=(%+d,%+d) a0=%#x cnt=%d aoff=%d const=%d",
		m.TagID, m.En, m.Handshake, m.Y, m.X,
		m.A0, m.Cnt, m.AOffset, m.Const)
}

// Encode packs a message into its wire form. Fields that do not fit
// their bit widths are rejected with ErrInvalidField rather than
// silently truncated.
func Encode(m Message) (Word, error) {
	if err := checkFields(m); err != nil {
		return Word{}, err
	}

	var w Word

	w.Lo = uint64(m.Sparse)
	w.Lo |= (uint64(m.Y) & 0x3f) << 6
	w.Lo |= (uint64(m.X) & 0x3f) << 12
	w.Lo |= uint64(m.A0) << 18
	w.Lo |= uint64(m.Cnt) << 32
	w.Lo |= (uint64(m.AOffset) & 0xfff) << 44
	w.Lo |= uint64(m.Const) << 56
	if m.Handshake {
		w.Lo |= 1 << 63
	}

	w.Hi = uint64(m.TagID)
	if m.En {
		w.Hi |= 1 << 8
	}

	return w, nil
}

func checkFields(m Message) error {
	switch {
	case m.Sparse > 0xf:
		return errors.Wrapf(ErrInvalidField, "sparse %#x exceeds 4 bits", m.Sparse)
	case m.Y < -32 || m.Y > 31:
		return errors.Wrapf(ErrInvalidField, "y %d exceeds signed 6 bits", m.Y)
	case m.X < -32 || m.X > 31:
		return errors.Wrapf(ErrInvalidField, "x %d exceeds signed 6 bits", m.X)
	case m.A0 > 0x3fff:
		return errors.Wrapf(ErrInvalidField, "a0 %#x exceeds 14 bits", m.A0)
	case m.Cnt > 0xfff:
		return errors.Wrapf(ErrInvalidField, "cnt %d exceeds 12 bits", m.Cnt)
	case m.AOffset < -2048 || m.AOffset > 2047:
		return errors.Wrapf(ErrInvalidField, "a_offset %d exceeds signed 12 bits", m.AOffset)
	case m.Const > 0x7f:
		return errors.Wrapf(ErrInvalidField, "const %d exceeds 7 bits", m.Const)
	}

	return nil
}

// Decode unpacks a wire word into a message. Bits outside the defined
// fields are ignored.
func Decode(w Word) Message {
	return Message{
		Sparse:    uint8(w.Lo & 0xf),
		Y:         int8(signed(w.Lo>>6, 6)),
		X:         int8(signed(w.Lo>>12, 6)),
		A0:        uint16(w.Lo >> 18 & 0x3fff),
		Cnt:       uint16(w.Lo >> 32 & 0xfff),
		AOffset:   int16(signed(w.Lo>>44, 12)),
		Const:     uint8(w.Lo >> 56 & 0x7f),
		Handshake: w.Lo>>63&1 == 1,
		TagID:     uint8(w.Hi & 0xff),
		En:        w.Hi>>8&1 == 1,
	}
}

// signed reinterprets the low width bits of v as a two's complement
// integer.
func signed(v uint64, width uint) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}
