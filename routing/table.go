package routing

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sarchlab/nocgolden/mem"
)

// MessagesPerCell is the number of routing messages one cell holds.
const MessagesPerCell = 2

// PackRow assembles one cell from two wire words. The cell is the
// big-endian image of a 256-bit value whose low half is the even message
// and whose high half is the odd message.
func PackRow(even, odd Word) [mem.CellBytes]byte {
	var row [mem.CellBytes]byte

	binary.BigEndian.PutUint64(row[0:8], odd.Hi)
	binary.BigEndian.PutUint64(row[8:16], odd.Lo)
	binary.BigEndian.PutUint64(row[16:24], even.Hi)
	binary.BigEndian.PutUint64(row[24:32], even.Lo)

	return row
}

// UnpackRow splits one cell into its two wire words.
func UnpackRow(row [mem.CellBytes]byte) (even, odd Word) {
	odd.Hi = binary.BigEndian.Uint64(row[0:8])
	odd.Lo = binary.BigEndian.Uint64(row[8:16])
	even.Hi = binary.BigEndian.Uint64(row[16:24])
	even.Lo = binary.BigEndian.Uint64(row[24:32])

	return even, odd
}

// A Table reads and writes routing messages stored in a node's memory
// image. Message i of a run that starts at cell addr lives in cell
// addr+i/2, even indexes in the low half of the cell.
type Table struct {
	im *mem.Image
}

// NewTable wraps a memory image for message access.
func NewTable(im *mem.Image) *Table {
	return &Table{im: im}
}

// ReadMessage decodes message i of the run starting at cell addr.
func (t *Table) ReadMessage(addr, i int) (Message, error) {
	if i < 0 {
		panic("message index must not be negative")
	}

	row, err := t.im.ReadCell(addr + i/MessagesPerCell)
	if err != nil {
		return Message{}, errors.Wrapf(err, "message %d at %#x", i, addr)
	}

	even, odd := UnpackRow(row)
	if i%MessagesPerCell == 0 {
		return Decode(even), nil
	}

	return Decode(odd), nil
}

// ReadMessages decodes the first n messages of the run starting at cell
// addr.
func (t *Table) ReadMessages(addr, n int) ([]Message, error) {
	msgs := make([]Message, 0, n)

	for i := 0; i < n; i++ {
		m, err := t.ReadMessage(addr, i)
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, m)
	}

	return msgs, nil
}

// WriteMessage encodes one message into slot i of the run starting at
// cell addr. The other half of the cell is preserved bit for bit.
func (t *Table) WriteMessage(addr, i int, m Message) error {
	if i < 0 {
		panic("message index must not be negative")
	}

	w, err := Encode(m)
	if err != nil {
		return errors.Wrapf(err, "message %d at %#x", i, addr)
	}

	cellAddr := addr + i/MessagesPerCell

	row, err := t.im.ReadCell(cellAddr)
	if err != nil {
		return errors.Wrapf(err, "message %d at %#x", i, addr)
	}

	even, odd := UnpackRow(row)
	if i%MessagesPerCell == 0 {
		even = w
	} else {
		odd = w
	}

	return t.im.WriteCell(cellAddr, PackRow(even, odd))
}

// WriteMessages encodes a run of messages starting at cell addr. Whole
// cells are written: an odd run leaves the zero (disabled) message in
// the unused half of its last cell.
func (t *Table) WriteMessages(addr int, msgs []Message) error {
	for i := 0; i < len(msgs); i += MessagesPerCell {
		even, err := Encode(msgs[i])
		if err != nil {
			return errors.Wrapf(err, "message %d at %#x", i, addr)
		}

		var odd Word
		if i+1 < len(msgs) {
			odd, err = Encode(msgs[i+1])
			if err != nil {
				return errors.Wrapf(err, "message %d at %#x", i+1, addr)
			}
		}

		cellAddr := addr + i/MessagesPerCell
		if err := t.im.WriteCell(cellAddr, PackRow(even, odd)); err != nil {
			return errors.Wrapf(err, "message %d at %#x", i, addr)
		}
	}

	return nil
}
