// Package mem provides the per-node memory image of the routing fabric.
//
// Memory is addressed in 32-byte cells. Cells are allocated lazily, so an
// image only pays for the cells that a run actually touches. Untouched
// cells read as zero.
package mem

import (
	"sort"

	"github.com/pkg/errors"
)

// CellBytes is the size of one addressable cell.
const CellBytes = 32

// DefaultNumCells is the cell count of a standard node memory, 768 KiB.
const DefaultNumCells = 24576

// ErrCellRange is returned when a cell address falls outside the image.
var ErrCellRange = errors.New("cell address out of range")

// An Image is the byte content of one node's local memory.
//
// An Image is not safe for concurrent use. Callers that share an image
// across goroutines must serialize access themselves.
type Image struct {
	numCells int
	cells    map[int]*[CellBytes]byte
}

// NewImage creates an image bounded to numCells cells. A numCells of 0
// leaves the image unbounded, growing with the highest cell touched.
func NewImage(numCells int) *Image {
	if numCells < 0 {
		panic("numCells must not be negative")
	}

	return &Image{
		numCells: numCells,
		cells:    make(map[int]*[CellBytes]byte),
	}
}

// NumCells returns the cell bound of the image, 0 if unbounded.
func (im *Image) NumCells() int {
	return im.numCells
}

func (im *Image) checkAddr(addr int) error {
	if addr < 0 || (im.numCells > 0 && addr >= im.numCells) {
		return errors.Wrapf(ErrCellRange, "cell %#x", addr)
	}

	return nil
}

func (im *Image) cell(addr int, alloc bool) (*[CellBytes]byte, error) {
	if err := im.checkAddr(addr); err != nil {
		return nil, err
	}

	c, ok := im.cells[addr]
	if !ok {
		if !alloc {
			return nil, nil
		}

		c = new([CellBytes]byte)
		im.cells[addr] = c
	}

	return c, nil
}

// ReadCell returns the 32 bytes stored at a cell address.
func (im *Image) ReadCell(addr int) ([CellBytes]byte, error) {
	var out [CellBytes]byte

	c, err := im.cell(addr, false)
	if err != nil {
		return out, err
	}

	if c != nil {
		out = *c
	}

	return out, nil
}

// WriteCell replaces the 32 bytes stored at a cell address.
func (im *Image) WriteCell(addr int, data [CellBytes]byte) error {
	c, err := im.cell(addr, true)
	if err != nil {
		return err
	}

	*c = data

	return nil
}

// Write8 stores an 8-byte segment inside a cell. The segment index selects
// bytes [8*seg, 8*seg+8) of the cell and must be in [0, 4).
func (im *Image) Write8(addr, seg int, data [8]byte) error {
	if seg < 0 || seg >= CellBytes/8 {
		panic("segment index out of range")
	}

	c, err := im.cell(addr, true)
	if err != nil {
		return err
	}

	copy(c[seg*8:seg*8+8], data[:])

	return nil
}

// Write1 stores a single byte inside a cell. The byte index must be in
// [0, 32).
func (im *Image) Write1(addr, idx int, b byte) error {
	if idx < 0 || idx >= CellBytes {
		panic("byte index out of range")
	}

	c, err := im.cell(addr, true)
	if err != nil {
		return err
	}

	c[idx] = b

	return nil
}

// ReadLinear reads n bytes starting offset bytes into the linear byte
// space that begins at cell addr. The read crosses cell boundaries as if
// the cells were laid out back to back.
func (im *Image) ReadLinear(addr, offset, n int) ([]byte, error) {
	if offset < 0 || n < 0 {
		panic("negative linear read")
	}

	byteAddr := addr*CellBytes + offset
	if byteAddr < 0 {
		return nil, errors.Wrapf(ErrCellRange, "cell %#x", addr)
	}

	out := make([]byte, n)
	done := 0

	for done < n {
		cellAddr := byteAddr / CellBytes
		inCell := byteAddr % CellBytes

		c, err := im.cell(cellAddr, false)
		if err != nil {
			return nil, err
		}

		chunk := CellBytes - inCell
		if left := n - done; left < chunk {
			chunk = left
		}

		if c != nil {
			copy(out[done:done+chunk], c[inCell:inCell+chunk])
		}

		done += chunk
		byteAddr += chunk
	}

	return out, nil
}

// Touched returns the addresses of all cells that have been allocated, in
// ascending order.
func (im *Image) Touched() []int {
	addrs := make([]int, 0, len(im.cells))
	for a := range im.cells {
		addrs = append(addrs, a)
	}

	sort.Ints(addrs)

	return addrs
}

// HighestTouched returns the largest allocated cell address, or -1 if no
// cell has been written.
func (im *Image) HighestTouched() int {
	high := -1
	for a := range im.cells {
		if a > high {
			high = a
		}
	}

	return high
}

// Span8 splits a signed 8-byte-unit address into the cell this unit lands
// in, relative to a base cell, and the segment inside that cell. The shift
// is arithmetic, so negative addresses keep pointing below the base.
func Span8(a int32) (cellOff int32, seg int) {
	return a >> 2, int(a & 3)
}

// Span1 splits a signed byte-unit address into the cell this byte lands
// in, relative to a base cell, and the byte index inside that cell.
func Span1(a int32) (cellOff int32, idx int) {
	return a >> 5, int(a & 31)
}
