package noc

import (
	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/hooking"
	"github.com/sarchlab/nocgolden/mem"
)

// Builder assembles a Simulator and the grid of nodes it drives.
type Builder struct {
	height     int
	width      int
	addressing core.Addressing
	numCells   int
}

// MakeBuilder returns a new Builder with the standard node memory size
// and relative addressing.
func MakeBuilder() Builder {
	return Builder{
		numCells:   mem.DefaultNumCells,
		addressing: core.Relative,
	}
}

// WithHeight sets the number of grid rows.
func (b Builder) WithHeight(height int) Builder {
	b.height = height
	return b
}

// WithWidth sets the number of grid columns.
func (b Builder) WithWidth(width int) Builder {
	b.width = width
	return b
}

// WithAddressing sets how messages name their destinations.
func (b Builder) WithAddressing(addressing core.Addressing) Builder {
	b.addressing = addressing
	return b
}

// WithNumCells sets the memory size of every node, in cells. A value of
// 0 leaves node memories unbounded.
func (b Builder) WithNumCells(numCells int) Builder {
	b.numCells = numCells
	return b
}

// Build creates the simulator and its nodes.
func (b Builder) Build(name string) *Simulator {
	if b.height <= 0 {
		panic("height must be set before building")
	}
	if b.width <= 0 {
		panic("width must be set before building")
	}
	if b.numCells < 0 {
		panic("numCells must not be negative")
	}

	s := &Simulator{
		HookableBase: *hooking.NewHookableBase(),
		name:         name,
		height:       b.height,
		width:        b.width,
		addressing:   b.addressing,
	}

	s.nodes = make([]*core.Node, 0, b.height*b.width)
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			im := mem.NewImage(b.numCells)
			s.nodes = append(s.nodes,
				core.NewNode(core.Coord{Y: y, X: x}, b.addressing, im))
		}
	}

	return s
}
