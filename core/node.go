// Package core implements a single node of the routing fabric: its
// memory image, its primitive queue, and the tag matching state that
// anchors incoming traffic in its memory.
package core

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/nocgolden/mem"
	"github.com/sarchlab/nocgolden/prim"
	"github.com/sarchlab/nocgolden/routing"
)

// ErrQueueEmpty is returned when a node is asked to execute but has no
// primitive left to run.
var ErrQueueEmpty = errors.New("primitive queue empty")

// ErrUnresolvedTag is returned when a plain send reaches a node that
// has never executed a receive for the send's tag.
var ErrUnresolvedTag = errors.New("no receiver registered for tag")

// A Coord addresses a node by row and column.
type Coord struct {
	Y int
	X int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Y, c.X)
}

// Addressing selects how message coordinates name a destination.
type Addressing int

const (
	// Relative treats message coordinates as signed offsets from the
	// sending node.
	Relative Addressing = iota

	// Absolute treats message coordinates as grid positions.
	Absolute
)

func (a Addressing) String() string {
	switch a {
	case Relative:
		return "relative"
	case Absolute:
		return "absolute"
	}

	return fmt.Sprintf("addressing(%d)", int(a))
}

// tagState tracks one tag at a receiving node. Parcels that arrive with
// the handshake flag before the matching receive wait in pending.
type tagState struct {
	recvAddr int
	seen     bool
	pending  []Parcel
}

// A Node is one core of the fabric.
//
// A Node is not safe for concurrent use. The scheduler serializes all
// execution and delivery.
type Node struct {
	coord      Coord
	addressing Addressing
	image      *mem.Image
	table      *routing.Table

	queue   []prim.Op
	cursor  int
	stopped bool

	tags map[uint8]*tagState
}

// NewNode creates a node at the given coordinate backed by the given
// memory image.
func NewNode(coord Coord, addressing Addressing, im *mem.Image) *Node {
	if im == nil {
		panic("node needs a memory image")
	}

	return &Node{
		coord:      coord,
		addressing: addressing,
		image:      im,
		table:      routing.NewTable(im),
		tags:       make(map[uint8]*tagState),
	}
}

// Coord returns the node's grid position.
func (n *Node) Coord() Coord {
	return n.coord
}

// Image returns the node's memory image.
func (n *Node) Image() *mem.Image {
	return n.image
}

// Enqueue validates primitives and appends them to the node's queue.
func (n *Node) Enqueue(ops ...prim.Op) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return errors.Wrapf(err, "node %s", n.coord)
		}
	}

	n.queue = append(n.queue, ops...)

	return nil
}

// Pending returns the number of primitives not yet executed. A stopped
// node reports 0 regardless of what is still queued.
func (n *Node) Pending() int {
	if n.stopped {
		return 0
	}

	return len(n.queue) - n.cursor
}

// Executed returns the number of primitives the node has run.
func (n *Node) Executed() int {
	return n.cursor
}

// Stopped reports whether the node has run a stop primitive.
func (n *Node) Stopped() bool {
	return n.stopped
}

// Done reports whether the node has nothing left to execute.
func (n *Node) Done() bool {
	return n.Pending() == 0
}

// PeekNext returns the primitive the node would run next without
// executing it.
func (n *Node) PeekNext() (prim.Op, bool) {
	if n.stopped || n.cursor >= len(n.queue) {
		return prim.Op{}, false
	}

	return n.queue[n.cursor], true
}

// ExecuteNext pops one primitive and executes it, handing every unit a
// send produces to sink. It returns the primitive it ran.
func (n *Node) ExecuteNext(sink DeliverySink) (prim.Op, error) {
	if n.stopped || n.cursor >= len(n.queue) {
		return prim.Op{}, errors.Wrapf(ErrQueueEmpty, "node %s", n.coord)
	}

	op := n.queue[n.cursor]
	n.cursor++

	switch op.Kind {
	case prim.KindSend:
		return op, n.send(op.Send, sink)
	case prim.KindRecv:
		return op, n.recv(op.Recv)
	case prim.KindStop:
		n.stopped = true
		return op, nil
	}

	return op, errors.Wrapf(routing.ErrInvalidField,
		"node %s: op kind %d", n.coord, int(op.Kind))
}

// send streams the units of every enabled message to the sink. Inline
// messages are written to the table first, so the table always holds
// what the send transmitted. The payload cursor is linear across the
// whole run: a disabled message still consumes its share of the
// payload.
func (n *Node) send(s *prim.Send, sink DeliverySink) error {
	if len(s.Messages) > 0 {
		if err := n.table.WriteMessages(s.ParaAddr, s.Messages); err != nil {
			return errors.Wrap(err, "inline messages")
		}
	}

	unitBytes := s.Mode.UnitBytes()
	srcUnit := 0

	for i := 0; i < s.NumMessages(); i++ {
		m, err := n.table.ReadMessage(s.ParaAddr, i)
		if err != nil {
			return errors.Wrapf(err, "message %d", i)
		}

		units := m.UnitCount()

		if !m.En {
			srcUnit += units
			continue
		}

		payload, err := n.image.ReadLinear(
			s.SendAddr, srcUnit*unitBytes, units*unitBytes)
		if err != nil {
			return errors.Wrapf(err, "message %d payload", i)
		}

		dst := n.resolveDst(m)
		walk := m.Walk()

		for u := 0; u < units; u++ {
			a, _ := walk.Next()

			p := Parcel{
				Mode: s.Mode,
				A:    a,
				Data: payload[u*unitBytes : (u+1)*unitBytes],
			}

			err := sink.Deliver(dst, m.TagID, m.Handshake, p)
			if err != nil {
				return errors.Wrapf(err, "message %d unit %d", i, u)
			}
		}

		srcUnit += units
	}

	return nil
}

func (n *Node) resolveDst(m routing.Message) Coord {
	if n.addressing == Absolute {
		return Coord{Y: int(m.Y), X: int(m.X)}
	}

	return Coord{Y: n.coord.Y + int(m.Y), X: n.coord.X + int(m.X)}
}

// recv registers the node as the receiver for the tag and drains any
// parcels that arrived ahead of it, in arrival order. A later receive
// with the same tag re-anchors the tag at its own address.
func (n *Node) recv(r *prim.Recv) error {
	st := n.tags[r.TagID]
	if st == nil {
		st = &tagState{}
		n.tags[r.TagID] = st
	}

	st.recvAddr = r.RecvAddr
	st.seen = true

	pending := st.pending
	st.pending = nil

	for i, p := range pending {
		if err := n.commit(st.recvAddr, p); err != nil {
			return errors.Wrapf(err, "tag %#04x buffered parcel %d", r.TagID, i)
		}
	}

	return nil
}

// Accept takes one delivered parcel. Handshake traffic for a tag the
// node has not received yet waits in the tag's buffer, reported by the
// buffered result. Plain traffic requires the tag to have been
// registered at some point.
func (n *Node) Accept(tag uint8, handshake bool, p Parcel) (buffered bool, err error) {
	st := n.tags[tag]

	if handshake {
		if st != nil && st.seen {
			return false, n.commit(st.recvAddr, p)
		}

		if st == nil {
			st = &tagState{}
			n.tags[tag] = st
		}
		st.pending = append(st.pending, p)

		return true, nil
	}

	if st == nil || !st.seen {
		return false, errors.Wrapf(ErrUnresolvedTag,
			"tag %#04x at node %s", tag, n.coord)
	}

	return false, n.commit(st.recvAddr, p)
}

// Buffered returns the number of parcels waiting across all tag
// buffers.
func (n *Node) Buffered() int {
	total := 0
	for _, st := range n.tags {
		total += len(st.pending)
	}

	return total
}

// commit writes one parcel into the image, anchored at recvAddr.
func (n *Node) commit(recvAddr int, p Parcel) error {
	switch p.Mode {
	case prim.ModeCell:
		cellOff, seg := mem.Span8(p.A)
		return n.image.Write8(recvAddr+int(cellOff), seg, [8]byte(p.Data))
	case prim.ModeNeuron:
		cellOff, idx := mem.Span1(p.A)
		return n.image.Write1(recvAddr+int(cellOff), idx, p.Data[0])
	}

	panic(fmt.Sprintf("invalid parcel mode %d", int(p.Mode)))
}
