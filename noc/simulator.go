// Package noc implements the round-synchronous scheduler that drives a
// grid of nodes. Each round visits the grid in row-major order and runs
// exactly one primitive on every node that still has work, so the
// effects of a primitive are visible to every node scheduled after it
// in the same round.
package noc

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/hooking"
	"github.com/sarchlab/nocgolden/prim"
)

// ErrNoSuchCore is returned when a message names a destination outside
// the grid. Coordinates do not wrap.
var ErrNoSuchCore = errors.New("destination outside the grid")

// HookPosBeforePrim triggers before a node runs a primitive.
var HookPosBeforePrim = &hooking.HookPos{Name: "BeforePrim"}

// HookPosAfterPrim triggers after a node ran a primitive.
var HookPosAfterPrim = &hooking.HookPos{Name: "AfterPrim"}

// HookPosDelivery triggers after a unit landed at its destination.
var HookPosDelivery = &hooking.HookPos{Name: "Delivery"}

// PrimInfo is the hook item at HookPosBeforePrim and HookPosAfterPrim.
type PrimInfo struct {
	Round int
	Coord core.Coord
	Op    prim.Op
}

// DeliveryInfo is the hook item at HookPosDelivery.
type DeliveryInfo struct {
	Round     int
	Src       core.Coord
	Dst       core.Coord
	Tag       uint8
	Handshake bool
	Parcel    core.Parcel
	Buffered  bool
}

// A Simulator owns a grid of nodes and drives it until every node has
// drained its primitive queue or stopped.
type Simulator struct {
	hooking.HookableBase

	name       string
	height     int
	width      int
	addressing core.Addressing
	nodes      []*core.Node

	roundLock sync.RWMutex
	round     int

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// Name returns the name the simulator was built with.
func (s *Simulator) Name() string {
	return s.name
}

// Height returns the number of grid rows.
func (s *Simulator) Height() int {
	return s.height
}

// Width returns the number of grid columns.
func (s *Simulator) Width() int {
	return s.width
}

// Addressing returns how messages name their destinations.
func (s *Simulator) Addressing() core.Addressing {
	return s.addressing
}

// Nodes returns all nodes in row-major order.
func (s *Simulator) Nodes() []*core.Node {
	return s.nodes
}

// NodeAt returns the node at a coordinate, or nil if the coordinate is
// outside the grid.
func (s *Simulator) NodeAt(c core.Coord) *core.Node {
	if c.Y < 0 || c.Y >= s.height || c.X < 0 || c.X >= s.width {
		return nil
	}

	return s.nodes[c.Y*s.width+c.X]
}

func (s *Simulator) readRound() int {
	s.roundLock.RLock()
	r := s.round
	s.roundLock.RUnlock()
	return r
}

func (s *Simulator) writeRound(r int) {
	s.roundLock.Lock()
	s.round = r
	s.roundLock.Unlock()
}

// Round returns the index of the round currently running, or, after Run
// returned, the number of completed rounds.
func (s *Simulator) Round() int {
	return s.readRound()
}

// Executed returns the total number of primitives run so far.
func (s *Simulator) Executed() int {
	total := 0
	for _, n := range s.nodes {
		total += n.Executed()
	}

	return total
}

// TotalPending returns the number of primitives still waiting across
// the grid.
func (s *Simulator) TotalPending() int {
	total := 0
	for _, n := range s.nodes {
		total += n.Pending()
	}

	return total
}

// TotalBuffered returns the number of handshake parcels waiting in tag
// buffers across the grid.
func (s *Simulator) TotalBuffered() int {
	total := 0
	for _, n := range s.nodes {
		total += n.Buffered()
	}

	return total
}

// Run drives the grid round by round until no node has work left. It
// returns the first execution error, annotated with the round, the
// node, and the primitive that failed.
func (s *Simulator) Run() error {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	for {
		if s.TotalPending() == 0 {
			return nil
		}

		if err := s.runRound(); err != nil {
			return err
		}

		s.writeRound(s.readRound() + 1)
	}
}

func (s *Simulator) runRound() error {
	round := s.readRound()

	for _, n := range s.nodes {
		s.pauseLock.Lock()

		op, ok := n.PeekNext()
		if !ok {
			s.pauseLock.Unlock()
			continue
		}

		hookCtx := hooking.HookCtx{
			Domain: s,
			Pos:    HookPosBeforePrim,
			Item:   PrimInfo{Round: round, Coord: n.Coord(), Op: op},
		}
		s.InvokeHook(hookCtx)

		_, err := n.ExecuteNext(sink{sim: s, src: n.Coord(), round: round})
		if err != nil {
			s.pauseLock.Unlock()
			return errors.Wrapf(err, "round %d, node %s, %s",
				round, n.Coord(), op)
		}

		hookCtx.Pos = HookPosAfterPrim
		s.InvokeHook(hookCtx)

		s.pauseLock.Unlock()
	}

	return nil
}

// Pause prevents the simulator from running more primitives until
// Continue is called.
func (s *Simulator) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue allows a paused simulator to run again.
func (s *Simulator) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// sink routes the units one node sends during one primitive.
type sink struct {
	sim   *Simulator
	src   core.Coord
	round int
}

func (d sink) Deliver(
	dst core.Coord,
	tag uint8,
	handshake bool,
	p core.Parcel,
) error {
	n := d.sim.NodeAt(dst)
	if n == nil {
		return errors.Wrapf(ErrNoSuchCore, "dst %s", dst)
	}

	buffered, err := n.Accept(tag, handshake, p)
	if err != nil {
		return err
	}

	d.sim.InvokeHook(hooking.HookCtx{
		Domain: d.sim,
		Pos:    HookPosDelivery,
		Item: DeliveryInfo{
			Round:     d.round,
			Src:       d.src,
			Dst:       dst,
			Tag:       tag,
			Handshake: handshake,
			Parcel:    p,
			Buffered:  buffered,
		},
	})

	return nil
}
