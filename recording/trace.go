package recording

import (
	"encoding/hex"

	"github.com/sarchlab/nocgolden/hooking"
	"github.com/sarchlab/nocgolden/noc"
)

// Table names used by a Tracer.
const (
	PrimTable     = "prims"
	DeliveryTable = "deliveries"
	CellTable     = "cells"
)

// A PrimRow records one executed primitive.
type PrimRow struct {
	Seq   int
	Round int
	Y     int
	X     int
	Kind  string
	Prim  string
}

// A DeliveryRow records one unit landing at its destination. A
// handshake parcel that arrives before the tag is resolved is recorded
// once, at arrival, with Buffered set.
type DeliveryRow struct {
	Seq       int
	Round     int
	SrcY      int
	SrcX      int
	DstY      int
	DstX      int
	Tag       int
	Handshake bool
	Buffered  bool
	Mode      string
	Addr      int
	Data      string
}

// A CellRow records the content of one touched memory cell.
type CellRow struct {
	Y    int
	X    int
	Addr int
	Data string
}

// A Tracer is a hook that records executed primitives and deliveries
// into a DataRecorder. Attach it to a simulator with AcceptHook.
type Tracer struct {
	rec DataRecorder

	primSeq     int
	deliverySeq int
}

// NewTracer creates a Tracer and its tables in the recorder.
func NewTracer(rec DataRecorder) *Tracer {
	rec.CreateTable(PrimTable, PrimRow{})
	rec.CreateTable(DeliveryTable, DeliveryRow{})
	rec.CreateTable(CellTable, CellRow{})

	return &Tracer{rec: rec}
}

// Func records primitive and delivery hook events.
func (t *Tracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case noc.HookPosAfterPrim:
		info := ctx.Item.(noc.PrimInfo)

		t.rec.InsertData(PrimTable, PrimRow{
			Seq:   t.primSeq,
			Round: info.Round,
			Y:     info.Coord.Y,
			X:     info.Coord.X,
			Kind:  info.Op.Kind.String(),
			Prim:  info.Op.String(),
		})
		t.primSeq++

	case noc.HookPosDelivery:
		info := ctx.Item.(noc.DeliveryInfo)

		t.rec.InsertData(DeliveryTable, DeliveryRow{
			Seq:       t.deliverySeq,
			Round:     info.Round,
			SrcY:      info.Src.Y,
			SrcX:      info.Src.X,
			DstY:      info.Dst.Y,
			DstX:      info.Dst.X,
			Tag:       int(info.Tag),
			Handshake: info.Handshake,
			Buffered:  info.Buffered,
			Mode:      info.Parcel.Mode.String(),
			Addr:      int(info.Parcel.A),
			Data:      hex.EncodeToString(info.Parcel.Data),
		})
		t.deliverySeq++
	}
}

// RecordMemory snapshots every touched cell of every node. Call it
// after Run to capture the final memory state.
func (t *Tracer) RecordMemory(s *noc.Simulator) error {
	for _, n := range s.Nodes() {
		im := n.Image()

		for _, addr := range im.Touched() {
			cell, err := im.ReadCell(addr)
			if err != nil {
				return err
			}

			t.rec.InsertData(CellTable, CellRow{
				Y:    n.Coord().Y,
				X:    n.Coord().X,
				Addr: addr,
				Data: hex.EncodeToString(cell[:]),
			})
		}
	}

	return nil
}
