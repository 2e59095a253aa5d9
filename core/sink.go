package core

import "github.com/sarchlab/nocgolden/prim"

// A Parcel is one delivered transfer unit: the mode it was sent under,
// the unit address at the receiver, and the unit's bytes.
//
// The address is interpreted at commit time, against the receive
// address that is current when the parcel lands. Parcels buffered for a
// tag therefore resolve against the receive that later drains them.
type Parcel struct {
	Mode prim.Mode
	A    int32
	Data []byte
}

// A DeliverySink routes the units a node sends. The scheduler's sink
// resolves the destination coordinate to a node and hands the parcel to
// its Accept.
type DeliverySink interface {
	Deliver(dst Coord, tag uint8, handshake bool, p Parcel) error
}
