// Package prim defines the primitives that drive a node: sending a
// block of routing messages, opening a receive window for a tag, and
// stopping the node.
package prim

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/nocgolden/routing"
)

// A Mode selects the transfer granularity of a send and of the writes
// it causes at the receiver.
type Mode int

const (
	// ModeCell transfers 8-byte units, four to a destination cell.
	ModeCell Mode = iota

	// ModeNeuron transfers single bytes, thirty-two to a destination
	// cell.
	ModeNeuron
)

// UnitBytes returns the byte width of one transfer unit.
func (m Mode) UnitBytes() int {
	switch m {
	case ModeCell:
		return 8
	case ModeNeuron:
		return 1
	}

	panic(fmt.Sprintf("invalid mode %d", int(m)))
}

func (m Mode) String() string {
	switch m {
	case ModeCell:
		return "cell"
	case ModeNeuron:
		return "neuron"
	}

	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) valid() bool {
	return m == ModeCell || m == ModeNeuron
}

// maxAddr bounds the cell addresses a primitive can carry.
const maxAddr = 0xffff

// maxMessageNum bounds the message count of a send.
const maxMessageNum = 0xff

// A Send reads MessageNum routing messages starting at cell ParaAddr
// and streams payload read linearly from cell SendAddr to the
// destinations the messages name.
//
// Messages, when non-empty, is written to the table at ParaAddr as the
// send executes and its length overrides MessageNum. NeuronType
// mirrors a hardware field and is accepted but not interpreted.
type Send struct {
	SendAddr   int
	ParaAddr   int
	MessageNum int
	Mode       Mode
	NeuronType uint8
	Messages   []routing.Message
}

// Validate checks that every field fits its hardware width.
func (s Send) Validate() error {
	switch {
	case s.SendAddr < 0 || s.SendAddr > maxAddr:
		return errors.Wrapf(routing.ErrInvalidField,
			"send_addr %#x exceeds 16 bits", s.SendAddr)
	case s.ParaAddr < 0 || s.ParaAddr > maxAddr:
		return errors.Wrapf(routing.ErrInvalidField,
			"para_addr %#x exceeds 16 bits", s.ParaAddr)
	case s.MessageNum < 0 || s.MessageNum > maxMessageNum:
		return errors.Wrapf(routing.ErrInvalidField,
			"message_num %d exceeds 8 bits", s.MessageNum)
	case len(s.Messages) > maxMessageNum:
		return errors.Wrapf(routing.ErrInvalidField,
			"%d inline messages exceed 8 bits", len(s.Messages))
	case !s.Mode.valid():
		return errors.Wrapf(routing.ErrInvalidField,
			"mode %d", int(s.Mode))
	}

	for i, m := range s.Messages {
		if _, err := routing.Encode(m); err != nil {
			return errors.Wrapf(err, "messages[%d]", i)
		}
	}

	return nil
}

// NumMessages returns the message count. Inline messages take
// precedence; otherwise a stored 0 means 1.
func (s Send) NumMessages() int {
	if len(s.Messages) > 0 {
		return len(s.Messages)
	}

	if s.MessageNum == 0 {
		return 1
	}

	return s.MessageNum
}

func (s Send) String() string {
	return fmt.Sprintf("send mode=%s send_addr=%#x para_addr=%#x n=%d",
		s.Mode, s.SendAddr, s.ParaAddr, s.NumMessages())
}

// A Recv registers the node as the receiver for a tag, anchoring later
// deliveries of that tag at cell RecvAddr. EndNum, RelayMode, McY, and
// McX mirror hardware fields and are accepted but not interpreted.
type Recv struct {
	RecvAddr  int
	TagID     uint8
	EndNum    int
	RelayMode uint8
	McY       int8
	McX       int8
}

// Validate checks that every field fits its hardware width.
func (r Recv) Validate() error {
	if r.RecvAddr < 0 || r.RecvAddr > maxAddr {
		return errors.Wrapf(routing.ErrInvalidField,
			"recv_addr %#x exceeds 16 bits", r.RecvAddr)
	}

	return nil
}

func (r Recv) String() string {
	return fmt.Sprintf("recv tag=%#04x recv_addr=%#x", r.TagID, r.RecvAddr)
}

// A Stop halts the node. Primitives queued after a stop never execute.
type Stop struct{}

func (Stop) String() string {
	return "stop"
}

// A Kind discriminates the variants of an Op.
type Kind int

const (
	KindSend Kind = iota
	KindRecv
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindRecv:
		return "recv"
	case KindStop:
		return "stop"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// An Op is one queued primitive. Exactly the variant selected by Kind
// is set.
type Op struct {
	Kind Kind
	Send *Send
	Recv *Recv
	Stop *Stop
}

// NewSendOp wraps a send primitive.
func NewSendOp(s Send) Op {
	return Op{Kind: KindSend, Send: &s}
}

// NewRecvOp wraps a receive primitive.
func NewRecvOp(r Recv) Op {
	return Op{Kind: KindRecv, Recv: &r}
}

// NewStopOp wraps a stop primitive.
func NewStopOp() Op {
	return Op{Kind: KindStop, Stop: &Stop{}}
}

// Validate checks the selected variant.
func (o Op) Validate() error {
	switch o.Kind {
	case KindSend:
		if o.Send == nil {
			return errors.Wrap(routing.ErrInvalidField, "send op without body")
		}
		return o.Send.Validate()
	case KindRecv:
		if o.Recv == nil {
			return errors.Wrap(routing.ErrInvalidField, "recv op without body")
		}
		return o.Recv.Validate()
	case KindStop:
		return nil
	}

	return errors.Wrapf(routing.ErrInvalidField, "op kind %d", int(o.Kind))
}

func (o Op) String() string {
	switch o.Kind {
	case KindSend:
		if o.Send != nil {
			return o.Send.String()
		}
	case KindRecv:
		if o.Recv != nil {
			return o.Recv.String()
		}
	case KindStop:
		return "stop"
	}

	return o.Kind.String()
}
