package noc

import (
	"log"

	"github.com/sarchlab/nocgolden/hooking"
)

// DeliveryLogger is a hook that prints every unit that lands at a node.
type DeliveryLogger struct {
	hooking.LogHookBase
}

// NewDeliveryLogger returns a DeliveryLogger that writes into the
// logger.
func NewDeliveryLogger(logger *log.Logger) *DeliveryLogger {
	h := new(DeliveryLogger)
	h.Logger = logger
	return h
}

// Func writes the delivery information into the logger.
func (h *DeliveryLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosDelivery {
		return
	}

	info, ok := ctx.Item.(DeliveryInfo)
	if !ok {
		return
	}

	state := "committed"
	if info.Buffered {
		state = "buffered"
	}

	h.Printf("round %d, %s -> %s, tag %#04x, %s a=%d, % x, %s",
		info.Round, info.Src, info.Dst, info.Tag,
		info.Parcel.Mode, info.Parcel.A, info.Parcel.Data, state)
}
