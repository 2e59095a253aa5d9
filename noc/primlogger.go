package noc

import (
	"log"

	"github.com/sarchlab/nocgolden/hooking"
)

// PrimLogger is a hook that prints every primitive the grid executes.
type PrimLogger struct {
	hooking.LogHookBase
}

// NewPrimLogger returns a PrimLogger that writes into the logger.
func NewPrimLogger(logger *log.Logger) *PrimLogger {
	h := new(PrimLogger)
	h.Logger = logger
	return h
}

// Func writes the primitive information into the logger.
func (h *PrimLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforePrim {
		return
	}

	info, ok := ctx.Item.(PrimInfo)
	if !ok {
		return
	}

	h.Printf("round %d, node %s, %s", info.Round, info.Coord, info.Op)
}
