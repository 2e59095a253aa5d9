package config

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/mem"
	"github.com/sarchlab/nocgolden/noc"
	"github.com/sarchlab/nocgolden/prim"
	"github.com/sarchlab/nocgolden/routing"
)

// Build validates the configuration and assembles the fabric it
// describes: a grid of nodes with seeded memories, encoded routing
// message runs, and filled primitive queues.
func (c *Config) Build(name string) (*noc.Simulator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	addressing, _ := ParseAddressing(c.Addressing)

	b := noc.MakeBuilder().
		WithHeight(c.Height).
		WithWidth(c.Width).
		WithAddressing(addressing)
	if c.NumCells != nil {
		b = b.WithNumCells(*c.NumCells)
	}

	s := b.Build(name)

	for i, cc := range c.Cores {
		n := s.NodeAt(core.Coord{Y: cc.Y, X: cc.X})

		if err := c.setUpNode(n, cc.Config); err != nil {
			return nil, errors.Wrapf(err, "cores[%d], core %s", i, n.Coord())
		}
	}

	return s, nil
}

func (c *Config) setUpNode(n *core.Node, d CoreDetail) error {
	if d.InitMemPath != "" {
		path := c.resolvePath(d.InitMemPath)
		if err := mem.LoadImageFile(path, n.Image()); err != nil {
			return err
		}
	}

	table := routing.NewTable(n.Image())

	for j, mr := range d.Messages {
		msgs := make([]routing.Message, len(mr.Entries))
		for k, mc := range mr.Entries {
			msgs[k] = mc.Message()
		}

		if err := table.WriteMessages(mr.Addr, msgs); err != nil {
			return errors.Wrapf(err, "messages[%d]", j)
		}
	}

	for j, pc := range d.PrimQueue {
		op, err := pc.Op()
		if err != nil {
			return errors.Wrapf(err, "prim_queue[%d]", j)
		}

		// Inline send messages land in memory at build time, so a
		// seeded export already holds every table the run will use.
		if op.Kind == prim.KindSend && len(op.Send.Messages) > 0 {
			err := table.WriteMessages(op.Send.ParaAddr, op.Send.Messages)
			if err != nil {
				return errors.Wrapf(err, "prim_queue[%d]", j)
			}
		}

		if err := n.Enqueue(op); err != nil {
			return errors.Wrapf(err, "prim_queue[%d]", j)
		}
	}

	return nil
}
