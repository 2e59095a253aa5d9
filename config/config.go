// Package config loads fabric descriptions from JSON and assembles
// runnable simulators from them.
//
// A configuration names the grid shape and, per core, an optional
// initial memory image, routing message runs to encode into that
// memory, and the primitive queue the core executes.
package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/nocgolden/core"
	"github.com/sarchlab/nocgolden/prim"
	"github.com/sarchlab/nocgolden/routing"
)

// Config describes a whole fabric.
type Config struct {
	Height     int          `json:"height"`
	Width      int          `json:"width"`
	Addressing string       `json:"addressing,omitempty"`
	NumCells   *int         `json:"num_cells,omitempty"`
	Cores      []CoreConfig `json:"cores"`

	baseDir string
}

// CoreConfig places one core's setup at a grid coordinate.
type CoreConfig struct {
	Y      int        `json:"y"`
	X      int        `json:"x"`
	Config CoreDetail `json:"config"`
}

// CoreDetail is the per-core setup.
type CoreDetail struct {
	InitMemPath string       `json:"init_mem_path,omitempty"`
	Messages    []MessageRun `json:"messages,omitempty"`
	PrimQueue   []PrimConfig `json:"prim_queue,omitempty"`
}

// MessageRun is a run of routing messages encoded into memory starting
// at a cell address.
type MessageRun struct {
	Addr    int             `json:"addr"`
	Entries []MessageConfig `json:"entries"`
}

// MessageConfig is the JSON form of one routing message.
type MessageConfig struct {
	Sparse    uint8  `json:"sparse,omitempty"`
	Y         int8   `json:"y"`
	X         int8   `json:"x"`
	A0        uint16 `json:"a0"`
	Cnt       uint16 `json:"cnt"`
	AOffset   int16  `json:"a_offset"`
	ConstRaw  uint8  `json:"const_raw,omitempty"`
	Handshake bool   `json:"handshake,omitempty"`
	TagID     uint8  `json:"tag_id"`
	En        bool   `json:"en"`
}

// Message converts the JSON form into a routing message.
func (m MessageConfig) Message() routing.Message {
	return routing.Message{
		Sparse:    m.Sparse,
		Y:         m.Y,
		X:         m.X,
		A0:        m.A0,
		Cnt:       m.Cnt,
		AOffset:   m.AOffset,
		Const:     m.ConstRaw,
		Handshake: m.Handshake,
		TagID:     m.TagID,
		En:        m.En,
	}
}

// PrimConfig is the JSON form of one queued primitive. Messages carries
// a send's inline routing messages, written to the table at para_addr
// when the send executes.
type PrimConfig struct {
	PrimType   string          `json:"prim_type"`
	SendMode   string          `json:"send_mode,omitempty"`
	SendAddr   int             `json:"send_addr,omitempty"`
	ParaAddr   int             `json:"para_addr,omitempty"`
	MessageNum int             `json:"message_num,omitempty"`
	NeuronType int             `json:"neuron_type,omitempty"`
	Messages   []MessageConfig `json:"messages,omitempty"`
	RecvAddr   int             `json:"recv_addr,omitempty"`
	TagID      int             `json:"tag_id,omitempty"`
	EndNum     int             `json:"end_num,omitempty"`
	RelayMode  int             `json:"relay_mode,omitempty"`
	McY        int             `json:"mc_y,omitempty"`
	McX        int             `json:"mc_x,omitempty"`
}

// Op converts the JSON form into a primitive.
func (p PrimConfig) Op() (prim.Op, error) {
	switch strings.ToLower(p.PrimType) {
	case "send":
		mode, err := parseMode(p.SendMode)
		if err != nil {
			return prim.Op{}, err
		}
		if p.NeuronType < 0 || p.NeuronType > 0xff {
			return prim.Op{}, errors.Wrapf(routing.ErrInvalidField,
				"neuron_type %d exceeds 8 bits", p.NeuronType)
		}

		var msgs []routing.Message
		for _, mc := range p.Messages {
			msgs = append(msgs, mc.Message())
		}

		return prim.NewSendOp(prim.Send{
			SendAddr:   p.SendAddr,
			ParaAddr:   p.ParaAddr,
			MessageNum: p.MessageNum,
			Mode:       mode,
			NeuronType: uint8(p.NeuronType),
			Messages:   msgs,
		}), nil

	case "recv":
		if p.TagID < 0 || p.TagID > 0xff {
			return prim.Op{}, errors.Wrapf(routing.ErrInvalidField,
				"tag_id %d exceeds 8 bits", p.TagID)
		}
		if p.RelayMode < 0 || p.RelayMode > 0xff {
			return prim.Op{}, errors.Wrapf(routing.ErrInvalidField,
				"relay_mode %d exceeds 8 bits", p.RelayMode)
		}
		if p.McY < -0x80 || p.McY > 0x7f || p.McX < -0x80 || p.McX > 0x7f {
			return prim.Op{}, errors.Wrapf(routing.ErrInvalidField,
				"multicast offset (%d,%d) exceeds 8 bits", p.McY, p.McX)
		}

		return prim.NewRecvOp(prim.Recv{
			RecvAddr:  p.RecvAddr,
			TagID:     uint8(p.TagID),
			EndNum:    p.EndNum,
			RelayMode: uint8(p.RelayMode),
			McY:       int8(p.McY),
			McX:       int8(p.McX),
		}), nil

	case "stop":
		return prim.NewStopOp(), nil
	}

	return prim.Op{}, errors.Wrapf(routing.ErrInvalidField,
		"prim_type %q", p.PrimType)
}

func parseMode(s string) (prim.Mode, error) {
	switch strings.ToLower(s) {
	case "", "cell":
		return prim.ModeCell, nil
	case "neuron":
		return prim.ModeNeuron, nil
	}

	return 0, errors.Wrapf(routing.ErrInvalidField, "mode %q", s)
}

// ParseAddressing maps the JSON addressing value onto the fabric's
// addressing mode. The empty string selects relative addressing.
func ParseAddressing(s string) (core.Addressing, error) {
	switch strings.ToLower(s) {
	case "", "relative":
		return core.Relative, nil
	case "absolute":
		return core.Absolute, nil
	}

	return 0, errors.Wrapf(routing.ErrInvalidField, "addressing %q", s)
}

// Parse reads a configuration from r.
func Parse(r io.Reader) (*Config, error) {
	var c Config

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	return &c, nil
}

// Load reads a configuration file. Relative init_mem_path entries are
// later resolved against the file's directory.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	c.baseDir = filepath.Dir(path)

	return c, nil
}

// Validate checks the configuration for shape errors before any node
// is built.
func (c *Config) Validate() error {
	if c.Height < 1 {
		return errors.Wrapf(routing.ErrInvalidField, "height %d", c.Height)
	}
	if c.Width < 1 {
		return errors.Wrapf(routing.ErrInvalidField, "width %d", c.Width)
	}
	if c.NumCells != nil && *c.NumCells < 0 {
		return errors.Wrapf(routing.ErrInvalidField, "num_cells %d", *c.NumCells)
	}

	if _, err := ParseAddressing(c.Addressing); err != nil {
		return err
	}

	seen := make(map[core.Coord]bool)

	for i, cc := range c.Cores {
		coord := core.Coord{Y: cc.Y, X: cc.X}

		if cc.Y < 0 || cc.Y >= c.Height || cc.X < 0 || cc.X >= c.Width {
			return errors.Wrapf(routing.ErrInvalidField,
				"cores[%d]: %s outside %dx%d grid", i, coord, c.Height, c.Width)
		}
		if seen[coord] {
			return errors.Wrapf(routing.ErrInvalidField,
				"cores[%d]: duplicate core %s", i, coord)
		}
		seen[coord] = true

		for j, mr := range cc.Config.Messages {
			if mr.Addr < 0 {
				return errors.Wrapf(routing.ErrInvalidField,
					"cores[%d].messages[%d]: addr %d", i, j, mr.Addr)
			}

			for k, mc := range mr.Entries {
				if _, err := routing.Encode(mc.Message()); err != nil {
					return errors.Wrapf(err,
						"cores[%d].messages[%d].entries[%d]", i, j, k)
				}
			}
		}

		for j, pc := range cc.Config.PrimQueue {
			op, err := pc.Op()
			if err != nil {
				return errors.Wrapf(err, "cores[%d].prim_queue[%d]", i, j)
			}

			if err := op.Validate(); err != nil {
				return errors.Wrapf(err, "cores[%d].prim_queue[%d]", i, j)
			}
		}
	}

	return nil
}

// resolvePath resolves a possibly relative path against the directory
// the configuration was loaded from.
func (c *Config) resolvePath(p string) string {
	if filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}

	return filepath.Join(c.baseDir, p)
}
