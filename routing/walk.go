package routing

// A Walker enumerates the destination unit addresses of one message's
// transfer. Addresses advance by one inside a group and by the group
// stride between groups:
//
//	A[0] = a0
//	A[k] = A[k-1] + 1            if k mod groupSize != 0
//	A[k] = A[k-1] + a_offset     if k mod groupSize == 0
//
// With a_offset of 1 the walk is a plain counter regardless of the group
// size. Addresses are signed, so a stride can step below the base.
type Walker struct {
	a         int32
	k         int
	remaining int
	group     int
	offset    int32
}

// Walk returns a walker over the message's unit addresses.
func (m Message) Walk() *Walker {
	return &Walker{
		a:         int32(m.A0),
		remaining: m.UnitCount(),
		group:     m.GroupSize(),
		offset:    int32(m.AOffset),
	}
}

// NewWalker builds a walker from raw parameters. cnt is taken as is, so
// callers normalize a zero count themselves.
func NewWalker(a0 int32, cnt int, aOffset int32, groupSize int) *Walker {
	if groupSize < 1 {
		panic("group size must be at least 1")
	}

	return &Walker{
		a:         a0,
		remaining: cnt,
		group:     groupSize,
		offset:    aOffset,
	}
}

// Next returns the next unit address. The second result is false once
// the walk is exhausted.
func (w *Walker) Next() (int32, bool) {
	if w.remaining <= 0 {
		return 0, false
	}

	a := w.a
	w.remaining--
	w.k++

	if w.k%w.group == 0 {
		w.a = a + w.offset
	} else {
		w.a = a + 1
	}

	return a, true
}

// Addrs drains the walker and returns all remaining addresses.
func (w *Walker) Addrs() []int32 {
	addrs := make([]int32, 0, w.remaining)

	for {
		a, ok := w.Next()
		if !ok {
			return addrs
		}

		addrs = append(addrs, a)
	}
}
