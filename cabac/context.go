package cabac

// Masks keeping 10 and 14 significant bits of the 15-bit fast and slow
// estimators.
const (
	mask0 = 0x7fe0
	mask1 = 0x7ffe
)

// DefaultWindow is the log2 window size code used when an init table does
// not carry one. It selects adaptation shifts of 4 and 7.
const DefaultWindow = 8

// Context is one adaptive binary probability model. It tracks P(bin = 1)
// with a fast and a slow estimator whose average drives coding.
type Context struct {
	s0, s1 uint16 // 15-bit estimates of P(1), masked to probBits0/probBits1
	rate   uint8  // rate0<<4 | rate1
}

// Init sets the context from a slice QP and an 8-bit init value.
func (c *Context) Init(qp, initValue int) {
	slope := (initValue >> 3) - 4
	offset := (initValue&7)*18 + 1
	st := ((slope * (clip3(0, 63, qp) - 16)) >> 1) + offset
	st = clip3(1, 127, st)
	p1 := uint32(st) << 8
	c.s0 = uint16(p1 & mask0)
	c.s1 = uint16(p1 & mask1)
	if c.rate == 0 {
		c.SetWindow(DefaultWindow)
	}
}

// SetWindow selects the adaptation speed from a 4-bit window code.
func (c *Context) SetWindow(log2Window int) {
	rate0 := 2 + ((log2Window >> 2) & 3)
	rate1 := 3 + rate0 + (log2Window & 3)
	c.rate = uint8(rate0<<4 | rate1)
}

// State returns the 8-bit estimate of P(bin = 1).
func (c *Context) State() uint8 {
	return uint8((uint32(c.s0) + uint32(c.s1)) >> 8)
}

// MPS returns the currently most probable bin value.
func (c *Context) MPS() int {
	return int(c.State() >> 7)
}

// Bits returns the cost of coding bin with this context, in FracBits units.
func (c *Context) Bits(bin int) int32 {
	return EntropyBits(c.State(), bin)
}

// Update adapts the context after bin has been coded.
func (c *Context) Update(bin int) {
	rate0 := uint32(c.rate >> 4)
	rate1 := uint32(c.rate & 15)
	s0 := uint32(c.s0)
	s1 := uint32(c.s1)
	s0 -= (s0 >> rate0) & mask0
	s1 -= (s1 >> rate1) & mask1
	if bin != 0 {
		s0 += (0x7fff >> rate0) & mask0
		s1 += (0x7fff >> rate1) & mask1
	}
	c.s0 = uint16(s0)
	c.s1 = uint16(s1)
}

// lps returns the sub-range assigned to the least probable symbol.
func (c *Context) lps(rng uint32) uint32 {
	q := uint32(c.State())
	if q&0x80 != 0 {
		q ^= 0xff
	}
	return ((q>>2)*(rng>>5))>>1 + 4
}

func clip3(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
