package cabac

// renormTable gives the renormalisation shift for an LPS sub-range,
// indexed by lps >> 3.
var renormTable = [32]uint8{
	6, 5, 4, 4, 3, 3, 3, 3, 2, 2, 2, 2, 2, 2, 2, 2,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
}

// Encoder is a context-adaptive binary arithmetic encoder.
//
// Symbols narrow a 9-bit range; completed bytes are held back while they
// could still receive a carry (runs of 0xff) and are released once the
// carry is resolved. In count-only mode no bytes are stored and only the
// number of produced bits is tracked, which is what cost estimation needs.
type Encoder struct {
	low          uint32
	rng          uint32
	bitsLeft     int
	bufferedByte uint32
	numBuffered  int
	countOnly    bool

	buf     []byte
	acc     uint32 // partially filled output byte, MSB first
	accBits int
}

// NewEncoder creates an Encoder with an initial buffer sized for
// expectedSize bytes.
func NewEncoder(expectedSize int) *Encoder {
	e := &Encoder{}
	e.Reset(expectedSize)
	return e
}

// NewCounter creates an Encoder in count-only mode.
func NewCounter() *Encoder {
	e := &Encoder{countOnly: true}
	e.reset()
	return e
}

// Reset prepares the Encoder for a new stream, keeping the existing buffer
// if it has sufficient capacity.
func (e *Encoder) Reset(expectedSize int) {
	if expectedSize < 64 {
		expectedSize = 64
	}
	if cap(e.buf) >= expectedSize {
		e.buf = e.buf[:0]
	} else {
		e.buf = make([]byte, 0, expectedSize)
	}
	e.countOnly = false
	e.reset()
}

// ResetCount prepares the Encoder for a new count-only pass.
func (e *Encoder) ResetCount() {
	e.buf = e.buf[:0]
	e.countOnly = true
	e.reset()
}

func (e *Encoder) reset() {
	e.low = 0
	e.rng = 510
	e.bitsLeft = 23
	e.bufferedByte = 0xff
	e.numBuffered = 0
	e.acc = 0
	e.accBits = 0
}

// EncodeBin codes bin with ctx and adapts ctx.
func (e *Encoder) EncodeBin(bin int, ctx *Context) {
	lps := ctx.lps(e.rng)
	e.rng -= lps
	if bin != ctx.MPS() {
		n := int(renormTable[lps>>3])
		e.low = (e.low + e.rng) << uint(n)
		e.rng = lps << uint(n)
		e.bitsLeft -= n
		e.testAndWriteOut()
	} else if e.rng < 256 {
		e.low <<= 1
		e.rng <<= 1
		e.bitsLeft--
		e.testAndWriteOut()
	}
	ctx.Update(bin)
}

// EncodeBypass codes one equiprobable bin.
func (e *Encoder) EncodeBypass(bin int) {
	e.low <<= 1
	if bin != 0 {
		e.low += e.rng
	}
	e.bitsLeft--
	e.testAndWriteOut()
}

// EncodeBypassBins codes the n low bits of value, MSB first, as
// equiprobable bins.
func (e *Encoder) EncodeBypassBins(value uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		e.EncodeBypass(int(value>>uint(i)) & 1)
	}
}

// EncodeTerminate codes the end-of-slice style terminating bin.
func (e *Encoder) EncodeTerminate(bin int) {
	e.rng -= 2
	if bin != 0 {
		e.low += e.rng
		e.low <<= 7
		e.rng = 2 << 7
		e.bitsLeft -= 7
	} else if e.rng >= 256 {
		return
	} else {
		e.low <<= 1
		e.rng <<= 1
		e.bitsLeft--
	}
	e.testAndWriteOut()
}

func (e *Encoder) testAndWriteOut() {
	if e.bitsLeft < 12 {
		e.writeOut()
	}
}

func (e *Encoder) writeOut() {
	lead := e.low >> uint(24-e.bitsLeft)
	e.bitsLeft += 8
	e.low &= 0xffffffff >> uint(e.bitsLeft)

	if e.countOnly {
		e.numBuffered++
		return
	}
	if lead == 0xff {
		e.numBuffered++
		return
	}
	if e.numBuffered > 0 {
		carry := lead >> 8
		b := e.bufferedByte + carry
		e.bufferedByte = lead & 0xff
		e.putBits(b, 8)
		b = (0xff + carry) & 0xff
		for e.numBuffered > 1 {
			e.putBits(b, 8)
			e.numBuffered--
		}
	} else {
		e.numBuffered = 1
		e.bufferedByte = lead
	}
}

// Finish codes a terminating bin of 1 and flushes the arithmetic coder
// state. The output is byte aligned with a stop bit. Callers must not code
// the final terminating bin themselves.
func (e *Encoder) Finish() {
	if e.countOnly {
		return
	}
	e.EncodeTerminate(1)
	if e.low>>uint(32-e.bitsLeft) != 0 {
		e.putBits(e.bufferedByte+1, 8)
		for e.numBuffered > 1 {
			e.putBits(0x00, 8)
			e.numBuffered--
		}
		e.low -= 1 << uint(32-e.bitsLeft)
	} else {
		if e.numBuffered > 0 {
			e.putBits(e.bufferedByte, 8)
		}
		for e.numBuffered > 1 {
			e.putBits(0xff, 8)
			e.numBuffered--
		}
	}
	e.putBits(e.low>>8, 24-e.bitsLeft)
	e.numBuffered = 0
	e.putBits(1, 1)
	for e.accBits != 0 {
		e.putBits(0, 1)
	}
}

// putBits appends the n low bits of v, MSB first.
func (e *Encoder) putBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		e.acc = e.acc<<1 | (v>>uint(i))&1
		e.accBits++
		if e.accBits == 8 {
			e.buf = append(e.buf, byte(e.acc))
			e.acc = 0
			e.accBits = 0
		}
	}
}

// Bytes returns the bytes produced so far. Call Finish first to obtain a
// complete stream.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// BitsWritten returns the number of bits the stream occupies so far,
// including bytes still held back for carry resolution and the bits
// pending in the coder's low register.
func (e *Encoder) BitsWritten() int {
	return len(e.buf)*8 + e.accBits + e.numBuffered*8 + 23 - e.bitsLeft
}

// CountOnly reports whether e discards output and only counts bits.
func (e *Encoder) CountOnly() bool {
	return e.countOnly
}
