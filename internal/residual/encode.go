package residual

import (
	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/scan"
)

// BinWriter receives the bins of the coefficient syntax. cabac.Encoder and
// cabac.Estimator both satisfy it.
type BinWriter interface {
	EncodeBin(bin int, ctx *cabac.Context)
	EncodeBypassBins(value uint32, n int)
}

const (
	// RemainderBinReduction is the unary prefix length after which a
	// remainder switches to its escape code.
	RemainderBinReduction = 5

	// MinRegBins is the regular bin budget below which a position is coded
	// entirely in bypass mode.
	MinRegBins = 4

	// SBHThreshold is the minimum distance in scan positions between the
	// first and last non-zero level of a group for its first sign to be
	// hidden.
	SBHThreshold = 4

	maxLog2TrDynamicRange = 15
	maxRemainderPrefix    = 32 - RemainderBinReduction - maxLog2TrDynamicRange
	regBinsPerGroup       = 28
)

// RegBinBudget returns the number of context coded bins allowed for a block
// of n coefficients.
func RegBinBudget(n int) int {
	return n * regBinsPerGroup >> 4
}

// Block describes the transform block being coded.
type Block struct {
	Log2Size   int
	Comp       cabac.Component
	Scan       scan.Mode
	SignHiding bool
}

// EncodeCoeffs writes the residual syntax of levels, a raster-ordered
// square block, to w. Contexts in cs are adapted through w. An all-zero
// block writes nothing.
func EncodeCoeffs(w BinWriter, cs *cabac.ContextSet, levels []int16, blk Block) {
	log2 := blk.Log2Size
	side := 1 << log2
	cgSide := side >> 2
	order := scan.Order(log2, blk.Scan)
	groups := scan.Groups(log2, blk.Scan)

	var cgFlags [64]bool
	last := -1
	for i, pos := range order {
		if levels[pos] != 0 {
			last = i
			cgFlags[groups[i>>scan.Log2GroupSize]] = true
		}
	}
	if last < 0 {
		return
	}
	lastPos := order[last]
	EncodeLast(w, cs, lastPos&(side-1), lastPos>>log2, log2, blk.Comp)

	p := cs.Plane(blk.Comp)
	regBins := RegBinBudget(side * side)
	lastCG := last >> scan.Log2GroupSize

	for cg := lastCG; cg >= 0; cg-- {
		cgPos := groups[cg]
		coded := cg != lastCG && cg != 0
		if coded {
			ctx := SigGroupCtx(cgFlags[:cgSide*cgSide], cgPos%cgSide, cgPos/cgSide, cgSide)
			w.EncodeBin(b2i(cgFlags[cgPos]), &p.SigGroup[ctx])
			if !cgFlags[cgPos] {
				continue
			}
		}

		minPos := cg << scan.Log2GroupSize
		first := minPos + scan.GroupSize - 1
		if cg == lastCG {
			first = last
		}

		// Context coded pass.
		numNZ := 0
		next := first
		for ; next >= minPos && regBins >= MinRegBins; next-- {
			pos := order[next]
			abs := absLevel(levels[pos])
			var tpl Template
			if next != last {
				tpl = NewTemplate(levels, pos&(side-1), pos>>log2, log2)
				if !(coded && next == minPos && numNZ == 0) {
					w.EncodeBin(b2i(abs != 0), &p.Sig[tpl.SigCtx(blk.Comp)])
					regBins--
				}
			}
			if abs == 0 {
				continue
			}
			numNZ++
			g := 0
			if next != last {
				g = tpl.GtxCtx(blk.Comp)
			}
			w.EncodeBin(b2i(abs > 1), &p.Gt1[g])
			regBins--
			if abs > 1 {
				w.EncodeBin((abs-2)&1, &p.Par[g])
				w.EncodeBin(b2i(abs > 3), &p.Gt2[g])
				regBins -= 2
			}
		}

		// Remainders of context coded positions.
		for i := first; i > next; i-- {
			pos := order[i]
			abs := absLevel(levels[pos])
			if abs < 4 {
				continue
			}
			tpl := NewTemplate(levels, pos&(side-1), pos>>log2, log2)
			WriteRemainder(w, uint32(abs-4)>>1, tpl.RiceParam(4))
		}

		// Bypass coded positions.
		for i := next; i >= minPos; i-- {
			pos := order[i]
			tpl := NewTemplate(levels, pos&(side-1), pos>>log2, log2)
			rice := tpl.RiceParam(0)
			WriteRemainder(w, BypassSymbol(absLevel(levels[pos]), rice), rice)
		}

		firstNZ, lastNZ := -1, -1
		for i := first; i >= minPos; i-- {
			if levels[order[i]] != 0 {
				if lastNZ < 0 {
					lastNZ = i
				}
				firstNZ = i
			}
		}
		hide := blk.SignHiding && lastNZ-firstNZ >= SBHThreshold
		var signs uint32
		n := 0
		for i := first; i >= minPos; i-- {
			l := levels[order[i]]
			if l == 0 || (hide && i == firstNZ) {
				continue
			}
			signs <<= 1
			if l < 0 {
				signs |= 1
			}
			n++
		}
		w.EncodeBypassBins(signs, n)
	}
}

// EncodeLast writes the last significant position (x, y).
func EncodeLast(w BinWriter, cs *cabac.ContextSet, x, y, log2Size int, c cabac.Component) {
	p := cs.Plane(c)
	offset, shift := LastPrefixCtx(log2Size, c)
	maxGroup := scan.GroupIdx[(1<<log2Size)-1]
	gx, gy := scan.GroupIdx[x], scan.GroupIdx[y]

	encodeLastPrefix(w, p.LastX[:], gx, maxGroup, offset, shift)
	encodeLastPrefix(w, p.LastY[:], gy, maxGroup, offset, shift)
	if gx > 3 {
		w.EncodeBypassBins(uint32(x-scan.MinInGroup[gx]), (gx-2)>>1)
	}
	if gy > 3 {
		w.EncodeBypassBins(uint32(y-scan.MinInGroup[gy]), (gy-2)>>1)
	}
}

func encodeLastPrefix(w BinWriter, ctxs []cabac.Context, g, maxGroup, offset, shift int) {
	for i := 0; i < g; i++ {
		w.EncodeBin(1, &ctxs[offset+(i>>shift)])
	}
	if g < maxGroup {
		w.EncodeBin(0, &ctxs[offset+(g>>shift)])
	}
}

// BypassSymbol maps a magnitude coded entirely in bypass mode to its
// remainder symbol. Zero is moved to 1<<rice.
func BypassSymbol(abs, rice int) uint32 {
	pos0 := 1 << rice
	switch {
	case abs == 0:
		return uint32(pos0)
	case abs <= pos0:
		return uint32(abs - 1)
	}
	return uint32(abs)
}

// WriteRemainder writes symbol as a Golomb-Rice code with parameter rice
// and a length-limited exponential escape.
func WriteRemainder(w BinWriter, symbol uint32, rice int) {
	mask := uint32(1)<<rice - 1
	if symbol < RemainderBinReduction<<rice {
		length := int(symbol >> rice)
		w.EncodeBypassBins(1<<(length+1)-2, length+1)
		w.EncodeBypassBins(symbol&mask, rice)
		return
	}
	prefix, suffixLen := escapeLength(symbol, rice)
	code := symbol>>rice - RemainderBinReduction
	total := prefix + RemainderBinReduction
	w.EncodeBypassBins(1<<total-1, total)
	suffix := (code-(1<<prefix-1))<<rice | symbol&mask
	w.EncodeBypassBins(suffix, suffixLen)
}

// RemainderBits returns the number of bins WriteRemainder produces.
func RemainderBits(symbol uint32, rice int) int {
	if symbol < RemainderBinReduction<<rice {
		return int(symbol>>rice) + 1 + rice
	}
	prefix, suffixLen := escapeLength(symbol, rice)
	return prefix + RemainderBinReduction + suffixLen
}

func escapeLength(symbol uint32, rice int) (prefix, suffixLen int) {
	code := symbol>>rice - RemainderBinReduction
	if code >= 1<<maxRemainderPrefix-1 {
		return maxRemainderPrefix, maxLog2TrDynamicRange
	}
	for code > 2<<prefix-2 {
		prefix++
	}
	return prefix, prefix + rice + 1
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
