// Package residual derives coefficient coding contexts and writes the
// coefficient syntax of one transform block to a bin writer.
package residual

import (
	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/scan"
)

// Template summarises the already coded neighbourhood of a position:
// (x+1,y), (x+2,y), (x,y+1), (x,y+2) and (x+1,y+1).
type Template struct {
	SumAbs int // sum of min(4+(a&1), a)
	NumPos int // number of non-zero neighbours
	Sum    int // plain sum of magnitudes
	Diag   int // x + y
}

// NewTemplate gathers the template of (x, y) from levels, a raster-ordered
// square block with side 1<<log2Size. Only magnitudes are read.
func NewTemplate(levels []int16, x, y, log2Size int) Template {
	side := 1 << log2Size
	t := Template{Diag: x + y}
	pos := y<<log2Size + x
	if x < side-1 {
		t.add(levels[pos+1])
		if x < side-2 {
			t.add(levels[pos+2])
		}
		if y < side-1 {
			t.add(levels[pos+side+1])
		}
	}
	if y < side-1 {
		t.add(levels[pos+side])
		if y < side-2 {
			t.add(levels[pos+2*side])
		}
	}
	return t
}

func (t *Template) add(level int16) {
	a := absLevel(level)
	if a == 0 {
		return
	}
	t.NumPos++
	t.Sum += a
	t.SumAbs += min(4+(a&1), a)
}

// SigCtx returns the significance context index for component c.
func (t Template) SigCtx(c cabac.Component) int {
	ctx := min((t.SumAbs+1)>>1, 3)
	if c.IsLuma() {
		switch {
		case t.Diag < 2:
			return ctx + 8
		case t.Diag < 5:
			return ctx + 4
		}
		return ctx
	}
	if t.Diag < 2 {
		return ctx + 4
	}
	return ctx
}

// GtxCtx returns the context index shared by the gt1, parity and gt2
// flags for component c.
func (t Template) GtxCtx(c cabac.Component) int {
	ctx := min(t.SumAbs-t.NumPos, 4) + 1
	if c.IsLuma() {
		switch {
		case t.Diag == 0:
			return ctx + 15
		case t.Diag < 3:
			return ctx + 10
		case t.Diag < 10:
			return ctx + 5
		}
		return ctx
	}
	if t.Diag == 0 {
		return ctx + 5
	}
	return ctx
}

// RiceParam returns the Golomb-Rice parameter for the remainder coded
// relative to base.
func (t Template) RiceParam(base int) int {
	s := t.Sum - 5*base
	if s < 0 {
		s = 0
	} else if s > 31 {
		s = 31
	}
	return scan.GoRicePars[s]
}

// SigGroupCtx returns the sub-group flag context of the group at (cgx, cgy)
// in a cgSide x cgSide grid of raster-ordered flags.
func SigGroupCtx(flags []bool, cgx, cgy, cgSide int) int {
	right, below := false, false
	if cgx+1 < cgSide {
		right = flags[cgy*cgSide+cgx+1]
	}
	if cgy+1 < cgSide {
		below = flags[(cgy+1)*cgSide+cgx]
	}
	if right || below {
		return 1
	}
	return 0
}

var lastPrefixOffset = [8]int{0, 0, 0, 3, 6, 10, 15, 21}

// LastPrefixCtx returns the context offset and shift of the last position
// prefix for a block with side 1<<log2Size.
func LastPrefixCtx(log2Size int, c cabac.Component) (offset, shift int) {
	if c.IsLuma() {
		return lastPrefixOffset[log2Size], (log2Size + 1) >> 2
	}
	shift = (1 << log2Size) >> 3
	if shift > 2 {
		shift = 2
	}
	return 0, shift
}

func absLevel(l int16) int {
	if l < 0 {
		return -int(l)
	}
	return int(l)
}
