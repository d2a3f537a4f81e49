// Package scan provides the coefficient scan orders and the small lookup
// tables shared by quantization and residual coding.
//
// All tables are built once at init and are read-only afterwards.
package scan

// Mode selects the coefficient scan pattern.
type Mode uint8

const (
	Diagonal Mode = iota
	Horizontal
	Vertical
	NumModes
)

// Supported transform sizes (log2 of the block side).
const (
	MinLog2Size = 2
	MaxLog2Size = 5

	// GroupSize is the number of coefficients in one sub-group.
	GroupSize     = 16
	Log2GroupSize = 4
)

var (
	orders [MaxLog2Size - MinLog2Size + 1][NumModes][]int
	groups [MaxLog2Size - MinLog2Size + 1][NumModes][]int
)

// Order returns the scan order of a square block with side 1<<log2Size:
// element i is the raster position of scan index i. Sub-groups occupy
// consecutive runs of GroupSize indices.
func Order(log2Size int, mode Mode) []int {
	return orders[log2Size-MinLog2Size][mode]
}

// Groups returns the sub-group scan of a square block with side
// 1<<log2Size: element i is the raster position, in the sub-group grid,
// of the sub-group holding scan indices [i*GroupSize, (i+1)*GroupSize).
func Groups(log2Size int, mode Mode) []int {
	return groups[log2Size-MinLog2Size][mode]
}

// GroupIdx maps a last-position coordinate to its prefix group.
var GroupIdx = [32]int{
	0, 1, 2, 3, 4, 4, 5, 5, 6, 6, 6, 6, 7, 7, 7, 7,
	8, 8, 8, 8, 8, 8, 8, 8, 9, 9, 9, 9, 9, 9, 9, 9,
}

// MinInGroup is the first coordinate of each last-position prefix group.
var MinInGroup = [10]int{0, 1, 2, 3, 4, 6, 8, 12, 16, 24}

// GoRicePars maps a clipped template sum to a Golomb-Rice parameter.
var GoRicePars = [32]int{
	0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 2, 2,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 3, 3, 3, 3,
}

// pattern returns the visiting order of a w x h grid as (x, y) pairs
// packed into raster indices.
func pattern(w, h int, mode Mode) []int {
	out := make([]int, 0, w*h)
	switch mode {
	case Horizontal:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out = append(out, y*w+x)
			}
		}
	case Vertical:
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				out = append(out, y*w+x)
			}
		}
	default:
		// Up-right diagonal: each anti-diagonal from bottom-left to top-right.
		for line := 0; line < w+h-1; line++ {
			y := line
			if y > h-1 {
				y = h - 1
			}
			for ; y >= 0; y-- {
				x := line - y
				if x >= w {
					break
				}
				out = append(out, y*w+x)
			}
		}
	}
	return out
}

func initTables() {
	for log2 := MinLog2Size; log2 <= MaxLog2Size; log2++ {
		side := 1 << log2
		cgSide := side >> 2
		for mode := Mode(0); mode < NumModes; mode++ {
			cgs := pattern(cgSide, cgSide, mode)
			inner := pattern(4, 4, mode)
			order := make([]int, 0, side*side)
			for _, cg := range cgs {
				cgx, cgy := cg%cgSide, cg/cgSide
				for _, p := range inner {
					px, py := p&3, p>>2
					order = append(order, (cgy*4+py)*side+cgx*4+px)
				}
			}
			orders[log2-MinLog2Size][mode] = order
			groups[log2-MinLog2Size][mode] = cgs
		}
	}
}

func init() {
	initTables()
}
