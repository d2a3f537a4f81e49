package quant

import (
	"errors"
	"fmt"
)

// FlatWeight is the neutral scaling list weight.
const FlatWeight = 16

var (
	errListType = errors.New("quant: invalid scaling list type")
	errListSize = errors.New("quant: invalid scaling list size")
)

// ScalingList holds per-position weights for every list type and block
// size. A nil weight slice means the flat list.
type ScalingList struct {
	weights [NumListTypes][numSize][]int32
}

// NewScalingList returns a flat scaling list.
func NewScalingList() *ScalingList {
	return &ScalingList{}
}

// Set installs weights for one list type and block size. weights must hold
// (1<<log2Size)^2 raster-ordered values in [1, 255].
func (s *ScalingList) Set(listType, log2Size int, weights []int32) error {
	if listType < 0 || listType >= NumListTypes {
		return fmt.Errorf("%w: %d", errListType, listType)
	}
	if log2Size < minLog2 || log2Size > maxLog2 {
		return fmt.Errorf("%w: log2 %d", errListSize, log2Size)
	}
	n := 1 << (2 * log2Size)
	if len(weights) != n {
		return fmt.Errorf("%w: got %d weights, want %d", errListSize, len(weights), n)
	}
	for i, w := range weights {
		if w < 1 || w > 255 {
			return fmt.Errorf("quant: scaling weight %d at position %d out of range [1, 255]", w, i)
		}
	}
	s.weights[listType][log2Size-minLog2] = append([]int32(nil), weights...)
	return nil
}

// Weight returns the weight at raster position pos.
func (s *ScalingList) Weight(listType, log2Size, pos int) int32 {
	w := s.weights[listType][log2Size-minLog2]
	if w == nil {
		return FlatWeight
	}
	return w[pos]
}

// IsFlat reports whether every list is flat.
func (s *ScalingList) IsFlat() bool {
	for t := range s.weights {
		for _, w := range s.weights[t] {
			if w != nil {
				return false
			}
		}
	}
	return true
}

// Tables holds quantizer coefficients and error scales indexed by block
// size, list type and QP%6. Tables are read-only once built.
type Tables struct {
	bitDepth   int
	quantCoeff [numSize][NumListTypes][6][]int32
	errScale   [numSize][NumListTypes][6][]float64
}

// NewTables builds the tables for list at the given bit depth. A nil list
// is flat.
func NewTables(list *ScalingList, bitDepth int) *Tables {
	if list == nil {
		list = NewScalingList()
	}
	t := &Tables{bitDepth: bitDepth}
	for log2 := minLog2; log2 <= maxLog2; log2++ {
		n := 1 << (2 * log2)
		ts := TransformShift(bitDepth, log2)
		// 2^15 * 2^(-2*ts) / 2^(2*(bitDepth-8))
		scale := float64(int64(1)<<15) / pow2(2*ts) / pow2(2*(bitDepth-8))
		for lt := 0; lt < NumListTypes; lt++ {
			for rem := 0; rem < 6; rem++ {
				qc := make([]int32, n)
				es := make([]float64, n)
				for pos := 0; pos < n; pos++ {
					q := Scales[rem] * FlatWeight / list.Weight(lt, log2, pos)
					qc[pos] = q
					es[pos] = scale / float64(q) / float64(q)
				}
				t.quantCoeff[log2-minLog2][lt][rem] = qc
				t.errScale[log2-minLog2][lt][rem] = es
			}
		}
	}
	return t
}

// BitDepth returns the bit depth t was built for.
func (t *Tables) BitDepth() int { return t.bitDepth }

// QuantCoeff returns the raster-ordered quantizer coefficients.
func (t *Tables) QuantCoeff(log2Size, listType, qpRem int) []int32 {
	return t.quantCoeff[log2Size-minLog2][listType][qpRem]
}

// ErrScale returns the raster-ordered distortion scale factors.
func (t *Tables) ErrScale(log2Size, listType, qpRem int) []float64 {
	return t.errScale[log2Size-minLog2][listType][qpRem]
}

func pow2(e int) float64 {
	if e >= 0 {
		return float64(int64(1) << uint(e))
	}
	return 1 / float64(int64(1)<<uint(-e))
}
