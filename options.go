package rdoq

import (
	"fmt"
	"math"

	"github.com/deepteams/rdoq/internal/quant"
)

// DefaultQP is the slice QP used by New when no options are given.
const DefaultQP = 32

// ScalingList holds per-position quantization weights. Weights of 16 are
// neutral; larger weights quantize a frequency more coarsely.
type ScalingList = quant.ScalingList

// NewScalingList returns a flat scaling list. Use Set to install weights
// for a list type (intra Y/Cb/Cr = 0..2, inter Y/Cb/Cr = 3..5) and a block
// size given as log2 of the side.
func NewScalingList() *ScalingList {
	return quant.NewScalingList()
}

// Options controls the quantizer.
type Options struct {
	// QP is the slice quantization parameter. The valid range is
	// -6*(BitDepth-8) to 63.
	QP int

	// Lambda is the Lagrange multiplier applied to luma rates, in units of
	// squared coefficient error per bit. 0 selects LambdaForQP(QP).
	Lambda float64

	// ChromaLambda is the multiplier for chroma blocks. 0 uses Lambda.
	ChromaLambda float64

	// BitDepth is the sample bit depth (8-16, default 8). 0 is treated
	// as 8.
	BitDepth int

	// SignHiding enables sign data hiding: the sign of the first non-zero
	// level of a sub-group is inferred from the parity of the group's
	// magnitude sum and levels are adjusted to match.
	SignHiding bool

	// FastResidualCostLimit selects how CoeffCost measures a block. When
	// QP >= FastResidualCostLimit the coefficient syntax is run through
	// the arithmetic coder in counting mode; below it a closed-form
	// estimate is used. Any negative value always selects the exact path.
	FastResidualCostLimit int

	// ScalingList supplies per-position quantization weights. nil means
	// flat.
	ScalingList *ScalingList
}

// DefaultOptions returns options for qp with the default lambda, 8-bit
// samples, sign hiding enabled and exact residual costs.
func DefaultOptions(qp int) *Options {
	return &Options{
		QP:         qp,
		Lambda:     LambdaForQP(qp),
		BitDepth:   8,
		SignHiding: true,
	}
}

// LambdaForQP returns the usual mode-decision lambda for qp,
// 0.57 * 2^((qp-12)/3).
func LambdaForQP(qp int) float64 {
	return 0.57 * math.Pow(2, float64(qp-12)/3)
}

// resolved returns a copy of o with zero-valued defaults filled in.
func (o Options) resolved() Options {
	if o.BitDepth == 0 {
		o.BitDepth = 8
	}
	if o.Lambda == 0 {
		o.Lambda = LambdaForQP(o.QP)
	}
	if o.ChromaLambda == 0 {
		o.ChromaLambda = o.Lambda
	}
	return o
}

// validateOptions checks resolved options for out-of-range values.
func validateOptions(o *Options) error {
	if o.BitDepth < 8 || o.BitDepth > 16 {
		return fmt.Errorf("rdoq: invalid BitDepth %d (must be 8-16)", o.BitDepth)
	}
	minQP := -6 * (o.BitDepth - 8)
	if o.QP < minQP || o.QP > 63 {
		return fmt.Errorf("rdoq: invalid QP %d (must be %d-63)", o.QP, minQP)
	}
	if !validLambda(o.Lambda) {
		return fmt.Errorf("rdoq: invalid Lambda %g (must be positive and finite)", o.Lambda)
	}
	if !validLambda(o.ChromaLambda) {
		return fmt.Errorf("rdoq: invalid ChromaLambda %g (must be positive and finite)", o.ChromaLambda)
	}
	return nil
}

func validLambda(l float64) bool {
	return l > 0 && !math.IsInf(l, 0) && !math.IsNaN(l)
}
