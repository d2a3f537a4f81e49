package rdoq

import (
	"math/bits"

	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/pool"
	"github.com/deepteams/rdoq/internal/residual"
)

var (
	counters   = pool.New((*cabac.Encoder).ResetCount)
	estimators = pool.New((*cabac.Estimator).Reset)
)

// CoeffCost returns the number of bits the coefficient syntax of levels
// takes, measured against a private copy of cs. levels is raster-ordered
// and signed, as produced by Quantize. An all-zero block costs 0.
//
// When the quantizer's QP is at least FastResidualCostLimit, or the limit
// is negative, the syntax is run through the arithmetic coder in counting
// mode. Otherwise every bin is charged its entropy under a context state
// that does not adapt.
func (q *Quantizer) CoeffCost(levels []int16, blk Block, cs *cabac.ContextSet) (uint32, error) {
	if err := checkBlock(levels, levels, blk, cs); err != nil {
		return 0, err
	}
	n := blk.Width * blk.Width
	if isZero(levels[:n]) {
		return 0, nil
	}

	rb := residual.Block{
		Log2Size:   bits.TrailingZeros(uint(blk.Width)),
		Comp:       blk.Comp,
		Scan:       blk.Scan,
		SignHiding: q.opts.SignHiding,
	}
	snap := cs.Snapshot()
	if q.exactCost() {
		enc := counters.Get()
		defer counters.Put(enc)
		residual.EncodeCoeffs(enc, &snap, levels, rb)
		return uint32(enc.BitsWritten()), nil
	}
	est := estimators.Get()
	defer estimators.Put(est)
	residual.EncodeCoeffs(est, &snap, levels, rb)
	return uint32(est.Bits() + 0.5), nil
}

func (q *Quantizer) exactCost() bool {
	limit := q.opts.FastResidualCostLimit
	return limit < 0 || q.opts.QP >= limit
}

func isZero(levels []int16) bool {
	for _, l := range levels {
		if l != 0 {
			return false
		}
	}
	return true
}
