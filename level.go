package rdoq

import (
	"math"

	"github.com/deepteams/rdoq/cabac"
)

// selectLevel picks the level of one coefficient among maxAbs, maxAbs-1
// (never below 1) and, when the position is not the last and maxAbs < 3,
// zero. ld is the scaled magnitude, cost0 the distortion of coding zero
// and errScale the distortion weight of the position.
//
// It returns the level, its cost (distortion plus lambda-weighted rate,
// significance flag included) and the lambda-weighted significance cost
// charged for it.
func (s *blockState) selectLevel(ld int64, maxAbs int, cost0, errScale float64, rc rateCtx, isLast bool) (level int, cost, sigCost float64) {
	cost = math.MaxFloat64
	var curSig float64
	if !isLast {
		if maxAbs < 3 {
			sigCost = s.lambda * float64(s.flagBits(cabac.KindSig, rc.sig, 0))
			cost = cost0 + sigCost
			if maxAbs == 0 {
				return 0, cost, sigCost
			}
		}
		curSig = s.lambda * float64(s.flagBits(cabac.KindSig, rc.sig, 1))
	}

	minAbs := max(maxAbs-1, 1)
	for l := maxAbs; l >= minAbs; l-- {
		err := float64(ld - int64(l)<<s.qBits)
		c := err*err*errScale + s.lambda*float64(s.icRate(l, rc)) + curSig
		if c < cost {
			level, cost, sigCost = l, c, curSig
		}
	}
	return level, cost, sigCost
}
