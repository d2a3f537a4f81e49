package rdoq

import (
	"math"

	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/quant"
	"github.com/deepteams/rdoq/internal/residual"
	"github.com/deepteams/rdoq/internal/scan"
)

// precisionInc lifts fractional bits to the 15-bit precision of the
// distortion term.
const precisionInc = 15 - cabac.FracBits

// cacheSignRates records the rate deltas sign hiding needs for the level
// chosen at raster position pos.
func (s *blockState) cacheSignRates(pos int, ld int64, level int, rc rateCtx, isLast bool) {
	if !s.signHiding {
		return
	}
	sh := &s.ws.sh
	sh.quantDelta[pos] = int32((ld - int64(level)<<s.qBits) >> (s.qBits - 8))

	sh.sigInc[pos] = 0
	if !isLast && rc.regBins >= residual.MinRegBins {
		sh.sigInc[pos] = s.flagBits(cabac.KindSig, rc.sig, 1) - s.flagBits(cabac.KindSig, rc.sig, 0)
	}

	switch {
	case level > 0:
		now := s.icRate(level, rc)
		sh.inc[pos] = s.icRate(level+1, rc) - now
		sh.dec[pos] = s.icRate(level-1, rc) - now
	case rc.regBins < residual.MinRegBins:
		sh.inc[pos] = s.icRate(1, rc) - s.icRate(0, rc)
		sh.dec[pos] = 0
	default:
		sh.inc[pos] = s.flagBits(cabac.KindGt1, rc.gtx, 0)
		sh.dec[pos] = 0
	}
}

// rdFactor converts a rounding error in 1/256 of a level step into
// fractional bits at the block's lambda.
func (s *blockState) rdFactor() int64 {
	inv := float64(quant.InvScales[s.qpScaled%6])
	scale := float64(int64(1) << uint(2*(s.qpScaled/6)))
	depth := float64(int64(1) << uint(2*(s.bitDepth-8)))
	return int64(inv*inv*scale/s.lambda/16/depth + 0.5)
}

// shChange is a candidate ±1 magnitude change.
type shChange struct {
	cost   int64
	pos    int
	change int
}

// hideSigns makes the parity of every sub-group whose non-zero levels span
// at least residual.SBHThreshold scan positions agree with the sign of its
// first non-zero level, applying the cheapest single ±1 change where it
// does not. lastP1 is one past the last coded scan index.
func (s *blockState) hideSigns(lastP1 int) {
	sh := &s.ws.sh
	rdFactor := s.rdFactor()
	lastCG := (lastP1 - 1) >> scan.Log2GroupSize

	for cg := lastCG; cg >= 0; cg-- {
		base := cg << scan.Log2GroupSize
		level := func(i int) int16 { return s.out[s.order[base+i]] }

		lastNZ := -1
		for i := scan.GroupSize - 1; i >= 0; i-- {
			if level(i) != 0 {
				lastNZ = i
				break
			}
		}
		firstNZ := scan.GroupSize
		for i := 0; i <= lastNZ; i++ {
			if level(i) != 0 {
				firstNZ = i
				break
			}
		}
		if lastNZ-firstNZ < residual.SBHThreshold {
			continue
		}

		signBit := 0
		if level(firstNZ) < 0 {
			signBit = 1
		}
		sum := 0
		for i := firstNZ; i <= lastNZ; i++ {
			sum += absInt(int(level(i)))
		}
		if signBit == sum&1 {
			continue
		}

		best := shChange{cost: math.MaxInt64}
		first := scan.GroupSize - 1
		if cg == lastCG {
			first = lastNZ
		}
		for i := first; i >= 0; i-- {
			cur := shChange{pos: s.order[base+i]}
			quantCost := rdFactor * int64(sh.quantDelta[cur.pos])
			abs := absInt(int(s.out[cur.pos]))

			if abs != 0 {
				inc := int64(sh.inc[cur.pos])
				dec := int64(sh.dec[cur.pos])
				if abs == 1 {
					// The sign and the sig flag go away.
					dec -= int64(sh.sigInc[cur.pos])
					if cg == lastCG && i == lastNZ {
						dec -= 4 * cabac.OneBit
					}
				}
				inc = -quantCost + inc<<precisionInc
				dec = quantCost + dec<<precisionInc
				if inc < dec {
					cur.change, cur.cost = 1, inc
				} else {
					cur.change, cur.cost = -1, dec
					if i == firstNZ && abs == 1 {
						cur.cost = math.MaxInt64
					}
				}
			} else {
				bits := int64(cabac.OneBit + sh.inc[cur.pos] + sh.sigInc[cur.pos])
				cur.change = 1
				cur.cost = -absInt64(quantCost) + bits<<precisionInc
				if i < firstNZ && coeffSign(s.coeffs[cur.pos]) != signBit {
					cur.cost = math.MaxInt64
				}
			}
			if cur.cost < best.cost {
				best = cur
			}
		}
		if best.cost == math.MaxInt64 {
			continue
		}

		if absInt(int(s.out[best.pos])) >= quant.MaxLevel {
			best.change = -1
		}
		if s.coeffs[best.pos] >= 0 {
			s.out[best.pos] += int16(best.change)
		} else {
			s.out[best.pos] -= int16(best.change)
		}
	}
}

// coeffSign returns 1 for a negative coefficient and 0 otherwise.
func coeffSign(c int16) int {
	if c < 0 {
		return 1
	}
	return 0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
