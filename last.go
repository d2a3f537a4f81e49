package rdoq

import "github.com/deepteams/rdoq/internal/scan"

// searchLast walks the coded levels backwards from the initial last
// position and returns one past the scan index of the cheapest last
// position, or 0 when coding nothing is cheapest, together with its cost.
// The walk ends at the first level above 1: moving the last position
// before it cannot pay off.
func (s *blockState) searchLast() (bestP1 int, best float64) {
	ws := s.ws
	s.computeLastBits()

	best = s.uncoded + s.lambda*float64(s.cbfBits(0))
	cbf1 := s.lambda * float64(s.cbfBits(1))
	base := s.baseCost + cbf1

	lastPos := s.order[s.last]
	s.baseline += cbf1
	s.baseline += s.rateLast(lastPos&(s.side-1), lastPos>>s.log2)

	for cg := s.lastCG; cg >= 0; cg-- {
		base -= ws.cgSigCost[cg]
		if !ws.cgFlags[s.groups[cg]] {
			continue
		}
		minPos := cg << scan.Log2GroupSize
		for i := min(minPos+scan.GroupSize-1, s.last); i >= minPos; i-- {
			pos := s.order[i]
			level := s.out[pos]
			if level == 0 {
				base -= ws.costSig[pos]
				continue
			}
			total := base + s.rateLast(pos&(s.side-1), pos>>s.log2) - ws.costSig[pos]
			if total < best {
				bestP1, best = i+1, total
			}
			if level > 1 {
				return bestP1, best
			}
			base -= ws.costCoeff[pos]
			base += ws.costCoeff0[pos]
		}
	}
	return bestP1, best
}

// finalizeSigns gives the levels before bestP1 the sign of their source
// coefficient, clears everything from bestP1 up to the initial last
// position and returns the number of non-zero levels.
func (s *blockState) finalizeSigns(bestP1 int) int {
	n := 0
	for i := 0; i < bestP1; i++ {
		pos := s.order[i]
		if s.out[pos] == 0 {
			continue
		}
		n++
		if s.coeffs[pos] < 0 {
			s.out[pos] = -s.out[pos]
		}
	}
	for i := bestP1; i <= s.last; i++ {
		s.out[s.order[i]] = 0
	}
	return n
}
