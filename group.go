package rdoq

import (
	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/residual"
	"github.com/deepteams/rdoq/internal/scan"
)

// groupTotals accumulates the costs of one sub-group during the level
// pass.
type groupTotals struct {
	coded         float64 // cost of the non-zero levels without their sig flags
	uncoded       float64 // distortion of coding those levels as zero
	sig           float64 // every sig flag cost of the group
	sig0          float64 // sig flag cost of the group's first position
	nnzBeforePos0 int     // non-zero levels other than the first position
}

// decideGroup settles the coded flag of sub-group cg once its levels are
// chosen. The DC group is always coded and the group of the last position
// carries no flag. A coded group is dropped when coding it as all zero is
// cheaper.
func (s *blockState) decideGroup(cg int, g *groupTotals) {
	ws := s.ws
	cgPos := s.groups[cg]
	if cg == 0 {
		ws.cgFlags[cgPos] = true
		return
	}
	ctx := residual.SigGroupCtx(ws.cgFlags[:s.cgSide*s.cgSide], cgPos%s.cgSide, cgPos/s.cgSide, s.cgSide)

	if !ws.cgFlags[cgPos] {
		// Not coded: its sig flags are never sent.
		ws.cgSigCost[cg] = s.lambda * float64(s.flagBits(cabac.KindSigGroup, ctx, 0))
		s.addBase(ws.cgSigCost[cg] - g.sig)
		return
	}
	if cg == s.lastCG {
		return
	}

	if g.nnzBeforePos0 == 0 {
		// The first position's flag is inferred.
		s.addBase(-g.sig0)
		g.sig -= g.sig0
	}
	costZero := s.baseCost
	ws.cgSigCost[cg] = s.lambda * float64(s.flagBits(cabac.KindSigGroup, ctx, 1))
	s.addBase(ws.cgSigCost[cg])
	costZero += s.lambda * float64(s.flagBits(cabac.KindSigGroup, ctx, 0))
	costZero += g.uncoded
	costZero -= g.coded
	costZero -= g.sig

	ws.groupDelta[cg] = costZero - s.baseCost
	if costZero < s.baseCost {
		s.zeroGroup(cg)
		ws.cgSigCost[cg] = s.lambda * float64(s.flagBits(cabac.KindSigGroup, ctx, 0))
		s.baseCost = costZero
	}
}

// addBase adds delta to both the running cost and the baseline.
func (s *blockState) addBase(delta float64) {
	s.baseCost += delta
	s.baseline += delta
}

// zeroGroup clears every level of sub-group cg.
func (s *blockState) zeroGroup(cg int) {
	ws := s.ws
	ws.cgFlags[s.groups[cg]] = false
	s.zeroed |= 1 << uint(cg)
	minPos := cg << scan.Log2GroupSize
	for i := minPos; i < minPos+scan.GroupSize; i++ {
		pos := s.order[i]
		if s.out[pos] != 0 {
			s.out[pos] = 0
			ws.costCoeff[pos] = ws.costCoeff0[pos]
			ws.costSig[pos] = 0
		}
	}
}
