package rdoq

import (
	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/residual"
	"github.com/deepteams/rdoq/internal/scan"
)

// rateCtx holds the context indices a level at one position is coded
// with.
type rateCtx struct {
	sig     int
	gtx     int
	rice    int
	regBins int
}

// rateContext derives the contexts of raster position pos from the levels
// already decided in s.out.
func (s *blockState) rateContext(pos int, isLast bool) rateCtx {
	tpl := residual.NewTemplate(s.out, pos&(s.side-1), pos>>s.log2, s.log2)
	rc := rateCtx{regBins: s.regBins}
	if !isLast {
		rc.sig = tpl.SigCtx(s.blk.Comp)
		rc.gtx = tpl.GtxCtx(s.blk.Comp)
	}
	if s.regBins < residual.MinRegBins {
		rc.rice = tpl.RiceParam(0)
	} else {
		rc.rice = tpl.RiceParam(4)
	}
	return rc
}

// icRate returns the rate in fractional bits of coding level with the
// contexts in rc, sign included. In the bypass regime a zero level keeps
// the sign placeholder so that differences against it stay comparable.
func (s *blockState) icRate(level int, rc rateCtx) int32 {
	if rc.regBins < residual.MinRegBins {
		sym := residual.BypassSymbol(level, rc.rice)
		return cabac.OneBit + int32(residual.RemainderBits(sym, rc.rice))*cabac.OneBit
	}
	p := s.plane
	g := rc.gtx
	switch {
	case level == 0:
		return 0
	case level == 1:
		return cabac.OneBit + p.Gt1[g].Bits(0)
	case level < 4:
		return cabac.OneBit + p.Par[g].Bits((level-2)&1) + p.Gt1[g].Bits(1) + p.Gt2[g].Bits(0)
	}
	sym := uint32(level-4) >> 1
	return cabac.OneBit + int32(residual.RemainderBits(sym, rc.rice))*cabac.OneBit +
		p.Par[g].Bits((level-2)&1) + p.Gt1[g].Bits(1) + p.Gt2[g].Bits(1)
}

// computeLastBits fills the last position prefix cost tables: entry g is
// the cost of the prefix selecting group g.
func (s *blockState) computeLastBits() {
	offset, shift := residual.LastPrefixCtx(s.log2, s.blk.Comp)
	maxGroup := scan.GroupIdx[s.side-1]
	fillLastBits(s.ws.lastXBits[:], s.plane.LastX[:], maxGroup, offset, shift)
	fillLastBits(s.ws.lastYBits[:], s.plane.LastY[:], maxGroup, offset, shift)
}

func fillLastBits(dst []int32, ctxs []cabac.Context, maxGroup, offset, shift int) {
	var acc int32
	for g := 0; g < maxGroup; g++ {
		ctx := &ctxs[offset+(g>>shift)]
		dst[g] = acc + ctx.Bits(0)
		acc += ctx.Bits(1)
	}
	dst[maxGroup] = acc
}

// rateLast returns the lambda-weighted cost of signalling (x, y) as the
// last position.
func (s *blockState) rateLast(x, y int) float64 {
	gx, gy := scan.GroupIdx[x], scan.GroupIdx[y]
	bits := s.ws.lastXBits[gx] + s.ws.lastYBits[gy]
	if gx > 3 {
		bits += cabac.OneBit * int32((gx-2)>>1)
	}
	if gy > 3 {
		bits += cabac.OneBit * int32((gy-2)>>1)
	}
	return s.lambda * float64(bits)
}

// flagBits returns the cost of bin under the context of the given kind
// and index in the block's plane.
func (s *blockState) flagBits(kind cabac.Kind, idx, bin int) int32 {
	return s.cs.Bits(kind, s.blk.Comp, idx, bin)
}

// cbfBits returns the cost of the block's coded block flag set to bin.
func (s *blockState) cbfBits(bin int) int32 {
	if !s.blk.Intra && s.blk.Comp.IsLuma() {
		return s.cs.RootCbf.Bits(bin)
	}
	ctx := 0
	if s.blk.Comp == cabac.Cr && s.blk.CbfCb {
		ctx = 1
	}
	return s.cs.Cbf(s.blk.Comp, ctx).Bits(bin)
}
