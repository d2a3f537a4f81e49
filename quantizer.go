package rdoq

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/pool"
	"github.com/deepteams/rdoq/internal/quant"
	"github.com/deepteams/rdoq/internal/residual"
	"github.com/deepteams/rdoq/internal/scan"
)

// ScanMode selects the coefficient scan pattern of a block.
type ScanMode = scan.Mode

const (
	ScanDiagonal   = scan.Diagonal
	ScanHorizontal = scan.Horizontal
	ScanVertical   = scan.Vertical
)

// maxCoeffs is the coefficient count of the largest block.
const maxCoeffs = 1 << (2 * scan.MaxLog2Size)

// Block describes one square transform block.
type Block struct {
	// Width is the side of the block: 4, 8, 16 or 32.
	Width int

	// Comp is the colour plane of the block.
	Comp cabac.Component

	// Scan is the scan pattern used to code the block.
	Scan ScanMode

	// Intra selects the intra scaling lists. Inter luma blocks signal
	// their coded block flag through the root cbf.
	Intra bool

	// CbfCb reports, for a Cr block, whether the co-located Cb block has
	// coded levels. It selects the Cr coded block flag context.
	CbfCb bool
}

// Result summarises one Quantize call. Costs are in units of squared
// quantization error, with rates weighted by the block's lambda in
// fractional bits (cabac.OneBit per bit). Costs are only evaluated when at
// least one coefficient quantizes to a non-zero level.
type Result struct {
	// LastPos is the scan index of the last non-zero level, or -1 when
	// every output level is zero.
	LastPos int

	// NumSignificant is the number of non-zero output levels.
	NumSignificant int

	// Cost is the rate-distortion cost of the selected levels before sign
	// data hiding.
	Cost float64

	// UncodedCost is the cost of coding the block as all zero: the
	// distortion of every coefficient plus the coded block flag set to 0.
	UncodedCost float64

	// BaselineCost is the cost of keeping the first significant position
	// as last and every sub-group as decided by the level pass, without
	// any group zeroing.
	BaselineCost float64

	// ZeroedGroups has bit i set when sub-group i (in scan order) was
	// forced to all zero by the group optimization.
	ZeroedGroups uint64
}

// Quantizer selects rate-distortion optimal levels for transform blocks.
// A Quantizer is immutable once built and may be shared between
// goroutines.
type Quantizer struct {
	opts   Options
	tables *quant.Tables
}

// New returns a Quantizer for opts. A nil opts uses
// DefaultOptions(DefaultQP).
func New(opts *Options) (*Quantizer, error) {
	if opts == nil {
		opts = DefaultOptions(DefaultQP)
	}
	o := opts.resolved()
	if err := validateOptions(&o); err != nil {
		return nil, err
	}
	if o.ScalingList != nil && o.ScalingList.IsFlat() {
		o.ScalingList = nil
	}
	return &Quantizer{
		opts:   o,
		tables: quant.NewTables(o.ScalingList, o.BitDepth),
	}, nil
}

// WithQP returns a Quantizer for another QP and lambda that shares q's
// tables. A lambda of 0 selects LambdaForQP(qp) and chroma follows luma
// unless q was built with a distinct ChromaLambda, which is rescaled by
// the same ratio.
func (q *Quantizer) WithQP(qp int, lambda float64) (*Quantizer, error) {
	o := q.opts
	o.QP = qp
	if lambda == 0 {
		lambda = LambdaForQP(qp)
	}
	o.ChromaLambda = q.opts.ChromaLambda / q.opts.Lambda * lambda
	o.Lambda = lambda
	if err := validateOptions(&o); err != nil {
		return nil, err
	}
	return &Quantizer{opts: o, tables: q.tables}, nil
}

// Options returns the resolved options of q.
func (q *Quantizer) Options() Options {
	return q.opts
}

// Lambda returns the multiplier applied to blocks of component c.
func (q *Quantizer) Lambda(c cabac.Component) float64 {
	if c.IsLuma() {
		return q.opts.Lambda
	}
	return q.opts.ChromaLambda
}

// workspace is the per-call scratch state of one Quantize call.
type workspace struct {
	costCoeff  [maxCoeffs]float64 // cost of the chosen level, distortion included
	costSig    [maxCoeffs]float64 // lambda-weighted significance cost
	costCoeff0 [maxCoeffs]float64 // distortion of coding the position as 0
	sh         signRates

	cgSigCost  [maxCoeffs / scan.GroupSize]float64
	cgFlags    [maxCoeffs / scan.GroupSize]bool // raster order in the group grid
	groupDelta [maxCoeffs / scan.GroupSize]float64

	lastXBits [scan.MaxLog2Size*2 + 1]int32
	lastYBits [scan.MaxLog2Size*2 + 1]int32
}

// signRates caches the per-position rate deltas used by sign data hiding.
type signRates struct {
	inc        [maxCoeffs]int32 // rate change of |level|+1
	dec        [maxCoeffs]int32 // rate change of |level|-1
	sigInc     [maxCoeffs]int32 // sig flag 1 minus sig flag 0
	quantDelta [maxCoeffs]int32 // rounding error in 1/256 of a level step
}

func (ws *workspace) reset() {
	clear(ws.cgSigCost[:])
	clear(ws.cgFlags[:])
	clear(ws.groupDelta[:])
}

var workspaces = pool.New((*workspace).reset)

// Quantize selects the levels of the block in coeffs and writes them,
// raster-ordered and signed, to out. Both slices must hold at least
// blk.Width*blk.Width values; out is cleared first. cs is only read.
func (q *Quantizer) Quantize(coeffs, out []int16, blk Block, cs *cabac.ContextSet) (Result, error) {
	if err := checkBlock(coeffs, out, blk, cs); err != nil {
		return Result{LastPos: -1}, err
	}
	ws := workspaces.Get()
	defer workspaces.Put(ws)
	return q.quantize(ws, coeffs, out, blk, cs), nil
}

func checkBlock(coeffs, out []int16, blk Block, cs *cabac.ContextSet) error {
	if cs == nil {
		return ErrNilContexts
	}
	switch blk.Width {
	case 4, 8, 16, 32:
	default:
		return fmt.Errorf("%w: width %d", ErrBlockSize, blk.Width)
	}
	if blk.Comp > cabac.Cr {
		return fmt.Errorf("%w: component %d", ErrBlockParams, blk.Comp)
	}
	if blk.Scan >= scan.NumModes {
		return fmt.Errorf("%w: scan mode %d", ErrBlockParams, blk.Scan)
	}
	n := blk.Width * blk.Width
	if len(coeffs) < n {
		return fmt.Errorf("%w: %d coefficients for a %dx%d block", ErrBufferSize, len(coeffs), blk.Width, blk.Width)
	}
	if len(out) < n {
		return fmt.Errorf("%w: %d levels for a %dx%d block", ErrBufferSize, len(out), blk.Width, blk.Width)
	}
	return nil
}

// blockState carries the constants and running costs of one block.
type blockState struct {
	ws     *workspace
	coeffs []int16
	out    []int16
	blk    Block
	cs     *cabac.ContextSet
	plane  *cabac.PlaneContexts

	log2, side, cgSide int
	order, groups      []int

	bitDepth   int
	qpScaled   int
	qBits      int
	lambda     float64
	quantCoeff []int32
	errScale   []float64
	signHiding bool

	last, lastCG int // initial last significant scan index and its group
	regBins      int

	baseCost float64 // cost of the current decisions up to the last position
	baseline float64 // baseCost without group zeroing
	uncoded  float64 // distortion of coding every position as 0
	zeroed   uint64
}

func (q *Quantizer) newBlockState(ws *workspace, coeffs, out []int16, blk Block, cs *cabac.ContextSet) *blockState {
	log2 := bits.TrailingZeros(uint(blk.Width))
	bd := q.tables.BitDepth()
	qpScaled := quant.ScaledQP(blk.Comp, q.opts.QP, bd)
	lt := quant.ListType(blk.Intra, blk.Comp)
	s := &blockState{
		ws:         ws,
		coeffs:     coeffs,
		out:        out,
		blk:        blk,
		cs:         cs,
		plane:      cs.Plane(blk.Comp),
		log2:       log2,
		side:       blk.Width,
		cgSide:     blk.Width >> 2,
		order:      scan.Order(log2, blk.Scan),
		groups:     scan.Groups(log2, blk.Scan),
		bitDepth:   bd,
		qpScaled:   qpScaled,
		qBits:      quant.QBits(qpScaled, quant.TransformShift(bd, log2)),
		lambda:     q.Lambda(blk.Comp),
		quantCoeff: q.tables.QuantCoeff(log2, lt, qpScaled%6),
		errScale:   q.tables.ErrScale(log2, lt, qpScaled%6),
		signHiding: q.opts.SignHiding,
		regBins:    residual.RegBinBudget(blk.Width * blk.Width),
	}
	checkGroupCount(len(s.groups))
	return s
}

// checkGroupCount panics unless a block splits into 1, 4, 16 or 64
// sub-groups.
func checkGroupCount(n int) {
	switch n {
	case 1, 4, 16, 64:
		return
	}
	panic(fmt.Sprintf("rdoq: %d coefficient groups in a block (must be 1, 4, 16 or 64)", n))
}

// quantize runs the search on a validated block.
func (q *Quantizer) quantize(ws *workspace, coeffs, out []int16, blk Block, cs *cabac.ContextSet) Result {
	s := q.newBlockState(ws, coeffs, out, blk, cs)
	clear(out[:s.side*s.side])

	if !s.scanInit() {
		return Result{LastPos: -1}
	}
	s.levelAndGroupPass()
	bestP1, cost := s.searchLast()
	numSig := s.finalizeSigns(bestP1)

	res := Result{
		LastPos:        bestP1 - 1,
		NumSignificant: numSig,
		Cost:           cost,
		UncodedCost:    s.uncoded + s.lambda*float64(s.cbfBits(0)),
		BaselineCost:   s.baseline,
		ZeroedGroups:   s.zeroed,
	}
	if s.signHiding && numSig >= 2 {
		s.hideSigns(bestP1)
		res.LastPos, res.NumSignificant = s.census()
	}
	return res
}

// scaled returns the scaled magnitude of the coefficient at raster pos and
// the largest level worth trying for it.
func (s *blockState) scaled(pos int) (levelDouble int64, maxAbs int) {
	c := int64(s.coeffs[pos])
	if c < 0 {
		c = -c
	}
	round := int64(1) << (s.qBits - 1)
	levelDouble = min(c*int64(s.quantCoeff[pos]), math.MaxInt32-round)
	maxAbs = int((levelDouble + round) >> s.qBits)
	return levelDouble, min(maxAbs, quant.MaxLevel)
}

// scanInit finds the last scan index whose coefficient rounds to a
// non-zero level. It reports false when there is none.
func (s *blockState) scanInit() bool {
	for i := len(s.order) - 1; i >= 0; i-- {
		if _, m := s.scaled(s.order[i]); m > 0 {
			s.last = i
			s.lastCG = i >> scan.Log2GroupSize
			return true
		}
	}
	return false
}

// levelAndGroupPass chooses a level for every position up to the last and
// then runs the group optimization, walking groups from the last one back
// to the DC group.
func (s *blockState) levelAndGroupPass() {
	ws := s.ws
	for cg := s.lastCG; cg >= 0; cg-- {
		minPos := cg << scan.Log2GroupSize
		first := minPos + scan.GroupSize - 1
		if cg == s.lastCG {
			first = s.last
			for i := first + 1; i < minPos+scan.GroupSize; i++ {
				pos := s.order[i]
				ws.costCoeff[pos], ws.costSig[pos], ws.costCoeff0[pos] = 0, 0, 0
			}
		}
		g := groupTotals{}
		for i := first; i >= minPos; i-- {
			s.decidePosition(i, &g)
		}
		s.decideGroup(cg, &g)
	}
}

// decidePosition selects the level at scan index i and adds its costs to
// the group totals.
func (s *blockState) decidePosition(i int, g *groupTotals) {
	ws := s.ws
	pos := s.order[i]
	ld, maxAbs := s.scaled(pos)
	es := s.errScale[pos]
	cost0 := float64(ld) * float64(ld) * es
	ws.costCoeff0[pos] = cost0
	s.uncoded += cost0

	isLast := i == s.last
	rc := s.rateContext(pos, isLast)
	level, cost, sigCost := s.selectLevel(ld, maxAbs, cost0, es, rc, isLast)
	ws.costCoeff[pos] = cost
	ws.costSig[pos] = sigCost
	s.cacheSignRates(pos, ld, level, rc, isLast)

	g.sig += sigCost
	if i&(scan.GroupSize-1) == 0 {
		g.sig0 = sigCost
	}
	if level > 0 {
		s.out[pos] = int16(level)
		ws.cgFlags[s.groups[i>>scan.Log2GroupSize]] = true
		g.coded += cost - sigCost
		g.uncoded += cost0
		if i&(scan.GroupSize-1) != 0 {
			g.nnzBeforePos0++
		}
	}
	s.consumeRegBins(level, isLast)

	s.baseCost += cost
	s.baseline += cost
}

// consumeRegBins charges the regular bins a level spends against the
// block budget.
func (s *blockState) consumeRegBins(level int, isLast bool) {
	if s.regBins < residual.MinRegBins {
		return
	}
	if !isLast {
		s.regBins--
	}
	if level > 0 {
		s.regBins--
		if level > 1 {
			s.regBins -= 2
		}
	}
}

// census returns the last non-zero scan index of out and its number of
// non-zero levels.
func (s *blockState) census() (last, numSig int) {
	last = -1
	for i, pos := range s.order {
		if s.out[pos] != 0 {
			last = i
			numSig++
		}
	}
	return last, numSig
}
