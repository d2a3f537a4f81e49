package cabac

// Component identifies the colour plane a transform block belongs to.
type Component uint8

const (
	Luma Component = iota
	Cb
	Cr
)

// IsLuma reports whether c is the luma plane.
func (c Component) IsLuma() bool { return c == Luma }

func (c Component) String() string {
	switch c {
	case Luma:
		return "Y"
	case Cb:
		return "Cb"
	case Cr:
		return "Cr"
	}
	return "invalid"
}

// Kind names a binary decision of the coefficient syntax.
type Kind uint8

const (
	KindSig      Kind = iota // sig_coeff_flag
	KindGt1                  // abs_level_gt1_flag
	KindPar                  // par_level_flag
	KindGt2                  // abs_level_gt3_flag
	KindSigGroup             // sb_coded_flag
	KindLastX                // last_sig_coeff_x_prefix
	KindLastY                // last_sig_coeff_y_prefix
)

// Context counts per plane. Chroma uses the leading part of each array.
const (
	NumSigCtx      = 12
	NumGtxCtx      = 21
	NumLastCtx     = 20
	NumSigGroupCtx = 2

	NumSigCtxChroma = 8
	NumGtxCtxChroma = 11
)

// PlaneContexts groups the residual coding contexts of one plane type.
type PlaneContexts struct {
	Sig      [NumSigCtx]Context
	Gt1      [NumGtxCtx]Context
	Par      [NumGtxCtx]Context
	Gt2      [NumGtxCtx]Context
	SigGroup [NumSigGroupCtx]Context
	LastX    [NumLastCtx]Context
	LastY    [NumLastCtx]Context
}

// ContextSet is the full set of contexts read by quantization and written
// by the coefficient syntax writer. It holds only arrays, so a plain value
// copy is a complete, independent snapshot.
type ContextSet struct {
	Luma    PlaneContexts
	Chroma  PlaneContexts
	CbfLuma [4]Context
	CbfCb   [2]Context
	CbfCr   [2]Context
	RootCbf Context
}

// NewContextSet returns a context set initialised for the given slice QP.
func NewContextSet(qp int) *ContextSet {
	cs := &ContextSet{}
	cs.Init(qp)
	return cs
}

// Init resets every context to its initial state for the given slice QP.
func (cs *ContextSet) Init(qp int) {
	initPlane(&cs.Luma, &lumaInit, qp)
	initPlane(&cs.Chroma, &chromaInit, qp)
	initAll(cs.CbfLuma[:], cbfLumaInit[:], qp)
	initAll(cs.CbfCb[:], cbfCbInit[:], qp)
	initAll(cs.CbfCr[:], cbfCrInit[:], qp)
	cs.RootCbf.SetWindow(DefaultWindow)
	cs.RootCbf.Init(qp, rootCbfInit)
}

// Snapshot returns an independent copy of cs. Coding into the copy never
// touches cs.
func (cs *ContextSet) Snapshot() ContextSet {
	return *cs
}

// Plane returns the residual contexts used by component c.
func (cs *ContextSet) Plane(c Component) *PlaneContexts {
	if c.IsLuma() {
		return &cs.Luma
	}
	return &cs.Chroma
}

// Context returns the context of the given kind and index for component c.
func (cs *ContextSet) Context(kind Kind, c Component, idx int) *Context {
	p := cs.Plane(c)
	switch kind {
	case KindSig:
		return &p.Sig[idx]
	case KindGt1:
		return &p.Gt1[idx]
	case KindPar:
		return &p.Par[idx]
	case KindGt2:
		return &p.Gt2[idx]
	case KindSigGroup:
		return &p.SigGroup[idx]
	case KindLastX:
		return &p.LastX[idx]
	case KindLastY:
		return &p.LastY[idx]
	}
	panic("cabac: unknown context kind")
}

// Bits returns the cost of coding bin with the addressed context without
// adapting it.
func (cs *ContextSet) Bits(kind Kind, c Component, idx, bin int) int32 {
	return cs.Context(kind, c, idx).Bits(bin)
}

// Cbf returns the coded block flag context for component c. ctx selects
// between the two Cr contexts (set when Cb was coded).
func (cs *ContextSet) Cbf(c Component, ctx int) *Context {
	switch c {
	case Cb:
		return &cs.CbfCb[ctx]
	case Cr:
		return &cs.CbfCr[ctx]
	}
	return &cs.CbfLuma[ctx]
}

type planeInit struct {
	sig      [NumSigCtx]uint8
	gt1      [NumGtxCtx]uint8
	par      [NumGtxCtx]uint8
	gt2      [NumGtxCtx]uint8
	sigGroup [NumSigGroupCtx]uint8
	last     [NumLastCtx]uint8
	window   int
}

func initPlane(p *PlaneContexts, in *planeInit, qp int) {
	initAllWindow(p.Sig[:], in.sig[:], in.window, qp)
	initAllWindow(p.Gt1[:], in.gt1[:], in.window, qp)
	initAllWindow(p.Par[:], in.par[:], in.window, qp)
	initAllWindow(p.Gt2[:], in.gt2[:], in.window, qp)
	initAllWindow(p.SigGroup[:], in.sigGroup[:], in.window, qp)
	initAllWindow(p.LastX[:], in.last[:], in.window, qp)
	initAllWindow(p.LastY[:], in.last[:], in.window, qp)
}

func initAll(ctxs []Context, vals []uint8, qp int) {
	initAllWindow(ctxs, vals, DefaultWindow, qp)
}

func initAllWindow(ctxs []Context, vals []uint8, window, qp int) {
	for i := range ctxs {
		ctxs[i].SetWindow(window)
		ctxs[i].Init(qp, int(vals[i]))
	}
}

// Intra-slice init values. Unused chroma entries keep the neutral value 35.
var lumaInit = planeInit{
	sig: [NumSigCtx]uint8{
		25, 19, 28, 14, 25, 20, 29, 30, 19, 37, 30, 38,
	},
	gt1: [NumGtxCtx]uint8{
		25, 1, 25, 33, 26, 34, 2, 18, 26, 34, 35,
		36, 33, 26, 27, 28, 21, 33, 34, 29, 22,
	},
	par: [NumGtxCtx]uint8{
		33, 40, 25, 41, 26, 42, 25, 33, 26, 34, 27,
		25, 41, 42, 42, 35, 33, 27, 35, 42, 43,
	},
	gt2: [NumGtxCtx]uint8{
		25, 25, 26, 11, 19, 27, 33, 42, 35, 35, 43,
		42, 27, 34, 44, 28, 36, 35, 44, 29, 44,
	},
	sigGroup: [NumSigGroupCtx]uint8{18, 31},
	last: [NumLastCtx]uint8{
		13, 5, 4, 21, 14, 4, 6, 14, 21, 11,
		14, 7, 14, 5, 11, 21, 30, 22, 13, 42,
	},
	window: 8,
}

var chromaInit = planeInit{
	sig: [NumSigCtx]uint8{
		25, 27, 28, 37, 34, 53, 53, 46, 35, 35, 35, 35,
	},
	gt1: [NumGtxCtx]uint8{
		25, 25, 11, 27, 20, 21, 33, 12, 28, 21, 22,
		35, 35, 35, 35, 35, 35, 35, 35, 35, 35,
	},
	par: [NumGtxCtx]uint8{
		34, 27, 28, 29, 22, 42, 28, 44, 37, 38, 30,
		35, 35, 35, 35, 35, 35, 35, 35, 35, 35,
	},
	gt2: [NumGtxCtx]uint8{
		11, 34, 27, 28, 29, 36, 42, 43, 44, 37, 45,
		35, 35, 35, 35, 35, 35, 35, 35, 35, 35,
	},
	sigGroup: [NumSigGroupCtx]uint8{25, 45},
	last: [NumLastCtx]uint8{
		12, 4, 3, 35, 35, 35, 35, 35, 35, 35,
		35, 35, 35, 35, 35, 35, 35, 35, 35, 35,
	},
	window: 9,
}

var (
	cbfLumaInit = [4]uint8{15, 12, 5, 7}
	cbfCbInit   = [2]uint8{12, 21}
	cbfCrInit   = [2]uint8{33, 28}
	rootCbfInit = 6
)
