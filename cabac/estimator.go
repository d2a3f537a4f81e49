package cabac

// Estimator accumulates an approximate bit count for a sequence of bins
// using closed-form costs. Contexts are read but never adapted, so an
// Estimator can run over a live ContextSet.
type Estimator struct {
	bits float64
}

// EncodeBin adds the cost of coding bin with ctx.
func (e *Estimator) EncodeBin(bin int, ctx *Context) {
	e.bits += ApproxBits(ctx.State(), bin)
}

// EncodeBypassBins adds n equiprobable bins.
func (e *Estimator) EncodeBypassBins(_ uint32, n int) {
	e.bits += float64(n)
}

// Bits returns the accumulated estimate in bits.
func (e *Estimator) Bits() float64 {
	return e.bits
}

// Reset clears the accumulated estimate.
func (e *Estimator) Reset() {
	e.bits = 0
}
