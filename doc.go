// Package rdoq implements rate-distortion optimized quantization for the
// residual blocks of a VVC-style video encoder.
//
// Given the transform coefficients of one square block and the current
// state of the entropy coder's adaptive contexts, a Quantizer picks the
// coded levels that minimise
//
//	distortion + lambda * rate
//
// where rate is estimated in fractional bits from the context models. The
// search decides a level per coefficient, whether each 4x4 sub-group is
// coded at all, where the last significant coefficient sits and, when sign
// data hiding is enabled, which magnitude to nudge so that a sub-group's
// parity carries its first sign.
//
// The package supports:
//   - Block sizes 4x4, 8x8, 16x16 and 32x32
//   - Diagonal, horizontal and vertical scans
//   - Luma and 4:2:0 chroma, with separate lambdas
//   - Bit depths 8 to 16
//   - Custom scaling lists
//   - Sign data hiding
//   - Exact (arithmetic coder in counting mode) and fast residual bit costs
//
// Basic usage:
//
//	q, err := rdoq.New(rdoq.DefaultOptions(32))
//	if err != nil {
//		return err
//	}
//	ctx := cabac.NewContextSet(32)
//	res, err := q.Quantize(coeffs, levels, rdoq.Block{Width: 8, Intra: true}, ctx)
//
// A Quantizer is immutable and safe for concurrent use. The context set is
// only read; the caller owns it and updates it when the block is actually
// coded.
package rdoq
