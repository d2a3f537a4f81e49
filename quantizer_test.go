package rdoq

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/quant"
	"github.com/deepteams/rdoq/internal/residual"
	"github.com/deepteams/rdoq/internal/scan"
)

func newTestQuantizer(t testing.TB, opts *Options) *Quantizer {
	t.Helper()
	q, err := New(opts)
	require.NoError(t, err)
	return q
}

func log2Of(width int) int {
	switch width {
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		return 4
	}
	return 5
}

// randomCoeffs returns a block whose energy decays away from DC, like a
// transformed residual.
func randomCoeffs(rng *rand.Rand, width, amplitude int) []int16 {
	c := make([]int16, width*width)
	for y := 0; y < width; y++ {
		for x := 0; x < width; x++ {
			if rng.Intn(4) == 0 {
				continue
			}
			a := amplitude / (1 + x + y)
			if a == 0 {
				continue
			}
			c[y*width+x] = int16(rng.Intn(2*a+1) - a)
		}
	}
	return c
}

// maxAbsLevel is the rounded level of c for a flat 8-bit quantizer.
func maxAbsLevel(c int16, qp, log2 int, comp cabac.Component) int {
	qpScaled := quant.ScaledQP(comp, qp, 8)
	qBits := quant.QBits(qpScaled, quant.TransformShift(8, log2))
	abs := int64(c)
	if abs < 0 {
		abs = -abs
	}
	return int((abs*int64(quant.Scales[qpScaled%6]) + 1<<(qBits-1)) >> qBits)
}

func TestQuantizeErrors(t *testing.T) {
	q := newTestQuantizer(t, nil)
	cs := cabac.NewContextSet(32)
	buf := make([]int16, 64)

	tests := []struct {
		name   string
		coeffs []int16
		out    []int16
		blk    Block
		cs     *cabac.ContextSet
		want   error
	}{
		{"nil contexts", buf, buf, Block{Width: 8}, nil, ErrNilContexts},
		{"width 2", buf, buf, Block{Width: 2}, cs, ErrBlockSize},
		{"width 12", buf, buf, Block{Width: 12}, cs, ErrBlockSize},
		{"width 64", buf, buf, Block{Width: 64}, cs, ErrBlockSize},
		{"component", buf, buf, Block{Width: 8, Comp: 3}, cs, ErrBlockParams},
		{"scan mode", buf, buf, Block{Width: 8, Scan: scan.NumModes}, cs, ErrBlockParams},
		{"short coeffs", buf[:63], buf, Block{Width: 8}, cs, ErrBufferSize},
		{"short out", buf, buf[:10], Block{Width: 8}, cs, ErrBufferSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := q.Quantize(tt.coeffs, tt.out, tt.blk, tt.cs)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.want), "got %v", err)
			require.Equal(t, -1, res.LastPos)
		})
	}
}

func TestQuantizeZeroInput(t *testing.T) {
	q := newTestQuantizer(t, DefaultOptions(27))
	cs := cabac.NewContextSet(27)
	for _, width := range []int{4, 8, 16, 32} {
		coeffs := make([]int16, width*width)
		// Below half a quantization step everywhere.
		coeffs[0], coeffs[1] = 3, -2
		out := make([]int16, width*width)
		for i := range out {
			out[i] = 99
		}
		res, err := q.Quantize(coeffs, out, Block{Width: width, Intra: true}, cs)
		require.NoError(t, err)
		require.Equal(t, Result{LastPos: -1}, res)
		require.Equal(t, make([]int16, width*width), out)

		// Running again on its own output changes nothing.
		res, err = q.Quantize(out, out, Block{Width: width, Intra: true}, cs)
		require.NoError(t, err)
		require.Equal(t, -1, res.LastPos)
		require.Equal(t, make([]int16, width*width), out)
	}
}

func TestQuantizeDCExample(t *testing.T) {
	// Flat 4x4 luma at QP 22, 8-bit: one level step is 256.
	const lambda = 10.0
	q := newTestQuantizer(t, &Options{QP: 22, Lambda: lambda})
	cs := cabac.NewContextSet(22)

	// The only coded level sits at the last position: no sig flag, gtx
	// context 0, and the rice parameter of an empty neighbourhood.
	rice := residual.NewTemplate(make([]int16, 16), 0, 0, 2).RiceParam(4)
	rate := cabac.OneBit + int32(residual.RemainderBits(0, rice))*cabac.OneBit +
		cs.Bits(cabac.KindPar, cabac.Luma, 0, 1) +
		cs.Bits(cabac.KindGt1, cabac.Luma, 0, 1) +
		cs.Bits(cabac.KindGt2, cabac.Luma, 0, 1)
	offset, _ := residual.LastPrefixCtx(2, cabac.Luma)
	last := cs.Bits(cabac.KindLastX, cabac.Luma, offset, 0) + cs.Bits(cabac.KindLastY, cabac.Luma, offset, 0)
	cbf := cs.Cbf(cabac.Luma, 0).Bits(1)

	lt := quant.ListType(true, cabac.Luma)
	qBits := quant.QBits(22, quant.TransformShift(8, 2))
	ld := int64(1280) * int64(q.tables.QuantCoeff(2, lt, 22%6)[0])
	dist := float64(ld-5<<qBits) * float64(ld-5<<qBits) * q.tables.ErrScale(2, lt, 22%6)[0]
	wantCost := dist + lambda*float64(rate) + lambda*float64(cbf) + lambda*float64(last)

	for _, tt := range []struct {
		name string
		dc   int16
		want int16
	}{
		{"positive", 1280, 5},
		{"negative", -1280, -5},
	} {
		t.Run(tt.name, func(t *testing.T) {
			coeffs := make([]int16, 16)
			coeffs[0] = tt.dc
			out := make([]int16, 16)
			res, err := q.Quantize(coeffs, out, Block{Width: 4, Intra: true}, cs)
			require.NoError(t, err)

			want := make([]int16, 16)
			want[0] = tt.want
			require.Equal(t, want, out)
			require.Equal(t, 0, res.LastPos)
			require.Equal(t, 1, res.NumSignificant)
			require.Zero(t, res.ZeroedGroups)
			require.Less(t, res.Cost, res.UncodedCost)
			require.LessOrEqual(t, res.Cost, res.BaselineCost)
			require.InDelta(t, wantCost, res.Cost, 1e-9*wantCost)
		})
	}
}

func TestQuantizeSignHidingExample(t *testing.T) {
	// Flat 8x8 luma at QP 22: one level step is 128. Levels 3 and 2 sit
	// five scan positions apart in the DC group; the sum is odd while the
	// first level is positive.
	order := scan.Order(3, scan.Diagonal)
	coeffs := make([]int16, 64)
	coeffs[order[0]] = 3 * 128
	coeffs[order[5]] = 2 * 128

	cs := cabac.NewContextSet(22)
	plain := make([]int16, 64)
	hidden := make([]int16, 64)

	q := newTestQuantizer(t, &Options{QP: 22})
	res, err := q.Quantize(coeffs, plain, Block{Width: 8, Intra: true}, cs)
	require.NoError(t, err)
	require.Equal(t, int16(3), plain[order[0]])
	require.Equal(t, int16(2), plain[order[5]])
	require.Equal(t, 5, res.LastPos)

	q = newTestQuantizer(t, &Options{QP: 22, SignHiding: true})
	_, err = q.Quantize(coeffs, hidden, Block{Width: 8, Intra: true}, cs)
	require.NoError(t, err)

	changed := 0
	sum := 0
	for i := range plain {
		d := int(hidden[i]) - int(plain[i])
		if d != 0 {
			changed++
			require.Equal(t, 1, absInt(d))
		}
		sum += absInt(int(hidden[i]))
	}
	require.Equal(t, 1, changed)
	require.Zero(t, sum&1, "parity must match the positive first level")
}

func TestQuantizeSignHidingSpan(t *testing.T) {
	// Five levels over the first seven scan positions of an 8x8 DC group
	// sum to 11 while the first level is positive. Dropping the trailing
	// one also removes its last position cost, so it is the cheapest fix.
	order := scan.Order(3, scan.Diagonal)
	levels := []int16{4, 2, 0, 1, 0, 3, 1}
	coeffs := make([]int16, 64)
	for i, l := range levels {
		coeffs[order[i]] = l * 128
	}
	cs := cabac.NewContextSet(22)

	plain := make([]int16, 64)
	q := newTestQuantizer(t, &Options{QP: 22})
	res, err := q.Quantize(coeffs, plain, Block{Width: 8, Intra: true}, cs)
	require.NoError(t, err)
	require.Equal(t, 6, res.LastPos)
	for i, l := range levels {
		require.Equal(t, l, plain[order[i]], "scan %d", i)
	}

	hidden := make([]int16, 64)
	q = newTestQuantizer(t, &Options{QP: 22, SignHiding: true})
	res, err = q.Quantize(coeffs, hidden, Block{Width: 8, Intra: true}, cs)
	require.NoError(t, err)

	changed := 0
	for i := range plain {
		if d := int(hidden[i]) - int(plain[i]); d != 0 {
			changed++
			require.Equal(t, 1, absInt(d))
		}
	}
	require.Equal(t, 1, changed)
	ok, cg := groupParityOK(hidden, order)
	require.True(t, ok, "group %d", cg)

	want := []int16{4, 2, 0, 1, 0, 3, 0}
	for i, l := range want {
		require.Equal(t, l, hidden[order[i]], "scan %d", i)
	}
	require.Equal(t, 5, res.LastPos)
	require.Equal(t, 4, res.NumSignificant)
}

func TestQuantizeGroupZeroing(t *testing.T) {
	// 8x8 at QP 22 with a very large lambda: big levels in the DC group
	// and in the last group, a lone small level in scan group 1.
	q := newTestQuantizer(t, &Options{QP: 22, Lambda: 1000})
	cs := cabac.NewContextSet(22)
	groups := scan.Groups(3, scan.Diagonal)
	require.Equal(t, 2, groups[1]) // grid (0,1): rows 4..7, columns 0..3
	require.Equal(t, 3, groups[3])

	coeffs := make([]int16, 64)
	coeffs[0] = 100 * 128
	coeffs[4*8+0] = 3 * 128
	coeffs[4*8+4] = 100 * 128
	out := make([]int16, 64)

	var ws workspace
	res := q.quantize(&ws, coeffs, out, Block{Width: 8, Intra: true}, cs)

	require.Equal(t, uint64(1<<1), res.ZeroedGroups)
	require.Zero(t, out[4*8+0])
	require.NotZero(t, out[0])
	require.NotZero(t, out[4*8+4])
	require.False(t, ws.cgFlags[groups[1]])
	require.Less(t, ws.groupDelta[1], 0.0)

	// The last position cannot move past a level above one, so the final
	// cost differs from the baseline by exactly the group's saving.
	require.InEpsilon(t, -ws.groupDelta[1], res.BaselineCost-res.Cost, 1e-6)

	// Rebuild the saving from the group's own terms: its level sits at the
	// group's first scan position, so that sig flag is inferred and only
	// the other fifteen zero flags count. They see the last group's level
	// through their templates.
	order := scan.Order(3, scan.Diagonal)
	require.Equal(t, 4*8+0, order[16])
	lam := q.Lambda(cabac.Luma)
	decided := make([]int16, 64)
	decided[4*8+4] = out[4*8+4]

	var sig float64
	for i := 17; i < 32; i++ {
		pos := order[i]
		tpl := residual.NewTemplate(decided, pos&7, pos>>3, 3)
		sig += lam * float64(cs.Bits(cabac.KindSig, cabac.Luma, tpl.SigCtx(cabac.Luma), 0))
	}

	lt := quant.ListType(true, cabac.Luma)
	qBits := quant.QBits(22, quant.TransformShift(8, 3))
	es := q.tables.ErrScale(3, lt, 22%6)[4*8+0]
	ld := int64(3*128) * int64(q.tables.QuantCoeff(3, lt, 22%6)[4*8+0])
	uncoded := float64(ld) * float64(ld) * es

	var st workspace
	s := q.newBlockState(&st, coeffs, decided, Block{Width: 8, Intra: true}, cs)
	tpl := residual.NewTemplate(decided, 0, 4, 3)
	rc := rateCtx{gtx: tpl.GtxCtx(cabac.Luma), rice: tpl.RiceParam(4), regBins: residual.MinRegBins}
	coded := math.MaxFloat64
	for _, l := range []int{3, 2} {
		err := float64(ld - int64(l)<<qBits)
		coded = min(coded, err*err*es+lam*float64(s.icRate(l, rc)))
	}

	flagCtx := residual.SigGroupCtx([]bool{false, false, false, true}, 0, 1, 2)
	flag0 := lam * float64(cs.Bits(cabac.KindSigGroup, cabac.Luma, flagCtx, 0))
	flag1 := lam * float64(cs.Bits(cabac.KindSigGroup, cabac.Luma, flagCtx, 1))
	want := uncoded - coded - sig + flag0 - flag1
	require.InEpsilon(t, want, ws.groupDelta[1], 1e-9)
}

func TestCheckGroupCount(t *testing.T) {
	for _, n := range []int{1, 4, 16, 64} {
		require.NotPanics(t, func() { checkGroupCount(n) }, "%d groups", n)
	}
	for _, n := range []int{0, 2, 8, 32, 128} {
		require.PanicsWithValue(t,
			fmt.Sprintf("rdoq: %d coefficient groups in a block (must be 1, 4, 16 or 64)", n),
			func() { checkGroupCount(n) })
	}
}

func TestQuantizeGroupKept(t *testing.T) {
	// Same layout at the default lambda: every group is worth coding.
	q := newTestQuantizer(t, &Options{QP: 22})
	cs := cabac.NewContextSet(22)
	coeffs := make([]int16, 64)
	coeffs[0] = 100 * 128
	coeffs[4*8+0] = 3 * 128
	coeffs[4*8+4] = 100 * 128
	out := make([]int16, 64)

	var ws workspace
	res := q.quantize(&ws, coeffs, out, Block{Width: 8, Intra: true}, cs)
	require.Zero(t, res.ZeroedGroups)
	require.NotZero(t, out[4*8+0])
	require.GreaterOrEqual(t, ws.groupDelta[1], 0.0)
	require.Equal(t, res.BaselineCost, res.Cost)
}

func TestQuantizeCostBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cs := cabac.NewContextSet(30)
	for iter := 0; iter < 200; iter++ {
		width := 4 << (iter % 4)
		qp := 10 + rng.Intn(40)
		opts := DefaultOptions(qp)
		opts.SignHiding = iter%2 == 0
		if iter%5 == 0 {
			opts.Lambda *= 8
		}
		q := newTestQuantizer(t, opts)
		coeffs := randomCoeffs(rng, width, 200+rng.Intn(3000))
		out := make([]int16, width*width)
		blk := Block{
			Width: width,
			Comp:  cabac.Component(iter % 3),
			Scan:  ScanMode(rng.Intn(int(scan.NumModes))),
			Intra: iter%3 != 1,
			CbfCb: iter%2 == 1,
		}
		res, err := q.Quantize(coeffs, out, blk, cs)
		require.NoError(t, err)
		if res.LastPos < 0 && res.Cost == 0 {
			continue
		}
		require.LessOrEqual(t, res.Cost, res.BaselineCost, "iter %d", iter)
		require.LessOrEqual(t, res.Cost, res.UncodedCost, "iter %d", iter)
	}
}

func TestQuantizeLevelBound(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	cs := cabac.NewContextSet(32)
	for iter := 0; iter < 200; iter++ {
		width := 4 << (iter % 4)
		qp := 4 + rng.Intn(50)
		comp := cabac.Component(iter % 3)
		q := newTestQuantizer(t, &Options{QP: qp})
		coeffs := randomCoeffs(rng, width, 100+rng.Intn(5000))
		out := make([]int16, width*width)
		res, err := q.Quantize(coeffs, out, Block{Width: width, Comp: comp, Intra: true}, cs)
		require.NoError(t, err)

		order := scan.Order(log2Of(width), scan.Diagonal)
		nnz := 0
		for i, pos := range order {
			l := int(out[pos])
			if l == 0 {
				continue
			}
			nnz++
			require.LessOrEqual(t, i, res.LastPos)
			m := maxAbsLevel(coeffs[pos], qp, log2Of(width), comp)
			a := absInt(l)
			require.True(t, a == m || a == m-1, "pos %d: level %d, rounded %d", pos, l, m)
			require.Equal(t, coeffs[pos] < 0, l < 0)
		}
		require.Equal(t, res.NumSignificant, nnz)
		if res.LastPos >= 0 {
			require.NotZero(t, out[order[res.LastPos]])
		}
	}
}

// groupParityOK reports whether every sub-group of levels whose non-zero
// span reaches the hiding threshold has a magnitude sum whose parity
// matches the sign of its first non-zero level.
func groupParityOK(levels []int16, order []int) (bool, int) {
	for cg := 0; cg*scan.GroupSize < len(order); cg++ {
		first, last, sum := -1, -1, 0
		for i := 0; i < scan.GroupSize; i++ {
			l := levels[order[cg*scan.GroupSize+i]]
			if l == 0 {
				continue
			}
			if first < 0 {
				first = i
			}
			last = i
			sum += absInt(int(l))
		}
		if first < 0 || last-first < residual.SBHThreshold {
			continue
		}
		neg := levels[order[cg*scan.GroupSize+first]] < 0
		if neg != (sum&1 == 1) {
			return false, cg
		}
	}
	return true, -1
}

func TestQuantizeSignHidingParity(t *testing.T) {
	for seed := int64(1); seed <= 40; seed++ {
		rng := rand.New(rand.NewSource(seed))
		width := 4 << (seed % 4)
		qp := 15 + rng.Intn(30)
		opts := DefaultOptions(qp)
		q := newTestQuantizer(t, opts)
		cs := cabac.NewContextSet(qp)
		mode := ScanMode(seed % int64(scan.NumModes))

		coeffs := randomCoeffs(rng, width, 500+rng.Intn(4000))
		out := make([]int16, width*width)
		res, err := q.Quantize(coeffs, out, Block{Width: width, Scan: mode, Intra: true}, cs)
		require.NoError(t, err)

		ok, cg := groupParityOK(out, scan.Order(log2Of(width), mode))
		require.True(t, ok, "seed %d: group %d", seed, cg)

		for i := range out {
			require.LessOrEqual(t, absInt(int(out[i])), quant.MaxLevel)
			if out[i] > 0 {
				require.GreaterOrEqual(t, coeffs[i], int16(0))
			}
			if out[i] < 0 {
				require.Less(t, coeffs[i], int16(0))
			}
		}
		last, n := -1, 0
		for i, pos := range scan.Order(log2Of(width), mode) {
			if out[pos] != 0 {
				last, n = i, n+1
			}
		}
		require.Equal(t, last, res.LastPos)
		require.Equal(t, n, res.NumSignificant)
	}
}

func TestQuantizeSaturation(t *testing.T) {
	// At 16 bits and the lowest QP the largest coefficients exceed the
	// level range. The negative DC against an even sum forces a parity
	// change on a saturated level, which may only decrease.
	q := newTestQuantizer(t, &Options{QP: -48, BitDepth: 16, SignHiding: true})
	cs := cabac.NewContextSet(0)
	coeffs := make([]int16, 16)
	for i := range coeffs {
		coeffs[i] = 32767
		if i%2 == 0 {
			coeffs[i] = -32768
		}
	}
	out := make([]int16, 16)
	res, err := q.Quantize(coeffs, out, Block{Width: 4, Intra: true}, cs)
	require.NoError(t, err)
	require.Equal(t, 15, res.LastPos)
	for i, l := range out {
		require.LessOrEqual(t, absInt(int(l)), quant.MaxLevel, "pos %d", i)
		require.Greater(t, absInt(int(l)), quant.MaxLevel-2, "pos %d", i)
	}
}

func TestQuantizeLeavesContextsUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	q := newTestQuantizer(t, DefaultOptions(30))
	cs := cabac.NewContextSet(30)
	before := cs.Snapshot()
	for i := 0; i < 20; i++ {
		width := 4 << (i % 4)
		coeffs := randomCoeffs(rng, width, 2000)
		out := make([]int16, width*width)
		_, err := q.Quantize(coeffs, out, Block{Width: width, Comp: cabac.Component(i % 3)}, cs)
		require.NoError(t, err)
	}
	require.Equal(t, before, *cs)
}

func TestQuantizeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(33))
	q := newTestQuantizer(t, DefaultOptions(28))
	cs := cabac.NewContextSet(28)

	const blocks = 16
	coeffs := make([][]int16, blocks)
	want := make([][]int16, blocks)
	for i := range coeffs {
		coeffs[i] = randomCoeffs(rng, 16, 3000)
		want[i] = make([]int16, 256)
		_, err := q.Quantize(coeffs[i], want[i], Block{Width: 16, Intra: true}, cs)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8*blocks)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := make([]int16, 256)
			for i := range coeffs {
				if _, err := q.Quantize(coeffs[i], out, Block{Width: 16, Intra: true}, cs); err != nil {
					errs <- err
					return
				}
				for k := range out {
					if out[k] != want[i][k] {
						errs <- errors.New("concurrent result differs")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestQuantizeScalingList(t *testing.T) {
	// Doubling every weight halves the quantizer scale, so the same
	// coefficient yields a smaller level.
	list := NewScalingList()
	weights := make([]int32, 16)
	for i := range weights {
		weights[i] = 32
	}
	require.NoError(t, list.Set(0, 2, weights))

	coeffs := make([]int16, 16)
	coeffs[0] = 1280
	cs := cabac.NewContextSet(22)

	flat := newTestQuantizer(t, &Options{QP: 22})
	scaled := newTestQuantizer(t, &Options{QP: 22, ScalingList: list})
	a := make([]int16, 16)
	b := make([]int16, 16)
	_, err := flat.Quantize(coeffs, a, Block{Width: 4, Intra: true}, cs)
	require.NoError(t, err)
	_, err = scaled.Quantize(coeffs, b, Block{Width: 4, Intra: true}, cs)
	require.NoError(t, err)
	require.Equal(t, int16(5), a[0])
	require.InDelta(t, 2.5, float64(b[0]), 0.5)

	// A list without weights is dropped at construction.
	plain := newTestQuantizer(t, &Options{QP: 22, ScalingList: NewScalingList()})
	require.Nil(t, plain.Options().ScalingList)

	// Inter blocks use list type 3, which is still flat.
	_, err = scaled.Quantize(coeffs, b, Block{Width: 4}, cs)
	require.NoError(t, err)
	require.Equal(t, int16(5), b[0])
}
