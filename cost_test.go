package rdoq

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepteams/rdoq/cabac"
	"github.com/deepteams/rdoq/internal/residual"
)

func TestCoeffCostEmpty(t *testing.T) {
	q := newTestQuantizer(t, DefaultOptions(32))
	cs := cabac.NewContextSet(32)
	bits, err := q.CoeffCost(make([]int16, 64), Block{Width: 8}, cs)
	require.NoError(t, err)
	require.Zero(t, bits)
}

func TestCoeffCostErrors(t *testing.T) {
	q := newTestQuantizer(t, DefaultOptions(32))
	_, err := q.CoeffCost(make([]int16, 16), Block{Width: 4}, nil)
	require.ErrorIs(t, err, ErrNilContexts)
	_, err = q.CoeffCost(make([]int16, 16), Block{Width: 8}, cabac.NewContextSet(32))
	require.ErrorIs(t, err, ErrBufferSize)
	_, err = q.CoeffCost(make([]int16, 36), Block{Width: 6}, cabac.NewContextSet(32))
	require.ErrorIs(t, err, ErrBlockSize)
}

func TestCoeffCostPaths(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	cs := cabac.NewContextSet(32)
	before := cs.Snapshot()

	exact := newTestQuantizer(t, &Options{QP: 32, SignHiding: true})
	fast := newTestQuantizer(t, &Options{QP: 32, SignHiding: true, FastResidualCostLimit: 40})
	never := newTestQuantizer(t, &Options{QP: 32, SignHiding: true, FastResidualCostLimit: -1})
	require.True(t, exact.exactCost())
	require.False(t, fast.exactCost())
	require.True(t, never.exactCost())

	for iter := 0; iter < 24; iter++ {
		width := 4 << (iter % 4)
		blk := Block{Width: width, Comp: cabac.Component(iter % 3), Scan: ScanMode(iter % 3), Intra: true}
		coeffs := randomCoeffs(rng, width, 4000)
		levels := make([]int16, width*width)
		res, err := exact.Quantize(coeffs, levels, blk, cs)
		require.NoError(t, err)
		if res.LastPos < 0 {
			continue
		}
		rb := residual.Block{Log2Size: log2Of(width), Comp: blk.Comp, Scan: blk.Scan, SignHiding: true}

		got, err := exact.CoeffCost(levels, blk, cs)
		require.NoError(t, err)
		snap := cs.Snapshot()
		cnt := cabac.NewCounter()
		residual.EncodeCoeffs(cnt, &snap, levels, rb)
		require.Equal(t, uint32(cnt.BitsWritten()), got)

		got2, err := never.CoeffCost(levels, blk, cs)
		require.NoError(t, err)
		require.Equal(t, got, got2)

		est, err := fast.CoeffCost(levels, blk, cs)
		require.NoError(t, err)
		var e cabac.Estimator
		snap = cs.Snapshot()
		residual.EncodeCoeffs(&e, &snap, levels, rb)
		require.Equal(t, uint32(e.Bits()+0.5), est)
		require.NotZero(t, est)
	}
	require.Equal(t, before, *cs)
}

func TestCoeffCostTracksLevels(t *testing.T) {
	// The escape code of large magnitudes dominates the context coded
	// flags of a single DC level.
	q := newTestQuantizer(t, DefaultOptions(27))
	cs := cabac.NewContextSet(27)
	levels := make([]int16, 16)
	prev := uint32(0)
	for _, l := range []int16{1, 200, 5000} {
		levels[0] = l
		bits, err := q.CoeffCost(levels, Block{Width: 4}, cs)
		require.NoError(t, err)
		require.Greater(t, bits, prev, "level %d", l)
		prev = bits
	}
}
