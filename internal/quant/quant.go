// Package quant holds the quantizer scale tables, scaled QP derivation and
// the per-position quantization and error-scale tables built from a
// scaling list.
package quant

import (
	"github.com/deepteams/rdoq/cabac"
)

const (
	// Shift is the fixed-point precision of the quantizer scales.
	Shift = 14

	// MaxTrDynamicRange is the dynamic range of transform coefficients in bits.
	MaxTrDynamicRange = 15

	// MaxLevel bounds the magnitude of a coded level.
	MaxLevel = 32767

	// NumListTypes is the number of scaling list types: intra Y/Cb/Cr then
	// inter Y/Cb/Cr.
	NumListTypes = 6

	minLog2 = 2
	maxLog2 = 5
	numSize = maxLog2 - minLog2 + 1
)

// Scales are the forward quantizer scales per QP%6.
var Scales = [6]int32{26214, 23302, 20560, 18396, 16384, 14564}

// InvScales are the inverse quantizer scales per QP%6.
var InvScales = [6]int32{40, 45, 51, 57, 64, 72}

// chromaQPMap maps a clipped luma QP to a chroma QP for 4:2:0 content.
var chromaQPMap = [58]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 29, 30, 31,
	32, 33, 33, 34, 34, 35, 35, 36, 36, 37, 37, 38, 39, 40, 41, 42,
	43, 44, 45, 46, 47, 48, 49, 50, 51,
}

// ScaledQP returns the QP used for quantization of component c, including
// the bit depth offset.
func ScaledQP(c cabac.Component, qp, bitDepth int) int {
	offset := (bitDepth - 8) * 6
	if c.IsLuma() {
		return qp + offset
	}
	qpi := clip(-offset, 57, qp)
	if qpi < 0 {
		return qpi + offset
	}
	return chromaQPMap[qpi] + offset
}

// TransformShift returns the scaling applied by the forward transform of a
// square block with side 1<<log2Size.
func TransformShift(bitDepth, log2Size int) int {
	return MaxTrDynamicRange - bitDepth - log2Size
}

// QBits returns the quantization shift for a scaled QP.
func QBits(qpScaled, transformShift int) int {
	return Shift + qpScaled/6 + transformShift
}

// ListType returns the scaling list type of a block.
func ListType(intra bool, c cabac.Component) int {
	if intra {
		return int(c)
	}
	return 3 + int(c)
}

func clip(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
