package cabac

import "math"

// FracBits is the fixed-point precision of every bit cost in this package.
const FracBits = 15

// OneBit is the cost of one equiprobable bin in FracBits units.
const OneBit = 1 << FracBits

// entropyBits holds -log2(p) in FracBits units, interleaved by state:
// entry state<<1 is the cost of coding 0, entry state<<1|1 the cost of 1,
// where state is the 8-bit estimate of P(bin = 1).
var entropyBits = [2 * 256]uint32{
	0x0005c, 0x48000, 0x00116, 0x3b520, 0x001d0, 0x356cb, 0x0028b, 0x318a9,
	0x00346, 0x2ea40, 0x00403, 0x2c531, 0x004c0, 0x2a658, 0x0057e, 0x28beb,
	0x0063c, 0x274ce, 0x006fc, 0x26044, 0x007bc, 0x24dc9, 0x0087d, 0x23cfc,
	0x0093f, 0x22d96, 0x00a01, 0x21f60, 0x00ac4, 0x2122e, 0x00b89, 0x205dd,
	0x00c4e, 0x1fa51, 0x00d13, 0x1ef74, 0x00dda, 0x1e531, 0x00ea2, 0x1db78,
	0x00f6a, 0x1d23c, 0x01033, 0x1c970, 0x010fd, 0x1c10b, 0x011c8, 0x1b903,
	0x01294, 0x1b151, 0x01360, 0x1a9ee, 0x0142e, 0x1a2d4, 0x014fc, 0x19bfc,
	0x015cc, 0x19564, 0x0169c, 0x18f06, 0x0176d, 0x188de, 0x0183f, 0x182e8,
	0x01912, 0x17d23, 0x019e6, 0x1778a, 0x01abb, 0x1721c, 0x01b91, 0x16cd5,
	0x01c68, 0x167b4, 0x01d40, 0x162b6, 0x01e19, 0x15dda, 0x01ef3, 0x1591e,
	0x01fcd, 0x15480, 0x020a9, 0x14fff, 0x02186, 0x14b99, 0x02264, 0x1474e,
	0x02343, 0x1431b, 0x02423, 0x13f01, 0x02504, 0x13afd, 0x025e6, 0x1370f,
	0x026ca, 0x13336, 0x027ae, 0x12f71, 0x02894, 0x12bc0, 0x0297a, 0x12821,
	0x02a62, 0x12494, 0x02b4b, 0x12118, 0x02c35, 0x11dac, 0x02d20, 0x11a51,
	0x02e0c, 0x11704, 0x02efa, 0x113c7, 0x02fe9, 0x11098, 0x030d9, 0x10d77,
	0x031ca, 0x10a63, 0x032bc, 0x1075c, 0x033b0, 0x10461, 0x034a5, 0x10173,
	0x0359b, 0x0fe90, 0x03693, 0x0fbb9, 0x0378c, 0x0f8ed, 0x03886, 0x0f62b,
	0x03981, 0x0f374, 0x03a7e, 0x0f0c7, 0x03b7c, 0x0ee23, 0x03c7c, 0x0eb89,
	0x03d7d, 0x0e8f9, 0x03e7f, 0x0e671, 0x03f83, 0x0e3f2, 0x04088, 0x0e17c,
	0x0418e, 0x0df0e, 0x04297, 0x0dca8, 0x043a0, 0x0da4a, 0x044ab, 0x0d7f3,
	0x045b8, 0x0d5a5, 0x046c6, 0x0d35d, 0x047d6, 0x0d11c, 0x048e7, 0x0cee3,
	0x049fa, 0x0ccb0, 0x04b0e, 0x0ca84, 0x04c24, 0x0c85e, 0x04d3c, 0x0c63f,
	0x04e55, 0x0c426, 0x04f71, 0x0c212, 0x0508d, 0x0c005, 0x051ac, 0x0bdfe,
	0x052cc, 0x0bbfc, 0x053ee, 0x0b9ff, 0x05512, 0x0b808, 0x05638, 0x0b617,
	0x0575f, 0x0b42a, 0x05888, 0x0b243, 0x059b4, 0x0b061, 0x05ae1, 0x0ae83,
	0x05c10, 0x0acaa, 0x05d41, 0x0aad6, 0x05e74, 0x0a907, 0x05fa9, 0x0a73c,
	0x060e0, 0x0a575, 0x06219, 0x0a3b3, 0x06354, 0x0a1f5, 0x06491, 0x0a03b,
	0x065d1, 0x09e85, 0x06712, 0x09cd4, 0x06856, 0x09b26, 0x0699c, 0x0997c,
	0x06ae4, 0x097d6, 0x06c2f, 0x09634, 0x06d7c, 0x09495, 0x06ecb, 0x092fa,
	0x0701d, 0x09162, 0x07171, 0x08fce, 0x072c7, 0x08e3e, 0x07421, 0x08cb0,
	0x0757c, 0x08b26, 0x076da, 0x089a0, 0x0783b, 0x0881c, 0x0799f, 0x0869c,
	0x07b05, 0x0851f, 0x07c6e, 0x083a4, 0x07dd9, 0x0822d, 0x07f48, 0x080b9,
	0x080b9, 0x07f48, 0x0822d, 0x07dd9, 0x083a4, 0x07c6e, 0x0851f, 0x07b05,
	0x0869c, 0x0799f, 0x0881c, 0x0783b, 0x089a0, 0x076da, 0x08b26, 0x0757c,
	0x08cb0, 0x07421, 0x08e3e, 0x072c7, 0x08fce, 0x07171, 0x09162, 0x0701d,
	0x092fa, 0x06ecb, 0x09495, 0x06d7c, 0x09634, 0x06c2f, 0x097d6, 0x06ae4,
	0x0997c, 0x0699c, 0x09b26, 0x06856, 0x09cd4, 0x06712, 0x09e85, 0x065d1,
	0x0a03b, 0x06491, 0x0a1f5, 0x06354, 0x0a3b3, 0x06219, 0x0a575, 0x060e0,
	0x0a73c, 0x05fa9, 0x0a907, 0x05e74, 0x0aad6, 0x05d41, 0x0acaa, 0x05c10,
	0x0ae83, 0x05ae1, 0x0b061, 0x059b4, 0x0b243, 0x05888, 0x0b42a, 0x0575f,
	0x0b617, 0x05638, 0x0b808, 0x05512, 0x0b9ff, 0x053ee, 0x0bbfc, 0x052cc,
	0x0bdfe, 0x051ac, 0x0c005, 0x0508d, 0x0c212, 0x04f71, 0x0c426, 0x04e55,
	0x0c63f, 0x04d3c, 0x0c85e, 0x04c24, 0x0ca84, 0x04b0e, 0x0ccb0, 0x049fa,
	0x0cee3, 0x048e7, 0x0d11c, 0x047d6, 0x0d35d, 0x046c6, 0x0d5a5, 0x045b8,
	0x0d7f3, 0x044ab, 0x0da4a, 0x043a0, 0x0dca8, 0x04297, 0x0df0e, 0x0418e,
	0x0e17c, 0x04088, 0x0e3f2, 0x03f83, 0x0e671, 0x03e7f, 0x0e8f9, 0x03d7d,
	0x0eb89, 0x03c7c, 0x0ee23, 0x03b7c, 0x0f0c7, 0x03a7e, 0x0f374, 0x03981,
	0x0f62b, 0x03886, 0x0f8ed, 0x0378c, 0x0fbb9, 0x03693, 0x0fe90, 0x0359b,
	0x10173, 0x034a5, 0x10461, 0x033b0, 0x1075c, 0x032bc, 0x10a63, 0x031ca,
	0x10d77, 0x030d9, 0x11098, 0x02fe9, 0x113c7, 0x02efa, 0x11704, 0x02e0c,
	0x11a51, 0x02d20, 0x11dac, 0x02c35, 0x12118, 0x02b4b, 0x12494, 0x02a62,
	0x12821, 0x0297a, 0x12bc0, 0x02894, 0x12f71, 0x027ae, 0x13336, 0x026ca,
	0x1370f, 0x025e6, 0x13afd, 0x02504, 0x13f01, 0x02423, 0x1431b, 0x02343,
	0x1474e, 0x02264, 0x14b99, 0x02186, 0x14fff, 0x020a9, 0x15480, 0x01fcd,
	0x1591e, 0x01ef3, 0x15dda, 0x01e19, 0x162b6, 0x01d40, 0x167b4, 0x01c68,
	0x16cd5, 0x01b91, 0x1721c, 0x01abb, 0x1778a, 0x019e6, 0x17d23, 0x01912,
	0x182e8, 0x0183f, 0x188de, 0x0176d, 0x18f06, 0x0169c, 0x19564, 0x015cc,
	0x19bfc, 0x014fc, 0x1a2d4, 0x0142e, 0x1a9ee, 0x01360, 0x1b151, 0x01294,
	0x1b903, 0x011c8, 0x1c10b, 0x010fd, 0x1c970, 0x01033, 0x1d23c, 0x00f6a,
	0x1db78, 0x00ea2, 0x1e531, 0x00dda, 0x1ef74, 0x00d13, 0x1fa51, 0x00c4e,
	0x205dd, 0x00b89, 0x2122e, 0x00ac4, 0x21f60, 0x00a01, 0x22d96, 0x0093f,
	0x23cfc, 0x0087d, 0x24dc9, 0x007bc, 0x26044, 0x006fc, 0x274ce, 0x0063c,
	0x28beb, 0x0057e, 0x2a658, 0x004c0, 0x2c531, 0x00403, 0x2ea40, 0x00346,
	0x318a9, 0x0028b, 0x356cb, 0x001d0, 0x3b520, 0x00116, 0x48000, 0x0005c,
}

// EntropyBits returns the cost of coding bin with a context whose 8-bit
// probability state is state.
func EntropyBits(state uint8, bin int) int32 {
	return int32(entropyBits[int(state)<<1|bin&1])
}

// ApproxBits is the closed-form counterpart of EntropyBits, in bits.
// It is used by the fast residual estimator only.
func ApproxBits(state uint8, bin int) float64 {
	p1 := (float64(state) + 0.5) / 256
	if bin&1 == 0 {
		return -math.Log2(1 - p1)
	}
	return -math.Log2(p1)
}
