// Package highpass implements the wavelet-based mipmap pyramid generator.
// A square power-of-two RGBA image is decomposed with a 2D Haar transform
// into a pyramid of averages plus three detail bands per level, then each
// mip is re-composed with a per-level band-pass coefficient: coarse mips
// lose their highest-frequency content while fine mips keep it in full.
package highpass

import "errors"

// Pyramid buffer layout (averages, float32, 4 channels per texel):
// - level 0 (W×W)     at offset 0
// - level 1 (W/2×W/2) at offset 4·W²
// - ...
// - level log2(W) (1×1) as the final 4 floats in use
//
// The detail buffer stores (dac, sbd, dbd) triplets per channel per 2×2
// block, concatenated level by level, finest first.

// MaxLevels bounds the pyramid depth and the statistics table.
const MaxLevels = 32

// Errors
var (
	ErrNotPow2  = errors.New("highpass: image is not a power-of-two square")
	ErrNoImage  = errors.New("highpass: decompose or reconstruct has not been called")
	ErrBadLevel = errors.New("highpass: level out of range")
)

// LoadMode selects how 8-bit samples map to floats.
type LoadMode int

const (
	// LoadLinear maps bytes to [0,1].
	LoadLinear LoadMode = iota
	// LoadSgamma decodes sRGB color channels with gamma 2.2; alpha stays linear.
	LoadSgamma
	// LoadNormal maps color channels to [-1,1] centered at 127; alpha is 1.
	LoadNormal
)

// PassInfo holds per-level detail statistics gathered during decomposition.
// MeanAbs is the mean absolute detail magnitude per channel, RMS its
// root-mean-square. Diagnostic only.
type PassInfo struct {
	MeanAbs [4]float32
	RMS     [4]float32
}

// MipSink receives quantized RGBA8 mip levels from the emitter.
type MipSink interface {
	SetMipmapData(data []byte, width, height, depth, face, level int) error
}

// HighPass owns the decomposition pyramids and the reconstruction buffer.
// All buffers are allocated by Decompose and Reconstruct; the zero value is
// ready for Decompose.
type HighPass struct {
	count   int       // averages capacity, one float of slack past the levels
	sums    []float32 // concatenated average levels, finest first
	wavbuf  []float32 // concatenated detail bands, finest first
	wrkgray []byte    // RGBA8 detail-magnitude plane, reused per level
	reconst []float32 // reconstruction workspace, same layout as sums

	info    [MaxLevels]PassInfo
	current *PassInfo

	width  int
	levels int
}

// Width returns the edge length of the decomposed image, 0 before Decompose.
func (hp *HighPass) Width() int { return hp.width }

// Levels returns log2(width): the index of the topmost (1×1) level.
func (hp *HighPass) Levels() int { return hp.levels }

// Info returns the detail statistics gathered while producing the coarser
// grid from the grid of edge length 1<<exp.
func (hp *HighPass) Info(exp int) (PassInfo, error) {
	if exp < 1 || exp > hp.levels {
		return PassInfo{}, ErrBadLevel
	}
	return hp.info[exp], nil
}

// DetailPlane returns the diagnostic RGBA8 plane of saturated detail
// magnitudes written during the last decomposition pass.
func (hp *HighPass) DetailPlane() []byte { return hp.wrkgray }

// pyramidCount returns the float capacity of the averages buffer for an
// image of edge length w. Integer division leaves one float of slack; the
// concatenated levels occupy exactly pyramidCount(w)-1 floats.
func pyramidCount(w int) int {
	return (4 * w * w * 4) / 3
}

// detailCount returns the float length of the detail buffer: three bands by
// four channels for every 2×2 block of every level.
func detailCount(w int) int {
	return 4*w*w - 4
}

// lowPow2 returns floor(log2(x)) for x >= 1.
func lowPow2(x int) int {
	n := 0
	for x >= 2 {
		x >>= 1
		n++
	}
	return n
}

func saturate(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
