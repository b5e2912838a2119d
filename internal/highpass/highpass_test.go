package highpass

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSink records every mip handed to it.
type memSink struct {
	mips []memMip
}

type memMip struct {
	data   []byte
	width  int
	height int
	level  int
}

func (s *memSink) SetMipmapData(data []byte, width, height, depth, face, level int) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mips = append(s.mips, memMip{cp, width, height, level})
	return nil
}

var errSinkClosed = errors.New("sink closed")

type failSink struct{}

func (failSink) SetMipmapData(data []byte, width, height, depth, face, level int) error {
	return errSinkClosed
}

// solidRGBA builds a width×width image of one repeated texel.
func solidRGBA(width int, r, g, b, a byte) []byte {
	img := make([]byte, 4*width*width)
	for i := 0; i < len(img); i += 4 {
		img[i] = r
		img[i+1] = g
		img[i+2] = b
		img[i+3] = a
	}
	return img
}

func runPipeline(t *testing.T, img []byte, width int, mode LoadMode, skip int, opt EmitOptions) *memSink {
	t.Helper()

	var hp HighPass
	require.NoError(t, hp.Decompose(img, width, 0, mode))
	require.NoError(t, hp.Reconstruct(skip))

	sink := &memSink{}
	require.NoError(t, hp.EmitMips(sink, opt))
	return sink
}

func TestDecompose_NotPow2(t *testing.T) {
	var hp HighPass
	for _, w := range []int{0, 3, 6, 100, 640} {
		err := hp.Decompose(make([]byte, 4*w*w), w, 0, LoadLinear)
		assert.ErrorIs(t, err, ErrNotPow2, "width %d", w)
	}
}

func TestDecompose_AverageInvariant(t *testing.T) {
	const width = 8
	img := make([]byte, 4*width*width)
	for i := range img {
		img[i] = byte((i*37 + 11) % 256)
	}

	var hp HighPass
	require.NoError(t, hp.Decompose(img, width, 0, LoadLinear))

	// Each coarser texel is the Haar average of its 2x2 quad. The 1x1 top
	// is skipped: it is re-quantized after the loop.
	fine := 0
	for w := width; w > 2; w /= 2 {
		coarse := fine + 4*w*w
		for y := 0; y < w/2; y++ {
			for x := 0; x < w/2; x++ {
				for k := 0; k < 4; k++ {
					a := hp.sums[fine+4*(2*y*w+2*x)+k]
					b := hp.sums[fine+4*(2*y*w+2*x+1)+k]
					c := hp.sums[fine+4*((2*y+1)*w+2*x)+k]
					d := hp.sums[fine+4*((2*y+1)*w+2*x+1)+k]
					want := ((a+b)/2 + (c+d)/2) / 2

					got := hp.sums[coarse+4*(y*(w/2)+x)+k]
					assert.Equal(t, want, got, "level edge %d texel %d,%d ch %d", w/2, x, y, k)
				}
			}
		}
		fine = coarse
	}
}

func TestReconstruct_BeforeDecompose(t *testing.T) {
	var hp HighPass
	assert.ErrorIs(t, hp.Reconstruct(0), ErrNoImage)
}

func TestEmitMips_BeforeReconstruct(t *testing.T) {
	var hp HighPass
	require.NoError(t, hp.Decompose(solidRGBA(2, 10, 20, 30, 255), 2, 0, LoadLinear))
	assert.ErrorIs(t, hp.EmitMips(&memSink{}, EmitOptions{}), ErrNoImage)
}

func TestEmitMips_SinkErrorPropagates(t *testing.T) {
	var hp HighPass
	require.NoError(t, hp.Decompose(solidRGBA(2, 10, 20, 30, 255), 2, 0, LoadLinear))
	require.NoError(t, hp.Reconstruct(0))
	assert.ErrorIs(t, hp.EmitMips(failSink{}, EmitOptions{}), errSinkClosed)
}

func TestEmitMips_LevelSequence(t *testing.T) {
	sink := runPipeline(t, solidRGBA(8, 1, 2, 3, 255), 8, LoadLinear, 0, EmitOptions{})

	require.Len(t, sink.mips, 4)
	for i, m := range sink.mips {
		w := 8 >> uint(i)
		assert.Equal(t, i, m.level)
		assert.Equal(t, w, m.width)
		assert.Equal(t, w, m.height)
		assert.Len(t, m.data, 4*w*w)
	}
}

func TestEmitMips_SolidGray(t *testing.T) {
	sink := runPipeline(t, solidRGBA(4, 128, 128, 128, 255), 4, LoadLinear, 0, EmitOptions{})

	require.Len(t, sink.mips, 3)
	for _, m := range sink.mips {
		for i := 0; i < len(m.data); i += 4 {
			assert.Equal(t, byte(128), m.data[i])
			assert.Equal(t, byte(128), m.data[i+1])
			assert.Equal(t, byte(128), m.data[i+2])
			assert.Equal(t, byte(255), m.data[i+3])
		}
	}
}

// With skip equal to the level count every detail coefficient stays at
// unity, so the finest mip reproduces the input exactly.
func TestReconstruct_FullSkipIsIdentity(t *testing.T) {
	// Channel sums divide evenly by 4 so the top quantization is exact.
	r := []byte{100, 120, 140, 160}
	g := []byte{10, 20, 30, 40}
	b := []byte{200, 210, 220, 230}

	img := make([]byte, 16)
	for i := 0; i < 4; i++ {
		img[4*i] = r[i]
		img[4*i+1] = g[i]
		img[4*i+2] = b[i]
		img[4*i+3] = 255
	}

	sink := runPipeline(t, img, 2, LoadLinear, 1, EmitOptions{})

	require.Len(t, sink.mips, 2)
	mip0 := sink.mips[0]
	for i := 0; i < 4; i++ {
		assert.Equal(t, r[i], mip0.data[4*i])
		assert.Equal(t, g[i], mip0.data[4*i+1])
		assert.Equal(t, b[i], mip0.data[4*i+2])
		assert.Equal(t, byte(255), mip0.data[4*i+3])
	}
}

func TestReconstruct_Checkerboard(t *testing.T) {
	img := make([]byte, 4*4*4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v := byte(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			p := 4 * (4*y + x)
			img[p], img[p+1], img[p+2], img[p+3] = v, v, v, 255
		}
	}

	sink := runPipeline(t, img, 4, LoadLinear, 0, EmitOptions{})
	require.Len(t, sink.mips, 3)

	// 1×1 and 2×2 both settle on mid-gray.
	assert.Equal(t, byte(128), sink.mips[2].data[0])
	for i := 0; i < len(sink.mips[1].data); i += 4 {
		assert.Equal(t, byte(128), sink.mips[1].data[i])
	}

	// Level 0 reproduces the checkerboard within one count of rounding.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			got := sink.mips[0].data[4*(4*y+x)]
			if (x+y)%2 == 0 {
				assert.Equal(t, byte(255), got, "white texel %d,%d", x, y)
			} else {
				assert.LessOrEqual(t, got, byte(1), "black texel %d,%d", x, y)
			}
		}
	}
}

func TestEmitMips_YUVGrayChroma(t *testing.T) {
	img := solidRGBA(16, 128, 128, 128, 255)

	sink := runPipeline(t, img, 16, LoadSgamma, 0, EmitOptions{ToSRGB: true, ToYUV: true})

	for _, m := range sink.mips {
		for i := 0; i < len(m.data); i += 4 {
			y, co, cg := m.data[i], m.data[i+1], m.data[i+2]
			assert.InDelta(t, 128, int(y), 4)
			assert.Equal(t, byte(128), co)
			assert.Equal(t, byte(128), cg)
		}
	}
}

func TestEmitMips_YUVDeterministic(t *testing.T) {
	img := make([]byte, 4*16*16)
	for i := range img {
		img[i] = byte(i*37 + 11)
	}
	for i := 3; i < len(img); i += 4 {
		img[i] = 255
	}

	a := runPipeline(t, img, 16, LoadSgamma, 0, EmitOptions{ToSRGB: true, ToYUV: true})
	b := runPipeline(t, img, 16, LoadSgamma, 0, EmitOptions{ToSRGB: true, ToYUV: true})

	require.Len(t, b.mips, len(a.mips))
	for i := range a.mips {
		assert.Equal(t, a.mips[i].data, b.mips[i].data)
	}
}

func TestEmitMips_NormalTopLevel(t *testing.T) {
	img := make([]byte, 4*4*4)
	for i := 0; i < len(img); i += 4 {
		img[i] = byte(120 + i%32)
		img[i+1] = byte(140 - i%16)
		img[i+2] = 127
		img[i+3] = 255
	}

	sink := runPipeline(t, img, 4, LoadNormal, 0, EmitOptions{ToNormal: true})

	require.Len(t, sink.mips, 3)
	top := sink.mips[2].data
	assert.Equal(t, []byte{255, 128, 128, 255}, top)
}

func TestDecompose_PassInfo(t *testing.T) {
	img := make([]byte, 16)
	img[0] = 255 // single bright red texel
	for i := 3; i < 16; i += 4 {
		img[i] = 255
	}

	var hp HighPass
	require.NoError(t, hp.Decompose(img, 2, 0, LoadLinear))

	info, err := hp.Info(1)
	require.NoError(t, err)

	// One block: dac=0.5, sbd=0.5, dbd=1 on the red channel.
	assert.InDelta(t, 2.0/3, info.MeanAbs[0], 1e-5)
	assert.InDelta(t, math.Sqrt(4.0/3), float64(info.RMS[0]), 1e-5)
	assert.Zero(t, info.MeanAbs[1])
	assert.Zero(t, info.MeanAbs[2])
	assert.Zero(t, info.MeanAbs[3])

	_, err = hp.Info(0)
	assert.ErrorIs(t, err, ErrBadLevel)
	_, err = hp.Info(2)
	assert.ErrorIs(t, err, ErrBadLevel)
}

func TestDecompose_DetailPlane(t *testing.T) {
	img := make([]byte, 16)
	img[0] = 255
	for i := 3; i < 16; i += 4 {
		img[i] = 255
	}

	var hp HighPass
	require.NoError(t, hp.Decompose(img, 2, 0, LoadLinear))

	// Red detail saturates, green and blue are flat, alpha is forced
	// opaque by the trailing write.
	assert.Equal(t, []byte{255, 0, 0, 255}, hp.DetailPlane())
}

func TestDecompose_Pitch(t *testing.T) {
	// Same image with and without trailing row padding.
	tight := solidRGBA(2, 50, 60, 70, 255)

	padded := make([]byte, 2*12)
	for y := 0; y < 2; y++ {
		copy(padded[y*12:], tight[y*8:y*8+8])
	}

	var a, b HighPass
	require.NoError(t, a.Decompose(tight, 2, 0, LoadLinear))
	require.NoError(t, b.Decompose(padded, 2, 12, LoadLinear))
	assert.Equal(t, a.sums, b.sums)
}

func TestLoadRow_Modes(t *testing.T) {
	src := []byte{0, 127, 255, 51}
	dst := make([]float32, 4)

	loadRow(src, dst, 1, LoadLinear)
	assert.InDelta(t, 0, dst[0], 1e-6)
	assert.InDelta(t, 127.0/255, dst[1], 1e-6)
	assert.InDelta(t, 1, dst[2], 1e-6)
	assert.InDelta(t, 0.2, dst[3], 1e-6)

	loadRow(src, dst, 1, LoadSgamma)
	assert.InDelta(t, 0, dst[0], 1e-6)
	assert.InDelta(t, math.Pow(127.0/255, 2.2), float64(dst[1]), 1e-6)
	assert.InDelta(t, 1, dst[2], 1e-6)
	assert.InDelta(t, 0.2, dst[3], 1e-6) // alpha stays linear

	loadRow(src, dst, 1, LoadNormal)
	assert.InDelta(t, -1, dst[0], 1e-6)
	assert.InDelta(t, 0, dst[1], 1e-6)
	assert.InDelta(t, 1.0079, dst[2], 1e-3)
	assert.InDelta(t, 1, dst[3], 1e-6)
}

func TestBufferSizing(t *testing.T) {
	for k := 1; k <= 12; k++ {
		w := 1 << k

		floats := 0
		for e := w; e >= 1; e /= 2 {
			floats += 4 * e * e
		}
		assert.Equal(t, floats, pyramidCount(w)-1, "width %d", w)
		assert.Equal(t, 4*w*w-4, detailCount(w), "width %d", w)
	}
}

func TestDitherNoise(t *testing.T) {
	assert.Zero(t, ditherNoise(0))
	for k := 0; k < 4096; k += 4 {
		n := ditherNoise(k)
		assert.GreaterOrEqual(t, n, float32(-1))
		assert.Less(t, n, float32(1))
		assert.Equal(t, n, ditherNoise(k))
	}
}
