package highpass

import "math"

// EmitOptions selects the quantization applied to each reconstructed level.
type EmitOptions struct {
	// ToSRGB re-encodes R,G,B with gamma 1/2.2 before quantization.
	ToSRGB bool
	// ToNormal treats G,B as a tangent-space (x,y) pair, rebuilds z and
	// packs all three into the biased byte range.
	ToNormal bool
	// ToYUV projects the gamma-encoded color onto the YCoCg basis with
	// chroma biased to mid-range, and dithers the Y channel.
	ToYUV bool
	// NormalizeY rescales Y so the top-level average lands on mid-gray.
	// Only meaningful together with ToYUV.
	NormalizeY bool
}

// EmitMips quantizes every reconstructed level to RGBA8 and hands each one
// to the sink, finest level first. The sink receives the mip index counted
// from the finest level, so the W×W image is mip 0.
func (hp *HighPass) EmitMips(sink MipSink, opt EmitOptions) error {
	if hp.reconst == nil {
		return ErrNoImage
	}

	buf := make([]byte, hp.count)
	yscale := float32(1)
	if opt.ToYUV && opt.NormalizeY {
		yscale = hp.topYScale()
	}

	ps := 0
	pw := 0

	for i := hp.levels; i >= 0; i-- {
		width := 1 << i
		size := 4 << uint(i) << uint(i)
		start := pw

		var fvec [3]float32

		for k := 0; k < size; k += 4 {
			noise := ditherNoise(k)

			switch {
			case opt.ToNormal:
				nx := hp.sums[ps+1]
				ny := hp.sums[ps+2]
				nz2 := 1 - (nx*nx + ny*ny)
				nz := float32(0)
				if nz2 > 0 {
					nz = float32(math.Sqrt(float64(nz2)))
				}
				fvec[0] = saturate((nz + 1) * 0.5)
				fvec[1] = saturate((nx + 1) * 0.5)
				fvec[2] = saturate((ny + 1) * 0.5)

			case opt.ToSRGB || opt.ToYUV:
				fvec[0] = gammaEncode(saturate(hp.sums[ps]))
				fvec[1] = gammaEncode(saturate(hp.sums[ps+1]))
				fvec[2] = gammaEncode(saturate(hp.sums[ps+2]))

				if opt.ToYUV {
					toCoYCg(&fvec)
					fvec[0] *= yscale
					fvec[0] += (0.5 / 63) * noise
				}

			default:
				fvec[0] = saturate(hp.sums[ps])
				fvec[1] = saturate(hp.sums[ps+1])
				fvec[2] = saturate(hp.sums[ps+2])
			}

			buf[pw] = byte(0.5 + 255*fvec[0])
			buf[pw+1] = byte(0.5 + 255*fvec[1])
			buf[pw+2] = byte(0.5 + 255*fvec[2])
			buf[pw+3] = 255
			pw += 4
			ps += 4
		}

		if err := sink.SetMipmapData(buf[start:pw], width, width, 1, 0, hp.levels-i); err != nil {
			return err
		}
	}

	return nil
}

// ditherK is the multiplier of the quadratic dither sequence. The products
// wrap in int32, which is what spreads the low bits.
const ditherK int32 = 2047483673

// ditherNoise returns a deterministic pseudo-random value in [-1,1) for the
// float offset k of a texel within its level.
func ditherNoise(k int) float32 {
	const irange = 1.0 / 2147483648.0
	p := (ditherK*int32(k) + 1) * int32(k)
	return float32(p) * irange
}

// toCoYCg rewrites an (R,G,B) triple in place as (Y, Co, Cg) with both
// chroma channels biased to 0.5 so gray maps to mid-range bytes.
func toCoYCg(v *[3]float32) {
	r, g, b := v[0], v[1], v[2]
	v[0] = (r + 2*g + b) * 0.25
	v[1] = (r-b)*0.5 + 0.5
	v[2] = (-r+2*g-b)*0.5 + 0.5
}

// topYScale derives the NormalizeY factor from the coarsest average: the
// scale that moves the whole image's mean luma onto 0.5.
func (hp *HighPass) topYScale() float32 {
	used := hp.count - 1
	top := hp.sums[used-4 : used]

	r := gammaEncode(saturate(top[0]))
	g := gammaEncode(saturate(top[1]))
	b := gammaEncode(saturate(top[2]))
	y := (r + 2*g + b) * 0.25
	if y <= 0 {
		return 1
	}
	return 0.5 / y
}
