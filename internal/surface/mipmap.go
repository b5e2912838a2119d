package surface

import "math"

// MipFilter selects the downsampling kernel for BuildNextMipmap.
type MipFilter int

const (
	// FilterBox averages each 2×2 block.
	FilterBox MipFilter = iota
	// FilterTriangle is the separable [1 3 3 1]/8 tent.
	FilterTriangle
	// FilterKaiser is a Kaiser-windowed sinc of half-width 3, alpha 4.
	FilterKaiser
)

// BuildNextMipmap replaces the surface with its next mip level, halving
// each dimension (minimum 1). It returns false without touching the
// surface once the 1×1 level is reached.
func (s *Surface) BuildNextMipmap(filter MipFilter) bool {
	if s.width <= 1 && s.height <= 1 {
		return false
	}

	taps := downKernel(filter)

	nw, nh := s.width/2, s.height/2
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	for c := range s.data {
		// Horizontal pass into a nw×height scratch, then vertical.
		tmp := make([]float32, nw*s.height)
		if s.width > 1 {
			for y := 0; y < s.height; y++ {
				row := s.data[c][y*s.width : (y+1)*s.width]
				for x := 0; x < nw; x++ {
					tmp[y*nw+x] = convolveDown(row, s.width, 1, x, taps)
				}
			}
		} else {
			copy(tmp, s.data[c])
		}

		out := make([]float32, nw*nh)
		if s.height > 1 {
			for x := 0; x < nw; x++ {
				col := tmp[x:]
				for y := 0; y < nh; y++ {
					out[y*nw+x] = convolveDown(col, s.height, nw, y, taps)
				}
			}
		} else {
			copy(out, tmp)
		}

		s.data[c] = out
	}

	s.width, s.height = nw, nh
	return true
}

// convolveDown applies the downsample-by-two kernel at output index o over
// a line of n texels with the given stride, clamping at the edges.
func convolveDown(line []float32, n, stride, o int, taps []float32) float32 {
	half := len(taps) / 2

	var acc float32
	for j, w := range taps {
		i := 2*o + j - (half - 1)
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		acc += w * line[i*stride]
	}
	return acc
}

// downKernel returns the normalized downsample-by-two tap weights of the
// filter. Tap j reads input texel 2*o + j - (len/2 - 1).
func downKernel(filter MipFilter) []float32 {
	var halfWidth float64
	var eval func(x float64) float64

	switch filter {
	case FilterTriangle:
		halfWidth = 1
		eval = func(x float64) float64 { return 1 - math.Abs(x) }
	case FilterKaiser:
		halfWidth = 3
		eval = func(x float64) float64 {
			return sinc(x) * kaiserWindow(x, 4, 3)
		}
	default:
		halfWidth = 0.5
		eval = func(x float64) float64 { return 1 }
	}

	// The kernel halves the sample rate, so the filter is stretched by
	// two in input space and evaluated at half-texel offsets.
	n := 2 * int(math.Ceil(2*halfWidth))
	taps := make([]float32, n)

	var sum float64
	for j := 0; j < n; j++ {
		x := (float64(j-(n/2-1)) - 0.5) / 2
		if math.Abs(x) < halfWidth {
			w := eval(x)
			taps[j] = float32(w)
			sum += w
		}
	}

	for j := range taps {
		taps[j] = float32(float64(taps[j]) / sum)
	}
	return taps
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// kaiserWindow evaluates the Kaiser window of the given shape parameter
// and half-width at x.
func kaiserWindow(x, alpha, halfWidth float64) float64 {
	t := x / halfWidth
	return bessel0(alpha*math.Sqrt(1-t*t)) / bessel0(alpha)
}

// bessel0 is the zeroth-order modified Bessel function of the first kind,
// summed until a term falls below 1e-12 of the running sum (at most 63
// terms).
func bessel0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2

	for k := 1; k < 64; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}
