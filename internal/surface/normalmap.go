package surface

import "math"

// ToNormalMap replaces the surface with a tangent-space normal map derived
// from a height field. The height of each texel is the weighted sum of the
// four channels; the slope comes from central differences with clamped
// addressing, scaled by strength. The result is stored in the biased [0,1]
// encoding with alpha carrying the original height.
func (s *Surface) ToNormalMap(weights [4]float32, strength float32) {
	w, h := s.width, s.height

	height := make([]float32, w*h)
	for i := range height {
		height[i] = weights[0]*s.data[0][i] +
			weights[1]*s.data[1][i] +
			weights[2]*s.data[2][i] +
			weights[3]*s.data[3][i]
	}

	at := func(x, y int) float32 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return height[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (at(x-1, y) - at(x+1, y)) * strength
			dy := (at(x, y-1) - at(x, y+1)) * strength

			l := float32(math.Sqrt(float64(dx*dx + dy*dy + 1)))

			i := y*w + x
			s.data[0][i] = (dx/l + 1) * 0.5
			s.data[1][i] = (dy/l + 1) * 0.5
			s.data[2][i] = (1/l + 1) * 0.5
			s.data[3][i] = height[i]
		}
	}
}
