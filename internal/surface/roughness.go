package surface

import "math"

// RoughnessMipFromNormal folds the variance of a companion normal map
// into the alpha channel of this surface, which must already be the
// downsampled color mip. The normal surface stays at its original
// resolution; it is box-filtered down to this surface's size and the
// shortening of the averaged vectors measures the angular spread.
//
// With variance v and stored roughness a, the new value is sqrt(a²+v):
// flat regions keep their roughness, bumpy regions gain some.
func (s *Surface) RoughnessMipFromNormal(normal *Surface) error {
	if normal.width%s.width != 0 || normal.height%s.height != 0 {
		return ErrBadSize
	}

	bx := normal.width / s.width
	by := normal.height / s.height
	inv := 1 / float32(bx*by)

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			var sx, sy, sz float32

			for j := 0; j < by; j++ {
				for i := 0; i < bx; i++ {
					p := (y*by+j)*normal.width + (x*bx + i)
					sx += 2*normal.data[0][p] - 1
					sy += 2*normal.data[1][p] - 1
					sz += 2*normal.data[2][p] - 1
				}
			}

			sx *= inv
			sy *= inv
			sz *= inv

			l := float32(math.Sqrt(float64(sx*sx + sy*sy + sz*sz)))
			if l > 1 {
				l = 1
			}

			variance := float32(0)
			if l > 1e-4 {
				variance = (1 - l) / l
			}

			i := y*s.width + x
			a := s.data[3][i]
			s.data[3][i] = clamp01(float32(math.Sqrt(float64(a*a + variance))))
		}
	}
	return nil
}
