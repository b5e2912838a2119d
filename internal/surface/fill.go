package surface

// fillBlurPasses is how many relaxation sweeps follow the Voronoi fill.
const fillBlurPasses = 8

// FillHoles replaces the color of transparent texels so that compression
// and filtering never bleed undefined values into visible regions. The
// feature mask is alpha >= threshold; every hole texel first receives the
// color of its nearest opaque texel, then the holes are smoothed with a
// fixed number of neighborhood averaging passes. Alpha is not modified.
func (s *Surface) FillHoles(threshold float32) {
	mask := make([]bool, s.width*s.height)

	holes := 0
	for i, a := range s.data[3] {
		if a >= threshold {
			mask[i] = true
		} else {
			holes++
		}
	}
	if holes == 0 || holes == len(mask) {
		return
	}

	s.fillVoronoi(mask)
	for i := 0; i < fillBlurPasses; i++ {
		s.fillBlur(mask)
	}
}

// fillVoronoi grows the masked region breadth-first, so every hole texel
// takes the color of the nearest opaque texel in grid distance.
func (s *Surface) fillVoronoi(mask []bool) {
	w, h := s.width, s.height

	src := make([]int32, w*h)
	queue := make([]int32, 0, w*h)

	for i := range mask {
		if mask[i] {
			src[i] = int32(i)
			queue = append(queue, int32(i))
		} else {
			src[i] = -1
		}
	}

	for len(queue) > 0 {
		p := int(queue[0])
		queue = queue[1:]
		x, y := p%w, p/w

		visit := func(q int) {
			if src[q] >= 0 {
				return
			}
			src[q] = src[p]
			queue = append(queue, int32(q))
		}

		if x > 0 {
			visit(p - 1)
		}
		if x < w-1 {
			visit(p + 1)
		}
		if y > 0 {
			visit(p - w)
		}
		if y < h-1 {
			visit(p + w)
		}
	}

	for i, from := range src {
		if mask[i] || from < 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			s.data[c][i] = s.data[c][from]
		}
	}
}

// fillBlur averages the color of every hole texel with its 3×3
// neighborhood. Masked texels contribute but are never overwritten.
func (s *Surface) fillBlur(mask []bool) {
	w, h := s.width, s.height

	for c := 0; c < 3; c++ {
		plane := s.data[c]
		next := make([]float32, len(plane))
		copy(next, plane)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if mask[i] {
					continue
				}

				var sum float32
				n := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := x+dx, y+dy
						if nx < 0 || nx >= w || ny < 0 || ny >= h {
							continue
						}
						sum += plane[ny*w+nx]
						n++
					}
				}
				next[i] = sum / float32(n)
			}
		}

		s.data[c] = next
	}
}
