package highpass

import "math"

// Decompose performs the forward Haar decomposition of a square
// power-of-two RGBA image. pitch is the source row stride in bytes and
// defaults to 4*width when zero. All pyramid buffers are allocated here.
func (hp *HighPass) Decompose(rgba []byte, width, pitch int, mode LoadMode) error {
	if width <= 0 || width&(width-1) != 0 {
		return ErrNotPow2
	}

	hp.levels = lowPow2(width)
	hp.width = width
	hp.count = pyramidCount(width)

	if pitch == 0 {
		pitch = 4 * width
	}

	hp.sums = make([]float32, hp.count)
	hp.wavbuf = make([]float32, detailCount(width))
	hp.wrkgray = make([]byte, width*width)
	hp.reconst = nil

	// Level 0 is the loaded scanlines.
	ps := 0
	for y := 0; y < width; y++ {
		loadRow(rgba[y*pitch:], hp.sums[ps:], width, mode)
		ps += 4 * width
	}

	rowStride := 4 * width
	pw := 0
	pin := 0

	for i := hp.levels; i >= 1; i-- {
		w := 1 << i // finer grid edge

		hp.current = &hp.info[i]
		*hp.current = PassInfo{}
		out := ps // offset of the coarser level being written
		pg := 0

		for j := 0; j < w; j += 2 {
			hp.decomposeRows(
				hp.sums[pin:], hp.sums[pin+rowStride:], w,
				hp.sums[ps:], hp.wavbuf[pw:], hp.wrkgray[pg:])
			pin += 2 * rowStride
			ps += 4 * (w / 2)
			pg += 4 * (w / 2)
			pw += 3 * 4 * (w / 2)
		}

		d := 1.0 / float64(3*w*w/4)
		for k := 0; k < 4; k++ {
			hp.current.MeanAbs[k] = float32(d * float64(hp.current.MeanAbs[k]))
			hp.current.RMS[k] = float32(math.Sqrt(d * float64(hp.current.RMS[k])))
		}

		// The coarser level just written becomes the next input.
		pin = out
		rowStride = 4 * w / 2
	}

	hp.current = nil

	// Normalize the topmost 1×1 average.
	top := hp.sums[ps-4 : ps]
	if mode == LoadNormal {
		// Flat surface along +x, any accumulated bias cleared.
		top[0] = 1
		top[1] = 0
		top[2] = 0
	} else {
		// Round-trip R,G,B through the 8-bit value the emitter will store
		// so the top mip is exact.
		for c := 0; c < 3; c++ {
			q := math.Floor(float64(top[c])*255 + 0.5)
			top[c] = float32(q / 255)
		}
	}

	return nil
}

// decomposeRows consumes two adjacent rows of the finer grid (w texels
// each) and emits one row of coarser averages plus a (dac, sbd, dbd)
// detail triplet per channel and the diagnostic magnitude bytes for each
// 2×2 block. The alpha byte of each diagnostic texel is forced opaque.
func (hp *HighPass) decomposeRows(rgb1, rgb2 []float32, w int, sums, diff []float32, gray []byte) {
	si, di, gi := 0, 0, 0

	for i := 0; i < 4*w; i += 8 {
		for k := 0; k < 4; k++ {
			a := rgb1[i+k]
			b := rgb1[i+k+4]
			c := rgb2[i+k]
			d := rgb2[i+k+4]

			sa := (a + b) / 2
			db := a - b
			sc := (c + d) / 2
			dd := c - d

			sac := (sa + sc) / 2
			dac := sa - sc
			sbd := (db + dd) / 2
			dbd := db - dd

			sums[si] = sac
			si++

			diff[di] = dac
			diff[di+1] = sbd
			diff[di+2] = dbd
			di += 3

			v := abs32(dac) + abs32(sbd) + abs32(dbd)
			gray[gi] = byte(saturate(v)*255 + 0.5)
			gi++

			hp.current.MeanAbs[k] += v
			hp.current.RMS[k] += v * v
		}

		gray[gi-1] = 255
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
