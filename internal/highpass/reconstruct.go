package highpass

import "math"

// Reconstruct fills the reconstruction buffer with one mip per level,
// composed from the top average plus the stored detail bands. skip is the
// detail floor: it lowers the level at which the detail coefficient reaches
// unity, so a larger skip keeps more high-frequency content in coarse mips.
func (hp *HighPass) Reconstruct(skip int) error {
	if hp.sums == nil {
		return ErrNoImage
	}

	hp.reconst = make([]float32, hp.count-1)

	for i := 0; i <= hp.levels; i++ {
		hp.reconstructLevel(i, skip)
	}

	return nil
}

// reconstructLevel composes the mip of edge 1<<level from the top average
// downward, attenuating the detail bands of steps below levsup, then copies
// the result back into the averages pyramid, where EmitMips reads it. Every
// level is recomposed from the top average; no level reads the slabs that
// earlier levels copied back.
func (hp *HighPass) reconstructLevel(level, skip int) {
	used := hp.count - 1

	pd := 4*hp.width*hp.width - 4
	pr := used - 4

	copy(hp.reconst[pr:pr+4], hp.sums[used-4:used])

	levsup := hp.levels - 1 - level - skip

	for i := 0; i < level; i++ {
		cf := float32(1)
		if i < levsup {
			cf = float32(math.Ldexp(1, i-levsup))
		}

		w := 1 << i // coarse edge at this step
		s := w << i // coarse texel count, 4^i

		ps := pr
		pd -= 4 * 3 * s
		pr -= 4 * 4 * s

		pso, pdo, pro := ps, pd, pr
		for k := 0; k < w; k++ {
			composeRows(
				hp.reconst[pro:], hp.reconst[pro+4*2*w:], 2*w,
				hp.reconst[pso:], hp.wavbuf[pdo:], cf)
			pso += 4 * w
			pdo += 4 * 3 * w
			pro += 2 * 4 * 2 * w
		}
	}

	n := 4 << uint(level) << uint(level)
	copy(hp.sums[pr:pr+n], hp.reconst[pr:pr+n])
}

// composeRows inverts the 2×2 block transform for one pair of output rows.
// n is the output row width in texels; sums holds one coarse row, diff the
// matching detail triplets, scaled by cf.
func composeRows(rgb1, rgb2 []float32, n int, sums, diff []float32, cf float32) {
	si, base := 0, 0

	for i := 0; i < 4*n; i += 8 {
		pd := base

		for k := 0; k < 4; k++ {
			sac := sums[si]
			si++

			dac := cf * diff[pd]
			sbd := cf * diff[pd+1]
			dbd := cf * diff[pd+2]
			pd += 3

			sa := sac + dac/2
			sc := sac - dac/2
			db := sbd + dbd/2
			dd := sbd - dbd/2

			rgb1[i+k] = sa + db/2
			rgb1[i+k+4] = sa - db/2
			rgb2[i+k] = sc + dd/2
			rgb2[i+k+4] = sc - dd/2
		}

		base += 3 * 4
	}
}
