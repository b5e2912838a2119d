package highpass

import "math"

// loadRow converts one scanline of 8-bit RGBA samples to floats.
// src holds width 4-byte samples, dst receives 4·width floats.
//
// LoadLinear: channel = byte/255.
// LoadSgamma: channel = (byte/255)^2.2 for R,G,B; alpha = byte/255.
// LoadNormal: channel = (byte-127)/127 for R,G,B; alpha = 1.
func loadRow(src []byte, dst []float32, width int, mode LoadMode) {
	const c = 1.0 / 255
	const ch = 1.0 / 127

	for i := 0; i < width; i++ {
		s := src[4*i : 4*i+4]
		d := dst[4*i : 4*i+4]

		switch mode {
		case LoadNormal:
			d[0] = float32(int(s[0])-127) * ch
			d[1] = float32(int(s[1])-127) * ch
			d[2] = float32(int(s[2])-127) * ch
			d[3] = 1

		case LoadSgamma:
			d[0] = gammaDecode(float32(s[0]) * c)
			d[1] = gammaDecode(float32(s[1]) * c)
			d[2] = gammaDecode(float32(s[2]) * c)
			d[3] = float32(s[3]) * c

		default:
			d[0] = float32(s[0]) * c
			d[1] = float32(s[1]) * c
			d[2] = float32(s[2]) * c
			d[3] = float32(s[3]) * c
		}
	}
}

// gammaDecode converts an sRGB-encoded value to linear with gamma 2.2.
func gammaDecode(v float32) float32 {
	return float32(math.Pow(float64(v), 2.2))
}

// gammaEncode converts a linear value back to sRGB with gamma 1/2.2.
func gammaEncode(v float32) float32 {
	return float32(math.Pow(float64(v), 1.0/2.2))
}
