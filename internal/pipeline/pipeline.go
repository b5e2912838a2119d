// Package pipeline selects and runs one of the mip generation paths over a
// decoded RGBA image and collects the result on an input sink. Exactly one
// path is active per invocation; when several are requested the precedence
// is high-pass, then roughness-from-normal, then coverage scaling, then
// hole filling, then the plain filtered chain.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/texforge/texforge/internal/highpass"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/surface"
)

// ErrNotSquare rejects wavelet input whose sides differ.
var ErrNotSquare = errors.New("pipeline: high-pass input must be square")

// alphaTestThreshold is the mask threshold shared by the coverage and
// hole-fill paths.
const alphaTestThreshold = 0.5

// Image is a decoded, tightly packed RGBA8 picture.
type Image struct {
	Width  int
	Height int
	RGBA   []byte
}

// CoverageSpec enables coverage preservation on one channel.
type CoverageSpec struct {
	Enabled   bool
	Threshold float32
}

// Options selects the pipeline and its parameters.
type Options struct {
	HighPass     bool
	HighPassSkip int
	YUV          bool
	YUVNormalize bool

	Coverage           [4]CoverageSpec
	NormalForRoughness *Image
	FillHoles          bool

	MipFilter surface.MipFilter

	// Channel interpretation. At most one of Normal, ToNormal, Linear.
	Normal   bool
	ToNormal bool
	Linear   bool

	PremultiplyAlpha bool
	NoMips           bool
	WrapRepeat       bool
	HasAlpha         bool
}

// Run executes the selected pipeline and returns the populated input sink.
// On failure no mip data is retained.
func Run(img Image, opt Options, log *logging.Logger) (*Input, error) {
	in := NewInput()
	configure(in, opt)

	var err error
	switch {
	case opt.HighPass:
		err = runHighPass(img, opt, in, log)
	case opt.NormalForRoughness != nil:
		err = runRoughness(img, *opt.NormalForRoughness, opt, in, log)
	case coverageRequested(opt):
		err = runCoverage(img, opt, in, log)
	case opt.FillHoles:
		err = runFilled(img, opt, in, log)
	default:
		err = runPlain(img, opt, in, log)
	}

	if err != nil {
		in.discard()
		return nil, err
	}
	return in, nil
}

func coverageRequested(opt Options) bool {
	for _, c := range opt.Coverage {
		if c.Enabled {
			return true
		}
	}
	return false
}

func configure(in *Input, opt Options) {
	if opt.WrapRepeat {
		in.SetWrapMode(WrapRepeat)
	} else {
		in.SetWrapMode(WrapClamp)
	}

	if opt.HasAlpha {
		in.SetAlphaMode(AlphaTransparency)
	} else {
		in.SetAlphaMode(AlphaNone)
	}

	switch {
	case opt.HighPass:
		in.SetNormalMap(true)
		in.SetConvertToNormalMap(false)
		in.SetGamma(1, 1)
		in.SetNormalizeMipmaps(false)
	case opt.Linear:
		ConfigureLinearMap(in)
	case opt.Normal:
		ConfigureNormalMap(in)
	case opt.ToNormal:
		ConfigureColorToNormalMap(in)
	default:
		ConfigureColorMap(in)
	}

	if opt.NoMips {
		in.SetMipmapGeneration(false)
	}
	if opt.PremultiplyAlpha {
		in.SetAlphaMode(AlphaPremultiplied)
	}
}

// runHighPass decomposes the image into the wavelet pyramid and emits the
// band-passed mips straight into the sink.
func runHighPass(img Image, opt Options, in *Input, log *logging.Logger) error {
	if img.Width != img.Height {
		return ErrNotSquare
	}

	mode := highpass.LoadSgamma
	if opt.Normal {
		mode = highpass.LoadNormal
	} else if opt.Linear {
		mode = highpass.LoadLinear
	}

	var hp highpass.HighPass
	if err := hp.Decompose(img.RGBA, img.Width, 0, mode); err != nil {
		return fmt.Errorf("pipeline: decompose: %w", err)
	}
	if err := hp.Reconstruct(opt.HighPassSkip); err != nil {
		return fmt.Errorf("pipeline: reconstruct: %w", err)
	}

	log.Debug("high-pass: %d levels, skip %d", hp.Levels()+1, opt.HighPassSkip)

	in.SetTextureLayout(Texture2D, img.Width, img.Height)

	emit := highpass.EmitOptions{
		ToSRGB:     !opt.Linear && !opt.Normal,
		ToNormal:   opt.Normal,
		ToYUV:      opt.YUV,
		NormalizeY: opt.YUVNormalize,
	}
	if err := hp.EmitMips(in, emit); err != nil {
		return fmt.Errorf("pipeline: emit: %w", err)
	}
	return nil
}

// runRoughness emits level 0 unchanged, then box-mips the color while
// folding the companion normal map's variance into alpha at each level.
func runRoughness(img, normalImg Image, opt Options, in *Input, log *logging.Logger) error {
	fs := surface.FromRGBA(img.RGBA, img.Width, img.Height, 0)
	normal := surface.FromRGBA(normalImg.RGBA, normalImg.Width, normalImg.Height, 0)

	// The normal map must tile the full-resolution color evenly; the per-mip
	// check alone misses a mismatch once the color mip shrinks to 1×1.
	if img.Width > 0 && img.Height > 0 &&
		(normalImg.Width%img.Width != 0 || normalImg.Height%img.Height != 0) {
		return fmt.Errorf("pipeline: roughness normal map %dx%d for %dx%d image: %w",
			normalImg.Width, normalImg.Height, img.Width, img.Height, surface.ErrBadSize)
	}

	in.SetTextureLayout(Texture2D, img.Width, img.Height)
	if err := commit(in, fs, 0); err != nil {
		return err
	}

	if !in.GenerateMipmaps {
		return nil
	}

	level := 1
	for fs.BuildNextMipmap(surface.FilterBox) {
		if err := fs.RoughnessMipFromNormal(normal); err != nil {
			return fmt.Errorf("pipeline: roughness mip %d: %w", level, err)
		}
		if err := commit(in, fs, level); err != nil {
			return err
		}
		level++
	}

	log.Debug("roughness: %d levels", level)
	return nil
}

// runCoverage keeps the alpha-test coverage of level 0 constant across the
// mip chain. The scaling never feeds back into the chain: each level is
// scaled on a copy while the unscaled surface keeps mipping.
func runCoverage(img Image, opt Options, in *Input, log *logging.Logger) error {
	fs := surface.FromRGBA(img.RGBA, img.Width, img.Height, 0)

	in.SetTextureLayout(Texture2D, img.Width, img.Height)
	if err := commit(in, fs, 0); err != nil {
		return err
	}

	var coverage [4]float32
	for k, c := range opt.Coverage {
		if c.Enabled {
			coverage[k] = fs.AlphaTestCoverage(c.Threshold, k)
			log.Debug("coverage: channel %d starts at %.4f", k, coverage[k])
		}
	}

	if !in.GenerateMipmaps {
		return nil
	}

	level := 1
	for fs.BuildNextMipmap(surface.FilterBox) {
		mip := fs.Clone()
		for k, c := range opt.Coverage {
			if c.Enabled {
				mip.ScaleAlphaToCoverage(coverage[k], c.Threshold, k)
			}
		}
		if err := commit(in, mip, level); err != nil {
			return err
		}
		level++
	}
	return nil
}

// runFilled flood-fills transparent texels before the plain chain so that
// filtering never bleeds undefined color into visible regions.
func runFilled(img Image, opt Options, in *Input, log *logging.Logger) error {
	fs := surface.FromRGBA(img.RGBA, img.Width, img.Height, 0)
	fs.FillHoles(alphaTestThreshold)
	log.Debug("fill: holes filled at %dx%d", img.Width, img.Height)
	return mipChain(fs, opt, in)
}

func runPlain(img Image, opt Options, in *Input, log *logging.Logger) error {
	fs := surface.FromRGBA(img.RGBA, img.Width, img.Height, 0)
	return mipChain(fs, opt, in)
}

// mipChain runs the shared tail of the plain and hole-fill paths: optional
// premultiply and normal conversion, then repeated filtering in linear
// space with per-level re-encoding.
func mipChain(fs *surface.Surface, opt Options, in *Input) error {
	if opt.PremultiplyAlpha {
		fs.PremultiplyAlpha()
	}

	if in.ConvertToNormalMap {
		fs.ToNormalMap([4]float32{1.0 / 3, 1.0 / 3, 1.0 / 3, 0}, 1)
	}

	in.SetTextureLayout(Texture2D, fs.Width(), fs.Height())

	fs.ToLinear(in.InputGamma)
	if err := commitGamma(in, fs, 0); err != nil {
		return err
	}

	if !in.GenerateMipmaps {
		return nil
	}

	level := 1
	for fs.BuildNextMipmap(opt.MipFilter) {
		if in.NormalizeMipmaps {
			fs.NormalizeNormals()
		}
		if err := commitGamma(in, fs, level); err != nil {
			return err
		}
		level++
	}
	return nil
}

func commit(in *Input, fs *surface.Surface, level int) error {
	if err := in.SetMipmapData(fs.RGBA8(), fs.Width(), fs.Height(), 1, 0, level); err != nil {
		return fmt.Errorf("pipeline: sink mip %d: %w", level, err)
	}
	return nil
}

// commitGamma quantizes through the sink's output gamma without disturbing
// the linear-space surface the next level is built from.
func commitGamma(in *Input, fs *surface.Surface, level int) error {
	out := fs
	if in.OutputGamma != 1 {
		out = fs.Clone()
		out.ToGamma(in.OutputGamma)
	}
	return commit(in, out, level)
}
