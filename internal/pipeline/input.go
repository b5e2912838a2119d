package pipeline

import (
	"errors"
	"fmt"
)

// ErrSinkFailed rejects mip data whose size disagrees with its dimensions.
var ErrSinkFailed = errors.New("pipeline: sink rejected mip data")

// TextureType describes the layout recorded on the input sink.
type TextureType int

const (
	Texture2D TextureType = iota
	Texture3D
	TextureCube
	TextureArray
)

// WrapMode is a hint for the downstream sampler.
type WrapMode int

const (
	WrapClamp WrapMode = iota
	WrapRepeat
)

// AlphaMode records how the alpha channel is to be interpreted downstream.
type AlphaMode int

const (
	AlphaNone AlphaMode = iota
	AlphaTransparency
	AlphaPremultiplied
)

// Mip is one committed mip level, tightly packed RGBA8.
type Mip struct {
	Data   []byte
	Width  int
	Height int
	Depth  int
	Face   int
	Level  int
}

// Input collects the texture layout, the processing settings and the
// ordered mip data the pipelines produce. It satisfies the mip sink
// interfaces of both the wavelet and the surface paths.
type Input struct {
	Type   TextureType
	Width  int
	Height int
	Depth  int

	Wrap               WrapMode
	Alpha              AlphaMode
	InputGamma         float32
	OutputGamma        float32
	NormalMap          bool
	ConvertToNormalMap bool
	NormalizeMipmaps   bool
	GenerateMipmaps    bool

	mips []Mip
}

// NewInput returns an input sink with mip generation enabled and gamma 2.2
// on both ends, matching the color-map defaults.
func NewInput() *Input {
	return &Input{
		InputGamma:      2.2,
		OutputGamma:     2.2,
		GenerateMipmaps: true,
		Depth:           1,
	}
}

// SetTextureLayout records the texture kind and dimensions.
func (in *Input) SetTextureLayout(kind TextureType, width, height int) {
	in.Type = kind
	in.Width = width
	in.Height = height
	in.Depth = 1
}

// SetMipmapData appends one mip level. The data is copied; callers may
// reuse their buffer.
func (in *Input) SetMipmapData(data []byte, width, height, depth, face, level int) error {
	if len(data) != 4*width*height*depth {
		return fmt.Errorf("%w: level %d: %d bytes for %dx%dx%d",
			ErrSinkFailed, level, len(data), width, height, depth)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	in.mips = append(in.mips, Mip{cp, width, height, depth, face, level})
	return nil
}

// SetGamma records the input and output gamma exponents.
func (in *Input) SetGamma(input, output float32) {
	in.InputGamma = input
	in.OutputGamma = output
}

// SetNormalMap marks the texture as a tangent-space normal map.
func (in *Input) SetNormalMap(v bool) { in.NormalMap = v }

// SetConvertToNormalMap requests height-to-normal conversion.
func (in *Input) SetConvertToNormalMap(v bool) { in.ConvertToNormalMap = v }

// SetNormalizeMipmaps requests renormalization of each generated mip.
func (in *Input) SetNormalizeMipmaps(v bool) { in.NormalizeMipmaps = v }

// SetMipmapGeneration toggles mip generation below level 0.
func (in *Input) SetMipmapGeneration(v bool) { in.GenerateMipmaps = v }

// SetWrapMode records the sampler wrap hint.
func (in *Input) SetWrapMode(m WrapMode) { in.Wrap = m }

// SetAlphaMode records the alpha interpretation.
func (in *Input) SetAlphaMode(m AlphaMode) { in.Alpha = m }

// Mips returns the committed levels in delivery order.
func (in *Input) Mips() []Mip { return in.mips }

// discard drops any partially committed levels.
func (in *Input) discard() { in.mips = nil }

// Preset configuration mirroring the classic map kinds.

// ConfigureColorMap: sRGB color, no normal handling.
func ConfigureColorMap(in *Input) {
	in.SetNormalMap(false)
	in.SetConvertToNormalMap(false)
	in.SetGamma(2.2, 2.2)
	in.SetNormalizeMipmaps(false)
}

// ConfigureLinearMap: linear data, no normal handling.
func ConfigureLinearMap(in *Input) {
	in.SetNormalMap(false)
	in.SetConvertToNormalMap(false)
	in.SetGamma(1, 1)
	in.SetNormalizeMipmaps(false)
}

// ConfigureNormalMap: stored normals, renormalized per mip.
func ConfigureNormalMap(in *Input) {
	in.SetNormalMap(true)
	in.SetConvertToNormalMap(false)
	in.SetGamma(1, 1)
	in.SetNormalizeMipmaps(true)
}

// ConfigureColorToNormalMap: height field converted to normals.
func ConfigureColorToNormalMap(in *Input) {
	in.SetNormalMap(false)
	in.SetConvertToNormalMap(true)
	in.SetGamma(1, 1)
	in.SetNormalizeMipmaps(true)
}
