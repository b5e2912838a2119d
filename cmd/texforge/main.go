package main

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/texforge/texforge/internal/config"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/output"
	"github.com/texforge/texforge/internal/pipeline"
	"github.com/texforge/texforge/internal/preview"
	"github.com/texforge/texforge/internal/surface"
)

const (
	appName    = "texforge"
	appVersion = "v1.0.0"
)

// rangeScaleCap bounds the measured HDR range before scaling into [0,1].
const rangeScaleCap = 16.0

// ErrUnsupportedFormat reports an input file no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("texforge: unsupported image format")

func main() {
	args := os.Args[1:]

	for _, arg := range args {
		switch arg {
		case "-help", "--help", "-h":
			showHelp()
			return
		case "-version", "--version":
			showVersion()
			return
		}
	}

	cfg, err := config.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrUsage) || errors.Is(err, config.ErrUnknownOption) {
			fmt.Fprintf(os.Stderr, "run %s -help for usage\n", appName)
		}
		os.Exit(2)
	}

	log := logging.Default()
	if cfg.Silent {
		log.SetLevel(logging.LevelError)
	} else {
		log.SetLevelFromString(cfg.LogLevel)
	}

	if err := run(cfg, log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logging.Logger) error {
	img, err := loadImage(cfg.Input)
	if err != nil {
		return err
	}
	log.Info("loaded %s (%dx%d)", cfg.Input, img.Width, img.Height)

	if cfg.NormalMapPath != "" {
		normal, err := loadImage(cfg.NormalMapPath)
		if err != nil {
			return err
		}
		cfg.Pipeline.NormalForRoughness = &normal
	}

	if cfg.RangeScale || cfg.RGBM {
		img = rangeScale(img, cfg.RGBM)
	}

	in, err := pipeline.Run(img, cfg.Pipeline, log)
	if err != nil {
		return err
	}

	mips := in.Mips()
	log.Info("generated %d mip levels", len(mips))

	out := outputPath(cfg)
	h, err := newHandler(out, cfg)
	if err != nil {
		return err
	}
	h.SetTotal(output.TotalBytes(mips))
	if !cfg.Silent {
		h.SetProgress(printProgress)
	}

	if err := output.WriteMips(h, mips); err != nil {
		return err
	}
	if !cfg.Silent {
		fmt.Println()
	}
	log.Info("wrote %s", out)

	if cfg.PreviewAddr != "" {
		return preview.NewServer(in, log).ListenAndServe(cfg.PreviewAddr)
	}
	return nil
}

// setter is the handler surface the driver needs beyond output.Handler.
type setter interface {
	output.Handler
	SetTotal(total int64)
	SetProgress(fn output.ProgressFunc)
}

func newHandler(path string, cfg config.Config) (setter, error) {
	if cfg.Zstd {
		return output.NewZstdFileWriter(path, cfg.ZstdLevel)
	}
	return output.NewFileWriter(path)
}

func outputPath(cfg config.Config) string {
	if cfg.Output != "" {
		return cfg.Output
	}
	ext := ".tex"
	if cfg.Zstd {
		ext = ".zds"
	}
	return replaceExt(cfg.Input, ext)
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func printProgress(written, total int64) {
	if total <= 0 {
		return
	}
	fmt.Printf("\r%3d%%", written*100/total)
}

// loadImage decodes the named file into tightly packed RGBA8.
func loadImage(path string) (pipeline.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Image{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return pipeline.Image{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}

	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	img := pipeline.Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		RGBA:   make([]byte, 4*b.Dx()*b.Dy()),
	}
	for y := 0; y < img.Height; y++ {
		copy(img.RGBA[4*y*img.Width:], dst.Pix[y*dst.Stride:y*dst.Stride+4*img.Width])
	}
	return img, nil
}

// rangeScale compresses the color range into [0,1] and optionally repacks
// the result as RGBM with a shared multiplier in alpha.
func rangeScale(img pipeline.Image, rgbm bool) pipeline.Image {
	fs := surface.FromRGBA(img.RGBA, img.Width, img.Height, 0)

	var top float32
	for c := 0; c < 3; c++ {
		_, hi := fs.Range(c)
		if hi > top {
			top = hi
		}
	}
	if top > rangeScaleCap {
		top = rangeScaleCap
	}
	if top > 1 {
		for c := 0; c < 3; c++ {
			fs.ScaleBias(c, 1/top, 0)
		}
	}

	fs.ToneMapLinear()
	fs.Clamp(3, 0, 1)

	if rgbm {
		fs.ToGamma(2)
		fs.ToRGBM(1, 0.15)
	}

	return pipeline.Image{Width: img.Width, Height: img.Height, RGBA: fs.RGBA8()}
}

func showVersion() {
	fmt.Printf("%s %s\n", appName, appVersion)
}

func showHelp() {
	fmt.Printf(`%s %s - texture mipmap preprocessor

usage: %s [options] input [output]

options:
  -high_pass [skip]          wavelet pipeline with detail skip count
  -yuv                       YCoCg conversion at mip emit
  -yuvn                      YCoCg conversion with Y normalized to gray
  -coverage v c              preserve alpha-test coverage at threshold v
                             on channel c (repeatable, one per channel)
  -fillholes                 fill transparent regions before mipping
  -normal_to_roughness path  fold normal map variance into alpha roughness
  -mipfilter name            box, triangle or kaiser (default box)
  -normal                    input is a normal map
  -tonormal                  convert height input to a normal map
  -linear                    input is linear data (no gamma)
  -color                     input is sRGB color (default)
  -alpha                     alpha carries transparency
  -premula                   premultiply alpha into color
  -nomips                    emit level 0 only
  -repeat / -clamp           wrap mode hint
  -rgbm                      pack as RGBM after range scaling
  -rangescale                scale HDR range into [0,1]
  -zstd                      compress output stream (.zds)
  -preview addr              serve mips to a browser viewer on addr
  -loglevel level            debug, info, warn or error
  -silent                    no progress output
  -help                      show this help
  -version                   show version

environment:
  TEXFORGE_LOG_LEVEL         default log level
  TEXFORGE_ZSTD_LEVEL        zstd compression level (default 17)
  TEXFORGE_PREVIEW_ADDR      default preview address
  TEXFORGE_ALLOWED_ORIGINS   extra origins allowed on the preview socket
`, appName, appVersion, appName)
}
