// Package config parses the texforge command line and environment into the
// option set the pipeline runs on. Command-line values win over environment
// variables, which win over defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/texforge/texforge/internal/pipeline"
	"github.com/texforge/texforge/internal/surface"
)

// ErrUnknownOption reports an unrecognized command-line option.
var ErrUnknownOption = errors.New("config: unknown option")

// ErrUsage reports a recognized option with missing or malformed arguments.
var ErrUsage = errors.New("config: bad option usage")

// Config is the full parsed invocation: pipeline options plus driver-level
// settings that never reach the pipeline itself.
type Config struct {
	Pipeline pipeline.Options

	Input  string
	Output string

	NormalMapPath string

	RGBM       bool
	RangeScale bool

	Zstd      bool
	ZstdLevel int

	PreviewAddr string
	LogLevel    string
	Silent      bool
}

// Defaults returns a Config with environment fallbacks applied.
func Defaults() Config {
	return Config{
		ZstdLevel:   getIntWithDefault("TEXFORGE_ZSTD_LEVEL", 17),
		PreviewAddr: getEnvWithDefault("TEXFORGE_PREVIEW_ADDR", ""),
		LogLevel:    getEnvWithDefault("TEXFORGE_LOG_LEVEL", "info"),
	}
}

// ParseArgs consumes the argument list (without the program name) and fills
// in a Config. The first non-option argument is the input path and an
// optional second one the output path; Output stays empty when only the
// input is given. Any other number of paths leaves Input empty, which
// Validate rejects.
func ParseArgs(args []string) (Config, error) {
	cfg := Defaults()

	var paths []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) == 0 || arg[0] != '-' {
			paths = append(paths, arg)
			continue
		}

		switch arg[1:] {
		case "high_pass":
			cfg.Pipeline.HighPass = true
			if i+1 < len(args) {
				if skip, err := strconv.Atoi(args[i+1]); err == nil {
					cfg.Pipeline.HighPassSkip = skip
					i++
				}
			}

		case "yuv":
			cfg.Pipeline.YUV = true

		case "yuvn":
			cfg.Pipeline.YUV = true
			cfg.Pipeline.YUVNormalize = true

		case "coverage":
			if i+2 >= len(args) {
				return cfg, fmt.Errorf("%w: -coverage needs a threshold and a channel", ErrUsage)
			}
			threshold, err := strconv.ParseFloat(args[i+1], 32)
			if err != nil {
				return cfg, fmt.Errorf("%w: -coverage threshold %q", ErrUsage, args[i+1])
			}
			channel, err := strconv.Atoi(args[i+2])
			if err != nil || channel < 0 || channel > 3 {
				return cfg, fmt.Errorf("%w: -coverage channel %q", ErrUsage, args[i+2])
			}
			cfg.Pipeline.Coverage[channel] = pipeline.CoverageSpec{
				Enabled:   true,
				Threshold: float32(threshold),
			}
			i += 2

		case "fillholes":
			cfg.Pipeline.FillHoles = true

		case "normal_to_roughness":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("%w: -normal_to_roughness needs a path", ErrUsage)
			}
			cfg.NormalMapPath = args[i+1]
			i++

		case "mipfilter":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("%w: -mipfilter needs a name", ErrUsage)
			}
			filter, err := parseMipFilter(args[i+1])
			if err != nil {
				return cfg, err
			}
			cfg.Pipeline.MipFilter = filter
			i++

		case "normal":
			cfg.Pipeline.Normal = true

		case "tonormal":
			cfg.Pipeline.ToNormal = true

		case "linear":
			cfg.Pipeline.Linear = true

		case "color":
			cfg.Pipeline.Normal = false
			cfg.Pipeline.ToNormal = false
			cfg.Pipeline.Linear = false

		case "alpha":
			cfg.Pipeline.HasAlpha = true

		case "premula":
			cfg.Pipeline.PremultiplyAlpha = true

		case "nomips":
			cfg.Pipeline.NoMips = true

		case "repeat":
			cfg.Pipeline.WrapRepeat = true

		case "clamp":
			cfg.Pipeline.WrapRepeat = false

		case "rgbm":
			cfg.RGBM = true

		case "rangescale":
			cfg.RangeScale = true

		case "zstd":
			cfg.Zstd = true

		case "preview":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("%w: -preview needs an address", ErrUsage)
			}
			cfg.PreviewAddr = args[i+1]
			i++

		case "loglevel":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("%w: -loglevel needs a level", ErrUsage)
			}
			cfg.LogLevel = args[i+1]
			i++

		case "silent":
			cfg.Silent = true

		default:
			return cfg, fmt.Errorf("%w: %s", ErrUnknownOption, arg)
		}
	}

	switch len(paths) {
	case 1:
		cfg.Input = paths[0]
	case 2:
		cfg.Input = paths[0]
		cfg.Output = paths[1]
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects option combinations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: no input file", ErrUsage)
	}

	modes := 0
	for _, on := range []bool{c.Pipeline.Normal, c.Pipeline.ToNormal, c.Pipeline.Linear} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("%w: -normal, -tonormal and -linear are exclusive", ErrUsage)
	}

	if c.Pipeline.HighPassSkip < 0 {
		return fmt.Errorf("%w: -high_pass skip must not be negative", ErrUsage)
	}

	if c.ZstdLevel < 1 || c.ZstdLevel > 22 {
		return fmt.Errorf("%w: zstd level %d out of range", ErrUsage, c.ZstdLevel)
	}

	return nil
}

func parseMipFilter(name string) (surface.MipFilter, error) {
	switch name {
	case "box":
		return surface.FilterBox, nil
	case "triangle":
		return surface.FilterTriangle, nil
	case "kaiser":
		return surface.FilterKaiser, nil
	default:
		return surface.FilterBox, fmt.Errorf("%w: -mipfilter %q", ErrUsage, name)
	}
}

// Helper functions for environment variable parsing
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
