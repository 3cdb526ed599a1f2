// Package swapper exchanges the color channels of image files.
package swapper

import (
	"errors"
	"fmt"

	"github.com/soypat/chanswap"
	"github.com/soypat/chanswap/filters"
	"github.com/soypat/chanswap/rasterio"
	"go.uber.org/zap"
)

// Paths used when none are given.
const (
	DefaultInput  = "studs_normal.png"
	DefaultOutput = "studs_normal_new.png"
)

// Config controls a channel swap.
type Config struct {
	// A and B are the exchanged channels.
	A, B filters.Channel
	// Alpha selects alpha pass-through or the RGB-only output of older tooling.
	Alpha filters.AlphaMode
	// Workers spreads rows across goroutines. Output does not depend on it.
	Workers int
	// Filter overrides the CPU filter, e.g. with a [filters.SwapFilterGPU].
	// Its input shape must be RGBA8888 or match the decoded image.
	Filter chanswap.Filter
	// Format of the output file. FormatUnknown infers it from the output
	// path extension, then the input format, then PNG.
	Format rasterio.Format
	Logger *zap.Logger
}

// DefaultConfig swaps red and green and keeps alpha.
func DefaultConfig() Config {
	return Config{A: filters.ChannelRed, B: filters.ChannelGreen, Alpha: filters.AlphaKeep, Workers: 1}
}

func (cfg *Config) logger() *zap.Logger {
	if cfg.Logger == nil {
		return zap.NewNop()
	}
	return cfg.Logger
}

// SwapRedGreen writes the image at inputPath to outputPath with red and
// green exchanged. Empty paths fall back to [DefaultInput] and [DefaultOutput].
func SwapRedGreen(inputPath, outputPath string) error {
	return Swap(inputPath, outputPath, DefaultConfig())
}

// Swap decodes inputPath, exchanges channels per cfg and atomically writes
// the result to outputPath. Errors wrap [rasterio.ErrNotFound],
// [rasterio.ErrDecode] or [rasterio.ErrIO]. Nothing is written on failure.
func Swap(inputPath, outputPath string, cfg Config) error {
	if inputPath == "" {
		inputPath = DefaultInput
	}
	if outputPath == "" {
		outputPath = DefaultOutput
	}
	log := cfg.logger().With(zap.String("input", inputPath), zap.String("output", outputPath))

	src, inFormat, err := rasterio.Load(inputPath)
	if err != nil {
		return err
	}
	d := src.Dims()
	log.Debug("decoded", zap.Stringer("format", inFormat), zap.Int("width", d.Width),
		zap.Int("height", d.Height), zap.Stringer("shape", d.Shape))

	dst, err := Apply(src, cfg)
	if err != nil {
		return err
	}

	format := cfg.Format
	if format == rasterio.FormatUnknown {
		format = rasterio.FormatFromPath(outputPath)
	}
	if format == rasterio.FormatUnknown {
		format = inFormat
	}
	if format == rasterio.FormatUnknown {
		format = rasterio.FormatPNG
	}
	if err := rasterio.Save(outputPath, dst, format); err != nil {
		return err
	}
	log.Info("channels swapped", zap.Stringer("a", cfg.A), zap.Stringer("b", cfg.B),
		zap.Stringer("alpha", cfg.Alpha), zap.Stringer("format", format))
	return nil
}

// Apply returns a new buffer with the same dimensions as src holding the
// channel-swapped pixels. src is not modified.
func Apply(src chanswap.Image, cfg Config) (*chanswap.Buffer, error) {
	f := cfg.Filter
	if f == nil {
		sf, err := filters.NewChannelSwap(cfg.A, cfg.B, cfg.Alpha)
		if err != nil {
			return nil, err
		}
		sf.Workers = cfg.Workers
		if err := sf.ForShape(src.Dims().Shape); err != nil {
			return nil, err
		}
		f = sf
	}
	return applyFilter(f, src, cfg.Alpha)
}

var errShapeMismatch = errors.New("filter input shape does not match image")

func applyFilter(f chanswap.Filter, src chanswap.Image, alpha filters.AlphaMode) (*chanswap.Buffer, error) {
	sd := src.Dims()
	outShape, inShape := f.ShapeIO()
	if sd.Shape != inShape {
		// Only widening RGB888 to the RGBA8888 GPU filters expect is lossless.
		b, ok := src.(*chanswap.Buffer)
		if !ok || sd.Shape != chanswap.ShapeRGB888 || inShape != chanswap.ShapeRGBA8888 {
			return nil, fmt.Errorf("%w: filter wants %v, got %v", errShapeMismatch, inShape, sd.Shape)
		}
		widened, err := b.Convert(inShape)
		if err != nil {
			return nil, err
		}
		out, err := applyFilter(f, widened, alpha)
		if err != nil {
			return nil, err
		}
		// Restore the source shape so RGB input yields RGB output.
		return out.Convert(sd.Shape)
	}
	dst, err := chanswap.NewBuffer(sd.Width, sd.Height, outShape)
	if err != nil {
		return nil, err
	}
	dims, err := f.Process(dst.Buffer(), src, nil)
	if err != nil {
		return nil, err
	}
	if dims.Width != sd.Width || dims.Height != sd.Height {
		return nil, errors.New("filter changed image dimensions")
	}
	if alpha == filters.AlphaDiscard && outShape.HasAlpha() {
		return dst.Convert(chanswap.ShapeRGB888)
	}
	return dst, nil
}
