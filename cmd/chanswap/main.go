// The chanswap command exchanges two color channels of a raster image.
//
// Usage:
//
//	chanswap [flags] [input [output]]
//
// Without arguments it reads studs_normal.png and writes studs_normal_new.png
// with red and green exchanged. Positional arguments take precedence over
// the -input and -output flags. PNG, BMP and TIFF are supported; the output
// format follows the output file extension.
//
// Example usage:
//
//	chanswap -alpha=discard normal.png normal_dx.png
//	chanswap -swap=rb -workers=8 -i atlas.tiff -o atlas_bgr.tiff
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/chanswap/filters"
	"github.com/soypat/chanswap/rasterio"
	"github.com/soypat/chanswap/swapper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	input, output string
	swap, alpha   string
	workers       int
	gpu, verbose  bool
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("chanswap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.input, "input", swapper.DefaultInput, "input image path")
	fs.StringVar(&opts.output, "output", swapper.DefaultOutput, "output image path, overwritten if present")
	fs.StringVar(&opts.input, "i", swapper.DefaultInput, "short alias for --input")
	fs.StringVar(&opts.output, "o", swapper.DefaultOutput, "short alias for --output")
	fs.StringVar(&opts.swap, "swap", "rg", "channel pair to exchange: rg, rb or gb")
	fs.StringVar(&opts.alpha, "alpha", "keep", "alpha handling: keep passes alpha through, discard writes RGB")
	fs.IntVar(&opts.workers, "workers", runtime.NumCPU(), "goroutines processing rows")
	fs.BoolVar(&opts.gpu, "gpu", false, "swap channels with a WebGPU compute shader")
	fs.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	return fs
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the command and returns the process exit status:
// 0 on success, 1 when the swap fails and 2 on usage errors.
func run(args []string, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}

	in, out := opts.input, opts.output
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		in = rest[0]
	case 2:
		in, out = rest[0], rest[1]
	default:
		fmt.Fprintln(stderr, "Usage: chanswap [flags] [input [output]]")
		return 2
	}

	log := newLogger(stderr, opts.verbose)
	defer log.Sync()
	cfg.Logger = log

	if opts.gpu {
		gf, err := newGPUFilter(cfg.A, cfg.B)
		if err != nil {
			log.Error("gpu unavailable", zap.Error(err))
			return 1
		}
		defer gf.Cleanup()
		cfg.Filter = gf
	}

	if err := swapper.Swap(in, out, cfg); err != nil {
		log.Error("swap failed", zap.Error(err), zap.String("kind", errorKind(err)))
		return 1
	}
	return 0
}

func config(opts options) (swapper.Config, error) {
	cfg := swapper.DefaultConfig()
	cfg.Workers = opts.workers
	var err error
	cfg.A, cfg.B, err = parsePair(opts.swap)
	if err != nil {
		return cfg, err
	}
	switch opts.alpha {
	case "keep":
		cfg.Alpha = filters.AlphaKeep
	case "discard":
		cfg.Alpha = filters.AlphaDiscard
	default:
		return cfg, fmt.Errorf("invalid -alpha %q: want keep or discard", opts.alpha)
	}
	return cfg, nil
}

func parsePair(s string) (a, b filters.Channel, err error) {
	if len(s) != 2 || s[0] == s[1] {
		return 0, 0, fmt.Errorf("invalid -swap %q: want two distinct letters of r, g, b", s)
	}
	ch := func(c byte) (filters.Channel, error) {
		switch c {
		case 'r', 'R':
			return filters.ChannelRed, nil
		case 'g', 'G':
			return filters.ChannelGreen, nil
		case 'b', 'B':
			return filters.ChannelBlue, nil
		}
		return 0, fmt.Errorf("invalid -swap %q: unknown channel %q", s, c)
	}
	if a, err = ch(s[0]); err != nil {
		return 0, 0, err
	}
	if b, err = ch(s[1]); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, rasterio.ErrNotFound):
		return "not found"
	case errors.Is(err, rasterio.ErrDecode):
		return "decode"
	case errors.Is(err, rasterio.ErrIO):
		return "io"
	}
	return "other"
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func newGPUFilter(a, b filters.Channel) (*filters.SwapFilterGPU, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, errors.New("WebGPU not available")
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	return filters.NewChannelSwapGPU(device, device.GetQueue(), a, b)
}
