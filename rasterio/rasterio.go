// Package rasterio moves raster images between files and [chanswap.Buffer].
//
// Writes are atomic: the encoded image goes to a temporary file next to the
// destination which is then renamed over it, so a failed write leaves any
// existing file untouched.
package rasterio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/chanswap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	// ErrNotFound is returned when the input file does not exist or cannot be read.
	ErrNotFound = errors.New("input not found")
	// ErrDecode is returned when the input is not a valid or supported raster image.
	ErrDecode = errors.New("decode failed")
	// ErrIO is returned when the output file cannot be written.
	ErrIO = errors.New("write failed")
)

// Format is a lossless raster encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatBMP
	FormatTIFF
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name as returned by [image.Decode] to a Format.
func ParseFormat(name string) Format {
	switch strings.ToLower(name) {
	case "png":
		return FormatPNG
	case "bmp":
		return FormatBMP
	case "tiff", "tif":
		return FormatTIFF
	}
	return FormatUnknown
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) Format {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Decode reads an image from r into a new Buffer.
func Decode(r io.Reader) (*chanswap.Buffer, Format, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, FormatUnknown, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	buf, err := chanswap.FromImage(img)
	if err != nil {
		return nil, FormatUnknown, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return buf, ParseFormat(name), nil
}

// Load opens and decodes the image at path.
func Load(path string) (*chanswap.Buffer, Format, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, FormatUnknown, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer fp.Close()
	if st, err := fp.Stat(); err == nil && st.IsDir() {
		return nil, FormatUnknown, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	buf, format, err := Decode(bufio.NewReader(fp))
	if err != nil {
		return nil, FormatUnknown, fmt.Errorf("%s: %w", path, err)
	}
	return buf, format, nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img chanswap.Image, format Format) error {
	nrgba, err := toNRGBA(img)
	if err != nil {
		return err
	}
	switch format {
	case FormatPNG:
		return png.Encode(w, nrgba)
	case FormatBMP:
		return bmp.Encode(w, nrgba)
	case FormatTIFF:
		return tiff.Encode(w, nrgba, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported output format %v", format)
}

// Save encodes img and atomically replaces the file at path with it.
// Errors wrap [ErrIO].
func Save(path string, img chanswap.Image, format Format) (err error) {
	if format == FormatUnknown {
		return fmt.Errorf("%w: %s: unknown format", ErrIO, path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	bw := bufio.NewWriter(tmp)
	if err = Encode(bw, img, format); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func toNRGBA(img chanswap.Image) (*image.NRGBA, error) {
	if b, ok := img.(*chanswap.Buffer); ok {
		return b.NRGBA(), nil
	}
	d := img.Dims()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	b, err := chanswap.NewBuffer(d.Width, d.Height, d.Shape)
	if err != nil {
		return nil, err
	}
	for y := 0; y < d.Height; y++ {
		row, err := chanswap.ImageRow(b.Buffer()[y*b.Dims().Stride:], img, y)
		if err != nil {
			return nil, err
		}
		copy(b.Buffer()[y*b.Dims().Stride:], row)
	}
	return b.NRGBA(), nil
}
