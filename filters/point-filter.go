package filters

import (
	"errors"
	"image"
	"io"

	"github.com/soypat/chanswap"
	"golang.org/x/sync/errgroup"
)

var errShapeMismatch = errors.New("pixel shape mismatch")

// PointFunc processes a contiguous row of pixels.
// dst and src contain the same number of pixels, possibly of different shapes.
// dst and src may alias for in-place operation.
type PointFunc func(dst, src []byte)

// PointFilter applies a per-pixel transformation using a callback function.
// It handles the iteration, buffering and ROI logic common to all per-pixel filters.
// The callback is invoked once per row with contiguous pixel data.
type PointFilter struct {
	In    chanswap.Shape
	Out   chanswap.Shape
	Fn    PointFunc
	Ctrls []chanswap.Control
	// Workers is the number of goroutines rows are spread across.
	// Values below 2 process rows sequentially.
	Workers int
}

var _ chanswap.Filter = (*PointFilter)(nil)

// ShapeIO implements [chanswap.Filter].
func (f *PointFilter) ShapeIO() (output, input chanswap.Shape) {
	return f.Out, f.In
}

// Controls implements [chanswap.Filter].
func (f *PointFilter) Controls() []chanswap.Control {
	return f.Ctrls
}

// Process implements [chanswap.Filter].
func (f *PointFilter) Process(dst []byte, src chanswap.Image, roi *image.Rectangle) (chanswap.Dims, error) {
	if f.Fn == nil {
		return chanswap.Dims{}, errNilPointFunc
	}

	outShape, inShape := f.ShapeIO()
	srcDims := src.Dims()
	if srcDims.Shape != inShape {
		return chanswap.Dims{}, errShapeMismatch
	}

	inBytesPerPixel := inShape.BytesPerPixel()
	outBytesPerPixel := outShape.BytesPerPixel()

	var outWidth, outHeight int
	if roi != nil {
		outWidth, outHeight = roi.Dx(), roi.Dy()
	} else {
		outWidth, outHeight = srcDims.Width, srcDims.Height
	}
	inPlace := dst == nil
	outStride := outWidth * outBytesPerPixel
	if inPlace {
		outStride = srcDims.Stride
	}

	dstDims := chanswap.Dims{
		Width:  outWidth,
		Height: outHeight,
		Stride: outStride,
		Shape:  outShape,
	}

	dst, _, err := chanswap.ValidateProcessArgs(dst, dstDims, src, roi)
	if err != nil {
		return chanswap.Dims{}, err
	}

	startX, startY := 0, 0
	endX, endY := srcDims.Width, srcDims.Height
	if roi != nil {
		startX, startY = roi.Min.X, roi.Min.Y
		endX, endY = roi.Max.X, roi.Max.Y
	}

	var srcBuf []byte
	if buffered, ok := src.(chanswap.ImageBuffered); ok {
		srcBuf = buffered.Buffer()
	}
	srcRowBytes := srcDims.SizeRow()
	srcStart := startX * inBytesPerPixel
	srcEnd := endX * inBytesPerPixel

	rows := func(y0, y1 int) error {
		var rowBuf []byte // Fallback buffer for ReadAt.
		for y := y0; y < y1; y++ {
			var srcRow []byte
			srcRowStart := y * srcDims.Stride
			if srcBuf != nil {
				srcRow = srcBuf[srcRowStart : srcRowStart+srcRowBytes]
			} else {
				if rowBuf == nil {
					rowBuf = make([]byte, srcRowBytes)
				}
				n, err := src.ReadAt(rowBuf, int64(srcRowStart))
				if n != srcRowBytes {
					if err == nil {
						err = io.ErrUnexpectedEOF
					}
					return err
				}
				srcRow = rowBuf
			}
			dstRowStart := (y - startY) * outStride
			f.Fn(dst[dstRowStart:dstRowStart+outWidth*outBytesPerPixel], srcRow[srcStart:srcEnd])
		}
		return nil
	}

	workers := min(f.Workers, endY-startY)
	if workers < 2 {
		if err := rows(startY, endY); err != nil {
			return chanswap.Dims{}, err
		}
		return dstDims, nil
	}

	// Each worker owns a disjoint band of rows.
	var g errgroup.Group
	band := (endY - startY + workers - 1) / workers
	for y0 := startY; y0 < endY; y0 += band {
		y1 := min(y0+band, endY)
		g.Go(func() error { return rows(y0, y1) })
	}
	if err := g.Wait(); err != nil {
		return chanswap.Dims{}, err
	}
	return dstDims, nil
}

var errNilPointFunc = errorString("nil PointFunc")

type errorString string

func (e errorString) Error() string { return string(e) }
