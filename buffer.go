package chanswap

import (
	"image"
	"image/color"
	"io"
)

// Buffer is an in-memory [ImageBuffered] with tightly packed rows.
type Buffer struct {
	dims Dims
	pix  []byte
}

var _ ImageBuffered = (*Buffer)(nil)

// NewBuffer allocates a zeroed width×height image of the given shape.
func NewBuffer(width, height int, shape Shape) (*Buffer, error) {
	d := Dims{Width: width, Height: height, Shape: shape}
	d.Stride = d.SizeRow()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Buffer{dims: d, pix: make([]byte, d.NumPixels()*int64(shape.BytesPerPixel()))}, nil
}

// NewBufferFromBytes wraps pix as an image with the given dimensions.
// pix is not copied.
func NewBufferFromBytes(pix []byte, d Dims) (*Buffer, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if int64(len(pix)) < d.Size() {
		return nil, io.ErrShortBuffer
	}
	return &Buffer{dims: d, pix: pix}, nil
}

// FromImage copies img into a new Buffer. Images reporting themselves
// opaque become [ShapeRGB888], all others [ShapeRGBA8888] with straight alpha.
// Channels wider than 8 bits are truncated to their high byte.
func FromImage(img image.Image) (*Buffer, error) {
	r := img.Bounds()
	shape := ShapeRGBA8888
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		shape = ShapeRGB888
	}
	b, err := NewBuffer(r.Dx(), r.Dy(), shape)
	if err != nil {
		return nil, err
	}
	bpp := shape.BytesPerPixel()
	if src, ok := img.(*image.NRGBA); ok && shape == ShapeRGBA8888 {
		for y := 0; y < r.Dy(); y++ {
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			copy(b.pix[y*b.dims.Stride:], src.Pix[off:off+b.dims.SizeRow()])
		}
		return b, nil
	}
	for y := 0; y < r.Dy(); y++ {
		row := b.pix[y*b.dims.Stride:]
		for x := 0; x < r.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			p := row[x*bpp : x*bpp+bpp]
			p[0], p[1], p[2] = c.R, c.G, c.B
			if bpp == 4 {
				p[3] = c.A
			}
		}
	}
	return b, nil
}

func (b *Buffer) Dims() Dims { return b.dims }

func (b *Buffer) Buffer() []byte { return b.pix }

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= int64(len(b.pix)) {
		return 0, io.EOF
	}
	n := copy(p, b.pix[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Pixel returns the channel values at (x, y). Alpha is 255 for shapes without alpha.
func (b *Buffer) Pixel(x, y int) (r, g, bl, a uint8) {
	bpp := b.dims.Shape.BytesPerPixel()
	p := b.pix[y*b.dims.Stride+x*bpp:]
	a = 255
	if bpp == 4 {
		a = p[3]
	}
	return p[0], p[1], p[2], a
}

// SetPixel sets the channel values at (x, y). a is ignored for shapes without alpha.
func (b *Buffer) SetPixel(x, y int, r, g, bl, a uint8) {
	bpp := b.dims.Shape.BytesPerPixel()
	p := b.pix[y*b.dims.Stride+x*bpp:]
	p[0], p[1], p[2] = r, g, bl
	if bpp == 4 {
		p[3] = a
	}
}

// Convert returns a copy of b in the requested shape. Widening to
// [ShapeRGBA8888] sets alpha to 255, narrowing drops alpha.
func (b *Buffer) Convert(shape Shape) (*Buffer, error) {
	dst, err := NewBuffer(b.dims.Width, b.dims.Height, shape)
	if err != nil {
		return nil, err
	}
	if shape == b.dims.Shape {
		for y := 0; y < b.dims.Height; y++ {
			copy(dst.pix[y*dst.dims.Stride:], b.pix[y*b.dims.Stride:y*b.dims.Stride+b.dims.SizeRow()])
		}
		return dst, nil
	}
	for y := 0; y < b.dims.Height; y++ {
		for x := 0; x < b.dims.Width; x++ {
			r, g, bl, a := b.Pixel(x, y)
			dst.SetPixel(x, y, r, g, bl, a)
		}
	}
	return dst, nil
}

// NRGBA renders b as a standard library image suitable for encoding.
func (b *Buffer) NRGBA() *image.NRGBA {
	w, h := b.dims.Width, b.dims.Height
	if b.dims.Shape == ShapeRGBA8888 && b.dims.Stride == 4*w {
		return &image.NRGBA{Pix: b.pix[:4*w*h], Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := b.Pixel(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, bl, a
		}
	}
	return img
}

var errNegativeOffset = errorString("negative offset")

type errorString string

func (e errorString) Error() string { return string(e) }
