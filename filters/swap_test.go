package filters

import (
	"image"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/chanswap"
)

func newBuffer(t *testing.T, w, h int, shape chanswap.Shape, pix []byte) *chanswap.Buffer {
	t.Helper()
	d := chanswap.Dims{Width: w, Height: h, Shape: shape}
	d.Stride = d.SizeRow()
	b, err := chanswap.NewBufferFromBytes(pix, d)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func randomBuffer(rng *rand.Rand, t *testing.T, w, h int, shape chanswap.Shape) *chanswap.Buffer {
	t.Helper()
	b, err := chanswap.NewBuffer(w, h, shape)
	if err != nil {
		t.Fatal(err)
	}
	rng.Read(b.Buffer())
	return b
}

func process(t *testing.T, f chanswap.Filter, src chanswap.Image) []byte {
	t.Helper()
	out, _ := f.ShapeIO()
	d := src.Dims()
	dst := make([]byte, d.Width*d.Height*out.BytesPerPixel())
	got, err := f.Process(dst, src, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Width != d.Width || got.Height != d.Height {
		t.Fatalf("dims changed: got %dx%d, want %dx%d", got.Width, got.Height, d.Width, d.Height)
	}
	return dst
}

func TestSwapRedGreenScenario(t *testing.T) {
	src := newBuffer(t, 2, 1, chanswap.ShapeRGB888, []byte{255, 0, 10, 0, 128, 200})
	f := NewSwapRedGreen()
	if err := f.ForShape(chanswap.ShapeRGB888); err != nil {
		t.Fatal(err)
	}
	got := process(t, f, src)
	want := []byte{0, 255, 10, 128, 0, 200}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestSwapRedGreenAlphaKeep(t *testing.T) {
	src := newBuffer(t, 2, 1, chanswap.ShapeRGBA8888, []byte{255, 0, 10, 7, 0, 128, 200, 0})
	got := process(t, NewSwapRedGreen(), src)
	want := []byte{0, 255, 10, 7, 128, 0, 200, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestSwapAlphaDiscard(t *testing.T) {
	src := newBuffer(t, 2, 1, chanswap.ShapeRGBA8888, []byte{255, 0, 10, 7, 0, 128, 200, 0})
	f, err := NewChannelSwap(ChannelRed, ChannelGreen, AlphaDiscard)
	if err != nil {
		t.Fatal(err)
	}
	if out, _ := f.ShapeIO(); out != chanswap.ShapeRGB888 {
		t.Fatalf("got output shape %v, want rgb888", out)
	}
	got := process(t, f, src)
	want := []byte{0, 255, 10, 128, 0, 200}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestSwapProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, shape := range []chanswap.Shape{chanswap.ShapeRGB888, chanswap.ShapeRGBA8888} {
		t.Run(shape.String(), func(t *testing.T) {
			const w, h = 37, 23
			src := randomBuffer(rng, t, w, h, shape)
			f := NewSwapRedGreen()
			if err := f.ForShape(shape); err != nil {
				t.Fatal(err)
			}
			once := process(t, f, src)
			bpp := shape.BytesPerPixel()
			in := src.Buffer()
			for i := 0; i < len(in); i += bpp {
				if once[i] != in[i+1] || once[i+1] != in[i] || once[i+2] != in[i+2] {
					t.Fatalf("pixel %d: got %v from %v", i/bpp, once[i:i+bpp], in[i:i+bpp])
				}
				if bpp == 4 && once[i+3] != in[i+3] {
					t.Fatalf("pixel %d: alpha changed", i/bpp)
				}
			}
			twice := process(t, f, newBuffer(t, w, h, shape, once))
			if diff := cmp.Diff(in, twice); diff != "" {
				t.Errorf("swap is not an involution (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestSwapGrayUnchanged(t *testing.T) {
	pix := []byte{0, 0, 0, 255, 255, 1, 77, 77, 200}
	src := newBuffer(t, 3, 1, chanswap.ShapeRGB888, append([]byte(nil), pix...))
	f := NewSwapRedGreen()
	if err := f.ForShape(chanswap.ShapeRGB888); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pix, process(t, f, src)); diff != "" {
		t.Errorf("R==G pixels changed (-want, +got):\n%s", diff)
	}
}

func TestSwapWorkersMatchSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := randomBuffer(rng, t, 64, 61, chanswap.ShapeRGBA8888)
	seq := process(t, NewSwapRedGreen(), src)
	for _, workers := range []int{2, 3, 8, 100} {
		f := NewSwapRedGreen()
		f.Workers = workers
		if diff := cmp.Diff(seq, process(t, f, src)); diff != "" {
			t.Errorf("workers=%d differs from sequential (-want, +got):\n%s", workers, diff)
		}
	}
}

func TestSwapControls(t *testing.T) {
	f := NewSwapRedGreen()
	if err := chanswap.FindControl(f.Controls(), ControlSecondChannel).ChangeValue(ChannelBlue); err != nil {
		t.Fatal(err)
	}
	if a, b := f.Channels(); a != ChannelRed || b != ChannelBlue {
		t.Fatalf("got pair %v/%v", a, b)
	}
	if err := chanswap.FindControl(f.Controls(), ControlAlpha).ChangeValue(AlphaDiscard); err != nil {
		t.Fatal(err)
	}
	if err := chanswap.FindControl(f.Controls(), ControlWorkers).ChangeValue(2); err != nil {
		t.Fatal(err)
	} else if f.Workers != 2 {
		t.Errorf("got %d workers, want 2", f.Workers)
	}
	src := newBuffer(t, 1, 1, chanswap.ShapeRGBA8888, []byte{1, 2, 3, 4})
	if diff := cmp.Diff([]byte{3, 2, 1}, process(t, f, src)); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
	if err := chanswap.FindControl(f.Controls(), ControlAlpha).ChangeValue(AlphaMode(5)); err == nil {
		t.Error("expected invalid alpha mode error")
	}
}

func TestSwapInPlace(t *testing.T) {
	src := newBuffer(t, 2, 1, chanswap.ShapeRGBA8888, []byte{255, 0, 10, 7, 0, 128, 200, 9})
	if _, err := NewSwapRedGreen().Process(nil, src, nil); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 255, 10, 7, 128, 0, 200, 9}
	if diff := cmp.Diff(want, src.Buffer()); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}

	f, _ := NewChannelSwap(ChannelRed, ChannelGreen, AlphaDiscard)
	if _, err := f.Process(nil, src, nil); err == nil {
		t.Error("in-place with differing output shape should fail")
	}
}

func TestSwapROI(t *testing.T) {
	src := newBuffer(t, 2, 2, chanswap.ShapeRGB888, []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})
	f := NewSwapRedGreen()
	if err := f.ForShape(chanswap.ShapeRGB888); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 3)
	roi := image.Rect(1, 1, 2, 2)
	d, err := f.Process(dst, src, &roi)
	if err != nil {
		t.Fatal(err)
	}
	if d.Width != 1 || d.Height != 1 {
		t.Errorf("got %dx%d, want 1x1", d.Width, d.Height)
	}
	if diff := cmp.Diff([]byte{11, 10, 12}, dst); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestSwapErrors(t *testing.T) {
	if _, err := NewChannelSwap(Channel(3), ChannelRed, AlphaKeep); err == nil {
		t.Error("expected error for invalid channel")
	}
	if _, err := NewChannelSwap(ChannelRed, ChannelGreen, AlphaMode(-1)); err == nil {
		t.Error("expected error for invalid alpha mode")
	}
	src := newBuffer(t, 1, 1, chanswap.ShapeRGB888, []byte{1, 2, 3})
	if _, err := NewSwapRedGreen().Process(make([]byte, 4), src, nil); err != errShapeMismatch {
		t.Errorf("got %v, want shape mismatch", err)
	}
	f := NewSwapRedGreen()
	if _, err := f.Process(make([]byte, 3), newBuffer(t, 1, 1, chanswap.ShapeRGBA8888, []byte{1, 2, 3, 4}), nil); err == nil {
		t.Error("expected short destination error")
	}
	if err := f.ForShape(chanswap.Shape(0)); err == nil {
		t.Error("expected ForShape error")
	}
	var pf PointFilter
	if _, err := pf.Process(nil, src, nil); err != errNilPointFunc {
		t.Errorf("got %v, want nil PointFunc error", err)
	}
}

// readerOnly hides the ImageBuffered implementation to exercise the ReadAt path.
type readerOnly struct{ b *chanswap.Buffer }

func (r readerOnly) Dims() chanswap.Dims                     { return r.b.Dims() }
func (r readerOnly) ReadAt(p []byte, off int64) (int, error) { return r.b.ReadAt(p, off) }

func TestSwapReaderAtSource(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	src := randomBuffer(rng, t, 9, 17, chanswap.ShapeRGBA8888)
	want := process(t, NewSwapRedGreen(), src)
	f := NewSwapRedGreen()
	f.Workers = 4
	if diff := cmp.Diff(want, process(t, f, readerOnly{src})); diff != "" {
		t.Errorf("ReadAt path differs (-want, +got):\n%s", diff)
	}
}

// shortReader returns fewer bytes than requested without an error past the first row.
type shortReader struct{ readerOnly }

func (r shortReader) ReadAt(p []byte, off int64) (int, error) {
	if off == 0 {
		return r.readerOnly.ReadAt(p, off)
	}
	return 1, nil
}

func TestSwapShortRead(t *testing.T) {
	src := newBuffer(t, 1, 3, chanswap.ShapeRGBA8888, []byte{9, 9, 9, 9, 1, 2, 3, 4, 5, 6, 7, 8})
	for _, workers := range []int{1, 3} {
		f := NewSwapRedGreen()
		f.Workers = workers
		_, err := f.Process(make([]byte, 12), shortReader{readerOnly{src}}, nil)
		if err != io.ErrUnexpectedEOF {
			t.Errorf("workers=%d: got %v, want %v", workers, err, io.ErrUnexpectedEOF)
		}
	}
}
