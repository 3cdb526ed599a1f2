package rasterio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/soypat/chanswap"
)

func testBuffer(t *testing.T, shape chanswap.Shape) *chanswap.Buffer {
	t.Helper()
	b, err := chanswap.NewBuffer(3, 2, shape)
	if err != nil {
		t.Fatal(err)
	}
	for i := range b.Buffer() {
		b.Buffer()[i] = byte(40*i + 7)
	}
	if shape == chanswap.ShapeRGBA8888 {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				r, g, bl, _ := b.Pixel(x, y)
				b.SetPixel(x, y, r, g, bl, 255)
			}
		}
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := testBuffer(t, chanswap.ShapeRGB888)
	for _, format := range []Format{FormatPNG, FormatBMP, FormatTIFF} {
		t.Run(format.String(), func(t *testing.T) {
			path := filepath.Join(dir, "img."+format.String())
			if err := Save(path, want, format); err != nil {
				t.Fatal(err)
			}
			got, gotFormat, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if gotFormat != format {
				t.Errorf("got format %v, want %v", gotFormat, format)
			}
			if diff := cmp.Diff(want.Dims(), got.Dims()); diff != "" {
				t.Errorf("dims mismatch (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.Buffer(), got.Buffer()); diff != "" {
				t.Errorf("pixels mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestPNGKeepsAlpha(t *testing.T) {
	b, _ := chanswap.NewBuffer(2, 1, chanswap.ShapeRGBA8888)
	b.SetPixel(0, 0, 1, 2, 3, 4)
	b.SetPixel(1, 0, 5, 6, 7, 0)
	var w bytes.Buffer
	if err := Encode(&w, b, FormatPNG); err != nil {
		t.Fatal(err)
	}
	got, format, err := Decode(&w)
	if err != nil {
		t.Fatal(err)
	}
	if format != FormatPNG {
		t.Errorf("got format %v", format)
	}
	if diff := cmp.Diff(b.Buffer(), got.Buffer()); diff != "" {
		t.Errorf("pixels mismatch (-want, +got):\n%s", diff)
	}
}

func TestLoadNotFound(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	_, _, err = Load(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("directory: got %v, want ErrNotFound", err)
	}
}

func TestLoadDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := Load(path)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

func TestSaveIOError(t *testing.T) {
	b := testBuffer(t, chanswap.ShapeRGB888)
	err := Save(filepath.Join(t.TempDir(), "no", "such", "dir", "out.png"), b, FormatPNG)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("got %v, want ErrIO", err)
	}
	if err := Save(filepath.Join(t.TempDir(), "out.png"), b, FormatUnknown); !errors.Is(err, ErrIO) {
		t.Fatalf("unknown format: got %v, want ErrIO", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := testBuffer(t, chanswap.ShapeRGBA8888)
	if err := Save(path, b, FormatPNG); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.png":     FormatPNG,
		"a.PNG":     FormatPNG,
		"b/c.bmp":   FormatBMP,
		"d.tif":     FormatTIFF,
		"d.tiff":    FormatTIFF,
		"e.jpg":     FormatUnknown,
		"no_suffix": FormatUnknown,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", path, got, want)
		}
	}
}
