package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailResizesWideImages(t *testing.T) {
	src := pngBytes(t, 900, 600)

	out, err := Thumbnail(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if got := img.Bounds().Dx(); got != 300 {
		t.Errorf("thumbnail width = %d, want 300", got)
	}
	if got := img.Bounds().Dy(); got != 200 {
		t.Errorf("thumbnail height = %d, want 200", got)
	}
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	src := pngBytes(t, 120, 80)

	out, err := Thumbnail(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if got := img.Bounds().Dx(); got != 120 {
		t.Errorf("thumbnail width = %d, want 120", got)
	}
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	_, err := Thumbnail(strings.NewReader("not an image"))
	if err == nil {
		t.Fatal("Thumbnail() accepted non-image data")
	}
}

func TestNewKeyKeepsExtension(t *testing.T) {
	key := NewKey("screenshots", "page.png")
	if !strings.HasPrefix(key, "screenshots/") {
		t.Errorf("key %q missing prefix", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("key %q missing extension", key)
	}
	if key == NewKey("screenshots", "page.png") {
		t.Error("consecutive keys collided")
	}
}
