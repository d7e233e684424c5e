package ocr

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

func TestNormalizeProducesBinaryPNG(t *testing.T) {
	out, err := Normalize(testImage(t))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("output is %T, want *image.Gray", img)
	}
	for i, p := range gray.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("pixel %d has value %d after binarization", i, p)
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	in := testImage(t)
	a, err := Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	b, err := Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("Normalize is not deterministic")
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"))
	if !errors.Is(err, ErrPreprocessingFailed) {
		t.Fatalf("got %v, want ErrPreprocessingFailed", err)
	}
}

func TestNormalizeFileMissing(t *testing.T) {
	_, err := NormalizeFile("/nonexistent/scan.png")
	if !errors.Is(err, ErrPreprocessingFailed) {
		t.Fatalf("got %v, want ErrPreprocessingFailed", err)
	}
}

func TestResize(t *testing.T) {
	tall := image.NewGray(image.Rect(0, 0, 100, 400))
	got := resize(tall, 200)
	if got.Bounds().Dy() != 200 {
		t.Fatalf("height %d, want 200", got.Bounds().Dy())
	}
	if got.Bounds().Dx() != 50 {
		t.Fatalf("width %d, want aspect preserved at 50", got.Bounds().Dx())
	}

	short := image.NewGray(image.Rect(0, 0, 100, 150))
	if got := resize(short, 200); got != short {
		t.Fatal("images at or below the target height must not be enlarged")
	}
}

func TestStretchHistogram(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.Pix = []uint8{100, 150, 200}
	stretchHistogram(img)
	if img.Pix[0] != 0 || img.Pix[2] != 255 {
		t.Fatalf("range not stretched to full scale: %v", img.Pix)
	}
	if img.Pix[1] != 128 {
		t.Fatalf("midpoint mapped to %d, want 128", img.Pix[1])
	}

	flat := image.NewGray(image.Rect(0, 0, 2, 1))
	flat.Pix = []uint8{90, 90}
	stretchHistogram(flat)
	if flat.Pix[0] != 90 || flat.Pix[1] != 90 {
		t.Fatalf("flat image modified: %v", flat.Pix)
	}
}

func TestBinarize(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.Pix = []uint8{0, 179, 180, 255}
	binarize(img, 180)
	want := []uint8{0, 0, 255, 255}
	for i := range want {
		if img.Pix[i] != want[i] {
			t.Fatalf("pixel %d = %d, want %d", i, img.Pix[i], want[i])
		}
	}
}
