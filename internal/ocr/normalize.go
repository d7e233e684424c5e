package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// normalizeTargetHeight is the page height the normalizer scales to.
	// Images shorter than this are never enlarged.
	normalizeTargetHeight = 2000

	// binarizeThreshold separates ink from paper after histogram
	// normalization, on the 0-255 gray scale.
	binarizeThreshold = 180

	sharpenStrength = 0.8
)

// NormalizeFile reads the image at path and returns an OCR-ready PNG buffer.
func NormalizeFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPreprocessingFailed, path, err)
	}
	return Normalize(data)
}

// Normalize transforms an encoded image into a buffer suitable for OCR:
// resize to a fixed height, grayscale, histogram stretch, sharpen, and
// binarize, encoded as PNG. The transform is deterministic and does not
// modify the input.
func Normalize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", ErrPreprocessingFailed, err)
	}

	gray := toGray(resize(src, normalizeTargetHeight))
	stretchHistogram(gray)
	gray = sharpen(gray, sharpenStrength)
	binarize(gray, binarizeThreshold)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("%w: encode png: %w", ErrPreprocessingFailed, err)
	}
	return buf.Bytes(), nil
}

// resize scales src to targetHeight preserving aspect ratio. Images already
// at or below the target keep their original resolution.
func resize(src image.Image, targetHeight int) image.Image {
	b := src.Bounds()
	if b.Dy() <= targetHeight {
		return src
	}
	w := int(float64(b.Dx()) * float64(targetHeight) / float64(b.Dy()))
	if w < 1 {
		w = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// stretchHistogram linearly maps the observed intensity range onto the full
// 0-255 scale in place. A flat image is left untouched.
func stretchHistogram(img *image.Gray) {
	min, max := uint8(255), uint8(0)
	for _, p := range img.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if min >= max {
		return
	}
	scale := 255.0 / float64(max-min)
	for i, p := range img.Pix {
		img.Pix[i] = uint8(float64(p-min)*scale + 0.5)
	}
}

// sharpen applies an unsharp 3x3 kernel with the given strength.
func sharpen(img *image.Gray, amount float64) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	copy(out.Pix, img.Pix)

	center := 1 + 4*amount
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*img.Stride + x
			v := center*float64(img.Pix[i]) -
				amount*float64(img.Pix[i-1]) -
				amount*float64(img.Pix[i+1]) -
				amount*float64(img.Pix[i-img.Stride]) -
				amount*float64(img.Pix[i+img.Stride])
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.Pix[y*out.Stride+x] = uint8(v + 0.5)
		}
	}
	return out
}

func binarize(img *image.Gray, threshold uint8) {
	for i, p := range img.Pix {
		if p >= threshold {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = 0
		}
	}
}
