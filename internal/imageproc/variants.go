// Package imageproc derives the fixed set of resized variants from one
// decoded source image (§4.2 step 3), grounded on the teacher pack's one
// image-conversion repo (sdmichelini-imagegen/internal/imageconv): decode
// once, resize, re-encode. That repo hand-rolls a nearest-neighbor resizer;
// here we use golang.org/x/image/draw's quality scaler since the pipeline's
// output (product photography variants) needs better interpolation than
// nearest-neighbor gives an icon-sized favicon.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/yourorg/imageforge/internal/domain"
)

// jpegQuality matches §4.2 step 3's fixed quality 90.
const jpegQuality = 90

// Variant is one resized-and-encoded output, ready for upload.
type Variant struct {
	Preset Preset
	Bytes  []byte
	Width  int
	Height int
}

// Preset mirrors domain.Preset to keep this package import-light for
// consumers that only need image math, but the pipeline always uses
// domain.Preset values — DeriveAll takes and returns domain types directly.
type Preset = domain.Preset

// DeriveAll decodes src once and produces one variant per size preset via
// center-crop-then-fit to the target aspect ratio, JPEG quality 90 (§4.2
// step 3). A decode failure or any single variant encoding failure is
// terminal for the task, per spec.
func DeriveAll(src []byte) ([]Variant, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	variants := make([]Variant, 0, len(domain.AllPresets))
	for _, preset := range domain.AllPresets {
		dims, ok := domain.PresetDimensions[preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", preset)
		}
		width, height := dims[0], dims[1]

		cropped := centerCropToAspect(img, width, height)
		resized := resizeTo(cropped, width, height)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode variant %q: %w", preset, err)
		}

		variants = append(variants, Variant{
			Preset: preset,
			Bytes:  buf.Bytes(),
			Width:  width,
			Height: height,
		})
	}

	return variants, nil
}

// centerCropToAspect crops src to the target width:height aspect ratio,
// keeping the centered region, before resizeTo scales it to exact pixel
// dimensions. This is the "center-crop-then-fit" behavior §4.2 step 3 names.
func centerCropToAspect(src image.Image, targetW, targetH int) image.Image {
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return src
	}

	targetRatio := float64(targetW) / float64(targetH)
	srcRatio := float64(srcW) / float64(srcH)

	cropW, cropH := srcW, srcH
	if srcRatio > targetRatio {
		// source is wider than target: crop width
		cropW = int(float64(srcH) * targetRatio)
	} else if srcRatio < targetRatio {
		// source is taller than target: crop height
		cropH = int(float64(srcW) / targetRatio)
	}

	offsetX := b.Min.X + (srcW-cropW)/2
	offsetY := b.Min.Y + (srcH-cropH)/2
	rect := image.Rect(offsetX, offsetY, offsetX+cropW, offsetY+cropH)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := src.(subImager); ok {
		return si.SubImage(rect)
	}

	// Fallback for image.Image implementations without SubImage: copy the
	// crop region into a fresh RGBA.
	dst := image.NewRGBA(image.Rect(0, 0, cropW, cropH))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}

// resizeTo scales src to exactly width x height using a quality
// interpolator (bilinear), chosen over nearest-neighbor because these
// variants are customer-facing product images, not icon assets.
func resizeTo(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
