package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/imageforge/internal/domain"
)

func sourceJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestDeriveAllProducesEveryPreset(t *testing.T) {
	variants, err := DeriveAll(sourceJPEG(t, 640, 480))
	require.NoError(t, err)
	require.Len(t, variants, len(domain.AllPresets))

	seen := make(map[domain.Preset]Variant)
	for _, v := range variants {
		seen[v.Preset] = v
	}
	for _, preset := range domain.AllPresets {
		v, ok := seen[preset]
		require.True(t, ok, "missing preset %q", preset)
		dims := domain.PresetDimensions[preset]
		require.Equal(t, dims[0], v.Width)
		require.Equal(t, dims[1], v.Height)
		require.NotEmpty(t, v.Bytes)

		decoded, err := jpeg.Decode(bytes.NewReader(v.Bytes))
		require.NoError(t, err)
		require.Equal(t, dims[0], decoded.Bounds().Dx())
		require.Equal(t, dims[1], decoded.Bounds().Dy())
	}
}

func TestDeriveAllRejectsGarbageBytes(t *testing.T) {
	_, err := DeriveAll([]byte("not an image"))
	require.Error(t, err)
}

func TestDeriveAllHandlesTallSource(t *testing.T) {
	variants, err := DeriveAll(sourceJPEG(t, 100, 900))
	require.NoError(t, err)
	require.Len(t, variants, len(domain.AllPresets))
}
