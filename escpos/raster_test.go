package escpos

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFilled(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRasterHeader(t *testing.T) {
	img := newFilled(16, 300, color.White)
	out := Raster(img)

	assert.Equal(t, []byte{0x1D, 0x76, 0x30, 0x00, 2, 0, 44, 1}, out[:8])
	assert.Len(t, out, 8+2*300)
}

func TestRasterTruncatesPartialByte(t *testing.T) {
	img := newFilled(10, 2, color.Black)
	out := Raster(img)

	require.Len(t, out, 8+2)
	assert.Equal(t, byte(1), out[4], "xL")
	assert.Equal(t, byte(0), out[5], "xH")
	assert.Equal(t, []byte{0xFF, 0xFF}, out[8:])
}

func TestRasterBitPacking(t *testing.T) {
	img := newFilled(8, 1, color.White)
	img.Set(0, 0, color.Black)
	img.Set(7, 0, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	img.Set(3, 0, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	out := Raster(img)
	assert.Equal(t, byte(0b10000001), out[8])
}

func TestRasterThresholdAveragesChannels(t *testing.T) {
	img := newFilled(8, 1, color.White)
	// (255+0+0)/3 = 85 -> dark
	img.Set(1, 0, color.RGBA{R: 255, A: 255})
	// (255+255+0)/3 = 170 -> light
	img.Set(2, 0, color.RGBA{R: 255, G: 255, A: 255})

	out := Raster(img)
	assert.Equal(t, byte(0b01000000), out[8])
}

func TestRasterNonZeroOrigin(t *testing.T) {
	img := image.NewGray(image.Rect(5, 5, 13, 6))
	for x := 5; x < 13; x++ {
		img.SetGray(x, 5, color.Gray{Y: 255})
	}
	img.SetGray(5, 5, color.Gray{Y: 0})

	out := Raster(img)
	assert.Equal(t, byte(0x80), out[8])
}

func TestEncoderImageDelegatesToRaster(t *testing.T) {
	img := newFilled(8, 1, color.Black)
	assert.Equal(t, Raster(img), NewEncoder().Image(img).Build())
}
