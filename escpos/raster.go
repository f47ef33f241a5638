package escpos

import (
	"image"
	"image/color"
)

// darkThreshold is the grey level below which a pixel prints as a dot
const darkThreshold = 128

// Raster converts img into a GS v 0 raster bit image block.
// Only whole bytes are sent per row: a width that is not a multiple of 8
// drops the trailing pixel columns.
func Raster(img image.Image) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	widthBytes := width / 8

	out := make([]byte, 0, 8+widthBytes*height)
	out = append(out, gs, 'v', '0', 0x00)
	out = append(out, lowHigh(widthBytes)...)
	out = append(out, lowHigh(height)...)

	for y := 0; y < height; y++ {
		for xb := 0; xb < widthBytes; xb++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				px := bounds.Min.X + xb*8 + bit
				if isDark(img.At(px, bounds.Min.Y+y)) {
					b |= 1 << (7 - bit)
				}
			}
			out = append(out, b)
		}
	}

	return out
}

// lowHigh splits n into a little-endian 16 bit pair
func lowHigh(n int) []byte {
	return []byte{byte(n % 256), byte((n / 256) % 256)}
}

func isDark(c color.Color) bool {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	gray := (int(n.R) + int(n.G) + int(n.B)) / 3
	return gray < darkThreshold
}
