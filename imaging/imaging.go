// Package imaging loads pictures and prepares them for raster printing.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Load decodes a png, jpeg, gif, bmp or webp file
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// FitWidth returns img flattened onto white and, when wider than maxDots,
// scaled down to maxDots keeping the aspect ratio. Narrower images are
// never enlarged. The result has its origin at (0, 0).
func FitWidth(img image.Image, maxDots int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxDots > 0 && w > maxDots {
		h = h * maxDots / w
		if h < 1 {
			h = 1
		}
		w = maxDots
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	}
	return dst
}
