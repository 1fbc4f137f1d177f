package canvas

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// All canvases measure text with the same bitmap face, scaled to the font
// size, so label placement does not depend on the output format.
var face = basicfont.Face7x13

const faceHeight = 13.0

func fontScale(f Font) float64 {
	if f.Size <= 0 {
		return 1
	}
	return f.Size / faceHeight
}

func measure(f Font, text string) (width, height float64) {
	s := fontScale(f)
	return float64(font.MeasureString(face, text).Ceil()) * s, faceHeight * s
}

// rasterText renders text at its native face size on a transparent image.
func rasterText(f Font, text string) *image.RGBA {
	w := font.MeasureString(face, text).Ceil()
	if w <= 0 {
		w = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, int(faceHeight)))
	if f.BackColor.A > 0 {
		draw.Draw(img, img.Bounds(), &image.Uniform{C: f.BackColor}, image.Point{}, draw.Src)
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: f.Color},
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return img
}

// rotation returns the screen-space rotation for a counter-clockwise angle
// in degrees. y grows down, so the sine terms flip.
func rotation(angle float64) (cos, sin float64) {
	rad := angle * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

// Rotate turns a pixel-space vector angle degrees counter-clockwise, the way
// DrawRotatedText turns text.
func Rotate(x, y, angle float64) (float64, float64) {
	c, s := rotation(angle)
	return c*x + s*y, -s*x + c*y
}
