package session

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	colorRed   = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	colorGreen = color.RGBA{R: 40, G: 200, B: 60, A: 255}
	colorAmber = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	colorWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBlack = color.RGBA{A: 255}
)

const (
	boxThickness = 2
	labelHeight  = 18
)

// annotate draws the face boxes, labels and the session banner onto the
// full frame.
func (c *Controller) annotate(img *image.RGBA) {
	for _, f := range c.lastFaces {
		box := padBox(f.Box, img.Bounds())
		col := stateColor(f.State)

		drawRectOutline(img, box, col, boxThickness)

		name := f.Name
		if name == "" {
			name = "Unknown"
		}
		drawLabel(img, box, name, col)
	}

	if c.banner.Text != "" {
		drawBanner(img, c.banner.Text, bannerColorRGBA(c.banner.Color))
	}
}

func stateColor(s faceState) color.RGBA {
	switch s {
	case faceRecognized:
		return colorGreen
	case faceAlreadyMarked:
		return colorAmber
	default:
		return colorRed
	}
}

func bannerColorRGBA(c bannerColor) color.RGBA {
	switch c {
	case bannerSuccess:
		return colorGreen
	case bannerWarning:
		return colorAmber
	default:
		return colorRed
	}
}

// padBox grows a box by an eighth of its width on every side and clamps it
// to the frame bounds.
func padBox(box image.Rectangle, bounds image.Rectangle) image.Rectangle {
	pad := box.Dx() / 8
	padded := image.Rect(box.Min.X-pad, box.Min.Y-pad, box.Max.X+pad, box.Max.Y+pad)
	return padded.Intersect(bounds)
}

// drawRectOutline draws an unfilled rectangle of the given thickness.
func drawRectOutline(img *image.RGBA, r image.Rectangle, col color.RGBA, thickness int) {
	src := &image.Uniform{C: col}
	top := image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness)
	bottom := image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y)
	left := image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y)
	right := image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y)
	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(img, edge.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel paints a filled name bar along the bottom edge of the box.
func drawLabel(img *image.RGBA, box image.Rectangle, text string, col color.RGBA) {
	bar := image.Rect(box.Min.X, box.Max.Y-labelHeight, box.Max.X, box.Max.Y)
	bar = bar.Intersect(img.Bounds())
	draw.Draw(img, bar, &image.Uniform{C: col}, image.Point{}, draw.Src)

	drawText(img, text, box.Min.X+4, box.Max.Y-5, colorWhite)
}

// drawBanner paints the instruction text near the top-left corner.
func drawBanner(img *image.RGBA, text string, col color.RGBA) {
	drawText(img, text, 20, 40, col)
}

// drawText renders text with the fixed-width basicfont face; (x, y) is the
// text baseline.
func drawText(img *image.RGBA, text string, x, y int, col color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: col},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// ErrorFrame renders the static frame shown when the camera device is
// unavailable.
func ErrorFrame(width, height int, text string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: colorBlack}, image.Point{}, draw.Src)

	// Roughly centered; basicfont glyphs are 7px wide.
	x := (width - len(text)*7) / 2
	if x < 0 {
		x = 0
	}
	drawText(img, text, x, height/2, colorWhite)
	return img
}
