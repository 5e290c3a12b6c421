package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Downscale shrinks an image by an integer factor. Detection runs on the
// small image; boxes are scaled back up by the same factor for rendering.
func Downscale(img image.Image, factor int) *image.RGBA {
	if factor <= 1 {
		bounds := img.Bounds()
		out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
		return out
	}

	bounds := img.Bounds()
	w := bounds.Dx() / factor
	h := bounds.Dy() / factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, bounds, draw.Src, nil)
	return small
}

// EncodeJPEG encodes an image as JPEG, the input format the dlib recognizer
// consumes.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// UpscaleRect maps a bounding box from the downscaled detection space back to
// full-frame coordinates.
func UpscaleRect(r image.Rectangle, factor int) image.Rectangle {
	if factor <= 1 {
		return r
	}
	return image.Rect(r.Min.X*factor, r.Min.Y*factor, r.Max.X*factor, r.Max.Y*factor)
}
