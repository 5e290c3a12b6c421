package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"

	"github.com/Kagami/go-face"
	_ "golang.org/x/image/bmp"
)

// Dlib wraps the go-face recognizer. The models dir must contain the dlib
// face detector, the 68-point shape predictor and the resnet descriptor
// model; without the 68-point predictor no eye landmarks are produced and
// the liveness challenge can never pass.
type Dlib struct {
	rec *face.Recognizer
}

// NewDlib loads the dlib models from modelsDir.
func NewDlib(modelsDir string) (*Dlib, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models from %s: %w", modelsDir, err)
	}
	return &Dlib{rec: rec}, nil
}

// Detect finds every face in a JPEG image and returns boxes, landmarks and
// descriptors in the image's coordinate space.
func (d *Dlib) Detect(jpegData []byte) ([]Face, error) {
	found, err := d.rec.Recognize(jpegData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	faces := make([]Face, 0, len(found))
	for _, f := range found {
		faces = append(faces, Face{
			Box:        f.Rectangle,
			Landmarks:  landmarks(f.Shapes),
			Descriptor: Descriptor(f.Descriptor),
		})
	}
	return faces, nil
}

// EncodeFirst computes the descriptor of the first detected face in a
// reference image (any decodable format). Returns ok=false when the image
// contains no detectable face.
func (d *Dlib) EncodeFirst(imageData []byte) (Descriptor, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Descriptor{}, false, fmt.Errorf("failed to decode reference image: %w", err)
	}

	jpegData, err := EncodeJPEG(img, 90)
	if err != nil {
		return Descriptor{}, false, err
	}

	faces, err := d.Detect(jpegData)
	if err != nil {
		return Descriptor{}, false, err
	}
	if len(faces) == 0 {
		return Descriptor{}, false, nil
	}
	return faces[0].Descriptor, true, nil
}

// Close releases the dlib models.
func (d *Dlib) Close() {
	d.rec.Close()
}

// landmarks keeps a shape set only when it is the full 68-point layout the
// eye sub-ranges are defined against.
func landmarks(shapes []image.Point) []image.Point {
	if len(shapes) != LandmarkCount {
		return nil
	}
	pts := make([]image.Point, LandmarkCount)
	copy(pts, shapes)
	return pts
}
