package camera

import (
	"fmt"
	"image"
	"time"

	"github.com/blackjack/webcam"

	"github.com/dkadlec/presence/internal/vision"
)

// V4L2 fourcc for packed YUYV 4:2:2, the format nearly every UVC webcam
// offers.
const pixelFormatYUYV = webcam.PixelFormat(0x56595559)

// V4L2Source pulls frames from a Video4Linux device.
type V4L2Source struct {
	cam    *webcam.Webcam
	width  int
	height int
}

// OpenV4L2 opens and starts a V4L2 device in YUYV at (or near) the
// requested size. Failure to open or start maps to ErrDeviceUnavailable so
// the session can render its error frame instead of dying.
func OpenV4L2(device string, width, height int) (*V4L2Source, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, device, err)
	}

	_, w, h, err := cam.SetImageFormat(pixelFormatYUYV, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("%w: %s does not support YUYV: %v", ErrDeviceUnavailable, device, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, device, err)
	}

	return &V4L2Source{cam: cam, width: int(w), height: int(h)}, nil
}

// ReadFrame blocks for the next camera frame and converts it to RGBA.
func (s *V4L2Source) ReadFrame() (*vision.Frame, error) {
	for {
		err := s.cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, fmt.Errorf("%w: frame wait failed: %v", ErrDeviceUnavailable, err)
		}

		raw, err := s.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: frame read failed: %v", ErrDeviceUnavailable, err)
		}
		if len(raw) < s.width*s.height*2 {
			// Truncated transfer; try the next frame.
			continue
		}

		return &vision.Frame{
			Image:     yuyvToRGBA(raw, s.width, s.height),
			Timestamp: time.Now(),
		}, nil
	}
}

// Close stops streaming and releases the device.
func (s *V4L2Source) Close() error {
	s.cam.StopStreaming()
	return s.cam.Close()
}

// yuyvToRGBA converts a packed YUYV 4:2:2 buffer using BT.601 coefficients.
func yuyvToRGBA(raw []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x += 2 {
			i := (y*width + x) * 2
			y0 := float64(raw[i])
			u := float64(raw[i+1]) - 128
			y1 := float64(raw[i+2])
			v := float64(raw[i+3]) - 128

			setYUV(img, x, y, y0, u, v)
			if x+1 < width {
				setYUV(img, x+1, y, y1, u, v)
			}
		}
	}
	return img
}

func setYUV(img *image.RGBA, x, y int, lum, u, v float64) {
	r := clampByte(lum + 1.402*v)
	g := clampByte(lum - 0.344*u - 0.714*v)
	b := clampByte(lum + 1.772*u)

	off := img.PixOffset(x, y)
	img.Pix[off+0] = r
	img.Pix[off+1] = g
	img.Pix[off+2] = b
	img.Pix[off+3] = 255
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
