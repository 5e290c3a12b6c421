// Package camera abstracts the video frame source feeding an attendance
// session.
package camera

import (
	"errors"

	"github.com/dkadlec/presence/internal/vision"
)

// ErrDeviceUnavailable is reported when the camera device is absent or
// unreadable. The session renders a persistent error frame instead of
// terminating.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// ErrSourceEnded is reported when the frame stream has ended normally.
var ErrSourceEnded = errors.New("frame source ended")

// Source is a pull-based frame producer. Implementations are used by a
// single session loop and need not be safe for concurrent reads.
type Source interface {
	// ReadFrame blocks until the next frame is available. It returns
	// ErrDeviceUnavailable when the device cannot deliver frames and
	// ErrSourceEnded when the stream is over.
	ReadFrame() (*vision.Frame, error)

	// Close releases the device.
	Close() error
}
