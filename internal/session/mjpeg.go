package session

import (
	"fmt"
	"io"
	"net/http"
)

// Boundary is the multipart boundary of the outgoing frame stream.
const Boundary = "frame"

// StreamContentType is the Content-Type of an MJPEG session stream.
const StreamContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// MJPEGStream writes boundary-delimited JPEG parts to an HTTP response,
// flushing after every frame so the client renders them as they arrive.
type MJPEGStream struct {
	w       io.Writer
	flusher http.Flusher
}

// NewMJPEGStream wraps a response writer. Pass the stream's Emit to
// Controller.Run.
func NewMJPEGStream(w io.Writer) *MJPEGStream {
	s := &MJPEGStream{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Emit writes one JPEG frame part.
func (s *MJPEGStream) Emit(jpegData []byte) error {
	if _, err := fmt.Fprintf(s.w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(jpegData)); err != nil {
		return err
	}
	if _, err := s.w.Write(jpegData); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "\r\n"); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
