package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkadlec/presence/internal/camera"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/ledger"
	"github.com/dkadlec/presence/internal/match"
	"github.com/dkadlec/presence/internal/vision"
)

// scriptedSource yields a fixed number of synthetic frames, then ends (or
// fails with a configured error).
type scriptedSource struct {
	frames int
	endErr error
	reads  int
	closed bool
}

func (s *scriptedSource) ReadFrame() (*vision.Frame, error) {
	if s.reads >= s.frames {
		if s.endErr != nil {
			return nil, s.endErr
		}
		return nil, camera.ErrSourceEnded
	}
	s.reads++
	return &vision.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 64, 48)),
		Timestamp: time.Now(),
	}, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

// scriptedExtractor pops one face set per Detect call; after the script is
// exhausted the last set repeats.
type scriptedExtractor struct {
	script [][]vision.Face
	calls  int
}

func (e *scriptedExtractor) Detect(_ []byte) ([]vision.Face, error) {
	i := e.calls
	e.calls++
	if len(e.script) == 0 {
		return nil, nil
	}
	if i >= len(e.script) {
		i = len(e.script) - 1
	}
	return e.script[i], nil
}

type byteEncoder struct{}

func (byteEncoder) EncodeFirst(imageData []byte) (vision.Descriptor, bool, error) {
	var d vision.Descriptor
	for i, b := range imageData {
		if i >= vision.DescriptorSize {
			break
		}
		d[i] = float32(b)
	}
	return d, true, nil
}

func descWith(v float32) vision.Descriptor {
	var d vision.Descriptor
	d[0] = v
	return d
}

// eyeFace builds a face whose 68-point landmark set reads as open or
// closed eyes.
func eyeFace(open bool) vision.Face {
	height := 3 // EAR 0.6
	if !open {
		height = 1 // EAR 0.2
	}
	pts := make([]image.Point, vision.LandmarkCount)
	setEye := func(start, x0 int) {
		pts[start+0] = image.Point{X: x0, Y: 10}
		pts[start+1] = image.Point{X: x0 + 3, Y: 10 - height}
		pts[start+2] = image.Point{X: x0 + 7, Y: 10 - height}
		pts[start+3] = image.Point{X: x0 + 10, Y: 10}
		pts[start+4] = image.Point{X: x0 + 7, Y: 10 + height}
		pts[start+5] = image.Point{X: x0 + 3, Y: 10 + height}
	}
	setEye(vision.RightEyeStart, 0)
	setEye(vision.LeftEyeStart, 30)
	return vision.Face{Box: image.Rect(2, 2, 12, 12), Landmarks: pts}
}

// knownFace is a face whose descriptor matches a gallery entry built with
// byteEncoder.
func knownFace(v float32) vision.Face {
	return vision.Face{Box: image.Rect(2, 2, 12, 12), Descriptor: descWith(v)}
}

func testGallery(t *testing.T, adds map[string][]byte) *gallery.Gallery {
	t.Helper()
	g, err := gallery.Open(filepath.Join(t.TempDir(), "gallery.json"), byteEncoder{})
	if err != nil {
		t.Fatalf("failed to open gallery: %v", err)
	}
	for name, img := range adds {
		if err := g.Add(name, img); err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
	}
	return g
}

func runSession(t *testing.T, c *Controller, maxEmits int) int {
	t.Helper()
	emitted := 0
	err := c.Run(context.Background(), func(jpeg []byte) error {
		if len(jpeg) == 0 {
			t.Error("emitted an empty frame")
		}
		emitted++
		if emitted >= maxEmits {
			return errors.New("client gone")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("session run failed: %v", err)
	}
	return emitted
}

func TestFullSessionRecordsAndFreezes(t *testing.T) {
	gal := testGallery(t, map[string][]byte{"alice": {50}})
	led := ledger.New(t.TempDir())

	// One closed-then-open blink passes the (minRun=1, required=1)
	// challenge, then alice's face shows up.
	ext := &scriptedExtractor{script: [][]vision.Face{
		{eyeFace(false)},
		{eyeFace(true)},
		{knownFace(50)},
	}}
	src := &scriptedSource{frames: 20}

	c := New(src, ext, gal, led, match.NewMatcher(0.6), Options{
		Recorder:        "Prof. Smith",
		Subject:         "Math",
		Eligible:        []string{"alice"},
		MinClosedFrames: 1,
		BlinksRequired:  1,
	})

	runSession(t, c, 10)

	if c.Phase() != PhaseFrozen {
		t.Errorf("expected frozen session, got phase %v", c.Phase())
	}
	if !src.closed {
		t.Error("source must be closed when the run ends")
	}

	records, err := led.ReadDay(time.Now(), "Math")
	if err != nil {
		t.Fatalf("ledger read failed: %v", err)
	}
	if len(records) != 1 || records[0].Name != "alice" {
		t.Fatalf("expected one record for alice, got %+v", records)
	}
	if records[0].TakenBy != "Prof. Smith" {
		t.Errorf("expected recorder Prof. Smith, got %q", records[0].TakenBy)
	}
}

func TestFrozenSessionStopsPullingFrames(t *testing.T) {
	gal := testGallery(t, map[string][]byte{"alice": {50}})
	led := ledger.New(t.TempDir())

	ext := &scriptedExtractor{script: [][]vision.Face{
		{eyeFace(false)},
		{eyeFace(true)},
		{knownFace(50)},
	}}
	src := &scriptedSource{frames: 100}

	c := New(src, ext, gal, led, match.NewMatcher(0.6), Options{
		Recorder:        "Prof. Smith",
		Subject:         "Math",
		MinClosedFrames: 1,
		BlinksRequired:  1,
	})

	emitted := runSession(t, c, 8)

	if c.Phase() != PhaseFrozen {
		t.Fatalf("expected frozen session, got phase %v", c.Phase())
	}
	// Three frames reach the controller before the freeze; every emission
	// after that re-uses the cache without pulling.
	if src.reads != 3 {
		t.Errorf("expected 3 frames pulled, got %d", src.reads)
	}
	if emitted != 8 {
		t.Errorf("expected 8 emissions including frozen repeats, got %d", emitted)
	}
}

func TestDecimationReusesBoxes(t *testing.T) {
	gal := testGallery(t, nil)
	led := ledger.New(t.TempDir())

	// Unknown face on every detection; the session stays in Identifying.
	ext := &scriptedExtractor{script: [][]vision.Face{{knownFace(99)}}}
	src := &scriptedSource{frames: 12}

	c := New(src, ext, gal, led, match.NewMatcher(0.6), Options{
		Recorder:    "Prof. Smith",
		Subject:     "Math",
		DetectEvery: 5,
	})
	c.phase = PhaseIdentifying

	runSession(t, c, 100)

	// 12 identifying frames with N=5: detection at frames 0, 5 and 10.
	if ext.calls != 3 {
		t.Errorf("expected 3 detector calls for 12 frames at N=5, got %d", ext.calls)
	}
	if c.Phase() != PhaseIdentifying {
		t.Errorf("unknown faces must not freeze the session, got phase %v", c.Phase())
	}
}

func TestAlreadyRecordedFreezesWithoutWriting(t *testing.T) {
	gal := testGallery(t, map[string][]byte{"alice": {50}})
	dir := t.TempDir()
	led := ledger.New(dir)

	// Alice is already in today's ledger.
	if _, err := led.TryRecord("alice", "Prof. Jones", "Math", time.Now()); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	ext := &scriptedExtractor{script: [][]vision.Face{{knownFace(50)}}}
	src := &scriptedSource{frames: 10}

	c := New(src, ext, gal, led, match.NewMatcher(0.6), Options{
		Recorder: "Prof. Smith",
		Subject:  "Math",
	})
	c.phase = PhaseIdentifying

	runSession(t, c, 10)

	if c.Phase() != PhaseFrozen {
		t.Errorf("an already-recorded identity must freeze the session, got %v", c.Phase())
	}
	if !strings.Contains(c.banner.Text, "Already Marked") {
		t.Errorf("expected Already Marked banner, got %q", c.banner.Text)
	}

	records, _ := led.ReadDay(time.Now(), "Math")
	if len(records) != 1 {
		t.Errorf("no duplicate may be written, got %d records", len(records))
	}
}

func TestRecorderIsNeverMarked(t *testing.T) {
	gal := testGallery(t, map[string][]byte{"Prof. Smith": {70}})
	led := ledger.New(t.TempDir())

	ext := &scriptedExtractor{script: [][]vision.Face{{knownFace(70)}}}
	src := &scriptedSource{frames: 10}

	c := New(src, ext, gal, led, match.NewMatcher(0.6), Options{
		Recorder: "Prof. Smith",
		Subject:  "Math",
	})
	c.phase = PhaseIdentifying

	runSession(t, c, 20)

	if c.Phase() != PhaseIdentifying {
		t.Errorf("recognizing the recorder must not freeze the session, got %v", c.Phase())
	}
	records, _ := led.ReadDay(time.Now(), "Math")
	if len(records) != 0 {
		t.Errorf("the recorder must never be marked, got %+v", records)
	}
}

func TestIneligibleIdentityIsNotMarked(t *testing.T) {
	gal := testGallery(t, map[string][]byte{"mallory": {30}})
	led := ledger.New(t.TempDir())

	ext := &scriptedExtractor{script: [][]vision.Face{{knownFace(30)}}}
	src := &scriptedSource{frames: 10}

	c := New(src, ext, gal, led, match.NewMatcher(0.6), Options{
		Recorder: "Prof. Smith",
		Subject:  "Math",
		Eligible: []string{"alice", "bob"},
	})
	c.phase = PhaseIdentifying

	runSession(t, c, 20)

	records, _ := led.ReadDay(time.Now(), "Math")
	if len(records) != 0 {
		t.Errorf("identities outside the roster must not be marked, got %+v", records)
	}
}

func TestDeviceUnavailableEmitsErrorFrames(t *testing.T) {
	gal := testGallery(t, nil)
	led := ledger.New(t.TempDir())

	src := &scriptedSource{frames: 0, endErr: camera.ErrDeviceUnavailable}
	c := New(src, &scriptedExtractor{}, gal, led, match.NewMatcher(0.6), Options{
		Recorder: "Prof. Smith",
		Subject:  "Math",
	})

	emitted := runSession(t, c, 5)
	if emitted != 5 {
		t.Errorf("expected 5 persistent error frames, got %d", emitted)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	gal := testGallery(t, nil)
	led := ledger.New(t.TempDir())

	src := &scriptedSource{frames: 1_000_000}
	c := New(src, &scriptedExtractor{}, gal, led, match.NewMatcher(0.6), Options{
		Recorder: "Prof. Smith",
		Subject:  "Math",
	})

	ctx, cancel := context.WithCancel(context.Background())
	emitted := 0
	err := c.Run(ctx, func([]byte) error {
		emitted++
		if emitted == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !src.closed {
		t.Error("source must be closed after cancellation")
	}
}

func TestMJPEGStreamFraming(t *testing.T) {
	var buf bytes.Buffer
	s := NewMJPEGStream(&buf)

	payload := []byte{0xff, 0xd8, 0xff, 0xd9}
	if err := s.Emit(payload); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "--frame\r\n") {
		t.Errorf("part must start with the boundary, got %q", out)
	}
	if !strings.Contains(out, "Content-Type: image/jpeg\r\n") {
		t.Error("missing part content type")
	}
	if !strings.Contains(out, "Content-Length: 4\r\n") {
		t.Error("missing part content length")
	}
	if !strings.HasSuffix(out, string(payload)+"\r\n") {
		t.Error("payload must be followed by a trailing CRLF")
	}
	if StreamContentType != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("unexpected stream content type %q", StreamContentType)
	}
}

func TestPadBoxClampsToFrame(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	// An interior box grows by width/8 on every side.
	box := image.Rect(80, 80, 160, 160)
	padded := padBox(box, bounds)
	want := image.Rect(70, 70, 170, 170)
	if padded != want {
		t.Errorf("expected %v, got %v", want, padded)
	}

	// A box at the edge clamps to the frame.
	edge := image.Rect(0, 0, 80, 80)
	padded = padBox(edge, bounds)
	if padded.Min.X < 0 || padded.Min.Y < 0 {
		t.Errorf("padding must clamp to frame bounds, got %v", padded)
	}
}

func TestErrorFrame(t *testing.T) {
	img := ErrorFrame(640, 480, "Error: Camera not found")
	if got := img.Bounds(); got.Dx() != 640 || got.Dy() != 480 {
		t.Fatalf("unexpected error frame size %v", got)
	}

	// The frame carries some white text on black.
	whitePixels := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 255 && img.Pix[i+1] == 255 && img.Pix[i+2] == 255 {
			whitePixels++
		}
	}
	if whitePixels == 0 {
		t.Error("error frame should contain rendered text")
	}
}
