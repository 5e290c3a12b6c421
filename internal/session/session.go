// Package session runs one attendance-taking video session: a blink
// liveness challenge, then identity matching against the gallery, then
// deduplicated ledger writes, emitting an annotated MJPEG frame per tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/dkadlec/presence/internal/camera"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/ledger"
	"github.com/dkadlec/presence/internal/liveness"
	"github.com/dkadlec/presence/internal/match"
	"github.com/dkadlec/presence/internal/vision"
)

// Phase is the session state. Transitions only move forward:
// Challenging -> Identifying -> Frozen.
type Phase int

const (
	// PhaseChallenging runs the blink liveness challenge.
	PhaseChallenging Phase = iota
	// PhaseIdentifying matches detected faces against the gallery and
	// records attendance.
	PhaseIdentifying
	// PhaseFrozen re-emits the last annotated frame; terminal per session.
	PhaseFrozen
)

func (p Phase) String() string {
	switch p {
	case PhaseChallenging:
		return "challenging"
	case PhaseIdentifying:
		return "identifying"
	case PhaseFrozen:
		return "frozen"
	}
	return "unknown"
}

// frozenFrameInterval paces re-emission of the cached frame.
const frozenFrameInterval = 66 * time.Millisecond

// Extractor finds faces in a JPEG-encoded image.
type Extractor interface {
	Detect(jpegData []byte) ([]vision.Face, error)
}

// Options configures one session.
type Options struct {
	Recorder string   // recorder identity; never marked against themself
	Subject  string   // subject the attendance is taken for
	Eligible []string // eligible identity names; nil means everyone enrolled

	DownscaleFactor int // detection downscale, default 4
	DetectEvery     int // identifying-phase decimation, default 5

	EARThreshold    float64
	MinClosedFrames int
	BlinksRequired  int
}

// Controller orchestrates one video session. Exactly one goroutine drives
// it via Run; it is not shared.
type Controller struct {
	source    camera.Source
	extractor Extractor
	matcher   *match.Matcher
	gallery   *gallery.Gallery
	ledger    *ledger.Ledger
	detector  *liveness.Detector

	recorder     string
	recorderNorm string
	subject      string
	eligible     map[string]bool // normalized names; nil allows everyone

	downscale   int
	detectEvery int

	phase      Phase
	identFrame int // frames since entering PhaseIdentifying
	lastFaces  []annotatedFace
	banner     banner
	marked     map[string]bool // identities recorded by this session
	frozenJPEG []byte
}

type faceState int

const (
	faceUnknown faceState = iota
	faceRecognized
	faceAlreadyMarked
)

// annotatedFace is a face overlay in full-frame coordinates, reused on
// decimated ticks.
type annotatedFace struct {
	Box   image.Rectangle
	Name  string
	State faceState
}

type banner struct {
	Text  string
	Color bannerColor
}

type bannerColor int

const (
	bannerInfo bannerColor = iota
	bannerSuccess
	bannerWarning
)

// New builds a session controller.
func New(source camera.Source, extractor Extractor, gal *gallery.Gallery, led *ledger.Ledger, matcher *match.Matcher, opts Options) *Controller {
	if opts.DownscaleFactor <= 0 {
		opts.DownscaleFactor = 4
	}
	if opts.DetectEvery <= 0 {
		opts.DetectEvery = 5
	}

	var eligible map[string]bool
	if opts.Eligible != nil {
		eligible = make(map[string]bool, len(opts.Eligible))
		for _, name := range opts.Eligible {
			eligible[match.NormalizeName(name)] = true
		}
	}

	return &Controller{
		source:       source,
		extractor:    extractor,
		matcher:      matcher,
		gallery:      gal,
		ledger:       led,
		detector:     liveness.NewDetector(opts.EARThreshold, opts.MinClosedFrames, opts.BlinksRequired),
		recorder:     opts.Recorder,
		recorderNorm: match.NormalizeName(opts.Recorder),
		subject:      opts.Subject,
		eligible:     eligible,
		downscale:    opts.DownscaleFactor,
		detectEvery:  opts.DetectEvery,
		phase:        PhaseChallenging,
		marked:       make(map[string]bool),
	}
}

// Phase returns the current session phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Run drives the session loop until the frame source ends, the context is
// cancelled, or the emitter fails (client gone). A single bad frame never
// ends the loop; an unavailable device degrades to a persistent error
// frame.
func (c *Controller) Run(ctx context.Context, emit func(jpeg []byte) error) error {
	defer c.source.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if c.phase == PhaseFrozen {
			if err := emit(c.frozenJPEG); err != nil {
				return nil
			}
			if !sleepCtx(ctx, frozenFrameInterval) {
				return nil
			}
			continue
		}

		frame, err := c.source.ReadFrame()
		switch {
		case err == nil:
		case errors.Is(err, camera.ErrSourceEnded):
			return nil
		case errors.Is(err, camera.ErrDeviceUnavailable):
			log.Printf("session: %v", err)
			return c.emitErrorFrames(ctx, emit)
		default:
			log.Printf("session: skipping frame: %v", err)
			continue
		}

		jpegData, err := c.tick(frame)
		if err != nil {
			log.Printf("session: skipping tick: %v", err)
			continue
		}
		if c.phase == PhaseFrozen {
			c.frozenJPEG = jpegData
		}
		if err := emit(jpegData); err != nil {
			return nil
		}
	}
}

// tick processes one frame and returns the annotated JPEG.
func (c *Controller) tick(frame *vision.Frame) ([]byte, error) {
	switch c.phase {
	case PhaseChallenging:
		if err := c.challengeTick(frame); err != nil {
			return nil, err
		}
	case PhaseIdentifying:
		if err := c.identifyTick(frame); err != nil {
			return nil, err
		}
	}

	c.annotate(frame.Image)
	return vision.EncodeJPEG(frame.Image, 80)
}

// challengeTick feeds the primary face of this frame to the blink detector.
func (c *Controller) challengeTick(frame *vision.Frame) error {
	faces, err := c.detect(frame)
	if err != nil {
		return err
	}

	var primary *vision.Face
	if len(faces) > 0 {
		primary = &faces[0]
	}

	if c.detector.Update(primary) == liveness.StatusPassed {
		c.phase = PhaseIdentifying
		c.identFrame = 0
		c.banner = banner{Text: "Liveness check passed", Color: bannerSuccess}
		return nil
	}

	c.banner = banner{
		Text:  fmt.Sprintf("Blink %d times (%d/%d)", c.detector.Required(), c.detector.Blinks(), c.detector.Required()),
		Color: bannerInfo,
	}
	return nil
}

// identifyTick recomputes detection every Nth frame; in between, the last
// boxes and labels carry over for overlay continuity.
func (c *Controller) identifyTick(frame *vision.Frame) error {
	recompute := c.identFrame%c.detectEvery == 0
	c.identFrame++
	if !recompute {
		return nil
	}

	faces, err := c.detect(frame)
	if err != nil {
		return err
	}

	snap := c.gallery.Snapshot()
	c.lastFaces = c.lastFaces[:0]

	recorded := ""
	alreadyMarked := ""
	for i := range faces {
		af := annotatedFace{Box: vision.UpscaleRect(faces[i].Box, c.downscale)}

		res, ok := c.matcher.Match(snap, faces[i].Descriptor)
		if !ok {
			c.lastFaces = append(c.lastFaces, af)
			continue
		}

		af.Name = res.Name
		af.State = faceRecognized

		norm := match.NormalizeName(res.Name)
		eligible := norm != c.recorderNorm &&
			(c.eligible == nil || c.eligible[norm]) &&
			!c.marked[res.Name]

		if eligible {
			result, err := c.ledger.TryRecord(res.Name, c.recorder, c.subject, time.Now())
			if err != nil {
				return fmt.Errorf("ledger write for %s: %w", res.Name, err)
			}
			switch result {
			case ledger.Recorded:
				c.marked[res.Name] = true
				af.State = faceAlreadyMarked
				if recorded == "" {
					recorded = res.Name
				}
			case ledger.AlreadyRecorded:
				af.State = faceAlreadyMarked
				if alreadyMarked == "" {
					alreadyMarked = res.Name
				}
			}
		} else if c.marked[res.Name] {
			af.State = faceAlreadyMarked
		}

		c.lastFaces = append(c.lastFaces, af)
	}

	switch {
	case recorded != "":
		c.phase = PhaseFrozen
		c.banner = banner{Text: "Marked: " + recorded, Color: bannerSuccess}
	case alreadyMarked != "":
		c.phase = PhaseFrozen
		c.banner = banner{Text: "Already Marked: " + alreadyMarked, Color: bannerWarning}
	case len(faces) > 0 && !anyRecognized(c.lastFaces):
		c.banner = banner{Text: "Not Recognized", Color: bannerWarning}
	default:
		c.banner = banner{}
	}
	return nil
}

// detect runs the extractor on the downscaled frame.
func (c *Controller) detect(frame *vision.Frame) ([]vision.Face, error) {
	small := vision.Downscale(frame.Image, c.downscale)
	jpegData, err := vision.EncodeJPEG(small, 80)
	if err != nil {
		return nil, err
	}
	return c.extractor.Detect(jpegData)
}

// emitErrorFrames renders the device-unavailable frame and repeats it until
// the stream is torn down.
func (c *Controller) emitErrorFrames(ctx context.Context, emit func([]byte) error) error {
	errImg := ErrorFrame(640, 480, "Error: Camera not found")
	jpegData, err := vision.EncodeJPEG(errImg, 80)
	if err != nil {
		return err
	}

	for {
		if err := emit(jpegData); err != nil {
			return nil
		}
		if !sleepCtx(ctx, frozenFrameInterval) {
			return nil
		}
	}
}

func anyRecognized(faces []annotatedFace) bool {
	for _, f := range faces {
		if f.State != faceUnknown {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d, returning false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
