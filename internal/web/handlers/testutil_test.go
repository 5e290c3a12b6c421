package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dkadlec/presence/internal/camera"
	"github.com/dkadlec/presence/internal/gallery"
	"github.com/dkadlec/presence/internal/ledger"
	"github.com/dkadlec/presence/internal/match"
	"github.com/dkadlec/presence/internal/vision"
)

// stubEncoder derives a descriptor from the image bytes so tests control
// matching without dlib models.
type stubEncoder struct{}

func (stubEncoder) EncodeFirst(imageData []byte) (vision.Descriptor, bool, error) {
	if bytes.Contains(imageData, []byte("noface")) {
		return vision.Descriptor{}, false, nil
	}
	var d vision.Descriptor
	for i, b := range imageData {
		if i >= vision.DescriptorSize {
			break
		}
		d[i] = float32(b)
	}
	return d, true, nil
}

// stubExtractor returns the same face set for every frame.
type stubExtractor struct {
	faces []vision.Face
}

func (e *stubExtractor) Detect(_ []byte) ([]vision.Face, error) {
	return e.faces, nil
}

// stubSource yields a fixed number of frames then ends.
type stubSource struct {
	frames int
	reads  int
}

func (s *stubSource) ReadFrame() (*vision.Frame, error) {
	if s.reads >= s.frames {
		return nil, camera.ErrSourceEnded
	}
	s.reads++
	return &vision.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 64, 48)),
		Timestamp: time.Now(),
	}, nil
}

func (s *stubSource) Close() error { return nil }

// testDeps builds handler dependencies over temp-dir state.
func testDeps(t *testing.T) Deps {
	t.Helper()

	g, err := gallery.Open(filepath.Join(t.TempDir(), "gallery.json"), stubEncoder{})
	if err != nil {
		t.Fatalf("failed to open gallery: %v", err)
	}

	return Deps{
		Gallery:   g,
		Ledger:    ledger.New(t.TempDir()),
		Matcher:   match.NewMatcher(0.6),
		Extractor: &stubExtractor{},
		NewSource: func() (camera.Source, error) {
			return &stubSource{frames: 10}, nil
		},
	}
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartBody builds a multipart form with string fields and one file.
func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(fileData); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
