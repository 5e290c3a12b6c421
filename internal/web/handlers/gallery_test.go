package handlers

import (
	"net/http/httptest"
	"testing"
)

func TestGalleryAddAndList(t *testing.T) {
	deps := testDeps(t)
	h := NewGalleryHandler(deps)

	body, contentType := multipartBody(t,
		map[string]string{"name": "alice"}, "image", "alice.jpg", []byte{50, 1, 2})
	req := httptest.NewRequest("POST", "/api/v1/gallery", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Add(rec, req)
	assertStatusCode(t, rec, 201)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/v1/gallery", nil))
	assertStatusCode(t, rec, 200)

	var list struct {
		Identities []struct {
			Name      string `json:"name"`
			Encodings int    `json:"encodings"`
		} `json:"identities"`
		Encodings int `json:"encodings"`
	}
	parseJSONResponse(t, rec, &list)
	if list.Encodings != 1 || len(list.Identities) != 1 {
		t.Fatalf("expected one enrolled encoding, got %+v", list)
	}
	if list.Identities[0].Name != "alice" || list.Identities[0].Encodings != 1 {
		t.Errorf("unexpected identity entry %+v", list.Identities[0])
	}
}

func TestGalleryAddRejectsMissingName(t *testing.T) {
	h := NewGalleryHandler(testDeps(t))

	body, contentType := multipartBody(t, nil, "image", "x.jpg", []byte{1})
	req := httptest.NewRequest("POST", "/api/v1/gallery", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Add(rec, req)
	assertStatusCode(t, rec, 400)
	assertJSONError(t, rec, "name is required")
}

func TestGalleryAddWithoutFace(t *testing.T) {
	h := NewGalleryHandler(testDeps(t))

	body, contentType := multipartBody(t,
		map[string]string{"name": "bob"}, "image", "bob.jpg", []byte("noface"))
	req := httptest.NewRequest("POST", "/api/v1/gallery", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Add(rec, req)
	assertStatusCode(t, rec, 422)
	assertJSONError(t, rec, "no face found in image")
}

func TestGalleryRemoveIsIdempotent(t *testing.T) {
	deps := testDeps(t)
	h := NewGalleryHandler(deps)

	if err := deps.Gallery.Add("alice", []byte{50}); err != nil {
		t.Fatalf("failed to seed gallery: %v", err)
	}

	for i := 0; i < 2; i++ {
		req := requestWithChiParams(
			httptest.NewRequest("DELETE", "/api/v1/gallery/alice", nil),
			map[string]string{"name": "alice"})
		rec := httptest.NewRecorder()
		h.Remove(rec, req)
		assertStatusCode(t, rec, 200)
	}

	if deps.Gallery.Snapshot().Len() != 0 {
		t.Error("expected empty gallery after remove")
	}
}

func TestGalleryRebuildWithoutRoster(t *testing.T) {
	h := NewGalleryHandler(testDeps(t))

	rec := httptest.NewRecorder()
	h.Rebuild(rec, httptest.NewRequest("POST", "/api/v1/gallery/rebuild", nil))
	assertStatusCode(t, rec, 503)
	assertJSONError(t, rec, "no roster database configured")
}
