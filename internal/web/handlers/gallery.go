package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dkadlec/presence/internal/gallery"
)

// GalleryHandler handles the face enrollment endpoints.
type GalleryHandler struct {
	deps Deps
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(deps Deps) *GalleryHandler {
	return &GalleryHandler{deps: deps}
}

// List returns the enrolled identities with their encoding counts.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Gallery.Snapshot()
	names := snap.Names()

	identities := make([]map[string]any, 0, len(names))
	for _, name := range names {
		identities = append(identities, map[string]any{
			"name":      name,
			"encodings": snap.Count(name),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"identities": identities,
		"encodings":  snap.Len(),
	})
}

// Add enrolls one reference photo for a named identity. Multipart form with
// a "name" field and an "image" file.
func (h *GalleryHandler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	if err := h.deps.Gallery.Add(name, imageData); err != nil {
		if errors.Is(err, gallery.ErrNoFace) {
			respondError(w, http.StatusUnprocessableEntity, "no face found in image")
			return
		}
		log.Printf("gallery add %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to enroll face")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"name":      name,
		"encodings": h.deps.Gallery.Snapshot().Count(name),
	})
}

// Remove deletes every encoding of one identity. Removing an absent name
// succeeds.
func (h *GalleryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.deps.Gallery.RemoveAll(name); err != nil {
		log.Printf("gallery remove %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to remove identity")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Rebuild re-encodes the gallery wholesale from the roster's reference
// photos.
func (h *GalleryHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.deps.Roster == nil {
		respondError(w, http.StatusServiceUnavailable, "no roster database configured")
		return
	}

	refs, err := h.deps.Roster.References(r.Context())
	if err != nil {
		log.Printf("gallery rebuild: roster lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load reference photos")
		return
	}

	report, err := h.deps.Gallery.Rebuild(refs)
	if err != nil {
		log.Printf("gallery rebuild: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to rebuild gallery")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"added":   report.Added,
		"skipped": report.Skipped,
	})
}
