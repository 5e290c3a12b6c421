package handlers

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dkadlec/presence/internal/roster"
)

// RosterHandler handles the roster endpoints. Every endpoint answers 503
// when no database is configured.
type RosterHandler struct {
	deps Deps
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(deps Deps) *RosterHandler {
	return &RosterHandler{deps: deps}
}

func (h *RosterHandler) store(w http.ResponseWriter) *roster.Store {
	if h.deps.Roster == nil {
		respondError(w, http.StatusServiceUnavailable, "no roster database configured")
		return nil
	}
	return h.deps.Roster
}

// Students lists the student names of one section and semester.
func (h *RosterHandler) Students(w http.ResponseWriter, r *http.Request) {
	store := h.store(w)
	if store == nil {
		return
	}

	semester, _ := strconv.Atoi(r.URL.Query().Get("semester"))
	names, err := store.EligibleNames(r.Context(), r.URL.Query().Get("section"), semester)
	if err != nil {
		log.Printf("roster students: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load students")
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"students": names,
		"count":    len(names),
	})
}

// AddStudent upserts one roster entry. Multipart form with "name",
// "section" and "semester" fields plus an optional "photo" file; when a
// photo is present the student is also enrolled into the face gallery.
func (h *RosterHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	store := h.store(w)
	if store == nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	semester, _ := strconv.Atoi(r.FormValue("semester"))

	var photo []byte
	if file, _, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		photo, err = io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read photo")
			return
		}
	}

	st := roster.Student{
		Name:     name,
		Section:  r.FormValue("section"),
		Semester: semester,
		Photo:    photo,
	}
	if err := store.AddStudent(r.Context(), st); err != nil {
		log.Printf("roster add %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to add student")
		return
	}

	if len(photo) > 0 {
		if err := h.deps.Gallery.Add(name, photo); err != nil {
			log.Printf("roster add %s: gallery enrollment failed: %v", sanitizeForLog(name), err)
		}
	}

	respondJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// RemoveStudent deletes one roster entry and its gallery encodings.
func (h *RosterHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	store := h.store(w)
	if store == nil {
		return
	}

	name := chi.URLParam(r, "name")
	if err := store.RemoveStudent(r.Context(), name); err != nil {
		log.Printf("roster remove %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to remove student")
		return
	}
	if err := h.deps.Gallery.RemoveAll(name); err != nil {
		log.Printf("roster remove %s: gallery cleanup failed: %v", sanitizeForLog(name), err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Subjects lists the subjects a teacher takes.
func (h *RosterHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	store := h.store(w)
	if store == nil {
		return
	}

	teacher := r.URL.Query().Get("teacher")
	if teacher == "" {
		respondError(w, http.StatusBadRequest, "teacher is required")
		return
	}

	subjects, err := store.Subjects(r.Context(), teacher)
	if err != nil {
		log.Printf("roster subjects: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load subjects")
		return
	}

	out := make([]map[string]any, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, map[string]any{
			"name":     s.Name,
			"section":  s.Section,
			"semester": s.Semester,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"subjects": out,
		"count":    len(out),
	})
}
