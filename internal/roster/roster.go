package roster

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkadlec/presence/internal/gallery"
)

// Student is one roster entry. Photo may be empty when the student has no
// stored reference image.
type Student struct {
	Name     string
	Section  string
	Semester int
	Photo    []byte
}

// Subject is one class a teacher takes for a section.
type Subject struct {
	Name     string
	Section  string
	Semester int
	Teacher  string
}

// Store reads and writes the roster tables.
type Store struct {
	pool *Pool
}

// NewStore creates a roster store over the pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// EligibleNames returns the names of the students in one section and
// semester, for use as a session's eligibility filter.
func (s *Store) EligibleNames(ctx context.Context, section string, semester int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT name FROM students WHERE section = $1 AND semester = $2 ORDER BY name",
		section, semester)
	if err != nil {
		return nil, fmt.Errorf("query eligible students: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan student name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return names, nil
}

// References returns every student with a stored photo, for rebuilding the
// face gallery from the roster.
func (s *Store) References(ctx context.Context) ([]gallery.Reference, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT name, photo FROM students WHERE photo IS NOT NULL ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query student photos: %w", err)
	}
	defer rows.Close()

	var refs []gallery.Reference
	for rows.Next() {
		var ref gallery.Reference
		if err := rows.Scan(&ref.Name, &ref.Image); err != nil {
			return nil, fmt.Errorf("scan student photo: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student photos: %w", err)
	}
	return refs, nil
}

// Subjects returns the subjects one teacher takes.
func (s *Store) Subjects(ctx context.Context, teacher string) ([]Subject, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT name, section, semester, teacher FROM subjects WHERE teacher = $1 ORDER BY name",
		teacher)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.Name, &sub.Section, &sub.Semester, &sub.Teacher); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// AddStudent upserts one roster entry. An empty photo keeps any photo
// already stored.
func (s *Store) AddStudent(ctx context.Context, st Student) error {
	var photo any
	if len(st.Photo) > 0 {
		photo = st.Photo
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (name, section, semester, photo)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			section = EXCLUDED.section,
			semester = EXCLUDED.semester,
			photo = COALESCE(EXCLUDED.photo, students.photo)
	`, st.Name, st.Section, st.Semester, photo)
	if err != nil {
		return fmt.Errorf("upsert student %s: %w", st.Name, err)
	}
	return nil
}

// RemoveStudent deletes one roster entry by name. Removing an absent
// student is not an error.
func (s *Store) RemoveStudent(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM students WHERE name = $1", name); err != nil {
		return fmt.Errorf("delete student %s: %w", name, err)
	}
	return nil
}

// AddSubject upserts one subject assignment.
func (s *Store) AddSubject(ctx context.Context, sub Subject) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subjects (name, section, semester, teacher)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, section, semester) DO UPDATE SET teacher = EXCLUDED.teacher
	`, sub.Name, sub.Section, sub.Semester, sub.Teacher)
	if err != nil {
		return fmt.Errorf("upsert subject %s: %w", sub.Name, err)
	}
	return nil
}

// Student returns one roster entry by name, or sql.ErrNoRows.
func (s *Store) Student(ctx context.Context, name string) (*Student, error) {
	var st Student
	var photo []byte
	err := s.pool.QueryRow(ctx,
		"SELECT name, section, semester, photo FROM students WHERE name = $1", name).
		Scan(&st.Name, &st.Section, &st.Semester, &photo)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("query student %s: %w", name, err)
	}
	st.Photo = photo
	return &st, nil
}
