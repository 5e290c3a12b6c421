// Package ledger is the durable attendance record store: one append-only
// CSV file per calendar day, with an at-most-once guarantee per
// (identity, subject) within a day.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Result of a record attempt.
type Result int

const (
	// Recorded means a new attendance line was appended.
	Recorded Result = iota
	// AlreadyRecorded means the (identity, subject) pair already exists in
	// the day's store. A normal outcome, not an error.
	AlreadyRecorded
)

func (r Result) String() string {
	if r == Recorded {
		return "recorded"
	}
	return "already recorded"
}

// Record is one attendance line. Immutable once written.
type Record struct {
	Name      string
	Timestamp string // 12-hour clock with AM/PM suffix
	TakenBy   string
	Subject   string
}

const (
	header     = "Name,Timestamp,Taken By,Subject"
	timeFormat = "03:04:05 PM"
	dayFormat  = "2006-01-02"
)

// Ledger manages the per-day stores under one directory. Safe for
// concurrent use: writes into the same day serialize on that day's mutex.
type Ledger struct {
	dir string

	mu   sync.Mutex
	days map[string]*dayStore
}

// New creates a ledger over the given directory. Day files are created
// lazily on first write.
func New(dir string) *Ledger {
	return &Ledger{dir: dir, days: make(map[string]*dayStore)}
}

// Dir returns the ledger directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// DayFile returns the path of the store for the given day.
func (l *Ledger) DayFile(day time.Time) string {
	return filepath.Join(l.dir, "attendance_"+day.Format(dayFormat)+".csv")
}

// TryRecord appends an attendance record for ts's calendar day unless the
// (identity, subject) pair is already present in that day's store. The
// check and the append run under the day's lock, so two near-simultaneous
// calls can never both record.
func (l *Ledger) TryRecord(identity, recorder, subject string, ts time.Time) (Result, error) {
	store, err := l.dayStoreFor(ts)
	if err != nil {
		return AlreadyRecorded, err
	}

	rec := Record{
		Name:      sanitizeField(identity),
		Timestamp: ts.Format(timeFormat),
		TakenBy:   sanitizeField(recorder),
		Subject:   sanitizeField(subject),
	}
	return store.tryAppend(rec)
}

// dayStoreFor returns the store for ts's day, creating the in-memory state
// on first touch.
func (l *Ledger) dayStoreFor(ts time.Time) (*dayStore, error) {
	day := ts.Format(dayFormat)

	l.mu.Lock()
	defer l.mu.Unlock()

	if store, ok := l.days[day]; ok {
		return store, nil
	}
	store := &dayStore{path: l.DayFile(ts)}
	l.days[day] = store
	return store, nil
}

type recordKey struct {
	name    string
	subject string
}

// dayStore guards one day file: an in-memory uniqueness index plus the
// append handle, both behind one mutex.
type dayStore struct {
	mu     sync.Mutex
	path   string
	seen   map[recordKey]bool
	loaded bool
}

func (s *dayStore) tryAppend(rec Record) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return AlreadyRecorded, err
	}

	key := recordKey{name: rec.Name, subject: rec.Subject}
	if s.seen[key] {
		return AlreadyRecorded, nil
	}

	if err := s.append(rec); err != nil {
		return AlreadyRecorded, err
	}
	s.seen[key] = true
	return Recorded, nil
}

// ensureLoaded indexes records already on disk, so restarts keep the
// per-day uniqueness guarantee.
func (s *dayStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	s.seen = make(map[recordKey]bool)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read day store %s: %w", s.path, err)
	}

	for _, rec := range parseRecords(data) {
		s.seen[recordKey{name: rec.Name, subject: rec.Subject}] = true
	}
	s.loaded = true
	return nil
}

// append opens the day file for appending, writing the header first when
// the file is new.
func (s *dayStore) append(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open day store %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	var b strings.Builder
	if info.Size() == 0 {
		b.WriteString(header)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s,%s,%s,%s\n", rec.Name, rec.Timestamp, rec.TakenBy, rec.Subject)

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// sanitizeField keeps the fixed 4-field comma format intact: the format has
// no quoting, so commas and line breaks cannot appear inside a field.
func sanitizeField(s string) string {
	s = strings.NewReplacer(",", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

// parseRecords reads day-store lines into records, skipping the header and
// malformed lines.
func parseRecords(data []byte) []Record {
	var records []Record
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == header {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 4 {
			continue
		}
		records = append(records, Record{
			Name:      strings.TrimSpace(parts[0]),
			Timestamp: strings.TrimSpace(parts[1]),
			TakenBy:   strings.TrimSpace(parts[2]),
			Subject:   strings.TrimSpace(parts[3]),
		})
	}
	return records
}
