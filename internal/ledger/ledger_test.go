package ledger

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

var testDay = time.Date(2026, time.March, 9, 10, 30, 45, 0, time.Local)

func TestTryRecordOncePerIdentityAndSubject(t *testing.T) {
	l := New(t.TempDir())

	res, err := l.TryRecord("Alice", "Prof. Smith", "Math", testDay)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if res != Recorded {
		t.Fatalf("expected Recorded, got %v", res)
	}

	res, err = l.TryRecord("Alice", "Prof. Smith", "Math", testDay.Add(time.Minute))
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if res != AlreadyRecorded {
		t.Errorf("expected AlreadyRecorded, got %v", res)
	}

	// A different recorder or time never bypasses the uniqueness rule.
	res, _ = l.TryRecord("Alice", "Prof. Jones", "Math", testDay.Add(2*time.Hour))
	if res != AlreadyRecorded {
		t.Errorf("different recorder must not create a duplicate, got %v", res)
	}

	// A different subject is a separate record.
	res, _ = l.TryRecord("Alice", "Prof. Smith", "Physics", testDay)
	if res != Recorded {
		t.Errorf("different subject should record, got %v", res)
	}

	// A different day is a separate store.
	res, _ = l.TryRecord("Alice", "Prof. Smith", "Math", testDay.AddDate(0, 0, 1))
	if res != Recorded {
		t.Errorf("next day should record, got %v", res)
	}
}

func TestFileFormat(t *testing.T) {
	l := New(t.TempDir())

	if _, err := l.TryRecord("Alice", "Prof. Smith", "Math", testDay); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := l.TryRecord("Bob", "Prof. Smith", "Math", testDay); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	data, err := os.ReadFile(l.DayFile(testDay))
	if err != nil {
		t.Fatalf("failed to read day file: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 records, got %d lines", len(lines))
	}
	if lines[0] != "Name,Timestamp,Taken By,Subject" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "Alice,10:30:45 AM,Prof. Smith,Math" {
		t.Errorf("unexpected record line %q", lines[1])
	}

	for _, line := range lines[1:] {
		if got := len(strings.Split(line, ",")); got != 4 {
			t.Errorf("record %q has %d fields, want 4", line, got)
		}
	}
}

func TestTwelveHourTimestamps(t *testing.T) {
	l := New(t.TempDir())

	afternoon := time.Date(2026, time.March, 9, 14, 5, 9, 0, time.Local)
	if _, err := l.TryRecord("Alice", "Prof. Smith", "Math", afternoon); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	records, err := l.ReadDay(afternoon, "")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 1 || records[0].Timestamp != "02:05:09 PM" {
		t.Errorf("expected 02:05:09 PM, got %+v", records)
	}
}

func TestLazyStoreCreation(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	// Reading an untouched day creates nothing.
	if _, err := l.ReadDay(testDay, ""); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if _, err := os.Stat(l.DayFile(testDay)); !os.IsNotExist(err) {
		t.Error("day file must not exist before the first write")
	}

	if _, err := l.TryRecord("Alice", "Prof. Smith", "Math", testDay); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := os.Stat(l.DayFile(testDay)); err != nil {
		t.Errorf("day file should exist after the first write: %v", err)
	}
}

func TestExistingFileIsIndexedOnRestart(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	if _, err := first.TryRecord("Alice", "Prof. Smith", "Math", testDay); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	// A fresh ledger over the same directory sees the earlier record.
	second := New(dir)
	res, err := second.TryRecord("Alice", "Prof. Jones", "Math", testDay)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if res != AlreadyRecorded {
		t.Errorf("restart must not lose the uniqueness index, got %v", res)
	}
}

func TestConcurrentTryRecordExactlyOnce(t *testing.T) {
	l := New(t.TempDir())

	const attempts = 32
	results := make([]Result, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.TryRecord("Alice", "Prof. Smith", "Math", testDay)
			if err != nil {
				t.Errorf("attempt %d failed: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	recorded := 0
	for _, res := range results {
		if res == Recorded {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("exactly one concurrent attempt may record, got %d", recorded)
	}

	records, err := l.ReadDay(testDay, "")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected a single record on disk, got %d", len(records))
	}
}

func TestFieldSanitation(t *testing.T) {
	l := New(t.TempDir())

	if _, err := l.TryRecord("Evil, Name\nInjected", "Prof. Smith", "Math", testDay); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	data, err := os.ReadFile(l.DayFile(testDay))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 record, got %d lines", len(lines))
	}
	if got := len(strings.Split(lines[1], ",")); got != 4 {
		t.Errorf("sanitized record has %d fields, want 4: %q", got, lines[1])
	}
}

func TestReadDaySubjectFilter(t *testing.T) {
	l := New(t.TempDir())

	l.TryRecord("Alice", "Prof. Smith", "Math", testDay)
	l.TryRecord("Bob", "Prof. Smith", "Physics", testDay)
	l.TryRecord("Carol", "Prof. Smith", "Math", testDay)

	math, err := l.ReadDay(testDay, "Math")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(math) != 2 {
		t.Errorf("expected 2 Math records, got %d", len(math))
	}
	for _, rec := range math {
		if rec.Subject != "Math" {
			t.Errorf("filter leaked subject %q", rec.Subject)
		}
	}

	all, _ := l.ReadDay(testDay, "")
	if len(all) != 3 {
		t.Errorf("expected 3 records without filter, got %d", len(all))
	}
}

func TestMonthFor(t *testing.T) {
	l := New(t.TempDir())

	march9 := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.Local)
	march10 := march9.AddDate(0, 0, 1)
	l.TryRecord("Alice", "Prof. Smith", "Math", march9)
	l.TryRecord("Alice", "Prof. Smith", "Physics", march9)
	l.TryRecord("Alice", "Prof. Smith", "Math", march10)
	l.TryRecord("Bob", "Prof. Smith", "Math", march9)

	attended, err := l.MonthFor("Alice", 2026, time.March)
	if err != nil {
		t.Fatalf("month read failed: %v", err)
	}

	if len(attended) != 2 {
		t.Fatalf("expected 2 attended days, got %v", attended)
	}
	if got := attended[9]; len(got) != 2 {
		t.Errorf("expected 2 subjects on the 9th, got %v", got)
	}
	if got := attended[10]; len(got) != 1 || got[0] != "Math" {
		t.Errorf("expected Math on the 10th, got %v", got)
	}
}

func TestNonWorkingDays(t *testing.T) {
	// March 2026: Sundays fall on 1, 8, 15, 22, 29; no fixed holiday.
	days := NonWorkingDays(2026, time.March)
	want := []int{1, 8, 15, 22, 29}
	if len(days) != len(want) {
		t.Fatalf("expected %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, days)
		}
	}

	// August 2026 contains Independence Day (15th, a Saturday).
	august := NonWorkingDays(2026, time.August)
	found := false
	for _, d := range august {
		if d == 15 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the 15th marked in August, got %v", august)
	}
}

func TestHolidayName(t *testing.T) {
	if name, ok := HolidayName(time.Date(2026, time.January, 26, 0, 0, 0, 0, time.Local)); !ok || name != "Republic Day" {
		t.Errorf("expected Republic Day, got %q (ok=%v)", name, ok)
	}
	if _, ok := HolidayName(time.Date(2026, time.March, 9, 0, 0, 0, 0, time.Local)); ok {
		t.Error("March 9 is not a fixed holiday")
	}
}
