package ledger

import (
	"fmt"
	"os"
	"time"
)

// ReadDay returns the records of one day, optionally filtered by subject
// (empty subject means all). A missing day file is an empty day.
func (l *Ledger) ReadDay(day time.Time, subject string) ([]Record, error) {
	data, err := os.ReadFile(l.DayFile(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read day store: %w", err)
	}

	records := parseRecords(data)
	if subject == "" {
		return records, nil
	}

	filtered := records[:0]
	for _, rec := range records {
		if rec.Subject == subject {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// MonthFor collects one identity's attendance over a month as a map from
// day-of-month to the subjects they were present in.
func (l *Ledger) MonthFor(name string, year int, month time.Month) (map[int][]string, error) {
	attended := make(map[int][]string)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		records, err := l.ReadDay(day, "")
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.Name == name {
				attended[day.Day()] = append(attended[day.Day()], rec.Subject)
			}
		}
	}
	return attended, nil
}
