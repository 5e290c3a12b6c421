package ledger

import (
	_ "embed"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixed-date public holidays for the monthly attendance calendar. Movable
// holidays are not in the table; the calendar marks non-working days, it
// does not assert them.
//
//go:embed holidays.yaml
var holidaysYAML []byte

type holidayTable struct {
	Fixed []holiday `yaml:"fixed"`
}

type holiday struct {
	Month int    `yaml:"month"`
	Day   int    `yaml:"day"`
	Name  string `yaml:"name"`
}

var holidays holidayTable

func init() {
	if err := yaml.Unmarshal(holidaysYAML, &holidays); err != nil {
		// Embedded file; cannot fail on a correct build.
		panic("failed to unmarshal embedded holidays.yaml: " + err.Error())
	}
}

// NonWorkingDays returns the sorted days-of-month that are Sundays or
// public holidays in the given month.
func NonWorkingDays(year int, month time.Month) []int {
	marked := make(map[int]bool)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Sunday {
			marked[day.Day()] = true
		}
	}
	for _, h := range holidays.Fixed {
		if time.Month(h.Month) == month {
			marked[h.Day] = true
		}
	}

	days := make([]int, 0, len(marked))
	for d := range marked {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// HolidayName returns the public holiday name for a date, if any.
func HolidayName(day time.Time) (string, bool) {
	for _, h := range holidays.Fixed {
		if time.Month(h.Month) == day.Month() && h.Day == day.Day() {
			return h.Name, true
		}
	}
	return "", false
}
