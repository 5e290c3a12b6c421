package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkadlec/presence/internal/config"
	"github.com/dkadlec/presence/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance [date]",
	Short: "Print one day's attendance report",
	Long: `Print the attendance records of one day (YYYY-MM-DD, default today),
optionally filtered by subject.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttendance,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar <name>",
	Short: "Print one identity's month of attendance",
	Long: `Print which days of a month an identity attended and in which
subjects, with Sundays and holidays marked as non-working days.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalendar,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(calendarCmd)

	attendanceCmd.Flags().String("subject", "", "Only show records for this subject")

	now := time.Now()
	calendarCmd.Flags().Int("year", now.Year(), "Year of the report")
	calendarCmd.Flags().Int("month", int(now.Month()), "Month of the report (1-12)")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	day := time.Now()
	if len(args) == 1 {
		parsed, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
		}
		day = parsed
	}

	led := ledger.New(cfg.Ledger.Dir)
	records, err := led.ReadDay(day, mustGetString(cmd, "subject"))
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Printf("No attendance recorded on %s\n", day.Format("2006-01-02"))
		return nil
	}

	fmt.Printf("Attendance for %s:\n", day.Format("2006-01-02"))
	for _, rec := range records {
		fmt.Printf("  %-20s %-12s %-10s taken by %s\n", rec.Name, rec.Timestamp, rec.Subject, rec.TakenBy)
	}
	fmt.Printf("%d records\n", len(records))
	return nil
}

func runCalendar(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	name := args[0]

	year := mustGetInt(cmd, "year")
	monthNum := mustGetInt(cmd, "month")
	if monthNum < 1 || monthNum > 12 {
		return fmt.Errorf("invalid month %d", monthNum)
	}
	month := time.Month(monthNum)

	led := ledger.New(cfg.Ledger.Dir)
	attended, err := led.MonthFor(name, year, month)
	if err != nil {
		return err
	}

	nonWorking := make(map[int]bool)
	for _, day := range ledger.NonWorkingDays(year, month) {
		nonWorking[day] = true
	}

	fmt.Printf("%s, %s %d:\n", name, month, year)

	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()
	present := 0
	for day := 1; day <= last; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.Local)
		switch {
		case len(attended[day]) > 0:
			subjects := attended[day]
			sort.Strings(subjects)
			fmt.Printf("  %2d  present  %v\n", day, subjects)
			present++
		case nonWorking[day]:
			label := "Sunday"
			if holiday, ok := ledger.HolidayName(date); ok {
				label = holiday
			}
			fmt.Printf("  %2d  -        %s\n", day, label)
		default:
			fmt.Printf("  %2d  absent\n", day)
		}
	}

	workingDays := last - len(ledger.NonWorkingDays(year, month))
	fmt.Printf("Present %d of %d working days\n", present, workingDays)
	return nil
}
