package calc

import (
	"time"

	"github.com/chronotable/timecard/internal/domain"
)

// MonthSummary is the derived view of one user's month.
type MonthSummary struct {
	Year              int
	Month             time.Month
	SNDays            int
	CODays            int
	CMDays            int
	DaysWorked        int
	RegularMinutes    int
	OvertimeMinutes   int
	TotalWorkDays     int // weekdays in the month
	RemainingWorkDays int
}

// DisplayRow is the presentation projection of a worktime entry. The report
// surfaces render rows; the summary can be rebuilt from them and must agree
// with the entry-based computation.
type DisplayRow struct {
	Date             time.Time
	TimeOffType      string
	RawMinutes       int
	ProcessedMinutes int
	OvertimeMinutes  int
	InProcess        bool
}

// DisplayRows projects entries into display rows for a given schedule.
func DisplayRows(entries []*domain.WorktimeEntry, scheduleHours int) []DisplayRow {
	rows := make([]DisplayRow, 0, len(entries))
	for _, e := range entries {
		row := DisplayRow{
			Date:        e.WorkDate,
			TimeOffType: e.TimeOffType,
			RawMinutes:  e.TotalWorkedMinutes,
			InProcess:   e.AdminSync == domain.StatusUserInProcess,
		}
		if isRegularWork(e.TimeOffType) {
			result := WorkTime(e.TotalWorkedMinutes, scheduleHours)
			row.ProcessedMinutes = result.ProcessedMinutes
			row.OvertimeMinutes = result.OvertimeMinutes
		} else if _, _, special := domain.SpecialDayHours(e.TimeOffType); special {
			row.OvertimeMinutes = e.TotalOvertimeMinutes
		}
		rows = append(rows, row)
	}
	return rows
}

// isRegularWork reports whether the time-off type means ordinary worked
// minutes: none at all, or a delegation day.
func isRegularWork(timeOffType string) bool {
	return timeOffType == "" || timeOffType == domain.TimeOffDelegation
}

// SummarizeEntries builds the month summary directly from worktime entries.
func SummarizeEntries(entries []*domain.WorktimeEntry, scheduleHours, year int, month time.Month) MonthSummary {
	acc := newAccumulator(scheduleHours)
	for _, e := range entries {
		inProcess := e.AdminSync == domain.StatusUserInProcess
		var processed, overtime int
		if isRegularWork(e.TimeOffType) {
			result := WorkTime(e.TotalWorkedMinutes, scheduleHours)
			processed = result.ProcessedMinutes
			overtime = result.OvertimeMinutes
		} else if _, _, special := domain.SpecialDayHours(e.TimeOffType); special {
			overtime = e.TotalOvertimeMinutes
		}
		acc.add(e.TimeOffType, e.TotalWorkedMinutes, processed, overtime, inProcess)
	}
	return acc.finish(year, month)
}

// SummarizeRows builds the month summary from display rows. For any month
// the result equals SummarizeEntries over the same logical entries.
func SummarizeRows(rows []DisplayRow, scheduleHours, year int, month time.Month) MonthSummary {
	acc := newAccumulator(scheduleHours)
	for _, row := range rows {
		acc.add(row.TimeOffType, row.RawMinutes, row.ProcessedMinutes, row.OvertimeMinutes, row.InProcess)
	}
	return acc.finish(year, month)
}

type accumulator struct {
	scheduleMinutes int
	sn, co, cm      int
	daysWorked      int
	regular         int
	overtime        int
	crCount         int
	zsHours         int
}

func newAccumulator(scheduleHours int) *accumulator {
	return &accumulator{scheduleMinutes: scheduleHours * 60}
}

func (a *accumulator) add(timeOffType string, rawMinutes, processed, overtime int, inProcess bool) {
	if !inProcess {
		switch timeOffType {
		case domain.TimeOffNationalHoliday:
			a.sn++
		case domain.TimeOffVacation:
			a.co++
		case domain.TimeOffMedical:
			a.cm++
		}
	}

	switch {
	case timeOffType == "" && rawMinutes > 0:
		a.daysWorked++
		a.regular += processed
		a.overtime += overtime
	case timeOffType == domain.TimeOffDelegation:
		// Delegation counts as a worked day even before minutes come in.
		a.daysWorked++
		a.regular += processed
		a.overtime += overtime
	case timeOffType == domain.TimeOffRecovery:
		// CR fills a schedule from the overtime bank: counted below as both
		// a regular credit and an overtime deduction.
		a.daysWorked++
		a.crCount++
	default:
		if n, ok := domain.ZSHours(timeOffType); ok {
			// ZS fills the day: full schedule to regular, deficit hours out
			// of the overtime bank.
			a.daysWorked++
			a.regular += a.scheduleMinutes
			a.zsHours += n
		} else {
			a.overtime += overtime
		}
	}
}

func (a *accumulator) finish(year int, month time.Month) MonthSummary {
	crDeductions := a.crCount * a.scheduleMinutes
	zsDeductions := a.zsHours * 60

	total := WeekdaysInMonth(year, month)
	return MonthSummary{
		Year:              year,
		Month:             month,
		SNDays:            a.sn,
		CODays:            a.co,
		CMDays:            a.cm,
		DaysWorked:        a.daysWorked,
		RegularMinutes:    a.regular + crDeductions,
		OvertimeMinutes:   a.overtime - crDeductions - zsDeductions,
		TotalWorkDays:     total,
		RemainingWorkDays: total - (a.daysWorked + a.sn + a.co + a.cm),
	}
}

// WeekdaysInMonth counts Monday through Friday dates in the month.
func WeekdaysInMonth(year int, month time.Month) int {
	count := 0
	day := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for day.Month() == month {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}
