// Package calc implements the pure work-time calculation engine: raw-minute
// queries, session mutation commands, and the derived month summary. The
// engine performs no I/O; every function is a pure function of its inputs
// and the supplied clock time.
package calc

// WorkTimeResult is the full breakdown of a day's worked minutes against a
// schedule. ProcessedMinutes + OvertimeMinutes + DiscardedMinutes always
// equals AdjustedMinutes.
type WorkTimeResult struct {
	RawMinutes        int
	AdjustedMinutes   int // raw minus the lunch break, when it applies
	ProcessedMinutes  int // capped at the schedule
	OvertimeMinutes   int // rounded down to whole hours
	LunchDeducted     bool
	FinalTotalMinutes int // processed + overtime
	DiscardedMinutes  int // adjusted minutes that fit neither bucket
}

// LegacyWorkTimeResult is the narrow projection kept for stored records that
// predate the full breakdown.
type LegacyWorkTimeResult struct {
	ProcessedMinutes int
	OvertimeMinutes  int
	LunchDeducted    bool
}

// Legacy projects the narrow view.
func (r WorkTimeResult) Legacy() LegacyWorkTimeResult {
	return LegacyWorkTimeResult{
		ProcessedMinutes: r.ProcessedMinutes,
		OvertimeMinutes:  r.OvertimeMinutes,
		LunchDeducted:    r.LunchDeducted,
	}
}

const (
	// lunchBreakMinutes is deducted once an 8-hour schedule is reached.
	lunchBreakMinutes = 30
	// lunchSchedule is the only schedule with an implicit lunch break.
	lunchSchedule = 8
)

// WorkTime computes the schedule split of a day's raw minutes.
//
// The lunch break applies only to 8-hour schedules and only once the raw
// minutes reach the full schedule. Overtime is rounded down to whole hours;
// the remainder is discarded rather than carried.
func WorkTime(minutes, scheduleHours int) WorkTimeResult {
	if minutes < 0 {
		minutes = 0
	}
	scheduleMinutes := scheduleHours * 60

	adjusted := minutes
	lunch := false
	if scheduleHours == lunchSchedule && minutes >= scheduleMinutes {
		adjusted = minutes - lunchBreakMinutes
		lunch = true
	}

	processed := adjusted
	if processed > scheduleMinutes {
		processed = scheduleMinutes
	}

	overtime := 0
	if extra := adjusted - scheduleMinutes; extra > 0 {
		overtime = extra / 60 * 60
	}

	return WorkTimeResult{
		RawMinutes:        minutes,
		AdjustedMinutes:   adjusted,
		ProcessedMinutes:  processed,
		OvertimeMinutes:   overtime,
		LunchDeducted:     lunch,
		FinalTotalMinutes: processed + overtime,
		DiscardedMinutes:  adjusted - processed - overtime,
	}
}
