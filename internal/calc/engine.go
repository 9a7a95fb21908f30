package calc

import (
	"errors"
	"time"

	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
)

// Context carries the inputs shared by every command: the clock instant the
// caller observed and the user's daily schedule. Passed by value.
type Context struct {
	Now           time.Time
	ScheduleHours int
}

var (
	// ErrInvalidInterval is returned when a break interval ends before it starts.
	ErrInvalidInterval = errors.New("calc: interval end precedes start")
	// ErrNoOpenStop is returned when a resume finds no open temporary stop.
	ErrNoOpenStop = errors.New("calc: no open temporary stop to resume from")
	// ErrNotStarted is returned when a command needs a started session.
	ErrNotStarted = errors.New("calc: session has no day start time")
)

// minutesBetween truncates a duration to whole minutes, never negative.
func minutesBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}

// TotalTempStopMinutes sums completed stop durations plus the elapsed time
// of the open stop, if any, up to now.
func TotalTempStopMinutes(session *domain.Session, now time.Time) int {
	total := 0
	for i := range session.TemporaryStops {
		stop := &session.TemporaryStops[i]
		if stop.EndTime != nil {
			total += minutesBetween(stop.StartTime, *stop.EndTime)
		} else {
			total += minutesBetween(stop.StartTime, now)
		}
	}
	return total
}

// RawWorkMinutes returns the minutes between the session's day start and
// endTime, minus all temporary-stop time. Never negative.
func RawWorkMinutes(session *domain.Session, endTime time.Time) int {
	if session.DayStartTime == nil {
		return 0
	}
	raw := minutesBetween(*session.DayStartTime, endTime) - TotalTempStopMinutes(session, endTime)
	if raw < 0 {
		return 0
	}
	return raw
}

// RecommendedEndTime is the instant at which the entry's schedule is filled:
// start plus the schedule, plus temporary stops, plus lunch on 8-hour days.
func RecommendedEndTime(entry *domain.WorktimeEntry, scheduleHours int) (time.Time, error) {
	if entry.DayStartTime == nil {
		return time.Time{}, ErrNotStarted
	}
	minutes := scheduleHours*60 + entry.TotalTemporaryStopMinutes
	if scheduleHours == lunchSchedule {
		minutes += lunchBreakMinutes
	}
	return entry.DayStartTime.Add(time.Duration(minutes) * time.Minute), nil
}

// ProcessTemporaryStop freezes the running total and opens a new temporary
// stop at stopTime. The input session is returned unmodified on error.
func ProcessTemporaryStop(session *domain.Session, stopTime time.Time) (*domain.Session, error) {
	if session.DayStartTime == nil {
		return session, ErrNotStarted
	}

	next := session.Clone()
	next.TotalWorkedMinutes = RawWorkMinutes(next, stopTime)
	next.TemporaryStops = append(next.TemporaryStops, domain.TemporaryStop{StartTime: stopTime})
	next.TemporaryStopCount++
	stop := stopTime
	next.LastTemporaryStopTime = &stop
	next.SessionStatus = domain.WorkTemporaryStop
	next.LastActivity = stopTime
	return next, nil
}

// AddBreakAsTempStop appends an already-completed stop, for breaks recorded
// after the fact. Fails when end precedes start.
func AddBreakAsTempStop(session *domain.Session, start, end time.Time) (*domain.Session, error) {
	if end.Before(start) {
		return session, ErrInvalidInterval
	}

	next := session.Clone()
	endCopy := end
	next.TemporaryStops = append(next.TemporaryStops, domain.TemporaryStop{
		StartTime: start,
		EndTime:   &endCopy,
		Duration:  minutesBetween(start, end),
	})
	next.TemporaryStopCount++
	next.TotalTemporaryStopMinutes = TotalTempStopMinutes(next, end)
	return next, nil
}

// ProcessResumeFromTempStop closes the open stop at resumeTime and puts the
// session back online. The pre-stop running total carries over into
// FinalWorkedMinutes.
func ProcessResumeFromTempStop(session *domain.Session, resumeTime time.Time) (*domain.Session, error) {
	next := session.Clone()
	open := next.OpenStop()
	if open == nil {
		return session, ErrNoOpenStop
	}

	end := resumeTime
	open.EndTime = &end
	open.Duration = minutesBetween(open.StartTime, end)
	next.TotalTemporaryStopMinutes = TotalTempStopMinutes(next, resumeTime)
	next.SessionStatus = domain.WorkOnline
	start := resumeTime
	next.CurrentStartTime = &start
	next.FinalWorkedMinutes = next.TotalWorkedMinutes
	next.LastActivity = resumeTime
	return next, nil
}

// UpdateOnlineSessionCalculations refreshes every derived field of an online
// session from the current clock.
func UpdateOnlineSessionCalculations(session *domain.Session, cctx Context) (*domain.Session, error) {
	if session.DayStartTime == nil {
		return session, ErrNotStarted
	}

	next := session.Clone()
	raw := RawWorkMinutes(next, cctx.Now)
	result := WorkTime(raw, cctx.ScheduleHours)

	next.TotalWorkedMinutes = raw
	next.FinalWorkedMinutes = result.ProcessedMinutes
	next.TotalOvertimeMinutes = result.OvertimeMinutes
	next.LunchBreakDeducted = result.LunchDeducted
	next.WorkdayCompleted = raw >= cctx.ScheduleHours*60
	next.TotalTemporaryStopMinutes = TotalTempStopMinutes(next, cctx.Now)
	next.LastActivity = cctx.Now
	return next, nil
}

// UpdateTempStopCalculations refreshes the stop totals while a session sits
// in a temporary stop.
func UpdateTempStopCalculations(session *domain.Session, now time.Time) (*domain.Session, error) {
	next := session.Clone()
	open := next.OpenStop()
	if open == nil {
		return session, ErrNoOpenStop
	}
	open.Duration = minutesBetween(open.StartTime, now)
	next.TotalTemporaryStopMinutes = TotalTempStopMinutes(next, now)
	next.LastActivity = now
	return next, nil
}

// CalculateEndDayValues closes the session. When finalMinutes is nil the
// session's own running final total stands.
func CalculateEndDayValues(session *domain.Session, endTime time.Time, finalMinutes *int) (*domain.Session, error) {
	next := session.Clone()
	next.SessionStatus = domain.WorkOffline
	end := endTime
	next.DayEndTime = &end
	if finalMinutes != nil {
		next.FinalWorkedMinutes = *finalMinutes
	}
	next.WorkdayCompleted = true
	next.LastActivity = endTime
	return next, nil
}

// EntryFromSession projects a closed session's totals into its day's
// worktime row. The sync status is left empty so the accessor's promotion
// rules assign it on write.
func EntryFromSession(session *domain.Session) *domain.WorktimeEntry {
	entry := &domain.WorktimeEntry{
		UserID:                    session.UserID,
		TotalWorkedMinutes:        session.TotalWorkedMinutes,
		TotalOvertimeMinutes:      session.TotalOvertimeMinutes,
		TotalTemporaryStopMinutes: session.TotalTemporaryStopMinutes,
		TemporaryStopCount:        session.TemporaryStopCount,
		LunchBreakDeducted:        session.LunchBreakDeducted,
	}
	if session.DayStartTime != nil {
		start := *session.DayStartTime
		entry.DayStartTime = &start
		entry.WorkDate = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	}
	if session.DayEndTime != nil {
		end := *session.DayEndTime
		entry.DayEndTime = &end
	}
	return entry
}

// ApplySpecialDayOvertime reroutes a special day's session minutes into the
// overtime bank: the day itself records zero worked minutes and the whole
// session, rounded down to hours, becomes overtime. Regular days pass the
// minutes through unchanged. Temporary-stop history is preserved either way.
func ApplySpecialDayOvertime(entry *domain.WorktimeEntry, sessionMinutes int, dayType domain.DayType) *domain.WorktimeEntry {
	out := *entry
	if dayType == domain.DayRegular {
		out.TotalWorkedMinutes = sessionMinutes
		return &out
	}

	out.TotalWorkedMinutes = 0
	out.TotalOvertimeMinutes = sessionMinutes / 60 * 60
	if code := dayType.TimeOffCode(); code != "" && out.TimeOffType == "" {
		out.TimeOffType = code
	}
	log.Debug(log.CatCalc, "special day overtime applied",
		"dayType", string(dayType), "sessionMinutes", sessionMinutes,
		"overtime", out.TotalOvertimeMinutes)
	return &out
}
