package domain

import (
	"strconv"
	"strings"
)

// Time-off codes carried by WorktimeEntry.TimeOffType. Codes with an
// optional ":<h>" suffix record hours worked on a special day; "ZS-<n>"
// records a day that fell short of the schedule by n hours.
const (
	TimeOffNationalHoliday = "SN" // national holiday
	TimeOffVacation        = "CO" // paid vacation
	TimeOffMedical         = "CM" // medical leave
	TimeOffRecovery        = "CR" // recovery leave, paid from the overtime bank
	TimeOffUnpaid          = "CN" // unpaid leave
	TimeOffSpecialEvent    = "CE" // special event
	TimeOffWeekend         = "W"  // weekend work marker
	TimeOffDelegation      = "D"  // delegation; counts as a normal work day
)

// DayType classifies a calendar day for special-day overtime handling.
type DayType string

const (
	DayRegular         DayType = "REGULAR"
	DayNationalHoliday DayType = "NATIONAL_HOLIDAY"
	DayTimeOff         DayType = "TIME_OFF"
	DayMedicalLeave    DayType = "MEDICAL_LEAVE"
	DaySpecialEvent    DayType = "SPECIAL_EVENT"
	DayWeekend         DayType = "WEEKEND"
)

// TimeOffCode returns the code of a special day type, or "" for regular days.
func (d DayType) TimeOffCode() string {
	switch d {
	case DayNationalHoliday:
		return TimeOffNationalHoliday
	case DayTimeOff:
		return TimeOffVacation
	case DayMedicalLeave:
		return TimeOffMedical
	case DaySpecialEvent:
		return TimeOffSpecialEvent
	case DayWeekend:
		return TimeOffWeekend
	default:
		return ""
	}
}

// ZSHours parses a "ZS-<n>" time-off type and returns the deficit hours.
func ZSHours(timeOffType string) (int, bool) {
	rest, ok := strings.CutPrefix(timeOffType, "ZS-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SpecialDayHours parses a "<code>:<h>" time-off type, returning the code
// and the hours worked on the special day.
func SpecialDayHours(timeOffType string) (string, int, bool) {
	code, rest, found := strings.Cut(timeOffType, ":")
	if !found {
		return "", 0, false
	}
	switch code {
	case TimeOffNationalHoliday, TimeOffVacation, TimeOffMedical, TimeOffSpecialEvent, TimeOffWeekend:
	default:
		return "", 0, false
	}
	h, err := strconv.Atoi(rest)
	if err != nil || h < 0 {
		return "", 0, false
	}
	return code, h, true
}

// IsFullDayOff reports whether timeOffType marks a day with no work minutes:
// a plain SN/CO/CM/CE/W code without an hour suffix, or unpaid leave.
func IsFullDayOff(timeOffType string) bool {
	switch timeOffType {
	case TimeOffNationalHoliday, TimeOffVacation, TimeOffMedical, TimeOffSpecialEvent, TimeOffWeekend, TimeOffUnpaid:
		return true
	default:
		return false
	}
}

// CountsAsWorked reports whether an entry with this time-off type counts as
// a worked day in the month summary: ZS-n, CR, and D all do.
func CountsAsWorked(timeOffType string) bool {
	if timeOffType == TimeOffRecovery || timeOffType == TimeOffDelegation {
		return true
	}
	_, isZS := ZSHours(timeOffType)
	return isZS
}
