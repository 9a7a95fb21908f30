package domain

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a work session.
type SessionStatus string

const (
	WorkOnline        SessionStatus = "WORK_ONLINE"
	WorkTemporaryStop SessionStatus = "WORK_TEMPORARY_STOP"
	WorkOffline       SessionStatus = "WORK_OFFLINE"
)

// TemporaryStop is a pause within a work session. The open stop has a nil
// EndTime; completed stops carry their duration in minutes.
type TemporaryStop struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  int        `json:"duration"` // minutes; 0 while the stop is open
}

// Session is the per-(user, day) work session record.
type Session struct {
	Username                  string          `json:"username"`
	UserID                    int             `json:"userId"`
	SessionStatus             SessionStatus   `json:"sessionStatus"`
	DayStartTime              *time.Time      `json:"dayStartTime,omitempty"`
	CurrentStartTime          *time.Time      `json:"currentStartTime,omitempty"` // start of the latest online run
	DayEndTime                *time.Time      `json:"dayEndTime,omitempty"`
	TotalWorkedMinutes        int             `json:"totalWorkedMinutes"` // raw
	FinalWorkedMinutes        int             `json:"finalWorkedMinutes"` // processed
	TotalOvertimeMinutes      int             `json:"totalOvertimeMinutes"`
	LunchBreakDeducted        bool            `json:"lunchBreakDeducted"`
	WorkdayCompleted          bool            `json:"workdayCompleted"`
	TemporaryStops            []TemporaryStop `json:"temporaryStops"`
	TemporaryStopCount        int             `json:"temporaryStopCount"`
	LastTemporaryStopTime     *time.Time      `json:"lastTemporaryStopTime,omitempty"`
	TotalTemporaryStopMinutes int             `json:"totalTemporaryStopMinutes"`
	LastActivity              time.Time       `json:"lastActivity"`
}

// NewSession constructs a fresh offline session for the current day.
func NewSession(username string, userID int, now time.Time) *Session {
	return &Session{
		Username:       username,
		UserID:         userID,
		SessionStatus:  WorkOffline,
		TemporaryStops: []TemporaryStop{},
		LastActivity:   now,
	}
}

// OpenStop returns the last temporary stop when it has no end time.
func (s *Session) OpenStop() *TemporaryStop {
	if len(s.TemporaryStops) == 0 {
		return nil
	}
	last := &s.TemporaryStops[len(s.TemporaryStops)-1]
	if last.EndTime == nil {
		return last
	}
	return nil
}

// Clone returns a deep copy. Calculation commands mutate copies so a failed
// command can hand the caller back the unmodified original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	dup.TemporaryStops = make([]TemporaryStop, len(s.TemporaryStops))
	copy(dup.TemporaryStops, s.TemporaryStops)
	return &dup
}

// WorktimeEntry is the per-(user, date) row of the monthly worktime table.
type WorktimeEntry struct {
	UserID                    int        `json:"userId"`
	WorkDate                  time.Time  `json:"workDate"`
	DayStartTime              *time.Time `json:"dayStartTime,omitempty"`
	DayEndTime                *time.Time `json:"dayEndTime,omitempty"`
	TotalWorkedMinutes        int        `json:"totalWorkedMinutes"`
	TotalOvertimeMinutes      int        `json:"totalOvertimeMinutes"`
	TotalTemporaryStopMinutes int        `json:"totalTemporaryStopMinutes"`
	TemporaryStopCount        int        `json:"temporaryStopCount"`
	LunchBreakDeducted        bool       `json:"lunchBreakDeducted"`
	TimeOffType               string     `json:"timeOffType,omitempty"`
	AdminSync                 string     `json:"adminSync"`
}

// MergeKey identifies a worktime row within one user's monthly file.
func (w *WorktimeEntry) MergeKey() string {
	return w.WorkDate.Format("2006-01-02")
}

// AggregateKey identifies a worktime row across users, for admin consolidation.
func (w *WorktimeEntry) AggregateKey() string {
	return fmt.Sprintf("%d_%s", w.UserID, w.WorkDate.Format("2006-01-02"))
}

// SyncStatus implements Mergeable.
func (w *WorktimeEntry) SyncStatus() string { return w.AdminSync }

// SetSyncStatus implements Mergeable.
func (w *WorktimeEntry) SetSyncStatus(s string) { w.AdminSync = s }

// RegisterEntry is a work-order row of the monthly register.
type RegisterEntry struct {
	EntryID           int       `json:"entryId"`
	UserID            int       `json:"userId"`
	Date              time.Time `json:"date"`
	OrderID           string    `json:"orderId"`
	ProductionID      string    `json:"productionId,omitempty"`
	OMSID             string    `json:"omsId,omitempty"`
	ClientName        string    `json:"clientName,omitempty"`
	ActionType        string    `json:"actionType"`
	PrintPrepTypes    []string  `json:"printPrepTypes,omitempty"`
	ColorsProfile     string    `json:"colorsProfile,omitempty"`
	ArticleNumbers    int       `json:"articleNumbers"`
	GraphicComplexity float64   `json:"graphicComplexity"`
	Observations      string    `json:"observations,omitempty"`
	AdminSync         string    `json:"adminSync"`
}

// MergeKey identifies a register row.
func (r *RegisterEntry) MergeKey() string {
	return fmt.Sprintf("%d_%s", r.EntryID, r.Date.Format("2006-01-02"))
}

// SyncStatus implements Mergeable.
func (r *RegisterEntry) SyncStatus() string { return r.AdminSync }

// SetSyncStatus implements Mergeable.
func (r *RegisterEntry) SetSyncStatus(s string) { r.AdminSync = s }

// CheckRegisterEntry is a QC-review row of the monthly check register.
type CheckRegisterEntry struct {
	EntryID          int       `json:"entryId"`
	UserID           int       `json:"userId"`
	Date             time.Time `json:"date"`
	OrderID          string    `json:"orderId"`
	ProductionID     string    `json:"productionId,omitempty"`
	DesignerName     string    `json:"designerName"`
	CheckType        string    `json:"checkType"`
	ArticleNumbers   int       `json:"articleNumbers"`
	FilesNumbers     int       `json:"filesNumbers"`
	ErrorDescription string    `json:"errorDescription,omitempty"`
	ApprovalStatus   string    `json:"approvalStatus"`
	OrderValue       float64   `json:"orderValue"`
	AdminSync        string    `json:"adminSync"`
}

// MergeKey identifies a check-register row (entryId plus date).
func (c *CheckRegisterEntry) MergeKey() string {
	return fmt.Sprintf("%d_%s", c.EntryID, c.Date.Format("2006-01-02"))
}

// SyncStatus implements Mergeable.
func (c *CheckRegisterEntry) SyncStatus() string { return c.AdminSync }

// SetSyncStatus implements Mergeable.
func (c *CheckRegisterEntry) SetSyncStatus(s string) { c.AdminSync = s }

// Time-off request approval states.
const (
	TimeOffApproved  = "APPROVED"
	TimeOffPending   = "PENDING"
	TimeOffCancelled = "CANCELLED"
)

// TimeOffRequest is one entry of the annual time-off tracker.
type TimeOffRequest struct {
	Date   time.Time `json:"date"`
	Type   string    `json:"type"`
	Status string    `json:"status"`
}

// TimeOffTracker is the per-(user, year) time-off artifact. The paid-vacation
// balance is deliberately absent here: it lives on the user record.
type TimeOffTracker struct {
	UserID   int              `json:"userId"`
	Year     int              `json:"year"`
	Requests []TimeOffRequest `json:"requests"`
}

// User is the user record. PaidHolidayDays is the only authoritative source
// of the paid-vacation balance.
type User struct {
	Username        string `json:"username"`
	UserID          int    `json:"userId"`
	Name            string `json:"name"`
	Role            Role   `json:"role"`
	ScheduleHours   int    `json:"scheduleHours"`
	PaidHolidayDays int    `json:"paidHolidayDays"`
}

// Role is the caller role used for access routing and status promotion.
type Role string

const (
	RoleUser       Role = "USER"
	RoleTeamLeader Role = "TEAM_LEADER"
	RoleAdmin      Role = "ADMIN"
)

// Editor maps a role to its status editor.
func (r Role) Editor() Editor {
	switch r {
	case RoleAdmin:
		return EditorAdmin
	case RoleTeamLeader:
		return EditorTeam
	default:
		return EditorUser
	}
}
