// Package domain defines the persistent entities and the shared sync-status
// vocabulary carried by every mergeable record.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Base input and terminal statuses. Statuses travel on the wire as plain
// strings; timestamped variants use a single underscore between prefix and
// integer minutes since the Unix epoch, with no zero padding.
const (
	StatusUserInput     = "USER_INPUT"
	StatusTeamInput     = "TEAM_INPUT"
	StatusAdminInput    = "ADMIN_INPUT"
	StatusUserInProcess = "USER_IN_PROCESS"
	StatusTeamFinal     = "TEAM_FINAL"
	StatusAdminFinal    = "ADMIN_FINAL"
)

// Editor identifies who produced a status.
type Editor int

const (
	EditorUser Editor = iota + 1
	EditorTeam
	EditorAdmin
)

// Priority orders editors for tie-breaks: admin beats team beats user.
func (e Editor) Priority() int { return int(e) }

func (e Editor) String() string {
	switch e {
	case EditorUser:
		return "USER"
	case EditorTeam:
		return "TEAM"
	case EditorAdmin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

// StatusKind classifies a parsed sync status.
type StatusKind int

const (
	KindInput StatusKind = iota
	KindInProcess
	KindEdited
	KindFinal
	KindDeleted
)

// Status is the parsed form of an adminSync string.
type Status struct {
	Kind      StatusKind
	Editor    Editor
	Timestamp int64 // minutes since epoch; meaningful for Edited and Deleted
}

// EpochMinutes converts a wall-clock instant to whole minutes since the
// Unix epoch, the granularity used by timestamped statuses.
func EpochMinutes(t time.Time) int64 {
	return t.Unix() / 60
}

// NewEditedStatus builds a freshly timestamped edited status for an editor.
func NewEditedStatus(editor Editor, now time.Time) string {
	return fmt.Sprintf("%s_EDITED_%d", editor, EpochMinutes(now))
}

// NewDeletedStatus builds an editor-prefixed deletion tombstone.
func NewDeletedStatus(editor Editor, now time.Time) string {
	return fmt.Sprintf("%s_DELETED_%d", editor, EpochMinutes(now))
}

// InputStatus returns the base input status for an editor.
func InputStatus(editor Editor) string {
	switch editor {
	case EditorAdmin:
		return StatusAdminInput
	case EditorTeam:
		return StatusTeamInput
	default:
		return StatusUserInput
	}
}

// ParseStatus parses a raw adminSync string. Unrecognized or legacy strings
// normalize to USER_INPUT so stored data from older versions stays readable.
func ParseStatus(raw string) Status {
	switch raw {
	case StatusUserInput:
		return Status{Kind: KindInput, Editor: EditorUser}
	case StatusTeamInput:
		return Status{Kind: KindInput, Editor: EditorTeam}
	case StatusAdminInput:
		return Status{Kind: KindInput, Editor: EditorAdmin}
	case StatusUserInProcess:
		return Status{Kind: KindInProcess, Editor: EditorUser}
	case StatusTeamFinal:
		return Status{Kind: KindFinal, Editor: EditorTeam}
	case StatusAdminFinal:
		return Status{Kind: KindFinal, Editor: EditorAdmin}
	}

	if editor, ts, ok := splitTimestamped(raw, "_EDITED_"); ok {
		return Status{Kind: KindEdited, Editor: editor, Timestamp: ts}
	}
	if editor, ts, ok := splitTimestamped(raw, "_DELETED_"); ok {
		return Status{Kind: KindDeleted, Editor: editor, Timestamp: ts}
	}

	return Status{Kind: KindInput, Editor: EditorUser}
}

// Normalize maps a raw status string to its canonical form. Recognized
// statuses pass through unchanged; everything else becomes USER_INPUT.
func Normalize(raw string) string {
	parsed := ParseStatus(raw)
	if parsed.Kind == KindInput && parsed.Editor == EditorUser && raw != StatusUserInput {
		return StatusUserInput
	}
	return raw
}

// IsTimestampedEditStatus reports whether raw is a versioned edit status.
func IsTimestampedEditStatus(raw string) bool {
	return ParseStatus(raw).Kind == KindEdited
}

// IsFinalStatus reports whether raw is ADMIN_FINAL or TEAM_FINAL.
func IsFinalStatus(raw string) bool {
	return ParseStatus(raw).Kind == KindFinal
}

// IsDeletionStatus reports whether raw is a deletion tombstone.
func IsDeletionStatus(raw string) bool {
	return ParseStatus(raw).Kind == KindDeleted
}

// ExtractTimestamp returns the epoch-minute timestamp of a versioned edit or
// deletion status, or 0 when raw carries no timestamp.
func ExtractTimestamp(raw string) int64 {
	parsed := ParseStatus(raw)
	if parsed.Kind == KindEdited || parsed.Kind == KindDeleted {
		return parsed.Timestamp
	}
	return 0
}

func splitTimestamped(raw, marker string) (Editor, int64, bool) {
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return 0, 0, false
	}

	var editor Editor
	switch raw[:idx] {
	case "USER":
		editor = EditorUser
	case "TEAM":
		editor = EditorTeam
	case "ADMIN":
		editor = EditorAdmin
	default:
		return 0, 0, false
	}

	ts, err := strconv.ParseInt(raw[idx+len(marker):], 10, 64)
	if err != nil || ts < 0 {
		return 0, 0, false
	}
	return editor, ts, true
}
