package domain

// FileKind names a logical artifact class persisted on the dual store.
type FileKind string

const (
	FileSession       FileKind = "session"
	FileWorktime      FileKind = "worktime"
	FileRegister      FileKind = "register"
	FileCheckRegister FileKind = "check_register"
	FileTimeOff       FileKind = "timeoff"
	FileUsers         FileKind = "users"
	FileStatus        FileKind = "status"
	FileLog           FileKind = "log"
)

// Criticality is the backup-retention tier of a file kind.
type Criticality int

const (
	// CriticalityLow keeps no backup after a successful write.
	CriticalityLow Criticality = iota
	// CriticalityMedium keeps the sidecar backup until the next successful write.
	CriticalityMedium
	// CriticalityHigh additionally keeps timestamped backups indefinitely.
	CriticalityHigh
)

func (c Criticality) String() string {
	switch c {
	case CriticalityLow:
		return "low"
	case CriticalityMedium:
		return "medium"
	case CriticalityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Criticality returns the backup tier of the kind: status flags and logs are
// disposable, session files survive one write cycle, and the bookkeeping
// artifacts keep their full backup history.
func (k FileKind) Criticality() Criticality {
	switch k {
	case FileStatus, FileLog:
		return CriticalityLow
	case FileSession:
		return CriticalityMedium
	default:
		return CriticalityHigh
	}
}

// Valid reports whether k is one of the declared kinds.
func (k FileKind) Valid() bool {
	switch k {
	case FileSession, FileWorktime, FileRegister, FileCheckRegister,
		FileTimeOff, FileUsers, FileStatus, FileLog:
		return true
	default:
		return false
	}
}
