// Package paths maps (file kind, user, period) requests onto deterministic
// locations beneath the local and network roots, and owns the per-path
// reader/writer lock registry that serializes writes.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chronotable/timecard/internal/domain"
)

// Kind classifies a resolved path.
type Kind int

const (
	Local Kind = iota
	Network
	Backup
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "LOCAL"
	case Network:
		return "NETWORK"
	case Backup:
		return "BACKUP"
	default:
		return "UNKNOWN"
	}
}

// FilePath is an immutable resolved path with its store kind and, when the
// artifact is user-owned, the owning identity. Passed by value.
type FilePath struct {
	Path     string
	Kind     Kind
	Username string
	UserID   int
}

// Params carries period parameters for kinds that need them. Year and month
// fall back to the current period only when UseCurrentPeriod is set; absent
// parameters otherwise fail resolution.
type Params struct {
	Year             int
	Month            time.Month
	Version          string // log file version tag
	UseCurrentPeriod bool
}

// ErrOutsideRoot is wrapped into translation failures when a path does not
// live under the expected root.
var ErrOutsideRoot = fmt.Errorf("paths: path is not under the expected root")

// Resolver builds file paths beneath the two roots.
type Resolver struct {
	localRoot   string
	networkRoot string
	locks       *LockRegistry
}

// NewResolver validates the roots and constructs a resolver. The network
// root is normalized to UNC form.
func NewResolver(localRoot, networkRoot string) (*Resolver, error) {
	if localRoot == "" {
		return nil, fmt.Errorf("paths: local root is required")
	}
	if networkRoot == "" {
		return nil, fmt.Errorf("paths: network root is required")
	}
	return &Resolver{
		localRoot:   filepath.Clean(localRoot),
		networkRoot: NormalizeNetworkRoot(networkRoot),
		locks:       NewLockRegistry(),
	}, nil
}

// LocalRoot returns the configured local root.
func (r *Resolver) LocalRoot() string { return r.localRoot }

// NetworkRoot returns the normalized network root.
func (r *Resolver) NetworkRoot() string { return r.networkRoot }

// Locks exposes the per-path lock registry.
func (r *Resolver) Locks() *LockRegistry { return r.locks }

// ResolveLocal resolves a path beneath the local root.
func (r *Resolver) ResolveLocal(kind domain.FileKind, user domain.User, p Params) (FilePath, error) {
	if kind == domain.FileLog {
		panic("paths: log files are network-only")
	}
	rel, err := relativePath(kind, user, p)
	if err != nil {
		return FilePath{}, err
	}
	return FilePath{
		Path:     filepath.Join(r.localRoot, rel),
		Kind:     Local,
		Username: user.Username,
		UserID:   user.UserID,
	}, nil
}

// ResolveNetwork resolves a path beneath the network root.
func (r *Resolver) ResolveNetwork(kind domain.FileKind, user domain.User, p Params) (FilePath, error) {
	rel, err := relativePath(kind, user, p)
	if err != nil {
		return FilePath{}, err
	}
	return FilePath{
		Path:     filepath.Join(r.networkRoot, rel),
		Kind:     Network,
		Username: user.Username,
		UserID:   user.UserID,
	}, nil
}

// ToNetwork translates a local path to its network twin by relativizing
// against the local root.
func (r *Resolver) ToNetwork(local FilePath) (FilePath, error) {
	if local.Kind != Local {
		return FilePath{}, fmt.Errorf("paths: ToNetwork requires a LOCAL path, got %s", local.Kind)
	}
	rel, err := relativeTo(r.localRoot, local.Path)
	if err != nil {
		return FilePath{}, err
	}
	out := local
	out.Path = filepath.Join(r.networkRoot, rel)
	out.Kind = Network
	return out, nil
}

// ToLocal translates a network path to its local twin.
func (r *Resolver) ToLocal(network FilePath) (FilePath, error) {
	if network.Kind != Network {
		return FilePath{}, fmt.Errorf("paths: ToLocal requires a NETWORK path, got %s", network.Kind)
	}
	rel, err := relativeTo(r.networkRoot, network.Path)
	if err != nil {
		return FilePath{}, err
	}
	out := network
	out.Path = filepath.Join(r.localRoot, rel)
	out.Kind = Local
	return out, nil
}

// LockFor returns the reader/writer lock registered for a path, creating it
// on first use. The registry is keyed by the exact path string.
func (r *Resolver) LockFor(path string) *PathLock {
	return r.locks.For(path)
}

func relativeTo(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("paths: relativize %q against %q: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q outside %q", ErrOutsideRoot, path, root)
	}
	return rel, nil
}

func relativePath(kind domain.FileKind, user domain.User, p Params) (string, error) {
	if !kind.Valid() {
		panic(fmt.Sprintf("paths: invalid file kind %q", kind))
	}

	switch kind {
	case domain.FileSession:
		return filepath.Join(user.Username,
			fmt.Sprintf("session_%s_%d.json", user.Username, user.UserID)), nil

	case domain.FileWorktime:
		year, month, err := period(p)
		if err != nil {
			return "", err
		}
		return filepath.Join(user.Username, "worktime",
			fmt.Sprintf("worktime_%s_%d_%02d.json", user.Username, year, month)), nil

	case domain.FileRegister:
		year, month, err := period(p)
		if err != nil {
			return "", err
		}
		return filepath.Join(user.Username, "register",
			fmt.Sprintf("register_%s_%d_%d_%02d.json", user.Username, user.UserID, year, month)), nil

	case domain.FileCheckRegister:
		year, month, err := period(p)
		if err != nil {
			return "", err
		}
		return filepath.Join(user.Username, "check_register",
			fmt.Sprintf("check_register_%s_%d_%d_%02d.json", user.Username, user.UserID, year, month)), nil

	case domain.FileTimeOff:
		year, _, err := period(p)
		if err != nil {
			return "", err
		}
		return filepath.Join(user.Username, "timeoff",
			fmt.Sprintf("timeoff_%s_%d_%d.json", user.Username, user.UserID, year)), nil

	case domain.FileUsers:
		return filepath.Join("users",
			fmt.Sprintf("users_%s_%d.json", user.Username, user.UserID)), nil

	case domain.FileStatus:
		return filepath.Join("status",
			fmt.Sprintf("status_%s_%d.json", user.Username, user.UserID)), nil

	case domain.FileLog:
		if p.Version == "" {
			return "", fmt.Errorf("paths: log path requires a version")
		}
		return filepath.Join("logs",
			fmt.Sprintf("%s_%s.log", user.Username, p.Version)), nil

	default:
		panic(fmt.Sprintf("paths: unhandled file kind %q", kind))
	}
}

// period returns the requested (year, month), falling back to the current
// period only when the caller opted in.
func period(p Params) (int, time.Month, error) {
	year, month := p.Year, p.Month
	if year == 0 || month == 0 {
		if !p.UseCurrentPeriod {
			return 0, 0, fmt.Errorf("paths: year and month are required")
		}
		now := time.Now()
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = now.Month()
		}
	}
	if month < time.January || month > time.December {
		panic(fmt.Sprintf("paths: invalid month %d", month))
	}
	return year, month, nil
}

// NormalizeNetworkRoot cleans a configured network root: stray quotes and
// brackets are stripped and leading separators collapse to exactly two, so
// UNC-style roots always begin with a double separator.
func NormalizeNetworkRoot(raw string) string {
	cleaned := strings.Trim(raw, `"'[]`)
	if cleaned == "" {
		return cleaned
	}

	sep := byte('/')
	if strings.ContainsRune(cleaned, '\\') {
		sep = '\\'
	}

	i := 0
	for i < len(cleaned) && (cleaned[i] == '/' || cleaned[i] == '\\') {
		i++
	}
	if i < 2 {
		// Not UNC-style; leave relative, absolute, and drive-letter roots alone.
		return cleaned
	}
	return strings.Repeat(string(sep), 2) + cleaned[i:]
}
