// Package merge implements the universal two-way merge over the shared
// sync-status vocabulary. The decision procedure is an ordered rule list;
// the first matching rule fires, and the result is always one of the two
// inputs (or nil, meaning the entity is removed).
package merge

import (
	"time"

	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/log"
)

// EntityKind selects the entity-specific merge hook. The only hook in the
// closed rule set is whether USER_IN_PROCESS is meaningful, which holds for
// worktime entries alone.
type EntityKind int

const (
	KindWorktime EntityKind = iota
	KindRegister
	KindCheckRegister
	KindTimeOff
)

func (k EntityKind) String() string {
	switch k {
	case KindWorktime:
		return "worktime"
	case KindRegister:
		return "register"
	case KindCheckRegister:
		return "check_register"
	case KindTimeOff:
		return "timeoff"
	default:
		return "unknown"
	}
}

// inProcessMeaningful is the single entity-kind hook of the rule set.
func (k EntityKind) inProcessMeaningful() bool { return k == KindWorktime }

// Direction labels a list merge for logging; the merge itself is symmetric.
type Direction string

const (
	AdminToUser  Direction = "ADMIN_TO_USER" // user login reconciliation
	UserToAdmin  Direction = "USER_TO_ADMIN" // admin consolidation over user files
	TeamChecking Direction = "TEAM_CHECKING" // team-leader review pass
)

// Entity is the constraint for mergeable records: any pointer type carrying
// a sync status.
type Entity interface {
	comparable
	SyncStatus() string
	SetSyncStatus(string)
}

// Entries merges two versions of the same entity. A nil result means the
// entity is removed (a deletion tombstone won). Inputs are not mutated;
// the winner is returned as-is.
func Entries[P Entity](a, b P, kind EntityKind) P {
	var zero P

	// Rule 8: one side absent.
	if a == zero && b == zero {
		return zero
	}
	if a == zero {
		return collapseTombstone(b, zero)
	}
	if b == zero {
		return collapseTombstone(a, zero)
	}

	winner := decide(parseFor(a, kind), parseFor(b, kind), kind)
	if winner == sideRight {
		return collapseTombstone(b, zero)
	}
	return collapseTombstone(a, zero)
}

type side int

const (
	sideLeft side = iota
	sideRight
)

// parseFor normalizes the raw status, demoting USER_IN_PROCESS to USER_INPUT
// for kinds where the protected state is not meaningful.
func parseFor[P Entity](e P, kind EntityKind) domain.Status {
	parsed := domain.ParseStatus(e.SyncStatus())
	if parsed.Kind == domain.KindInProcess && !kind.inProcessMeaningful() {
		return domain.Status{Kind: domain.KindInput, Editor: domain.EditorUser}
	}
	return parsed
}

// decide applies the ordered rule list. Ties always resolve to the left side
// so that both replay orders converge on the same entry content.
func decide(a, b domain.Status, kind EntityKind) side {
	aFinal := a.Kind == domain.KindFinal
	bFinal := b.Kind == domain.KindFinal

	// Rule 1: FINAL is immovable; ADMIN_FINAL outranks TEAM_FINAL.
	if aFinal || bFinal {
		switch {
		case aFinal && bFinal:
			if b.Editor.Priority() > a.Editor.Priority() {
				return sideRight
			}
			return sideLeft
		case aFinal:
			return sideLeft
		default:
			return sideRight
		}
	}

	// Rule 2: versioned statuses (edits and deletion tombstones) compare by
	// timestamp, then editor priority, then left.
	aVersioned := a.Kind == domain.KindEdited || a.Kind == domain.KindDeleted
	bVersioned := b.Kind == domain.KindEdited || b.Kind == domain.KindDeleted
	if aVersioned && bVersioned {
		switch {
		case a.Timestamp > b.Timestamp:
			return sideLeft
		case b.Timestamp > a.Timestamp:
			return sideRight
		case b.Editor.Priority() > a.Editor.Priority():
			return sideRight
		default:
			return sideLeft
		}
	}

	aProtected := a.Kind == domain.KindInProcess
	bProtected := b.Kind == domain.KindInProcess

	// Rules 3/4: the in-progress entry yields only to a completed USER_INPUT.
	if aProtected || bProtected {
		switch {
		case aProtected && bProtected:
			return sideLeft
		case aProtected:
			if b.Kind == domain.KindInput && b.Editor == domain.EditorUser {
				return sideRight
			}
			if bVersioned {
				return sideRight
			}
			return sideLeft
		default:
			if a.Kind == domain.KindInput && a.Editor == domain.EditorUser {
				return sideLeft
			}
			if aVersioned {
				return sideLeft
			}
			return sideRight
		}
	}

	// Rule 6: a versioned edit beats any base input.
	if aVersioned {
		return sideLeft
	}
	if bVersioned {
		return sideRight
	}

	// Rule 5: both base inputs; editor priority, ties left.
	if a.Kind == domain.KindInput && b.Kind == domain.KindInput {
		if b.Editor.Priority() > a.Editor.Priority() {
			return sideRight
		}
		return sideLeft
	}

	// Rule 9: nothing fired. Non-fatal; the left side wins.
	log.Warn(log.CatMerge, "merge fallback rule fired", "kind", kind.String())
	return sideLeft
}

// collapseTombstone turns a winning deletion tombstone into a nil result.
func collapseTombstone[P Entity](winner, zero P) P {
	if domain.IsDeletionStatus(winner.SyncStatus()) {
		return zero
	}
	return winner
}

// Lists merges two lists of the same entity kind. Entries pair up by merge
// key; the union of keys is evaluated and tombstone results are dropped.
// Output preserves left-list order first, then right-only keys in input order.
func Lists[P Entity](left, right []P, kind EntityKind, key func(P) string, direction Direction) []P {
	var zero P

	rightByKey := make(map[string]P, len(right))
	for _, e := range right {
		rightByKey[key(e)] = e
	}

	merged := make([]P, 0, len(left)+len(right))
	seen := make(map[string]struct{}, len(left))

	for _, l := range left {
		k := key(l)
		seen[k] = struct{}{}
		result := Entries(l, rightByKey[k], kind)
		if result != zero {
			merged = append(merged, result)
		}
	}
	for _, r := range right {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		result := Entries(zero, r, kind)
		if result != zero {
			merged = append(merged, result)
		}
	}

	log.Debug(log.CatMerge, "list merge complete",
		"direction", string(direction), "kind", kind.String(),
		"left", len(left), "right", len(right), "merged", len(merged))

	return merged
}

// Finalize stamps every entry with a final status. Only ADMIN_FINAL and
// TEAM_FINAL are accepted; anything else is a programmer error.
func Finalize[P Entity](entries []P, finalStatus string) {
	if finalStatus != domain.StatusAdminFinal && finalStatus != domain.StatusTeamFinal {
		panic("merge: Finalize requires ADMIN_FINAL or TEAM_FINAL, got " + finalStatus)
	}
	for _, e := range entries {
		e.SetSyncStatus(finalStatus)
	}
}

// MarkDeleted stamps an entry with an editor-prefixed deletion tombstone at
// the current minute.
func MarkDeleted[P Entity](entry P, editor domain.Editor, now time.Time) {
	entry.SetSyncStatus(domain.NewDeletedStatus(editor, now))
}
