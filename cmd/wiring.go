package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronotable/timecard/internal/accessor"
	"github.com/chronotable/timecard/internal/backup"
	"github.com/chronotable/timecard/internal/calc"
	"github.com/chronotable/timecard/internal/domain"
	"github.com/chronotable/timecard/internal/paths"
	"github.com/chronotable/timecard/internal/session"
	"github.com/chronotable/timecard/internal/txn"
)

// services bundles the core collaborators every command needs.
type services struct {
	user     domain.User
	resolver *paths.Resolver
	backups  *backup.Service
	txns     *txn.Manager
}

func buildServices() (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolver, err := paths.NewResolver(cfg.LocalRoot, cfg.NetworkRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving store roots: %w", err)
	}

	return &services{
		user: domain.User{
			Username:        cfg.User.Username,
			UserID:          cfg.User.UserID,
			Name:            cfg.User.Name,
			Role:            domain.Role(cfg.User.Role),
			ScheduleHours:   cfg.User.ScheduleHours,
			PaidHolidayDays: cfg.User.PaidHolidayDays,
		},
		resolver: resolver,
		backups:  backup.NewService(cfg.EffectiveBackupDir()),
		txns:     txn.NewManager(resolver.Locks()),
	}, nil
}

// sessionManager builds the session state machine over the local file store.
func (s *services) sessionManager() (*session.Manager, error) {
	store := session.NewFileStore(s.resolver, s.backups, s.user)
	return session.NewManager(s.user, store, session.WithArchiver(s.archiveStaleSession)), nil
}

// archiveStaleSession preserves a previous day's leftover session before the
// reset: the session file gets a timestamped backup, and the stale day's
// totals are written into that day's worktime row so an unfinished day does
// not lose its minutes. A session that never started has no row to write.
func (s *services) archiveStaleSession(ctx context.Context, stale *domain.Session) error {
	fp, err := s.resolver.ResolveLocal(domain.FileSession, s.user, paths.Params{})
	if err != nil {
		return err
	}
	if _, err := s.backups.Timestamped(fp.Path, s.user.Username, domain.FileSession); err != nil {
		return err
	}
	if stale.DayStartTime == nil {
		return nil
	}

	closed := stale
	if !closed.WorkdayCompleted {
		closed, err = calc.CalculateEndDayValues(closed, closed.LastActivity, nil)
		if err != nil {
			return err
		}
	}

	acc := accessor.For(s.user, s.user, accessor.Deps{
		Resolver: s.resolver,
		Txn:      s.txns,
		Backups:  s.backups,
	})
	if err := acc.WriteWorktimeEntry(ctx, calc.EntryFromSession(closed), s.user.Role); err != nil {
		// A finalized row is already sealed; nothing left to preserve.
		if errors.Is(err, accessor.ErrFinalEntry) {
			return nil
		}
		return err
	}
	return nil
}
