package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chronotable/timecard/internal/domain"
)

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Control today's work session",
}

var dayStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the workday",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withSession(func(ctx context.Context, s sessionOps) error {
			cur, err := s.StartDay(ctx)
			if err != nil {
				return err
			}
			color.Green("Day started at %s", cur.DayStartTime.Format("15:04"))
			return nil
		})
	},
}

var dayPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Begin a temporary stop",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withSession(func(ctx context.Context, s sessionOps) error {
			cur, err := s.TemporaryStop(ctx)
			if err != nil {
				return err
			}
			color.Yellow("Paused. Stops today: %d", cur.TemporaryStopCount)
			return nil
		})
	},
}

var dayResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume from a temporary stop",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withSession(func(ctx context.Context, s sessionOps) error {
			cur, err := s.Resume(ctx)
			if err != nil {
				return err
			}
			color.Green("Resumed. Stopped for %d minutes total.", cur.TotalTemporaryStopMinutes)
			return nil
		})
	},
}

var dayEndFinalMinutes int

var dayEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the workday",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(func(ctx context.Context, s sessionOps) error {
			var final *int
			if cmd.Flags().Changed("final-minutes") {
				final = &dayEndFinalMinutes
			}
			cur, err := s.EndDay(ctx, final)
			if err != nil {
				return err
			}
			color.Green("Day ended at %s", cur.DayEndTime.Format("15:04"))
			printSession(cur)
			return nil
		})
	},
}

var dayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's session",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withSession(func(ctx context.Context, s sessionOps) error {
			cur, err := s.Refresh(ctx)
			if err != nil {
				return err
			}
			printSession(cur)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dayCmd)
	dayCmd.AddCommand(dayStartCmd, dayPauseCmd, dayResumeCmd, dayEndCmd, dayStatusCmd)

	dayEndCmd.Flags().IntVar(&dayEndFinalMinutes, "final-minutes", 0,
		"override the processed worked minutes for the day")
}

// sessionOps is the slice of the session manager the day commands use.
type sessionOps interface {
	StartDay(ctx context.Context) (*domain.Session, error)
	TemporaryStop(ctx context.Context) (*domain.Session, error)
	Resume(ctx context.Context) (*domain.Session, error)
	EndDay(ctx context.Context, finalMinutes *int) (*domain.Session, error)
	Refresh(ctx context.Context) (*domain.Session, error)
}

func withSession(run func(ctx context.Context, s sessionOps) error) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	sessions, err := svc.sessionManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return run(ctx, sessions)
}

func printSession(s *domain.Session) {
	bold := color.New(color.Bold)
	bold.Printf("%s  ", s.Username)
	switch s.SessionStatus {
	case domain.WorkOnline:
		color.Green("%s", s.SessionStatus)
	case domain.WorkTemporaryStop:
		color.Yellow("%s", s.SessionStatus)
	default:
		color.Red("%s", s.SessionStatus)
	}
	fmt.Printf("  worked: %dm  processed: %dm  overtime: %dm  stops: %d (%dm)\n",
		s.TotalWorkedMinutes, s.FinalWorkedMinutes, s.TotalOvertimeMinutes,
		s.TemporaryStopCount, s.TotalTemporaryStopMinutes)
	if s.LunchBreakDeducted {
		fmt.Println("  lunch break deducted")
	}
	if s.WorkdayCompleted {
		fmt.Println("  workday completed")
	}
}
