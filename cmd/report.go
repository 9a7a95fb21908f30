package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/chronotable/timecard/internal/accessor"
	"github.com/chronotable/timecard/internal/calc"
	"github.com/chronotable/timecard/internal/domain"
)

var (
	reportYear   int
	reportMonth  int
	reportUser   string
	reportUserID int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the monthly worktime report",
	Long: `Show the worktime entries and totals for a month. By default the
report covers the configured user's own data; admins and team leaders can
pass --user and --user-id to view someone else's network copy.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	now := time.Now()
	reportCmd.Flags().IntVar(&reportYear, "year", now.Year(), "report year")
	reportCmd.Flags().IntVar(&reportMonth, "month", int(now.Month()), "report month (1-12)")
	reportCmd.Flags().StringVar(&reportUser, "user", "", "target username (defaults to yourself)")
	reportCmd.Flags().IntVar(&reportUserID, "user-id", 0, "target user id (required with --user)")
}

func runReport(_ *cobra.Command, _ []string) error {
	if reportMonth < 1 || reportMonth > 12 {
		return fmt.Errorf("month out of range: %d", reportMonth)
	}
	month := time.Month(reportMonth)

	svc, err := buildServices()
	if err != nil {
		return err
	}

	target := svc.user
	if reportUser != "" && reportUser != svc.user.Username {
		if reportUserID <= 0 {
			return fmt.Errorf("--user-id is required with --user")
		}
		target = domain.User{Username: reportUser, UserID: reportUserID, ScheduleHours: svc.user.ScheduleHours}
	}

	acc := accessor.For(svc.user, target, accessor.Deps{
		Resolver: svc.resolver,
		Txn:      svc.txns,
		Backups:  svc.backups,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := acc.ReadWorktime(ctx, reportYear, month)
	if err != nil {
		return fmt.Errorf("reading worktime: %w", err)
	}

	rows := calc.DisplayRows(entries, target.ScheduleHours)
	summary := calc.SummarizeRows(rows, target.ScheduleHours, reportYear, month)

	color.New(color.Bold).Printf("%s — %s %d\n\n", target.Username, month, reportYear)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Type", "Raw", "Processed", "Overtime"})
	table.SetBorder(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	for _, row := range rows {
		kind := row.TimeOffType
		if kind == "" {
			kind = "WORK"
		}
		if row.InProcess {
			kind += " *"
		}
		table.Append([]string{
			row.Date.Format("2006-01-02"),
			kind,
			formatMinutes(row.RawMinutes),
			formatMinutes(row.ProcessedMinutes),
			formatMinutes(row.OvertimeMinutes),
		})
	}
	table.Render()

	fmt.Println()
	fmt.Printf("Days worked: %d of %d weekdays (%d remaining)\n",
		summary.DaysWorked, summary.TotalWorkDays, summary.RemainingWorkDays)
	fmt.Printf("Regular: %s  Overtime: %s\n",
		formatMinutes(summary.RegularMinutes), formatMinutes(summary.OvertimeMinutes))
	if summary.SNDays+summary.CODays+summary.CMDays > 0 {
		fmt.Printf("Time off: SN %d  CO %d  CM %d\n", summary.SNDays, summary.CODays, summary.CMDays)
	}
	return nil
}

func formatMinutes(minutes int) string {
	if minutes == 0 {
		return "-"
	}
	return strconv.Itoa(minutes/60) + "h" + fmt.Sprintf("%02dm", minutes%60)
}
