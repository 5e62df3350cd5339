package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/camden-git/attendancebackend/attendance"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Finalize every subject's attendance for one day",
	Long: `Finalize closes a day: open records are derived and locked, and subjects
without a record get an absent (or on-leave) record. Running it twice is safe.`,
	RunE: runFinalize,
}

func init() {
	rootCmd.AddCommand(finalizeCmd)
	finalizeCmd.Flags().String("day", "", "Day to finalize as YYYY-MM-DD (default: yesterday in the policy timezone)")
}

func runFinalize(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	day := mustGetString(cmd, "day")
	if day == "" {
		policy, err := a.policies.Active(ctx)
		if err != nil {
			return err
		}
		day = attendance.DayKey(time.Now().AddDate(0, 0, -1), policy.Location())
	}

	report, err := a.attendance.Finalize(ctx, day)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
