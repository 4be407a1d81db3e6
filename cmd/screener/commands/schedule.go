package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/valuescreen/internal/report"
	"github.com/wonny/valuescreen/internal/scheduler"
)

var (
	scheduleSpec    string
	scheduleOutDir  string
	scheduleTimeout time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-run the screen on a cron cadence",
	Long: `schedule runs the screen on the given cron expression and writes a
dated CSV report into the output directory after each run. The process
stays in the foreground until interrupted.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "0 18 * * 1-5", "cron expression for the refresh")
	scheduleCmd.Flags().StringVar(&scheduleOutDir, "output-dir", "reports", "directory for dated screen reports")
	scheduleCmd.Flags().DurationVar(&scheduleTimeout, "job-timeout", 10*time.Minute, "per-run timeout, 0 for none")
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tickers, err := resolveTickers()
	if err != nil {
		return err
	}
	runner, err := a.buildRunner(tickers)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(scheduleOutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	sched := scheduler.New(a.log, scheduleTimeout)
	err = sched.Add(scheduleSpec, "screen-refresh", func(jobCtx context.Context) error {
		asOf := time.Now().UTC().Truncate(24 * time.Hour)
		res, err := runner.Screen(jobCtx, asOf)
		if err != nil {
			return err
		}

		path := filepath.Join(scheduleOutDir, "screen-"+asOf.Format("2006-01-02")+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		if err := report.WriteScreenCSV(f, res); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		a.log.WithField("path", path).Info("report written")
		return nil
	})
	if err != nil {
		return err
	}

	sched.Start()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return sched.Stop(shutdownCtx)
}
