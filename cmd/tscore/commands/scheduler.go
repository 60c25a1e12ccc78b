package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tscore/backend/internal/scheduler"
	"github.com/wonny/tscore/backend/internal/scheduler/jobs"
	"github.com/wonny/tscore/backend/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 즉시 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/tscore scheduler start
  go run ./cmd/tscore scheduler list
  go run ./cmd/tscore scheduler run scoring_cycle`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- scoring_cycle: SCORING_SCHEDULE (기본 평일 18:30, 사이클 실행)
- retention: RETENTION_SCHEDULE (기본 일요일 03:00, 오래된 사이클 정리)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	rt, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	sched.Start()

	PrintHeader("tscore Scheduler")
	for name, st := range sched.GetJobStats() {
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format(time.RFC3339)
		}
		fmt.Printf("  %-14s %-18s next %s\n", name, st.Schedule, next)
	}
	PrintSeparator()
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	rt, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	rt, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	res, err := sched.RunNow(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	switch {
	case res.Success:
		PrintSuccess(fmt.Sprintf("%s completed in %s (%d attempts)", res.JobName, res.Duration, res.Attempts))
	case res.Skipped:
		PrintWarning(fmt.Sprintf("%s skipped: %s", res.JobName, res.Error))
	default:
		return fmt.Errorf("❌ %s failed after %d attempts: %s", res.JobName, res.Attempts, res.Error)
	}
	return nil
}

// initScheduler wires the database-backed jobs
func initScheduler(ctx context.Context) (*runtime, *scheduler.Scheduler, error) {
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return nil, nil, err
	}

	scores := rt.scoreRepo()
	qualityRepo := rt.qualityRepo()

	sched := scheduler.New(rt.log)

	cycleJob := jobs.NewScoringCycleJob(rt.cfg, jobs.ScoringCycleDeps{
		Source:     rt.observationRepo(),
		Categories: rt.categoryStore(),
		Cycles:     scores,
		Quality:    qualityRepo,
		Locker:     redis.NewLocker(rt.redis, cachePrefix),
		Recorder:   rt.recorder,
		Logger:     rt.log,
	})

	retentionJob := jobs.NewRetentionJob(rt.cfg.Scoring.RetentionSchedule, rt.cfg.Scoring.Retention, map[string]jobs.Pruner{
		"scoring.cycles":                 scores,
		"scoring.data_quality_snapshots": qualityRepo,
	}, rt.log)

	for _, job := range []scheduler.Job{cycleJob, retentionJob} {
		if err := sched.AddJob(job); err != nil {
			rt.Close()
			return nil, nil, err
		}
	}

	return rt, sched, nil
}
