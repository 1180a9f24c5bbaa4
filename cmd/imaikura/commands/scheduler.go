package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/creco/imaikura/internal/scheduler"
	"github.com/creco/imaikura/internal/scheduler/jobs"
	"github.com/creco/imaikura/internal/seo"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "スケジューラー管理",
	Long: `スケジューラーを起動、またはジョブを管理します。

Subcommands:
  start - スケジューラー起動
  list  - 登録ジョブ一覧
  run   - ジョブを即時実行

Example:
  go run ./cmd/imaikura scheduler start
  go run ./cmd/imaikura scheduler list
  go run ./cmd/imaikura scheduler run rates_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "スケジューラー起動",
		Long: `登録ジョブをすべてスケジュールして起動します。

登録されるジョブ:
- rates_refresh: RATES_REFRESH_SCHEDULE (為替レート再取得)
- sitemap: SITEMAP_SCHEDULE (sitemap.xml と計算ページの再生成)

Ctrl+C で終了します。`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "登録ジョブ一覧",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "ジョブを即時実行",
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

// newScheduler registers the jobs on a loaded app
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	renderer, err := seo.NewRenderer(a.cfg.Site)
	if err != nil {
		return nil, err
	}
	plan, err := seo.LoadPlan(a.cfg.Site.RoutePlanPath)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(a.log, scheduler.Options{
		MaxRetries: a.cfg.Rates.MaxRetries,
		RetryDelay: a.cfg.Rates.RetryDelay,
	})

	jobList := []scheduler.Job{
		jobs.NewRatesRefreshJob(a.fetcher, a.cfg.Rates.RefreshSchedule, a.log),
		jobs.NewSitemapJob(a.service, plan, a.cfg.Site.Domain, a.cfg.Site.OutputDir,
			seo.NewPrerenderer(a.service, renderer, a.log), a.cfg.Site.SitemapSchedule, a.log),
	}
	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

// initScheduler bootstraps the app and its scheduler
func initScheduler(cmd *cobra.Command) (*app, *scheduler.Scheduler, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if err := a.loadCPI(cmd.Context()); err != nil {
		a.Close()
		return nil, nil, err
	}

	sched, err := newScheduler(a)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== imaikura Scheduler ===")

	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched.Start()

	PrintSuccess("Scheduler started")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobs(sched)

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	name := args[0]

	a, sched, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	fmt.Printf("Running job: %s\n", name)

	result, err := sched.RunNow(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempts: %s", name, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", name)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s", name, result.Duration.Round(time.Millisecond)))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.Stats()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	widths := []int{16, 16, 6, 8}
	PrintTableHeader([]string{"Job", "Schedule", "Runs", "Success"}, widths)
	for _, name := range names {
		st := stats[name]
		PrintTableRow([]string{
			name,
			st.Schedule,
			fmt.Sprintf("%d", st.TotalRuns),
			fmt.Sprintf("%.0f%%", st.SuccessRate*100),
		}, widths)
	}
}
