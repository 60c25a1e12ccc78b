package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tscore/backend/internal/backtest"
	"github.com/wonny/tscore/backend/internal/s0_data"
	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

var (
	replayFrom    string
	replayTo      string
	replayAt      string
	replayWeekend bool
)

// scoreReplayCmd replays historical cycles from the database
var scoreReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "과거 구간 재실행 (저장 없음)",
	Long: `market.* 관측치로 과거 날짜별 사이클을 재실행합니다.
등급은 전일 결과를 이어받으며, 결과는 저장하지 않습니다.
설정 변경이 등급 안정성에 주는 영향을 확인할 때 사용합니다.

Example:
  go run ./cmd/tscore score replay --from 2026-01-05 --to 2026-02-27
  go run ./cmd/tscore score replay --from 2026-01-05 --to 2026-02-27 --config candidate.yaml --out replay.json`,
	RunE: runScoreReplay,
}

func init() {
	scoreCmd.AddCommand(scoreReplayCmd)

	scoreReplayCmd.Flags().StringVar(&replayFrom, "from", "", "start date YYYY-MM-DD (required)")
	scoreReplayCmd.Flags().StringVar(&replayTo, "to", "", "end date YYYY-MM-DD, inclusive (required)")
	scoreReplayCmd.Flags().StringVar(&replayAt, "at", "18h30m", "cycle time of day (UTC offset from midnight)")
	scoreReplayCmd.Flags().BoolVar(&replayWeekend, "weekends", false, "include Saturdays and Sundays")
	scoreReplayCmd.Flags().StringVar(&outPath, "out", "", "write the replay result as JSON")
	_ = scoreReplayCmd.MarkFlagRequired("from")
	_ = scoreReplayCmd.MarkFlagRequired("to")
}

func runScoreReplay(cmd *cobra.Command, args []string) error {
	from, err := time.Parse("2006-01-02", replayFrom)
	if err != nil {
		return fmt.Errorf("parse --from: %w", err)
	}
	to, err := time.Parse("2006-01-02", replayTo)
	if err != nil {
		return fmt.Errorf("parse --to: %w", err)
	}
	offset, err := time.ParseDuration(replayAt)
	if err != nil {
		return fmt.Errorf("parse --at: %w", err)
	}

	rt, err := openRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.Close()

	sc, _, err := scoringconfig.Load(rt.cfg.Scoring.ConfigPath)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(rt.observationRepo(), rt.log)
	res, err := engine.Run(cmd.Context(), backtest.Config{
		StartDate:    from,
		EndDate:      to,
		CycleOffset:  offset,
		SkipWeekends: !replayWeekend,
	}, sc)
	if err != nil {
		return err
	}

	PrintHeader("Replay")
	fmt.Printf("  Window     : %s ~ %s\n", replayFrom, replayTo)
	fmt.Printf("  Cycles     : %d (failed %d)\n", res.Cycles, res.Failed)
	fmt.Printf("  Stability  : %.1f%%\n", res.Stability*100)
	fmt.Printf("  Migrations : %d (↑%d ↓%d)\n", res.TotalMigrations, res.Upgrades, res.Downgrades)
	fmt.Printf("  Composite  : mean %.2f  std %.2f\n", res.MeanComposite, res.StdDevComposite)
	fmt.Printf("  Duration   : %s\n", res.Duration)
	PrintDoubleSeparator()

	for _, d := range res.Days {
		if d.Error != "" {
			PrintWarning(fmt.Sprintf("%s: %s", d.AsOf.Format("2006-01-02"), d.Error))
		}
	}

	if outPath != "" {
		if err := s0_data.WriteJSON(outPath, res); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Replay written to %s", outPath))
	}
	return nil
}
