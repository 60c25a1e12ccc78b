package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tscore/backend/internal/audit"
	"github.com/wonny/tscore/backend/internal/contracts"
	"github.com/wonny/tscore/backend/internal/s0_data"
	"github.com/wonny/tscore/backend/internal/scheduler/jobs"
	"github.com/wonny/tscore/backend/pkg/redis"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "스코어링 사이클 실행/조회",
	Long: `스코어링 사이클을 실행하거나 저장된 결과를 조회합니다.

Subcommands:
  run      - 사이클 1회 실행 (파일 또는 DB 스냅샷)
  history  - 저장된 사이클 목록
  show     - 저장된 사이클의 종목별 점수

Example:
  go run ./cmd/tscore score run --snapshot snapshot.json --out scores.json
  go run ./cmd/tscore score run --snapshot day2.json --previous scores.json
  go run ./cmd/tscore score run --as-of 2026-03-02T18:30:00Z --persist
  go run ./cmd/tscore score history --limit 5`,
}

var (
	snapshotPath string
	previousPath string
	outPath      string
	asOfFlag     string
	persist      bool
	historyLimit int
)

var (
	scoreRunCmd = &cobra.Command{
		Use:   "run",
		Short: "사이클 1회 실행",
		Long: `스냅샷을 읽어 사이클을 1회 실행합니다.

--snapshot 이 주어지면 JSON 파일을, 아니면 DB(market.*)를 읽습니다.
--previous 는 이전 score run 출력 파일이며 히스테리시스에 사용됩니다.
--persist 는 결과를 scoring.* 테이블에 저장합니다 (DATABASE_URL 필요).`,
		RunE: runScore,
	}

	scoreHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "저장된 사이클 목록",
		RunE:  runScoreHistory,
	}

	scoreShowCmd = &cobra.Command{
		Use:   "show [cycle_id]",
		Short: "저장된 사이클의 종목별 점수",
		Args:  cobra.ExactArgs(1),
		RunE:  runScoreShow,
	}
)

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.AddCommand(scoreRunCmd)
	scoreCmd.AddCommand(scoreHistoryCmd)
	scoreCmd.AddCommand(scoreShowCmd)

	scoreRunCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "observation snapshot JSON (default: read from database)")
	scoreRunCmd.Flags().StringVar(&previousPath, "previous", "", "previous score run output for hysteresis")
	scoreRunCmd.Flags().StringVar(&outPath, "out", "", "write scores as JSON to this path")
	scoreRunCmd.Flags().StringVar(&asOfFlag, "as-of", "", "cycle time, RFC3339 (database mode, default now)")
	scoreRunCmd.Flags().BoolVar(&persist, "persist", false, "save the cycle to the database")

	scoreHistoryCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of cycles")
}

// runOutput is the document written by --out and read by --previous
type runOutput struct {
	CycleID    string                      `json:"cycle_id"`
	AsOf       time.Time                   `json:"as_of"`
	ConfigHash string                      `json:"config_hash"`
	Scores     []contracts.CompositeScore  `json:"scores"`
	Next       contracts.CategoryMap       `json:"next"`
	Notes      []contracts.DataQualityNote `json:"notes,omitempty"`
	Report     *audit.CycleReport          `json:"report"`
}

// fixedCategories serves categories from a previous output file
type fixedCategories struct {
	categories contracts.CategoryMap
}

func (f fixedCategories) Previous(context.Context, time.Time) (contracts.CategoryMap, error) {
	return f.categories, nil
}

func (f fixedCategories) Remember(context.Context, time.Time, contracts.CategoryMap) error {
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, persist || snapshotPath == "")
	if err != nil {
		return err
	}
	defer rt.Close()

	deps := jobs.ScoringCycleDeps{
		Categories: rt.categoryStore(),
		Recorder:   rt.recorder,
		Logger:     rt.log,
	}

	// 1. 스냅샷 소스
	asOf := time.Now().UTC()
	if snapshotPath != "" {
		snap, err := s0_data.LoadSnapshotFile(snapshotPath)
		if err != nil {
			return err
		}
		deps.Source = s0_data.NewStaticSource(snap)
		asOf = snap.AsOf
	} else {
		if asOfFlag != "" {
			if asOf, err = time.Parse(time.RFC3339, asOfFlag); err != nil {
				return fmt.Errorf("parse --as-of: %w", err)
			}
		}
		deps.Source = rt.observationRepo()
	}

	// 2. 이전 등급: 파일 > Redis/DB
	if previousPath != "" {
		prev, err := readPreviousOutput(previousPath)
		if err != nil {
			return err
		}
		deps.Categories = fixedCategories{categories: prev}
	}

	// 3. 저장
	if persist {
		deps.Cycles = rt.scoreRepo()
		deps.Quality = rt.qualityRepo()
		deps.Locker = redis.NewLocker(rt.redis, cachePrefix)
	}

	job := jobs.NewScoringCycleJob(rt.cfg, deps)
	out, err := job.RunCycle(ctx, asOf)
	if err != nil {
		return err
	}

	PrintCycleSummary(out.Report)
	PrintScores(out.Result.Scores)

	if outPath != "" {
		doc := runOutput{
			CycleID:    out.Result.CycleID,
			AsOf:       out.Result.AsOf,
			ConfigHash: out.Result.ConfigHash,
			Scores:     out.Result.Scores,
			Next:       out.Result.Next,
			Notes:      out.Result.Notes,
			Report:     out.Report,
		}
		if err := s0_data.WriteJSON(outPath, doc); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Scores written to %s", outPath))
	}

	return nil
}

// readPreviousOutput loads the category map of a previous run output
func readPreviousOutput(path string) (contracts.CategoryMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read previous output: %w", err)
	}

	var doc runOutput
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode previous output %s: %w", path, err)
	}
	if doc.Next == nil {
		return contracts.CategoriesOf(doc.Scores), nil
	}
	return doc.Next, nil
}

func runScoreHistory(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.Close()

	cycles, err := rt.scoreRepo().ListCycles(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	PrintCycles(cycles)
	return nil
}

func runScoreShow(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.Close()

	repo := rt.scoreRepo()
	rec, err := repo.GetCycle(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	scores, err := repo.GetScores(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	PrintCycles([]audit.CycleRecord{*rec})
	PrintScores(scores)
	return nil
}
