package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	scoringConfig string
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tscore",
	Short: "Treasury composite signal scoring engine",
	Long: `tscore - Treasury Composite Signal Scoring

미 국채 종목별 시그널(레포 스프레드, 가격 괴리, 거래량, 변동성)을
하나의 종합 점수와 리스크 등급으로 변환하는 배치 엔진.

Usage:
  go run ./cmd/tscore [command]

Examples:
  go run ./cmd/tscore score run --snapshot testdata/snapshot.json
  go run ./cmd/tscore config validate
  go run ./cmd/tscore scheduler start
  go run ./cmd/tscore db check`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&scoringConfig, "config", "", "scoring config YAML (default: SCORING_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
