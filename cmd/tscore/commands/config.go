package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/tscore/backend/internal/scoringconfig"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "스코어링 설정 검증/출력",
	Long: `스코어링 YAML 설정을 검증하거나 기본값이 채워진 최종 설정을 출력합니다.

Example:
  go run ./cmd/tscore config validate
  go run ./cmd/tscore config validate --config config/scoring.yaml
  go run ./cmd/tscore config show`,
}

var (
	configValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "설정 검증 (경고 포함)",
		RunE:  runConfigValidate,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "최종 설정 출력",
		RunE:  runConfigShow,
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// loadScoringConfig resolves the path from --config or SCORING_CONFIG
func loadScoringConfig() (*scoringconfig.Config, []byte, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, "", err
	}

	path := cfg.Scoring.ConfigPath
	sc, raw, err := scoringconfig.Load(path)
	if err != nil {
		return nil, nil, path, err
	}
	return sc, raw, path, nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	sc, _, path, err := loadScoringConfig()
	if err != nil {
		return fmt.Errorf("❌ %s: %w", path, err)
	}

	hash, err := scoringconfig.Hash(sc)
	if err != nil {
		return err
	}

	PrintHeader("Scoring Config")
	fmt.Printf("  Path    : %s\n", path)
	fmt.Printf("  ID      : %s (v%s)\n", sc.Meta.ConfigID, sc.Meta.Version)
	fmt.Printf("  Hash    : %s\n", hash)
	fmt.Printf("  Weights : repo %.2f  div %.2f  vol %.2f  vola %.2f (sum %.2f)\n",
		sc.Weights.RepoSpread, sc.Weights.PriceDivergence, sc.Weights.Volume, sc.Weights.Volatility, sc.Weights.Sum())
	PrintSeparator()

	warnings := scoringconfig.Warn(sc)
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}

	PrintSuccess(fmt.Sprintf("Config valid (%d warnings)", len(warnings)))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	sc, _, path, err := loadScoringConfig()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	out, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	fmt.Printf("# effective config: %s\n", path)
	fmt.Print(string(out))
	return nil
}
