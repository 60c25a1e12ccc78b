package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/wonny/tscore/backend/internal/audit"
	"github.com/wonny/tscore/backend/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted section header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println()
	fmt.Printf("✅ %s\n", message)
}

// PrintCycleSummary prints the header block of a cycle report
func PrintCycleSummary(r *audit.CycleReport) {
	PrintHeader("Scoring Cycle")
	fmt.Printf("  Cycle ID  : %s\n", r.CycleID)
	fmt.Printf("  As Of     : %s\n", r.AsOf.Format(time.RFC3339))
	fmt.Printf("  Config    : %s\n", shortHash(r.ConfigHash))
	fmt.Printf("  Scoreable : %d / %d\n", r.Scoreable, r.Total)
	if d := r.Distribution; d != nil {
		fmt.Printf("  Composite : mean %.2f  median %.2f  [%.2f, %.2f]\n", d.Mean, d.Median, d.Min, d.Max)
	}
	if len(r.Migrations) > 0 {
		fmt.Printf("  Migrations: %d (↑%d ↓%d)\n", len(r.Migrations), r.Upgrades, r.Downgrades)
	}
	fmt.Printf("  Duration  : %s\n", r.Duration)
	PrintSeparator()

	for _, c := range append(contracts.OrderedCategories(), contracts.CategoryInsufficientData) {
		if n := r.Categories[c]; n > 0 {
			fmt.Printf("  %-18s %d\n", c, n)
		}
	}

	if len(r.Reasons) > 0 {
		reasons := make([]string, 0, len(r.Reasons))
		for code := range r.Reasons {
			reasons = append(reasons, string(code))
		}
		sort.Strings(reasons)
		PrintSeparator()
		for _, code := range reasons {
			fmt.Printf("  %-22s %d\n", code, r.Reasons[contracts.ReasonCode(code)])
		}
	}
	PrintDoubleSeparator()
}

// PrintScores prints one line per security
func PrintScores(scores []contracts.CompositeScore) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CUSIP\tCOMPOSITE\tCONFIDENCE\tCATEGORY\tREASON")
	for _, s := range scores {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f (%s)\t%s\t%s\n",
			s.CUSIP, s.Composite, s.Confidence, s.ConfidenceLevel(), s.Category, s.Reason)
	}
	_ = w.Flush()
}

// PrintCycles prints stored cycle headers
func PrintCycles(cycles []audit.CycleRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CYCLE ID\tAS OF\tSCOREABLE\tCONFIG\tDURATION")
	for _, c := range cycles {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			c.CycleID, c.AsOf.Format(time.RFC3339), c.ScoreableCount, c.TotalCount,
			shortHash(c.ConfigHash), c.Duration)
	}
	_ = w.Flush()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
