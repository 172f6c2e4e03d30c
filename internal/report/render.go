package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/pipeline"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TopFeatures is how many attribution rows the terminal summary shows.
const TopFeatures = 10

// FormatAUC prints an undefined roc_auc as "n/a".
func FormatAUC(auc *float64) string {
	if auc == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*auc, 'f', 4, 64)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// RankingTable renders the ranked results, one row per backend.
func RankingTable(r *pipeline.Report) string {
	rows := make([][]string, 0, len(r.Ranking.Results))
	for i, res := range r.Ranking.Results {
		if !res.Available {
			rows = append(rows, []string{"-", res.Model, res.Family.String(), "-", "-", "-", "unavailable"})
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			res.Model,
			res.Family.String(),
			formatScore(res.Accuracy),
			formatScore(res.F1),
			FormatAUC(res.ROCAUC),
			"ok",
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(BorderColor)).
		Headers("#", "MODEL", "FAMILY", "ACCURACY", "F1", "ROC AUC", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			if row < 0 || row >= len(r.Ranking.Results) {
				return CellStyle
			}
			res := r.Ranking.Results[row]
			switch {
			case !res.Available:
				return CellStyle.Foreground(lipgloss.Color("#888888"))
			case col == 4:
				return scoreStyle(res.F1)
			case row == 0:
				return BestRowStyle
			default:
				return CellStyle
			}
		})
	return t.String()
}

// AttributionTable renders the top features of the attribution summary.
func AttributionTable(r *pipeline.Report, n int) string {
	if r.Attribution == nil {
		return ""
	}
	top := r.Attribution.Top(n)
	rows := make([][]string, len(top))
	for i, f := range top {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			f.Name,
			strconv.FormatFloat(f.MeanAbs, 'f', 6, 64),
			strconv.FormatFloat(f.Mean, 'f', 6, 64),
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(BorderColor)).
		Headers("#", "FEATURE", "MEAN |SHAP|", "MEAN SHAP").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		}).
		String()
}

// Print writes the human-readable run summary: trained backends, the
// ranking, then the attribution or the reason it was skipped.
func Print(w io.Writer, r *pipeline.Report) error {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("EUR/RON volatility predictability"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", SubtextStyle.Render(fmt.Sprintf(
		"run %s  rows train=%d test=%d  test period %s to %s",
		r.RunID, r.TrainRows, r.TestRows,
		r.TestPeriod.From.Format("2006-01-02"), r.TestPeriod.To.Format("2006-01-02"),
	)))

	trained := r.TrainedNames()
	if len(trained) == 0 {
		trained = []string{"none"}
	}
	fmt.Fprintf(&b, "\nTrained: %s\n", strings.Join(trained, ", "))
	for _, t := range r.Trained {
		if !t.Available {
			fmt.Fprintf(&b, "%s\n", ErrorStyle.Render(fmt.Sprintf("  %s failed: %s", t.Name, t.Error)))
		}
	}

	b.WriteString("\n")
	b.WriteString(RankingTable(r))
	b.WriteString("\n")
	if r.Ranking.AUCUndefinedForAll {
		b.WriteString(WarnStyle.Render("roc_auc undefined for every model; ranked by f1 only"))
		b.WriteString("\n")
	}

	if r.Best != nil {
		fmt.Fprintf(&b, "\nBest model: %s (f1=%s)\n", r.Best.Model, formatScore(r.Best.F1))
	}
	switch {
	case r.Attribution != nil:
		fmt.Fprintf(&b, "\nAttribution (%s, %s output, base %.6f)\n",
			r.Attribution.Method, r.Attribution.Output, r.Attribution.BaseValue)
		b.WriteString(AttributionTable(r, TopFeatures))
		b.WriteString("\n")
	case r.AttributionSkipped != "":
		fmt.Fprintf(&b, "\n%s\n", WarnStyle.Render("Attribution skipped: "+r.AttributionSkipped))
	}

	if s := r.Shift; s != nil {
		fmt.Fprintf(&b, "\nShift: mean anomaly score train=%.3f test=%.3f, test share above %.2f = %.1f%%\n",
			s.TrainMean, s.TestMean, s.Threshold, 100*s.TestAnomalyShare)
	}
	for _, n := range r.Notices {
		fmt.Fprintf(&b, "%s\n", SubtextStyle.Render(fmt.Sprintf("notice [%s] %s", n.Kind, n.Message)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
