package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/internal/leaderboard"
	"github.com/GoSim-25-26J-441/shell-search/internal/metrics"
	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

// Standing is a leaderboard category with a readable description of its holder.
type Standing struct {
	Category   models.Category    `json:"category"`
	Shell      string             `json:"shell,omitempty"`
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	RunID          string            `json:"run_id,omitempty"`
	DamageType     models.DamageType `json:"damage_type"`
	TestType       models.TestType   `json:"test_type"`
	Configurations uint64            `json:"configurations"`
	Standings      []Standing        `json:"standings"`
	Stats          metrics.Summary   `json:"stats"`
}

func (d *Driver) result(board *leaderboard.Leaderboard, stats *metrics.Collector, total uint64, elapsed time.Duration) *Result {
	res := &Result{
		RunID:          d.runID,
		DamageType:     d.damage,
		TestType:       d.testType,
		Configurations: total,
		Stats:          stats.Summary(elapsed),
	}
	for _, s := range board.Standings() {
		st := Standing{Category: s.Category, Evaluation: s.Evaluation}
		if s.Evaluation != nil {
			st.Shell = Describe(d.cat, s.Evaluation.Config)
		}
		res.Standings = append(res.Standings, st)
	}
	return res
}

// Best returns the holder of a category, or nil.
func (r *Result) Best(cat models.Category) *models.Evaluation {
	for _, s := range r.Standings {
		if s.Category == cat {
			return s.Evaluation
		}
	}
	return nil
}

// Describe renders a configuration as "head + 2x body + ... | casings".
func Describe(cat *catalogue.Catalogue, cfg models.Configuration) string {
	var b strings.Builder
	b.WriteString(cat.Module(cfg.Head).Name)
	for i, n := range cfg.BodyCounts {
		if n == 0 {
			continue
		}
		fmt.Fprintf(&b, " + %dx %s", n, cat.Module(i).Name)
	}
	fmt.Fprintf(&b, " | gp %.2f rg %d", cfg.FineCasingCount(), cfg.CoarseCasing)
	return b.String()
}

// WriteTable writes the standings as an aligned text table.
func WriteTable(w io.Writer, res *Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CATEGORY\tSCORE\tDRAW\tLENGTH_MM\tVELOCITY\tDPS\tRELOAD_S\tSHELL\n")
	for _, s := range res.Standings {
		ev := s.Evaluation
		if ev == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\n", s.Category)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.4g\t%.0f\t%.0f\t%.1f\t%.4g\t%.2f\t%s\n",
			s.Category, ev.Score, ev.Draw, ev.Metrics.TotalLength, ev.Metrics.Velocity,
			ev.Metrics.DPS, ev.Metrics.ReloadTime, s.Shell)
		for _, dt := range models.DamageTypes {
			if v, ok := ev.Auxiliary[dt]; ok {
				fmt.Fprintf(tw, "\t\t\t\t\t\t\t  %s damage %.4g\n", dt, v)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	st := res.Stats
	_, err := fmt.Fprintf(w, "\n%d configurations, %d feasible, %d model evaluations in %s\n",
		st.Generated, st.Feasible, st.ModelEvaluations, st.Duration.Round(time.Millisecond))
	return err
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
