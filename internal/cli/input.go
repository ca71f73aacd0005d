package cli

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/config"
	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/epfile"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/store"
)

// inputFlags select the picks a batch or playback run reads.
type inputFlags struct {
	input  string
	output string
	start  string
	end    string
}

func addInputFlags(cmd *cobra.Command, f *inputFlags) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "event parameter file with picks (.yaml or .json)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write published origins and their picks to this file")
	cmd.Flags().StringVar(&f.start, "start", "", "first pick time to read")
	cmd.Flags().StringVar(&f.end, "end", "", "last pick time to read")
}

// span parses the time bounds.
func (f *inputFlags) span() (time.Time, time.Time, error) {
	start, err := parseBound("start", f.start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseBound("end", f.end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, NewExitError(ExitCommandError, "--end is before --start")
	}
	return start, end, nil
}

// loadPicks reads the input picks from the file, or from the database
// when no file is given. Database reads need both bounds.
func loadPicks(ctx context.Context, cfg *config.Config, f *inputFlags) ([]model.Pick, error) {
	start, end, err := f.span()
	if err != nil {
		return nil, err
	}

	if f.input != "" {
		doc, err := epfile.Load(f.input)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read input", err)
		}
		picks := epfile.Span(doc.Picks, start, end)
		slog.Info("picks loaded", "path", f.input, "picks", len(picks))
		return picks, nil
	}

	if cfg.Database == "" {
		return nil, NewExitError(ExitCommandError, "no pick input: use --input or --db")
	}
	if start.IsZero() || end.IsZero() {
		return nil, NewExitError(ExitCommandError, "reading picks from the database needs --start and --end")
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	picks, err := st.PicksBetween(ctx, start, end)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read picks", err)
	}
	slog.Info("picks loaded", "database", cfg.Database, "picks", len(picks),
		"start", model.FormatTime(start, 3), "end", model.FormatTime(end, 3))
	return picks, nil
}

// writeOutput saves the origins and the input picks they reference.
func writeOutput(path string, picks []model.Pick, origins []model.Origin) error {
	referenced := make(map[string]bool)
	for i := range origins {
		for _, id := range origins[i].PickIDs() {
			referenced[id] = true
		}
	}
	doc := &epfile.Document{Origins: origins}
	for _, p := range picks {
		if referenced[p.ID] {
			doc.Picks = append(doc.Picks, p)
		}
	}
	if err := epfile.Save(path, doc); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	slog.Info("output written", "path", path, "origins", len(origins), "picks", len(doc.Picks))
	return nil
}

// RunSummary reports a batch or playback run.
type RunSummary struct {
	Mode     string         `json:"mode"`
	Picks    int            `json:"picks"`
	Triggers int            `json:"triggers"`
	Outcomes map[string]int `json:"outcomes"`
	Origins  int            `json:"origins"`
	Events   int            `json:"events"`
	Digest   string         `json:"digest"`
	Output   string         `json:"output,omitempty"`
}

func newSummary(mode engine.Mode, picks int, results []engine.Result, origins []model.Origin) (RunSummary, error) {
	digest, err := model.SequenceDigest(origins)
	if err != nil {
		return RunSummary{}, fmt.Errorf("digest: %w", err)
	}
	s := RunSummary{
		Mode:     mode.String(),
		Picks:    picks,
		Triggers: len(results),
		Outcomes: make(map[string]int),
		Origins:  len(origins),
		Digest:   digest,
	}
	for _, r := range results {
		s.Outcomes[string(r.Outcome)]++
	}
	return s, nil
}

func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d picks, %d triggers, %d origins", s.Mode, s.Picks, s.Triggers, s.Origins)
	if s.Events > 0 {
		fmt.Fprintf(&b, ", %d events", s.Events)
	}
	for _, outcome := range slices.Sorted(maps.Keys(s.Outcomes)) {
		fmt.Fprintf(&b, "\n  %-18s %d", outcome, s.Outcomes[outcome])
	}
	fmt.Fprintf(&b, "\n  digest %s", s.Digest)
	if s.Output != "" {
		fmt.Fprintf(&b, "\n  written to %s", s.Output)
	}
	return b.String()
}
