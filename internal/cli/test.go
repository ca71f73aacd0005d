package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Pass    bool     `json:"pass"`
	Origins int      `json:"origins"`
	Events  int      `json:"events"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r TestResult) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		status := "✓"
		if !s.Pass {
			status = "✗"
		}
		fmt.Fprintf(&b, "%s %s (%d origins, %d events)\n", status, s.Name, s.Origins, s.Events)
		for _, e := range s.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-path>...",
		Short: "Run pipeline scenarios",
		Long: `Run scenario files through a playback pipeline with scripted engines and
check their assertions. A directory is searched recursively for .yaml and
.yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (scenario path not found, etc.)

Examples:
  scoctoloc test ./scenarios
  scoctoloc test ./scenarios --filter "relocated_*"
  scoctoloc test ./scenarios/single_event.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid --filter", err)
		}
	}

	var paths []string
	for _, arg := range args {
		found, err := harness.Discover(arg)
		if err != nil {
			var notFound *harness.ScenarioNotFoundError
			if errors.As(err, &notFound) {
				return WrapExitError(ExitCommandError, "scenario path not found", err)
			}
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		for _, p := range found {
			if opts.Filter != "" {
				if ok, _ := filepath.Match(opts.Filter, filepath.Base(p)); !ok {
					continue
				}
			}
			paths = append(paths, p)
		}
	}

	out := opts.formatter(cmd)
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(paths))}
	for _, sr := range harness.RunSuite(ctx, paths) {
		out.VerboseLog("ran %s", sr.Path)
		result.Scenarios = append(result.Scenarios, scenarioResult(sr))
	}
	result.Total = len(result.Scenarios)
	for _, s := range result.Scenarios {
		if s.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed == 0 {
		return out.Success(result)
	}
	msg := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
	if err := out.Failure(CodeScenario, msg, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func scenarioResult(sr harness.SuiteResult) ScenarioResult {
	r := ScenarioResult{
		Name: sr.Name,
		Path: sr.Path,
		Pass: sr.Passed(),
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(sr.Path), filepath.Ext(sr.Path))
	}
	if sr.Err != nil {
		r.Errors = []string{sr.Err.Error()}
		return r
	}
	r.Origins = len(sr.Result.Origins)
	r.Events = sr.Result.Events
	r.Errors = sr.Result.Errors
	return r
}
