package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	config         configFlags
	input          inputFlags
	UsePickTime    bool
	AgainstArchive bool
}

// ArchiveCheck compares a replay with the origins archived in the database.
type ArchiveCheck struct {
	Digest    string   `json:"digest"`
	Origins   int      `json:"origins"`
	Matches   bool     `json:"matches"`
	Corrupted []string `json:"corrupted"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Picks         int           `json:"picks"`
	Origins       int           `json:"origins"`
	FirstDigest   string        `json:"first_digest"`
	SecondDigest  string        `json:"second_digest"`
	Deterministic bool          `json:"deterministic"`
	Archive       *ArchiveCheck `json:"archive,omitempty"`
}

// Verified reports whether every requested check passed.
func (r ReplayResult) Verified() bool {
	if !r.Deterministic {
		return false
	}
	return r.Archive == nil || (r.Archive.Matches && len(r.Archive.Corrupted) == 0)
}

func (r ReplayResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replay: %d picks, %d origins\n", r.Picks, r.Origins)
	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}
	fmt.Fprintf(&b, "%s deterministic (%s)", mark(r.Deterministic), r.FirstDigest)
	if !r.Deterministic {
		fmt.Fprintf(&b, "\n  second run: %s", r.SecondDigest)
	}
	if a := r.Archive; a != nil {
		fmt.Fprintf(&b, "\n%s archive sequence matches (%d origins, %s)", mark(a.Matches), a.Origins, a.Digest)
		for _, id := range a.Corrupted {
			fmt.Fprintf(&b, "\n✗ archived origin %s does not match its digest", id)
		}
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Play picks back twice and verify the output is identical",
		Long: `Run the playback pipeline twice over the same picks and compare the
digests of the two published origin sequences. With --against-archive the
replay is also compared with the origin sequence archived in the database
by an earlier "playback --archive", and every archived origin is checked
against its stored digest.

Exit codes:
  0 - Replay is deterministic (and matches the archive)
  1 - Determinism or archive verification failed
  2 - Command error (bad config, database not found, etc.)

Examples:
  scoctoloc replay --config scoctoloc.cue --input picks.yaml
  scoctoloc replay --db archive.db --start 2024-03-01T12:00:00Z --end 2024-03-01T13:00:00Z --against-archive`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	addConfigFlags(cmd, &opts.config, false)
	addInputFlags(cmd, &opts.input)
	cmd.Flags().BoolVar(&opts.UsePickTime, "use-pick-time", false, "drive the clock by pick time instead of creation time")
	cmd.Flags().BoolVar(&opts.AgainstArchive, "against-archive", false, "compare with the origins archived in the database")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig(opts.config.overrides(cmd))
	if err != nil {
		return err
	}
	if opts.AgainstArchive && cfg.Database == "" {
		return NewExitError(ExitCommandError, "--against-archive needs a database (--db or config database)")
	}
	picks, err := loadPicks(ctx, cfg, &opts.input)
	if err != nil {
		return err
	}
	net, err := loadNetwork(cfg, firstPickTime(picks))
	if err != nil {
		return err
	}
	engines, err := opts.startEngines(ctx, cfg, net.stations)
	if err != nil {
		return err
	}
	defer engines.Close()

	in := playbackInput{
		cfg:         cfg,
		network:     net,
		engines:     engines,
		picks:       picks,
		usePickTime: opts.UsePickTime,
	}
	var digests [2]string
	var origins int
	for i := range digests {
		run, err := playback(ctx, in)
		if err != nil {
			return err
		}
		digests[i], err = model.SequenceDigest(run.origins)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to digest origins", err)
		}
		origins = len(run.origins)
	}

	result := ReplayResult{
		Picks:         len(picks),
		Origins:       origins,
		FirstDigest:   digests[0],
		SecondDigest:  digests[1],
		Deterministic: digests[0] == digests[1],
	}

	if opts.AgainstArchive {
		check, err := checkArchive(ctx, cfg.Database, digests[0])
		if err != nil {
			return err
		}
		result.Archive = check
	}

	out := opts.formatter(cmd)
	if result.Verified() {
		return out.Success(result)
	}
	if err := out.Failure(CodeDeterminism, "replay verification failed", result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "replay verification failed")
}

func checkArchive(ctx context.Context, path, digest string) (*ArchiveCheck, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	stored, n, err := st.SequenceDigest(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read archive", err)
	}
	mismatches, err := st.Verify(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to verify archive", err)
	}
	check := &ArchiveCheck{
		Digest:    stored,
		Origins:   n,
		Matches:   stored == digest,
		Corrupted: []string{},
	}
	for _, m := range mismatches {
		check.Corrupted = append(check.Corrupted, m.OriginID)
	}
	return check, nil
}
