package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/store"
	"github.com/roach88/cowork/internal/workspace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayOutput is the replay command payload.
type ReplayOutput struct {
	engine.ReplayResult
	Digest string `json:"digest"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify outcomes",
		Long: `Replay every journaled event into a fresh workspace and compare each
replayed outcome (applied, skipped, failed) with the journaled one.
Prints the resulting state digest.

Exit codes:
  0 - Every outcome reproduced
  1 - At least one outcome differs
  2 - Command error (journal not found, etc.)

Examples:
  cowork replay --db ./cowork.db
  cowork replay --db ./cowork.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	ctx := commandContext(cmd)

	if err := requireFile(opts.Database); err != nil {
		return err
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	entries, err := st.ReadAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	ws, err := workspace.New(workspaceIDs())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create workspace", err)
	}
	res, err := ws.Processor.Replay(ctx, entries)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay interrupted", err)
	}
	digest, err := ws.Doc.Digest()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest state", err)
	}

	out := ReplayOutput{ReplayResult: res, Digest: digest}
	var failure *CLIError
	if len(res.Mismatches) > 0 {
		failure = &CLIError{
			Code:    "E_REPLAY_MISMATCH",
			Message: fmt.Sprintf("%d replayed outcome(s) differ from the journal", len(res.Mismatches)),
			Details: res.Mismatches,
		}
	}

	return opts.formatter(cmd.OutOrStdout()).Emit(out, failure, func(w io.Writer) {
		fmt.Fprintf(w, "Replayed %d event(s): %d applied, %d skipped, %d failed\n",
			res.Entries, res.Applied, res.Skipped, res.Failed)
		fmt.Fprintf(w, "State digest: %s\n", digest)
		if failure == nil {
			fmt.Fprintln(w, "✓ All outcomes reproduced")
			return
		}
		fmt.Fprintf(w, "✗ Outcome mismatch at seq %v\n", res.Mismatches)
	})
}
