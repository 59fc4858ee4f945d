package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cowork/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	Sequence string
}

// InspectOutput is the inspect command payload. Sequence is set only when
// --sequence is given.
type InspectOutput struct {
	Stats         store.Stats          `json:"stats"`
	OpenSequences []string             `json:"open_sequences"`
	Sequence      *store.SequenceState `json:"sequence,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a journal",
		Long: `Print journal statistics and the sequences that never delivered their
end event. With --sequence, print the analysis of one sequence: applied,
skipped and failed counters and whether a revert point recovered it.

Examples:
  cowork inspect --db ./cowork.db
  cowork inspect --db ./cowork.db --sequence drag-42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Sequence, "sequence", "", "analyze one sequence")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions) error {
	ctx := commandContext(cmd)

	if err := requireFile(opts.Database); err != nil {
		return err
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	var out InspectOutput
	if out.Stats, err = st.Stats(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read stats", err)
	}
	if out.OpenSequences, err = st.FindOpenSequences(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to list open sequences", err)
	}
	if opts.Sequence != "" {
		state, err := st.GetSequenceState(ctx, opts.Sequence)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sequence", err)
		}
		out.Sequence = &state
	}

	return opts.formatter(cmd.OutOrStdout()).Emit(out, nil, func(w io.Writer) {
		s := out.Stats
		fmt.Fprintf(w, "Entries: %d (applied %d, skipped %d, failed %d)\n", s.Entries, s.Applied, s.Skipped, s.Failed)
		fmt.Fprintf(w, "Last seq: %d\n", s.LastSeq)
		fmt.Fprintf(w, "Sequences: %d (%d open)\n", s.Sequences, len(out.OpenSequences))
		for _, id := range out.OpenSequences {
			fmt.Fprintf(w, "  open: %s\n", id)
		}

		if seq := out.Sequence; seq != nil {
			fmt.Fprintf(w, "\nSequence %s\n", seq.SequenceID)
			fmt.Fprintf(w, "  Highest counter: %d\n", seq.HighestCounter)
			fmt.Fprintf(w, "  Applied: %d  Skipped: %d  Failed: %v\n", seq.Applied, seq.Skipped, seq.Failed)
			fmt.Fprintf(w, "  Ended: %v  Recovered: %v\n", seq.Ended, seq.Recovered)
		}
	})
}

// requireFile rejects a missing journal. store.Open would create one.
func requireFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	} else if err != nil {
		return WrapExitError(ExitCommandError, "failed to stat journal", err)
	}
	return nil
}
