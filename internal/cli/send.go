package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cowork/internal/config"
	"github.com/roach88/cowork/internal/dispatch"
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/ir"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Endpoint  string
	Token     string
	User      string
	WebSocket bool
	Sequence  bool
}

// SendLine is the outcome of one input line.
type SendLine struct {
	Line  int    `json:"line"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// SendResult holds the send command payload.
type SendResult struct {
	SequenceID string     `json:"sequence_id,omitempty"`
	Sent       int        `json:"sent"`
	Rejected   int        `json:"rejected"`
	Lines      []SendLine `json:"lines"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <events.jsonl>",
		Short: "Send events to a server through the dispatcher",
		Long: `Send events, one JSON envelope per line ("-" reads stdin), through the
client dispatcher: one event in flight, transient failures retried with
jittered backoff, rejections reported per line.

With --sequence the events form one sequence: the first is a revert point,
the last ends the sequence.

Examples:
  cowork send events.jsonl --endpoint http://localhost:8080 --user alice
  cowork send drag.jsonl --ws --sequence --token $TOKEN`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "server base URL (overrides dispatch.endpoint)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (overrides dispatch.token)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id when the server runs without auth (overrides dispatch.user_id)")
	cmd.Flags().BoolVar(&opts.WebSocket, "ws", false, "send over a websocket instead of HTTP")
	cmd.Flags().BoolVar(&opts.Sequence, "sequence", false, "stamp the events as one sequence")

	return cmd
}

func runSend(cmd *cobra.Command, opts *SendOptions, path string) error {
	ctx := commandContext(cmd)

	cfg, err := opts.Settings()
	if err != nil {
		return err
	}
	dc := cfg.Dispatch
	if opts.Endpoint != "" {
		dc.Endpoint = opts.Endpoint
	}
	if opts.Token != "" {
		dc.Token = opts.Token
	}
	if opts.User != "" {
		dc.UserID = opts.User
	}

	events, err := readEvents(cmd, path)
	if err != nil {
		return err
	}

	transport, closeTransport, err := openTransport(ctx, dc, opts.WebSocket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer closeTransport()

	d := dispatch.New(transport,
		dispatch.WithMaxRetries(dc.MaxRetries),
		dispatch.WithBackoff(dc.BaseBackoff, dc.MaxBackoff),
		dispatch.WithDebounce(dc.Debounce),
	)
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	result := SendResult{Lines: []SendLine{}}
	var seq *dispatch.Sequence
	if opts.Sequence {
		seq = dispatch.NewSequence(ids.UUIDv7{})
		result.SequenceID = seq.ID()
	}

	for i, le := range events {
		ev := le.ev
		if seq != nil {
			switch {
			case i == len(events)-1:
				ev = seq.End(ev)
			case i == 0:
				ev = seq.Revert(ev)
			default:
				ev = seq.Next(ev)
			}
		}

		line := SendLine{Line: le.line, Type: ev.Type}
		if err := d.Dispatch(ctx, ev); err != nil {
			line.Error = err.Error()
			result.Rejected++
		} else {
			result.Sent++
		}
		result.Lines = append(result.Lines, line)
	}

	d.Close()
	if err := <-runErr; err != nil {
		return WrapExitError(ExitCommandError, "dispatcher stopped", err)
	}

	var failure *CLIError
	if result.Rejected > 0 {
		failure = &CLIError{
			Code:    "E_REJECTED",
			Message: fmt.Sprintf("%d event(s) rejected", result.Rejected),
		}
	}

	return opts.formatter(cmd.OutOrStdout()).Emit(result, failure, func(w io.Writer) {
		for _, l := range result.Lines {
			if l.Error != "" {
				fmt.Fprintf(w, "✗ line %d (%s): %s\n", l.Line, l.Type, l.Error)
			} else if opts.Verbose {
				fmt.Fprintf(w, "✓ line %d (%s)\n", l.Line, l.Type)
			}
		}
		if result.SequenceID != "" {
			fmt.Fprintf(w, "Sequence: %s\n", result.SequenceID)
		}
		fmt.Fprintf(w, "Sent %d event(s), %d rejected\n", result.Sent, result.Rejected)
	})
}

type lineEvent struct {
	line int
	ev   ir.Event
}

// readEvents parses a JSONL file. Blank lines are skipped; any malformed
// line aborts before anything is sent.
func readEvents(cmd *cobra.Command, path string) ([]lineEvent, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open events file", err)
		}
		defer f.Close()
		r = f
	}

	var out []lineEvent
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var ev ir.Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("line %d", n), err)
		}
		out = append(out, lineEvent{line: n, ev: ev})
	}
	if err := sc.Err(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read events", err)
	}
	if len(out) == 0 {
		return nil, NewExitError(ExitCommandError, "no events to send")
	}
	return out, nil
}

// openTransport builds the HTTP transport, or dials the websocket endpoint
// derived from the same base URL.
func openTransport(ctx context.Context, dc config.Dispatch, ws bool) (dispatch.Transport, func(), error) {
	if !ws {
		t := dispatch.NewHTTPTransport(dc.Endpoint, dc.Token)
		t.UserID = dc.UserID
		return t, func() {}, nil
	}

	url := strings.TrimRight(dc.Endpoint, "/") + "/v1/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	t, err := dispatch.DialWS(ctx, url, dispatch.AuthHeader(dc.Token, dc.UserID))
	if err != nil {
		return nil, nil, err
	}
	return t, func() { _ = t.Close() }, nil
}
