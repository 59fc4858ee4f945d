package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cowork/internal/config"
	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/sequence"
	"github.com/roach88/cowork/internal/server"
	"github.com/roach88/cowork/internal/store"
	"github.com/roach88/cowork/internal/workspace"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Database string
	Restore  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a workspace over HTTP and websockets",
		Long: `Serve one workspace. Events are journaled to SQLite; on start the
journal is replayed so the shared state survives restarts.

Examples:
  cowork serve
  cowork serve --listen :9000 --db ./cowork.db
  COWORK_JWT_SECRET=s3cret cowork serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides listen_addr)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal path (overrides journal_path)")
	cmd.Flags().BoolVar(&opts.Restore, "restore", true, "replay the journal before serving")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.Settings()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.ListenAddr = opts.Listen
	}
	if opts.Database != "" {
		cfg.JournalPath = opts.Database
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("opening journal", "path", cfg.JournalPath)
	st, err := store.Open(cfg.JournalPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	ws, err := openWorkspace(ctx, cfg, st, opts.Restore)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start workspace", err)
	}

	srv := server.New(server.Config{
		ListenAddr: cfg.ListenAddr,
		JWTSecret:  cfg.JWTSecret,
		Broadcast:  cfg.Broadcast,
	}, ws)
	addr, err := srv.Start()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	go ws.Processor.RunHeartbeat(ctx)

	slog.Info("server started", "addr", addr.String(), "auth", cfg.JWTSecret != "")
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", addr)

	<-ctx.Done()
	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openWorkspace builds the served workspace over a journal. The logical
// clock resumes after the last journaled seq; with restore, the journal is
// replayed into the fresh doc first.
func openWorkspace(ctx context.Context, cfg config.Config, st *store.Store, restore bool) (*workspace.Workspace, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, err
	}

	table := sequence.NewTable(
		sequence.WithCapacity(cfg.SequenceCacheSize),
		sequence.WithIdleTTL(cfg.SequenceIdleTTL),
		sequence.WithEndedTTL(cfg.SequenceEndedTTL),
	)
	ws, err := workspace.New(workspaceIDs(),
		engine.WithJournal(st),
		engine.WithClock(engine.NewClockAt(last)),
		engine.WithSequenceTable(table),
		engine.WithHeartbeatInterval(cfg.HeartbeatInterval),
	)
	if err != nil {
		return nil, err
	}

	if restore && last > 0 {
		entries, err := st.ReadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		if _, err := ws.Processor.Restore(ctx, entries); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
	}
	return ws, nil
}

// workspaceIDs returns the generator for server-assigned entity ids.
// Reducers draw ids in journal order, so restore and replay regenerate the
// ids clients saw live.
func workspaceIDs() ids.Generator {
	return ids.NewSequential("chat")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
