package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/domain"
	"github.com/ahrav/go-rubric/internal/export"
	"github.com/ahrav/go-rubric/internal/kvstore"
	"github.com/ahrav/go-rubric/internal/server"
	"github.com/ahrav/go-rubric/internal/session"
	"github.com/ahrav/go-rubric/internal/worker"
	"github.com/ahrav/go-rubric/internal/workflow"
	"github.com/ahrav/go-rubric/pkg/activity"
	"github.com/ahrav/go-rubric/pkg/events"
)

const shutdownTimeout = 10 * time.Second

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  kvstore.Store
	sess   *session.Session
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// openSession loads config, connects the key-value store and restores the
// persisted session. The caller must call close.
func openSession(cmd *cobra.Command) (*env, func(), error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()

	store, err := worker.InitializeStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(session.Options{
		KV:     store,
		Events: events.NewLogEventSink(logger, slog.LevelDebug),
		Logger: logger,
	})
	if err := sess.Restore(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}
	return &env{cfg: cfg, logger: logger, store: store, sess: sess}, closeFn, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local annotation API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if dataset, _ := cmd.Flags().GetString("dataset"); dataset != "" {
				if err := loadDatasetFile(cmd.Context(), e.sess, dataset); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr: e.cfg.Address(),
				Handler: server.New(e.sess, server.Options{
					Logger:     e.logger,
					WriteRate:  e.cfg.Server.WriteRate,
					WriteBurst: e.cfg.Server.WriteBurst,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				e.logger.Info("listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("dataset", "", "dataset file to load before serving")
	return cmd
}

func loadDatasetFile(ctx context.Context, sess *session.Session, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	if _, err := sess.LoadDataset(ctx, raw); err != nil {
		return err
	}
	return nil
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <dataset.json>",
		Short: "Load a dataset into the persisted session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := loadDatasetFile(cmd.Context(), e.sess, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d samples\n", e.sess.Cursor().Total)
			return nil
		},
	}
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <sample-id> <dimension> <value>",
		Short: "Record one score",
		Long: `Record one score for a sample. Without --turn the overall scope is
scored. The active mode of the scope is used unless --mode is given.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidScoreValue, args[2])
			}

			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			in := session.ScoreInput{
				SampleID:  args[0],
				Scope:     domain.ScopeOverall,
				Dimension: domain.Dimension(args[1]),
				Value:     value,
			}
			if cmd.Flags().Changed("turn") {
				turn, _ := cmd.Flags().GetInt("turn")
				in.Scope = domain.ScopeTurn
				in.TurnIndex = &turn
			}
			if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
				in.Mode = domain.ScoreMode(mode)
			}

			rec, err := e.sess.WriteScore(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
	cmd.Flags().Int("turn", 0, "turn index to score")
	cmd.Flags().String("mode", "", "score mode (continuous or categorical)")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <sample-id>",
		Short: "Remove every score of a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if e.sess.ResetSample(cmd.Context(), args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s had no scores\n", args[0])
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return printJSON(cmd, e.sess.Statistics())
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the markdown report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			_, err = fmt.Fprint(cmd.OutOrStdout(), e.sess.ExportReport())
			return err
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Publish the results document and the report",
		Long: `Publish both export documents to the configured sink.
With --remote the session snapshot is submitted to a Temporal worker instead.
With --stdout the results document is printed and nothing is published.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
				return printJSON(cmd, e.sess.ExportResults())
			}
			if remote, _ := cmd.Flags().GetBool("remote"); remote {
				return exportRemote(cmd, e)
			}

			sink, err := worker.InitializeSink(cmd.Context(), e.cfg.Export)
			if err != nil {
				return err
			}
			retrying, err := export.NewRetryingSink(sink, retryPolicy(e.cfg.Export.Retry), e.logger)
			if err != nil {
				return err
			}
			published, err := e.sess.Publish(cmd.Context(), retrying)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), published.Results.Key)
			fmt.Fprintln(cmd.OutOrStdout(), published.Report.Key)
			return nil
		},
	}
	cmd.Flags().Bool("remote", false, "run the export as a Temporal workflow")
	cmd.Flags().Bool("stdout", false, "print the results document instead of publishing")
	return cmd
}

// retryPolicy maps the configured bounds onto the export retry policy.
func retryPolicy(cfg config.RetryConfig) export.RetryConfig {
	policy := export.DefaultRetryConfig()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	return policy
}

func dialTemporal(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal: %w", err)
	}
	return c, nil
}

func exportRemote(cmd *cobra.Command, e *env) error {
	c, err := dialTemporal(e.cfg.Temporal, e.logger)
	if err != nil {
		return err
	}
	defer c.Close()

	req := e.sess.ExportRequest(uuid.NewString())
	run, err := c.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
		ID:        "export-" + req.RequestID,
		TaskQueue: e.cfg.Temporal.TaskQueue,
	}, workflow.ExportWorkflow, req)
	if err != nil {
		return fmt.Errorf("start export workflow: %w", err)
	}
	e.logger.Info("export workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var outcome domain.ExportOutcome
	if err := run.Get(cmd.Context(), &outcome); err != nil {
		return fmt.Errorf("export workflow: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), outcome.Results.Key)
	fmt.Fprintln(cmd.OutOrStdout(), outcome.Report.Key)
	return nil
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <results.json>",
		Short: "Replace the recorded scores with those of a results document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read results: %w", err)
			}
			e, closeFn, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := e.sess.ImportResults(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", n)
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for batch exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sink, err := worker.InitializeSink(cmd.Context(), cfg.Export)
			if err != nil {
				return err
			}
			c, err := dialTemporal(cfg.Temporal, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{})
			worker.RegisterAll(w, sink, events.NewLogEventSink(logger, slog.LevelInfo),
				activity.WithLogger(logger))

			logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue)
			return w.Run(sdkworker.InterruptCh())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
