package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/app"
	"github.com/SAP-F-2025/exam-analysis-service/internal/config"
	"github.com/SAP-F-2025/exam-analysis-service/internal/utils"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "exam-analysis",
		Short:        "Exam question generation, grading and performance analysis",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, workerCmd(), sweepCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", "", "HTTP listen address (defaults to :$PORT)")
	f.Bool("with-worker", true, "Run the stage worker in the same process")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume stage tasks from the queue",
		RunE:  runWorker,
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Trigger grading for ended exams and fail stale stages",
		RunE:  runSweep,
	}
	cmd.Flags().Duration("every", 0, "Repeat the sweep at this interval (0 runs once)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an exam's analysis workbook",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.Uint("exam-id", 0, "Exam to export (required)")
	f.StringP("output", "o", "", "Output file path (defaults to exam-<id>-analysis.xlsx)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

// setup loads configuration and builds the app. The returned context is
// cancelled on SIGINT or SIGTERM.
func setup(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	cfg, err := config.LoadConfig()
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := utils.NewLogger(cfg.Environment)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.LogError(err, "Failed to release resources")
		}
		stop()
	}
	return ctx, a, cleanup, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = ":" + a.Config.Port
	}
	withWorker, _ := cmd.Flags().GetBool("with-worker")

	errCh := make(chan error, 2)
	if withWorker {
		go func() { errCh <- a.Worker.Run(ctx) }()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.Logger.Info("Starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Logger.Info("Shutting down HTTP server")
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	return err
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return a.Worker.Run(ctx)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	every, _ := cmd.Flags().GetDuration("every")
	sweep := func() error {
		result, err := a.Pipeline.Sweep(ctx, time.Now())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), result)
	}

	if every <= 0 {
		return sweep()
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := sweep(); err != nil {
			a.Logger.LogError(err, "Sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	examID, _ := cmd.Flags().GetUint("exam-id")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = fmt.Sprintf("exam-%d-analysis.xlsx", examID)
	}

	data, err := a.Exporter.ExportExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("export exam %d: %w", examID, err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	a.Logger.Info("Wrote analysis workbook", "exam_id", examID, "path", output, "bytes", len(data))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
