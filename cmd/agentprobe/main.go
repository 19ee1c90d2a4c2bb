package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentprobe/internal/config"
	"agentprobe/internal/logging"
	"agentprobe/internal/server"
	"agentprobe/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentprobe",
	Short: "agentprobe - conversational probe for the real-estate chat agent",
	Long: `agentprobe plays a scripted home-buyer persona against the production
real-estate chat agent, reconciles every turn against the backend
pipeline telemetry, and flags questions the agent asked more than once.

Use "run" for a single probe run, or "serve" to expose runs over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// No .env file is fine; the environment itself still applies.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes a single probe run and prints the report.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one probe run and print the report JSON",
	Long: `Runs one full conversation against the chat agent:
  1. Send the persona message and reconstruct the streamed reply
  2. Fetch the turn's backend telemetry and reconcile it
  3. Answer agent questions in character until the closing summary
  4. Cluster the agent's questions by embedding similarity

The report JSON goes to stdout; diagnostics go to the log.`,
	RunE: runProbe,
}

// serveCmd starts the HTTP front door.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve probe runs over HTTP (POST /run, GET /healthz)",
	RunE:  serve,
}

func runProbe(cmd *cobra.Command, args []string) error {
	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire probe run: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := runner.Run(ctx)

	doc := runDocument{RunReport: report}
	if deduper, err := buildDeduper(cfg, logger); err != nil {
		logger.Warn("question dedup unavailable", zap.Error(err))
	} else if len(report.Questions) > 0 {
		clusters, derr := deduper.Deduplicate(ctx, report.Questions)
		if derr != nil {
			logger.Warn("question dedup failed", zap.Error(derr))
		} else {
			doc.DuplicateQuestions = clusters
		}
	}

	if cfg.Archive.Path != "" {
		archive, aerr := store.Open(cfg.Archive.Path, logger)
		if aerr != nil {
			logger.Warn("archive unavailable", zap.Error(aerr))
		} else {
			defer archive.Close()
			if _, serr := archive.SaveRun(report); serr != nil {
				logger.Warn("run archival failed", zap.Error(serr))
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if !report.Success {
		return fmt.Errorf("probe run failed: %s", report.Error)
	}
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	var archive server.RunArchive
	if cfg.Archive.Path != "" {
		a, err := store.Open(cfg.Archive.Path, logger)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer a.Close()
		archive = a
	}

	var deduper server.Deduper
	if d, err := buildDeduper(cfg, logger); err != nil {
		logger.Warn("question dedup unavailable", zap.Error(err))
	} else {
		deduper = d
	}

	factory := func() (server.Runner, error) {
		return buildRunner(cfg, logger)
	}

	srv := server.New(factory, deduper, archive, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	return srv.ListenAndServe(ctx, cfg.Server.Port)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
