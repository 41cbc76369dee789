package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/scribe/pkg/api"
	"github.com/cuemby/scribe/pkg/config"
	"github.com/cuemby/scribe/pkg/dbtrack"
	"github.com/cuemby/scribe/pkg/log"
	"github.com/cuemby/scribe/pkg/sampler"
	"github.com/cuemby/scribe/pkg/scribe"
	"github.com/cuemby/scribe/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe - request-scoped tracing and structured logging",
	Long: `Scribe is an observability core for Go services: per-request
traces, categorized structured logs with redaction, rotation, and
resource sampling, plus a demo snippet service that exercises the
whole pipeline.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Scribe version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the instrumented snippet service",
	Long: `Run the demo snippet service with the full logging pipeline:
per-request traces, category log files under the log directory,
Prometheus metrics on /metrics, and periodic resource sampling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		listen, _ := cmd.Flags().GetString("listen")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		apiKey, _ := cmd.Flags().GetString("api-key")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %v", err)
		}

		log.Init(log.Config{Level: log.Level(cfg.Level)})

		engine, err := scribe.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to start logging engine: %v", err)
		}

		fmt.Println("Starting Scribe...")
		fmt.Printf("  Listen Address: %s\n", listen)
		fmt.Printf("  Log Directory: %s\n", cfg.LogDir)
		fmt.Printf("  Data Directory: %s\n", dataDir)
		fmt.Printf("  Level: %s\n", cfg.Level)
		fmt.Println()

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %v", err)
		}
		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		tracked := dbtrack.Wrap(store, engine)
		fmt.Println("✓ Store opened")

		smp := sampler.New(engine, cfg.SampleInterval())
		smp.Start()
		fmt.Println("✓ Resource sampler started")

		server := api.NewServer(engine, tracked, apiKey)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(listen); err != nil {
				errCh <- fmt.Errorf("server error: %v", err)
			}
		}()

		fmt.Println()
		fmt.Println("Service is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		server.Stop()
		smp.Stop()
		if err := tracked.Close(); err != nil {
			return fmt.Errorf("failed to close store: %v", err)
		}
		if err := engine.Close(); err != nil {
			return fmt.Errorf("failed to drain logs: %v", err)
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		rules, _ := cfg.Rules()
		fmt.Println("Configuration is valid.")
		fmt.Printf("  Level: %s\n", cfg.Level)
		fmt.Printf("  Log Directory: %s\n", cfg.LogDir)
		fmt.Printf("  Redaction Rules: %d (including defaults)\n", len(rules))
		fmt.Printf("  Rotation: %d bytes, keep %d, compress %v\n",
			cfg.RotationMaxBytes, cfg.RotationBackupCount, cfg.RotationCompress)
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to config file (YAML)")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("data-dir", "./data", "Directory for the snippet database")
	serveCmd.Flags().String("api-key", "", "API key required for writes (empty disables auth)")

	checkCmd.Flags().String("config", "", "Path to config file (YAML)")
}
