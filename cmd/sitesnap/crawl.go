package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/database"
	"github.com/sitesnap/sitesnap/internal/log"
	"github.com/sitesnap/sitesnap/internal/model"
	"github.com/sitesnap/sitesnap/internal/pipeline"
	"github.com/sitesnap/sitesnap/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [base-url]",
		Short: "Log in to a web application and capture its pages",
		Long: `Crawl logs in to a web application and walks it breadth-first up to a
bounded depth, capturing for every in-scope page:
- The rendered HTML after client-side scripts have settled
- A full-page screenshot
- The outbound links used to discover further pages

Only URLs on the same scheme and host as the base URL are followed.
Credentials are read from the SITESNAP_USERNAME and SITESNAP_PASSWORD
environment variables (or a dotenv file via --env-file); per-site
overrides come from the config file.

Examples:
  # Crawl a single application two levels deep
  sitesnap crawl -d 2 https://app.example.com

  # Crawl several applications, two at a time
  sitesnap crawl -b 2 https://app1.example.com https://app2.example.com

  # Skip logout and admin pages
  sitesnap crawl -x /logout -x "/admin/*" https://app.example.com

  # Output JSON report
  sitesnap crawl --json https://app.example.com

  # Use a custom configuration file
  sitesnap crawl -c myconfig.yaml https://app.example.com

Configuration file (.sitesnap.yaml) example:
  defaults:
    depth: 2
    excludePatterns:
      - "/logout"
  sites:
    app.example.com:
      loginUrl: https://app.example.com/signin
      usernameEnv: APP_USER
      passwordEnv: APP_PASS`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Authentication flags
	cmd.Flags().StringP("login-url", "l", "",
		"Login page URL (default: the base URL)")
	cmd.Flags().StringP("env-file", "e", "",
		"Dotenv file to load credentials from (default: .env if present)")

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl depth from the seed URL")
	cmd.Flags().IntP("workers", "w", config.DefaultConcurrency,
		"Number of concurrent render workers")
	cmd.Flags().DurationP("delay", "D", config.DefaultCrawlDelay,
		"Politeness delay between pages fetched by the same worker")
	cmd.Flags().DurationP("timeout", "t", config.DefaultPageTimeout,
		"Timeout for rendering a single page")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to capture per run (0 = unlimited)")
	cmd.Flags().StringArrayP("exclude", "x", nil,
		"URL path pattern to skip (repeatable, first match wins)")

	// Browser flags
	cmd.Flags().Bool("headed", false,
		"Run the browser with a visible window (for debugging logins)")
	cmd.Flags().Bool("no-screenshots", false,
		"Capture HTML only, skip screenshots")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent crawls when multiple base URLs are given")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitesnap.yaml in current or home directory)")

	// Output flags
	cmd.Flags().String("out-dir", config.DefaultOutputDir,
		"Directory under which per-run capture directories are created")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if len(cfg.Targets) == 0 {
		return errors.New("no targets provided (specify one or more base URLs as arguments)")
	}

	// Set up structured logging; the secure handler masks credentials and
	// session material before anything reaches the terminal
	verbose := getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Build and validate the effective configuration for every target
	// before any network activity, so a bad target fails the whole
	// invocation up front
	runConfigs := make([]*config.Config, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		runCfg, err := cfg.ForTarget(target)
		if err != nil {
			return fmt.Errorf("target %q: %w", target, err)
		}
		if err := runCfg.Validate(); err != nil {
			return fmt.Errorf("configuration error for %q: %w", target, err)
		}
		runConfigs = append(runConfigs, runCfg)
	}

	// Set up context with signal handling for graceful shutdown.
	// The first signal starts a drain; in-flight renders get the grace
	// period to finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, draining...")
		cancel()
	}()

	return runCrawl(ctx, cfg, runConfigs, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.LoginURL, err = cmd.Flags().GetString("login-url")
	if err != nil {
		return nil, err
	}

	cfg.EnvFile, err = cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, err
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.PageTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.ExcludePatterns, err = cmd.Flags().GetStringArray("exclude")
	if err != nil {
		return nil, err
	}

	headed, err := cmd.Flags().GetBool("headed")
	if err != nil {
		return nil, err
	}
	cfg.Headless = !headed

	noScreenshots, err := cmd.Flags().GetBool("no-screenshots")
	if err != nil {
		return nil, err
	}
	if noScreenshots {
		cfg.Screenshots = false
		cfg.FullPageScreenshots = false
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("out-dir")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file. An explicitly
	// requested file must exist; otherwise a missing file just means
	// defaults apply.
	configPath, err := config.FindConfigFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// Credentials come from the environment, optionally primed by a
	// dotenv file. Per-site credential variables are resolved later by
	// ForTarget.
	if err := config.LoadEnvFile(cfg.EnvFile, cfg.EnvFile != ""); err != nil {
		return nil, err
	}
	cfg.ResolveCredentials()

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Always record runs using the XDG data directory so compare works
	cfg.SaveToDB = true
	cfg.DBDir = config.XDGDataDir()

	// Get positional arguments (base URLs)
	cfg.Targets = args

	return cfg, nil
}

// runCrawl executes the crawl for every validated target configuration.
func runCrawl(ctx context.Context, cfg *config.Config, runConfigs []*config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"maxDepth", cfg.MaxDepth,
		"concurrency", cfg.Concurrency,
		"batchSize", cfg.BatchSize,
	)

	// Open the run database; compare needs every run recorded
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Use the batch processor for parallel crawls if multiple targets
	if len(runConfigs) > 1 && cfg.BatchSize > 1 {
		return runBatchCrawl(ctx, cfg, runConfigs, db, logger)
	}

	// Single target or sequential crawling
	return runSequentialCrawl(ctx, cfg, runConfigs, db, logger)
}

// runSequentialCrawl crawls targets one at a time.
func runSequentialCrawl(ctx context.Context, cfg *config.Config, runConfigs []*config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	for _, runCfg := range runConfigs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		target := runCfg.Targets[0]
		p := pipeline.DefaultPipeline(runCfg, db, logger)

		crawlReport := model.NewCrawlReport("", "", target)

		fmt.Printf("Crawling %s...\n", target)
		startTime := time.Now()

		// Execute the pipeline; a failed or cancelled crawl still reaches
		// the persist step, so the report always carries the outcome
		if err := p.Execute(ctx, crawlReport); err != nil {
			logger.Error("crawl failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Crawl error for %s: %v\n", target, err)
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Crawl finished in %s\n\n", elapsed.Round(time.Millisecond))

		// Generate and output report
		if err := outputReport(cfg, crawlReport); err != nil {
			logger.Error("report failed", "target", target, "error", err)
		}
	}

	return nil
}

// runBatchCrawl crawls multiple targets concurrently using BatchProcessor.
// Each concurrent target runs its own browser, so the batch size should
// stay small.
func runBatchCrawl(ctx context.Context, cfg *config.Config, runConfigs []*config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch crawl of %d targets (concurrency: %d)...\n\n",
		len(runConfigs), cfg.BatchSize)

	startTime := time.Now()

	// The batch processor hands each pipeline its target; look the
	// prevalidated per-target configuration back up by base URL
	configByTarget := make(map[string]*config.Config, len(runConfigs))
	targets := make([]string, 0, len(runConfigs))
	for _, runCfg := range runConfigs {
		configByTarget[runCfg.Targets[0]] = runCfg
		targets = append(targets, runCfg.Targets[0])
	}

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(configByTarget[target], db, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	// Process with callback for streaming output
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, targets, func(crawlReport *model.CrawlReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Crawl finished: %s\n", index+1, len(targets), crawlReport.StartURL)

		if err := outputReport(cfg, crawlReport); err != nil {
			logger.Error("report failed", "target", crawlReport.StartURL, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch crawl completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// outputReport outputs the crawl report in the requested format.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with owner-only permissions;
		// reports contain the application's internal URL structure
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (full report with metadata wrapper)
	if cfg.JSONReport {
		writer := report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(crawlReport)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(crawlReport)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	_, err := writer.Write(crawlReport)
	return err
}
