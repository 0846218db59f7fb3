package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webnoise/internal/config"
	"github.com/nao1215/webnoise/internal/crawler"
	"github.com/nao1215/webnoise/internal/database"
	logpkg "github.com/nao1215/webnoise/internal/log"
	"github.com/nao1215/webnoise/internal/model"
	"github.com/nao1215/webnoise/internal/proxy"
	"github.com/nao1215/webnoise/internal/report"
)

// progressInterval is how often the run command logs a heartbeat while the
// crawl is running. Unattended runs last hours; without a heartbeat the
// only sign of life is the debug-level request stream.
const progressInterval = 1 * time.Minute

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate random web traffic noise",
		Long: `Run starts the noise-generation crawl.

It picks a random seed URL, fetches it, follows randomly selected links
with a randomized pause between requests, and periodically jumps back to a
random seed. The run ends when the wall-clock budget elapses (--timeout) or
on Ctrl-C; an interrupted run still prints its report.

Configuration is merged from four sources, lowest to highest precedence:
built-in defaults, a YAML file (webnoise.yaml, see "webnoise init"),
WEBNOISE_* environment variables, and command-line flags.

Examples:
  # Run for one hour against the configured seeds
  webnoise run --timeout 1h

  # Run unbounded with explicit seeds, stop with Ctrl-C
  webnoise run -u https://news.ycombinator.com -u https://www.wikipedia.org

  # Slow pacing, traffic routed through a local SOCKS5 proxy
  webnoise run --min-sleep 10s --max-sleep 30s --proxy 127.0.0.1:1080

  # Route the noise through an embedded Tor daemon
  webnoise run --tor --timeout 2h

  # Write a markdown report and keep the visit history
  webnoise run --timeout 30m --markdown -o report.md --save-history`,
		RunE: runRunCmd,
	}

	// Seed and filtering flags
	cmd.Flags().StringSliceP("url", "u", nil,
		"Seed URL to crawl from (repeatable, overrides config file)")
	cmd.Flags().StringSlice("blacklist", nil,
		"Substring that disqualifies discovered links (repeatable)")
	cmd.Flags().StringSlice("user-agent", nil,
		"User-Agent string to rotate (repeatable, defaults to common browsers)")

	// Pacing and budget flags
	cmd.Flags().Duration("min-sleep", config.DefaultMinSleep,
		"Minimum pause between requests")
	cmd.Flags().Duration("max-sleep", config.DefaultMaxSleep,
		"Maximum pause between requests")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Wall-clock budget for the run (0 = run until interrupted)")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Timeout for each individual HTTP request")
	cmd.Flags().Int("reselect-every", config.DefaultReselectEvery,
		"Jump back to a random seed every N iterations")
	cmd.Flags().Bool("allow-revisit", false,
		"Allow fetching a URL again when reached via a different page")

	// Routing flags
	cmd.Flags().StringP("proxy", "p", "",
		"Route traffic through a SOCKS5 proxy at the given host:port")
	cmd.Flags().Bool("tor", false,
		"Route traffic through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: webnoise.yaml in current or XDG config directory)")

	// History flags
	cmd.Flags().Bool("save-history", false,
		"Record the run and its visits to the local SQLite database")
	cmd.Flags().String("db-dir", "",
		"Directory for the history database (default: XDG data directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	verbose := getVerboseFlag(cmd)
	logger := logpkg.NewLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// SIGINT/SIGTERM cancel the context; the engine observes it and closes
	// the run out as STOPPED.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runNoise(ctx, cmd, cfg, logger)
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

// buildConfig assembles the run configuration: defaults, then the YAML file,
// then WEBNOISE_* environment variables, then flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file, error if not found.
	// If no path was specified, a missing file just means defaults.
	explicitConfigPath := configPath != ""
	foundPath := config.FindConfigFile(configPath)

	var cfg *config.Config
	switch {
	case foundPath != "":
		cfg, err = config.LoadConfigFile(foundPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", foundPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	default:
		cfg = config.NewConfig()
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

// applyFlags overlays explicitly set command-line flags onto cfg.
// Only flags the user actually changed are applied, so flag defaults do not
// clobber values from the config file or environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("url") {
		urls, err := flags.GetStringSlice("url")
		if err != nil {
			return err
		}
		cfg.RootURLs = urls
	}
	if flags.Changed("blacklist") {
		list, err := flags.GetStringSlice("blacklist")
		if err != nil {
			return err
		}
		cfg.BlacklistedURLs = list
	}
	if flags.Changed("user-agent") {
		agents, err := flags.GetStringSlice("user-agent")
		if err != nil {
			return err
		}
		cfg.UserAgents = agents
	}

	for _, entry := range []struct {
		name string
		dst  *config.Duration
	}{
		{"min-sleep", &cfg.MinSleep},
		{"max-sleep", &cfg.MaxSleep},
		{"timeout", &cfg.Timeout},
		{"request-timeout", &cfg.RequestTimeout},
		{"tor-timeout", &cfg.TorStartupTimeout},
	} {
		if !flags.Changed(entry.name) {
			continue
		}
		d, err := flags.GetDuration(entry.name)
		if err != nil {
			return err
		}
		*entry.dst = config.DurationFrom(d)
	}

	if flags.Changed("reselect-every") {
		n, err := flags.GetInt("reselect-every")
		if err != nil {
			return err
		}
		cfg.ReselectEvery = n
	}
	if flags.Changed("allow-revisit") {
		allow, err := flags.GetBool("allow-revisit")
		if err != nil {
			return err
		}
		cfg.AllowRevisit = allow
	}

	if flags.Changed("proxy") {
		addr, err := flags.GetString("proxy")
		if err != nil {
			return err
		}
		cfg.ProxyAddress = addr
	}
	if flags.Changed("tor") {
		useTor, err := flags.GetBool("tor")
		if err != nil {
			return err
		}
		cfg.UseEmbeddedTor = useTor
	}

	if flags.Changed("save-history") {
		save, err := flags.GetBool("save-history")
		if err != nil {
			return err
		}
		cfg.SaveHistory = save
	}
	if flags.Changed("db-dir") {
		dir, err := flags.GetString("db-dir")
		if err != nil {
			return err
		}
		cfg.DBDir = dir
	}

	return nil
}

// runNoise executes the noise-generation run.
func runNoise(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	client, cleanup, err := buildHTTPClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := crawler.NewEngine(cfg, client, crawler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	start := time.Now()

	// The engine goroutine does the work; a second goroutine logs a
	// heartbeat so an unattended run shows signs of life at the default
	// log level.
	var runReport *model.RunReport
	engineDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(engineDone)
		var runErr error
		runReport, runErr = engine.Run(gctx)
		return runErr
	})
	g.Go(func() error {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-engineDone:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("run in progress",
					"elapsed", time.Since(start).Round(time.Second).String())
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := outputReport(cmd, runReport); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.SaveHistory {
		if err := saveRunReport(ctx, cfg, runReport, logger); err != nil {
			// History is observational; losing it should not turn a
			// completed run into a failure.
			logger.Error("failed to save run history", "error", err)
		}
	}

	return nil
}

// buildHTTPClient selects the HTTP client for the run based on the routing
// configuration: embedded Tor, external SOCKS5 proxy, or direct. The
// returned cleanup function stops the embedded daemon when one was started.
func buildHTTPClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.UseEmbeddedTor:
		fmt.Println("Starting embedded Tor daemon...")
		fmt.Printf("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		embedded := proxy.NewEmbeddedTor(
			proxy.WithStartupTimeout(cfg.TorStartupTimeout.Duration),
		)
		if err := embedded.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}

		cleanup := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		client, err := embedded.NewClient(cfg.RequestTimeout.Duration)
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != proxy.StatusOK {
			cleanup()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %s", status)
		}

		logger.Info("embedded Tor daemon started",
			"socksAddr", embedded.SocksAddr(),
			"controlAddr", embedded.ControlAddr(),
		)
		return client.NewHTTPClient(), cleanup, nil

	case cfg.ProxyAddress != "":
		client, err := proxy.NewClient(cfg.ProxyAddress, cfg.RequestTimeout.Duration)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != proxy.StatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				status, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", client.ProxyAddress())
		return client.NewHTTPClient(), noop, nil

	default:
		// nil lets the engine build its default direct client.
		return nil, noop, nil
	}
}

// outputReport writes the run report in the requested format to stdout or
// the --output file.
func outputReport(cmd *cobra.Command, runReport *model.RunReport) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	var output *os.File
	if outputPath != "" {
		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// 0600: the visit history reveals exactly which sites the tool
		// touched, which the operator may not want world-readable.
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var w report.Writer
	switch {
	case jsonOut:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownOut:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(getVerboseFlag(cmd)))
	}

	_, err = w.Write(runReport)
	return err
}

// saveRunReport persists the run to the history database.
func saveRunReport(ctx context.Context, cfg *config.Config, runReport *model.RunReport, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveRunReport(ctx, runReport)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run history saved", "db", db.Path(), "run_id", id)
	return nil
}
