package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sparklabs/spark/internal/config"
	"github.com/sparklabs/spark/internal/dispatch"
	"github.com/sparklabs/spark/internal/domain"
	"github.com/sparklabs/spark/internal/rodfeed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		serverURL  string
		pageURL    string
		browserURL string
		target     int
		attempts   int
		verbose    bool
	)

	flag.StringVar(&configPath, "config", envOrDefault("SPARK_CONFIG", ""), "Path to YAML config file")
	flag.StringVar(&serverURL, "server", envOrDefault("SPARK_SERVER_URL", "http://localhost:3000"), "sparkd base URL")
	flag.StringVar(&pageURL, "page", "", "Timeline page URL (default from config)")
	flag.StringVar(&browserURL, "browser", "", "DevTools URL of an existing Chrome (default: launch headless)")
	flag.IntVar(&target, "target", 0, "Unique candidate target (default from config)")
	flag.IntVar(&attempts, "max-attempts", 0, "Scroll attempt budget (default from config)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if pageURL == "" {
		pageURL = cfg.Browser.TimelineURL
	}
	if browserURL == "" {
		browserURL = cfg.Browser.ControlURL
	}
	scanCfg := cfg.ScanConfig()
	if target > 0 {
		scanCfg.TargetUniqueCount = target
	}
	if attempts > 0 {
		scanCfg.MaxAttempts = attempts
	}

	// Abort between scan attempts on Ctrl-C; in-flight page calls finish on
	// their own timeouts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Attaching to timeline %s...\n", pageURL)
	source, err := rodfeed.Attach(ctx, browserURL, pageURL, cfg.Browser.ScrollFraction, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	scanner := domain.NewScanner(
		source,
		domain.NewExtractor(cfg.ExtractorConfig()),
		dispatch.NewClient(serverURL),
		scanCfg,
		logger,
	)
	scanner.OnProgress = func(p domain.ScanProgress) {
		fmt.Printf("Scanning... (%d/%d unique, attempt %d)\n", p.Unique, p.Target, p.Attempts)
	}

	result, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d unique candidates in %d attempts.\n", result.Collected, result.Attempts)
	for i, c := range result.Candidates {
		fmt.Printf("  #%d score=%d likes=%d reposts=%d replies=%d views=%d %s\n",
			i+1, c.Score,
			c.Metrics.LikeCount, c.Metrics.RepostCount, c.Metrics.ReplyCount, c.Metrics.ViewCount,
			c.PermalinkURL,
		)
	}
	fmt.Printf("Dispatched %d/%d candidates to %s\n", result.Dispatched, len(result.Candidates), serverURL)

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
