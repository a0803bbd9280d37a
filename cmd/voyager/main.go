package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/voyagerhq/voyager/internal/api"
	"github.com/voyagerhq/voyager/internal/autoscrape"
	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/observability"
	"github.com/voyagerhq/voyager/internal/scraper"
	"github.com/voyagerhq/voyager/internal/store"
)

var (
	cfgFile  string
	verbose  bool
	category string
	dryRun   bool
	jsonOut  bool
	limit    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voyager",
		Short: "Voyager — product price tracker",
		Long: `Voyager scrapes product listings from online stores and records
price history in PostgreSQL.

Site-specific scrapers handle known stores; a generic extractor covers
the rest. Every scrape appends a price snapshot, never overwrites one.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(scrapersCmd())
	rootCmd.AddCommand(autoScrapeCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(storesCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration with CLI overrides.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func openRepository(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*store.Repository, error) {
	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewRepository(db, cfg.Scraper.DefaultCurrency, metrics, logger), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape one URL and save its products",
		Args:  cobra.ExactArgs(1),
		RunE:  runScrape,
	}
	cmd.Flags().StringVar(&category, "category", "", "category slug for every product in this batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print extracted products without saving")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print extracted products as JSON lines")
	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	rawURL := args[0]
	if err := config.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	metrics := observability.NewMetrics(logger)
	svc := scraper.NewService(cfg, metrics, logger)
	defer svc.Close()

	start := time.Now()
	records, err := svc.ScrapeURL(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", rawURL, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no products found at %s", rawURL)
	}

	if jsonOut {
		for _, rec := range records {
			line, err := rec.ToJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(line))
		}
	} else {
		t := newTable()
		t.AppendHeader(table.Row{"#", "Name", "Price", "Currency", "URL"})
		for i, rec := range records {
			t.AppendRow(table.Row{i + 1, rec.Name, rec.Price.String(), rec.Currency, rec.URL})
		}
		t.Render()
	}

	if dryRun {
		fmt.Printf("\nDry run: %d products extracted in %s, nothing saved\n",
			len(records), time.Since(start).Round(time.Millisecond))
		return nil
	}

	repo, err := openRepository(cfg, metrics, logger)
	if err != nil {
		return err
	}
	created, appended, err := repo.SaveBatch(ctx, records, rawURL, category)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	fmt.Printf("\nSaved %d price snapshots (%d new products) in %s\n",
		appended, created, time.Since(start).Round(time.Millisecond))
	return nil
}

// scrapersCmd creates the "scrapers" subcommand.
func scrapersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrapers",
		Short: "List site scrapers in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			svc := scraper.NewService(cfg, observability.NewMetrics(logger), logger)
			defer svc.Close()

			for _, name := range svc.Scrapers() {
				fmt.Println(name)
			}
			fmt.Println("generic (fallback for unmatched URLs)")
			return nil
		},
	}
}

// autoScrapeCmd creates the "auto-scrape" subcommand.
func autoScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-scrape",
		Short: "Scrape every configured provider target",
		Long: `Walk the providers directory, scrape every enabled target, and save
each batch independently. One failing target never stops the run; the
exit status is non-zero only when every attempted target failed.`,
		RunE: runAutoScrape,
	}
}

func runAutoScrape(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	metrics := observability.NewMetrics(logger)
	svc := scraper.NewService(cfg, metrics, logger)
	defer svc.Close()

	repo, err := openRepository(cfg, metrics, logger)
	if err != nil {
		return err
	}

	runner := autoscrape.NewRunner(cfg, svc.ScrapeURL, repo.SaveBatch, logger)
	report, err := runner.RunAll(ctx)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"Provider", "URL", "Status", "Products", "Error"})
	for _, d := range report.Details {
		t.AppendRow(table.Row{d.Provider, d.URL, d.Status, d.Products, d.Error})
	}
	t.Render()

	fmt.Printf("\nProviders: %d  URLs: %d  Succeeded: %d  Failed: %d  Products: %d  (%s)\n",
		report.TotalProviders, report.TotalURLs, report.Succeeded, report.Failed,
		report.TotalProducts, report.Duration.Round(time.Millisecond))

	snap := metrics.Snapshot()
	logger.Info("run metrics",
		"scrapes", snap["scrapes_total"],
		"scrape_failures", snap["scrapes_failed"],
		"records", snap["records_extracted"],
		"products_created", snap["products_created"],
		"prices_appended", snap["prices_appended"],
	)

	if report.AllFailed() {
		return fmt.Errorf("all %d targets failed", report.TotalURLs)
	}
	return nil
}

// listCmd creates the "list" subcommand.
func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently scraped products with their latest price",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg, nil, logger)
			if err != nil {
				return err
			}
			products, err := repo.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderSummaries(products)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

// searchCmd creates the "search" subcommand.
func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search products by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg, nil, logger)
			if err != nil {
				return err
			}
			products, err := repo.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Printf("No products matching %q\n", args[0])
				return nil
			}
			renderSummaries(products)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func renderSummaries(products []store.ProductSummary) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Name", "Store", "Category", "Price", "Scraped"})
	for _, p := range products {
		price := "-"
		if p.Price != nil {
			price = p.Price.String() + " " + p.Currency
		}
		scraped := "-"
		if p.ScrapedAt != nil {
			scraped = p.ScrapedAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{p.ID, p.Name, p.Store, p.Category, price, scraped})
	}
	t.Render()
}

// historyCmd creates the "history" subcommand.
func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [product-id]",
		Short: "Show a product's price history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg, nil, logger)
			if err != nil {
				return err
			}

			detail, err := repo.GetProduct(cmd.Context(), uint(id))
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d not found", id)
			}
			if err != nil {
				return err
			}

			history, err := repo.PriceHistory(cmd.Context(), uint(id), limit)
			if err != nil {
				return err
			}

			fmt.Printf("%s  (%s)\n%s\n\n", detail.Name, detail.Store, detail.URL)
			t := newTable()
			t.AppendHeader(table.Row{"Price", "Currency", "Scraped"})
			for _, p := range history {
				t.AppendRow(table.Row{p.Price.String(), p.Currency, p.ScrapedAt.Format("2006-01-02 15:04")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum rows")
	return cmd
}

// storesCmd creates the "stores" subcommand.
func storesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List known stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg, nil, logger)
			if err != nil {
				return err
			}
			stores, err := repo.ListStores(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable()
			t.AppendHeader(table.Row{"ID", "Name", "First Seen"})
			for _, s := range stores {
				t.AppendRow(table.Row{s.ID, s.Name, s.CreatedAt.Format("2006-01-02")})
			}
			t.Render()
			return nil
		},
	}
}

// statsCmd creates the "stats" subcommand.
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg, nil, logger)
			if err != nil {
				return err
			}
			stats, err := repo.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Stores:   %d\nProducts: %d\nPrices:   %d\n",
				stats.Stores, stats.Products, stats.Prices)
			return nil
		},
	}
}

// migrateCmd creates the "migrate" subcommand.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.Database, logger)
			if err != nil {
				return err
			}
			if err := store.Migrate(db, logger); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			metrics := observability.NewMetrics(logger)
			svc := scraper.NewService(cfg, metrics, logger)
			defer svc.Close()

			repo, err := openRepository(cfg, metrics, logger)
			if err != nil {
				return err
			}

			srv := api.NewServer(cfg.API.Port, svc, repo, metrics, logger)

			ctx, cancel := signalContext()
			defer cancel()
			go func() {
				<-ctx.Done()
				logger.Info("shutting down API server")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("shutdown failed", "error", err)
				}
			}()

			return srv.Start()
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Voyager %s\n", config.Version)
		},
	}
}
