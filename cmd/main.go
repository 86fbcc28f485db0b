package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/subosito/gotenv"
	"github.com/xhad/papertrail/internal/models"
	"github.com/xhad/papertrail/internal/types"
	"github.com/xhad/papertrail/pkg/analyzer"
	"github.com/xhad/papertrail/pkg/arxiv"
	"github.com/xhad/papertrail/pkg/cache"
	cfgPkg "github.com/xhad/papertrail/pkg/config"
	"github.com/xhad/papertrail/pkg/journal"
	"github.com/xhad/papertrail/pkg/notify"
	"github.com/xhad/papertrail/pkg/pipeline"
	"github.com/xhad/papertrail/pkg/repo"
	"github.com/xhad/papertrail/pkg/store"
	"github.com/xhad/papertrail/server"
	"go.uber.org/zap"
)

type flags struct {
	configPath string
	search     string
	serve      bool
	addr       string
	commit     bool
	runID      string
	journal    string
	papersDir  string
	model      string
	dbURL      string
}

func main() {
	gotenv.Load()

	f := parseFlags()

	config, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyOverrides(config, f)

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s: %s", e.Field, e.Message)
		}
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(config, f, logger); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.search, "search", "", "Search archived reviews instead of running the pipeline")
	flag.BoolVar(&f.serve, "serve", false, "Serve the review archive over HTTP and WebSocket")
	flag.StringVar(&f.addr, "addr", ":8080", "Listen address for -serve")
	flag.BoolVar(&f.commit, "commit", false, "Commit the updated journal when a run changed it")
	flag.StringVar(&f.runID, "run-id", os.Getenv("PAPERTRAIL_RUN_ID"), "Cache key suffix for this run")
	flag.StringVar(&f.journal, "journal", "", "Path to the review journal")
	flag.StringVar(&f.papersDir, "papers-dir", "", "Directory for downloaded PDFs")
	flag.StringVar(&f.model, "model", "", "LLM model to use")
	flag.StringVar(&f.dbURL, "db-url", "", "PostgreSQL connection string")
	flag.Parse()

	return f
}

func applyOverrides(config *cfgPkg.Config, f flags) {
	if f.journal != "" {
		config.Tracker.JournalPath = f.journal
	}
	if f.papersDir != "" {
		config.Tracker.PapersDir = f.papersDir
	}
	if f.model != "" {
		config.LLM.Model = f.model
	}
	if f.dbURL != "" {
		config.Database.URL = f.dbURL
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config *cfgPkg.Config, f flags, logger *zap.Logger) error {
	ctx := context.Background()

	reviewer, err := analyzer.NewWithConfig(analyzer.AnalyzerConfig{
		Model:       config.LLM.Model,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %v", err)
	}

	var archive *store.Archive
	if config.Database.URL != "" {
		embedder, err := analyzer.NewEmbedderWithConfig(analyzer.EmbedderConfig{
			Model:   config.LLM.EmbedModel,
			APIKey:  config.LLM.APIKey,
			BaseURL: config.LLM.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize embedder: %v", err)
		}

		archive, err = store.NewWithConfig(ctx, store.ArchiveConfig{
			ConnString: config.Database.URL,
			TableName:  config.Database.TableName,
			VectorDim:  config.Database.VectorDim,
			BatchSize:  config.Database.BatchSize,
		}, embedder)
		if err != nil {
			return fmt.Errorf("failed to initialize review archive: %v", err)
		}
		defer archive.Close()
	}

	if f.search != "" {
		return runSearch(ctx, archive, f.search)
	}
	if f.serve {
		return runServer(archive, reviewer, f.addr, logger)
	}

	return runPipeline(ctx, config, f, reviewer, archive, logger)
}

func runSearch(ctx context.Context, archive *store.Archive, query string) error {
	if archive == nil {
		return fmt.Errorf("search requires a configured database")
	}

	spinner := getSpinner("Searching archived reviews...")
	reviews, err := archive.Search(ctx, query, 5)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("search failed: %v", err)
	}

	if len(reviews) == 0 {
		color.Yellow("No archived reviews match %q", query)
		return nil
	}

	for _, review := range reviews {
		color.Cyan("\n%s [%s]", review.Title, review.Domain)
		color.Blue("%s | published %s", review.URL, review.Published.Format("2006-01-02"))
		fmt.Println(review.Review)
	}
	return nil
}

func runServer(archive *store.Archive, reviewer *analyzer.Analyzer, addr string, logger *zap.Logger) error {
	if archive == nil {
		return fmt.Errorf("serve requires a configured database")
	}

	s, err := server.NewWSServer(server.Config{Addr: addr}, archive, reviewer, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %v", err)
	}
	return s.ListenAndServe()
}

func runPipeline(ctx context.Context, config *cfgPkg.Config, f flags, reviewer *analyzer.Analyzer, archive *store.Archive, logger *zap.Logger) error {
	source, err := arxiv.NewWithConfig(arxiv.ClientConfig{
		BaseURL:   config.Fetch.BaseURL,
		RateLimit: config.Fetch.RateLimit,
		Window:    time.Duration(config.Tracker.WindowDays) * 24 * time.Hour,
		Timeout:   time.Duration(config.Fetch.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize arxiv client: %v", err)
	}

	var notifier types.Notifier
	if config.SMTPEnabled() {
		mailer, err := notify.NewWithConfig(notify.MailerConfig{
			Host:     config.SMTP.Host,
			Port:     config.SMTP.Port,
			Username: config.SMTP.Username,
			Password: config.SMTP.Password,
			From:     config.SMTP.From,
			To:       config.SMTP.To,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize mailer: %v", err)
		}
		notifier = mailer
	}

	stateDir := filepath.Dir(config.Tracker.JournalPath)

	// Restore prior run state so already-reviewed papers stay skipped
	// even on a fresh checkout.
	var runCache *cache.Cache
	var cacheKey string
	if config.Cache.Dir != "" {
		runCache, err = cache.New(config.Cache.Dir)
		if err != nil {
			return fmt.Errorf("failed to open cache: %v", err)
		}

		runID := f.runID
		if runID == "" {
			runID = uuid.NewString()
		}
		prefix := fmt.Sprintf("%s-%s-", config.Cache.KeyPrefix, runtime.GOOS)
		cacheKey = prefix + runID

		used, err := runCache.Restore(stateDir, cacheKey, prefix)
		if err != nil {
			return fmt.Errorf("cache restore failed: %v", err)
		}
		if used != "" {
			color.Blue("Restored state from cache key %s", used)
		}
	}

	before, err := cache.DirDigest(stateDir)
	if err != nil {
		return fmt.Errorf("failed to digest state dir: %v", err)
	}

	spinner := getSpinner("Analyzing papers...")
	coordinator, err := pipeline.NewWithConfig(pipeline.Config{
		Domains:   trackedDomains(config),
		PapersDir: config.Tracker.PapersDir,
		Source:    source,
		Analyzer:  reviewer,
		Journal:   journal.New(config.Tracker.JournalPath),
		Notifier:  notifier,
		Archive:   archiveOrNil(archive),
		Logger:    logger,
		OnProgress: func(domain string, paper models.Paper) {
			spinner.Add(1)
			spinner.Describe(color.CyanString("Analyzed %s (%s)", paper.ID, domain))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %v", err)
	}

	summary, err := coordinator.Run(ctx)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	if summary.Analyzed == 0 {
		color.Yellow("No new papers this run")
		return nil
	}
	color.Green("\n✓ Analyzed %d papers\n", summary.Analyzed)

	after, err := cache.DirDigest(stateDir)
	if err != nil {
		return fmt.Errorf("failed to digest state dir: %v", err)
	}
	if after == before {
		return nil
	}

	if runCache != nil {
		if err := runCache.Save(stateDir, cacheKey); err != nil {
			return fmt.Errorf("cache save failed: %v", err)
		}
	}

	if f.commit {
		message := fmt.Sprintf("papertrail: digest for %s", summary.Date.Format("2006-01-02"))
		committed, err := repo.New(stateDir).CommitIfChanged(ctx, message, filepath.Base(config.Tracker.JournalPath))
		if err != nil {
			return fmt.Errorf("commit failed: %v", err)
		}
		if committed {
			color.Green("✓ Committed journal update")
		}
	}

	return nil
}

func trackedDomains(config *cfgPkg.Config) []types.DomainConfig {
	domains := make([]types.DomainConfig, 0, len(config.Tracker.Domains))
	for _, d := range config.Tracker.Domains {
		domains = append(domains, types.DomainConfig{
			Name:       d.Name,
			Categories: d.Categories,
			MaxSearch:  d.MaxSearch,
			MaxAnalyze: d.MaxAnalyze,
		})
	}
	return domains
}

// archiveOrNil avoids storing a typed nil in the pipeline's interface field.
func archiveOrNil(archive *store.Archive) types.Archive {
	if archive == nil {
		return nil
	}
	return archive
}
