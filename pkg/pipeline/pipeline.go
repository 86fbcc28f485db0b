package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/xhad/papertrail/internal/models"
	"github.com/xhad/papertrail/internal/types"
	"github.com/xhad/papertrail/pkg/arxiv"
	"go.uber.org/zap"
)

// Config carries everything the coordinator needs for one run. The
// collaborators are injected here once; the coordinator itself never
// reads ambient state.
type Config struct {
	Domains   []types.DomainConfig
	PapersDir string // PDFs land here during analysis; empty disables downloads

	Source   types.PaperSource
	Analyzer types.Analyzer
	Journal  types.Journal
	Notifier types.Notifier // optional; nil skips the digest email
	Archive  types.Archive  // optional; nil skips archiving
	Logger   *zap.Logger

	OnProgress func(domain string, paper models.Paper)
}

// Summary reports what one run did.
type Summary struct {
	Date     time.Time
	Analyzed int
	ByDomain map[string]int
	Notified bool
}

// Coordinator sequences one fetch -> analyze -> notify cycle. Every
// collaborator error is fatal for the run: no partial digest is ever
// sent and the caller decides whether anything gets committed.
type Coordinator struct {
	config Config
}

func NewWithConfig(config Config) (*Coordinator, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("paper source is required")
	}
	if config.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if config.Journal == nil {
		return nil, fmt.Errorf("journal is required")
	}
	if len(config.Domains) == 0 {
		return nil, fmt.Errorf("at least one domain is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Coordinator{config: config}, nil
}

// Run executes one end-to-end cycle.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	log := c.config.Logger
	now := time.Now()

	log.Info("starting paper tracking run")

	if err := c.config.Journal.CleanDuplicates(); err != nil {
		return nil, fmt.Errorf("journal cleanup failed: %w", err)
	}

	analyzed, err := c.config.Journal.AnalyzedIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load analyzed papers: %w", err)
	}
	log.Info("loaded analyzed papers", zap.Int("count", len(analyzed)))

	var reviews []models.Review
	seen := make(map[string]bool) // papers handled earlier in this run

	for _, domain := range c.config.Domains {
		domainReviews, err := c.runDomain(ctx, domain, analyzed, seen)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, domainReviews...)
	}

	summary := &Summary{
		Date:     now,
		Analyzed: len(reviews),
		ByDomain: make(map[string]int),
	}
	for _, review := range reviews {
		summary.ByDomain[review.Domain]++
	}

	if len(reviews) == 0 {
		log.Info("no new papers analyzed")
		return summary, nil
	}

	if err := c.config.Journal.Append(reviews, now); err != nil {
		return nil, fmt.Errorf("failed to update journal: %w", err)
	}

	if c.config.Notifier != nil {
		subject := fmt.Sprintf("ArXiv Paper Analysis Report - %s", now.Format("2006-01-02"))
		if err := c.config.Notifier.Send(ctx, subject, reviews); err != nil {
			return nil, fmt.Errorf("failed to send digest: %w", err)
		}
		summary.Notified = true
		log.Info("digest sent")
	} else {
		log.Info("no notifier configured, skipping digest email")
	}

	if c.config.Archive != nil {
		if err := c.config.Archive.Store(ctx, reviews); err != nil {
			return nil, fmt.Errorf("failed to archive reviews: %w", err)
		}
		log.Info("reviews archived", zap.Int("count", len(reviews)))
	}

	for domain, count := range summary.ByDomain {
		log.Info("domain summary", zap.String("domain", domain), zap.Int("analyzed", count))
	}
	log.Info("run complete", zap.Int("analyzed", summary.Analyzed))

	return summary, nil
}

func (c *Coordinator) runDomain(ctx context.Context, domain types.DomainConfig, analyzed, seen map[string]bool) ([]models.Review, error) {
	log := c.config.Logger.With(zap.String("domain", domain.Name))

	papers, err := c.config.Source.Recent(ctx, domain.Categories, domain.MaxSearch)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", domain.Name, err)
	}
	log.Info("fetched recent papers", zap.Int("count", len(papers)))

	var fresh []models.Paper
	for _, paper := range papers {
		normalized := arxiv.StripVersion(paper.ID)
		if analyzed[paper.ID] || analyzed[normalized] || seen[normalized] {
			continue
		}
		fresh = append(fresh, paper)
	}

	// Newest first, capped at the domain's analyze budget.
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].Published.After(fresh[j].Published)
	})
	if len(fresh) > domain.MaxAnalyze {
		log.Info("papers deferred to next run", zap.Int("count", len(fresh)-domain.MaxAnalyze))
		fresh = fresh[:domain.MaxAnalyze]
	}

	var reviews []models.Review
	for _, paper := range fresh {
		log.Info("analyzing paper", zap.String("id", paper.ID), zap.String("title", paper.Title))

		var pdfPath string
		if c.config.PapersDir != "" {
			pdfPath, err = c.config.Source.Download(ctx, paper, c.config.PapersDir)
			if err != nil {
				return nil, fmt.Errorf("download failed for %s: %w", paper.ID, err)
			}
		}

		analysis, err := c.config.Analyzer.Analyze(ctx, paper)
		if err != nil {
			return nil, fmt.Errorf("analysis failed for %s: %w", paper.ID, err)
		}

		// PDFs are working files only; they never land in the commit.
		if pdfPath != "" {
			if err := os.Remove(pdfPath); err != nil {
				log.Warn("failed to remove PDF", zap.String("path", pdfPath), zap.Error(err))
			}
		}

		seen[arxiv.StripVersion(paper.ID)] = true
		reviews = append(reviews, models.Review{
			Paper:    paper,
			Domain:   domain.Name,
			Analysis: analysis,
		})

		if c.config.OnProgress != nil {
			c.config.OnProgress(domain.Name, paper)
		}
	}

	return reviews, nil
}
