package types

import (
	"context"
	"time"

	"github.com/xhad/papertrail/internal/models"
)

// Core interfaces
type PaperSource interface {
	Recent(ctx context.Context, categories []string, max int) ([]models.Paper, error)
	Download(ctx context.Context, paper models.Paper, dir string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, paper models.Paper) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, subject string, reviews []models.Review) error
}

type Archive interface {
	Store(ctx context.Context, reviews []models.Review) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.ArchivedReview, error)
	Close()
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type Journal interface {
	CleanDuplicates() error
	AnalyzedIDs() (map[string]bool, error)
	Append(reviews []models.Review, now time.Time) error
}

// DomainConfig selects one tracked research area.
type DomainConfig struct {
	Name       string
	Categories []string
	MaxSearch  int
	MaxAnalyze int
}
