package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/papertrail/internal/models"
	"github.com/xhad/papertrail/internal/types"
	"github.com/xhad/papertrail/pkg/journal"
)

type fakeSource struct {
	papers map[string][]models.Paper // first category -> result
	err    error
}

func (f *fakeSource) Recent(_ context.Context, categories []string, _ int) ([]models.Paper, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.papers[categories[0]], nil
}

func (f *fakeSource) Download(_ context.Context, paper models.Paper, dir string) (string, error) {
	path := filepath.Join(dir, paper.ID+".pdf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte("%PDF"), 0o644)
}

type fakeAnalyzer struct {
	failOn string
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, paper models.Paper) (string, error) {
	f.calls++
	if paper.ID == f.failOn {
		return "", fmt.Errorf("model unavailable")
	}
	return "#### Executive Summary\nReview of " + paper.Title, nil
}

type fakeNotifier struct {
	calls    int
	subjects []string
	reviews  [][]models.Review
}

func (f *fakeNotifier) Send(_ context.Context, subject string, reviews []models.Review) error {
	f.calls++
	f.subjects = append(f.subjects, subject)
	f.reviews = append(f.reviews, reviews)
	return nil
}

func paper(id string, age time.Duration, categories ...string) models.Paper {
	return models.Paper{
		ID:         id,
		Title:      "Paper " + id,
		Categories: categories,
		Published:  time.Now().Add(-age),
		AbsURL:     "https://arxiv.org/abs/" + id,
		PDFURL:     "https://arxiv.org/pdf/" + id,
	}
}

func domains() []types.DomainConfig {
	return []types.DomainConfig{
		{Name: "Software Engineering", Categories: []string{"cs.SE"}, MaxSearch: 30, MaxAnalyze: 5},
		{Name: "Security", Categories: []string{"cs.CR"}, MaxSearch: 30, MaxAnalyze: 5},
	}
}

func newCoordinator(t *testing.T, source *fakeSource, analyzer *fakeAnalyzer, notifier types.Notifier) (*Coordinator, *journal.Journal) {
	t.Helper()
	j := journal.New(filepath.Join(t.TempDir(), "conclusion.md"))

	c, err := NewWithConfig(Config{
		Domains:   domains(),
		PapersDir: filepath.Join(t.TempDir(), "papers"),
		Source:    source,
		Analyzer:  analyzer,
		Journal:   j,
		Notifier:  notifier,
	})
	require.NoError(t, err)
	return c, j
}

func TestRunZeroPapers(t *testing.T) {
	source := &fakeSource{papers: map[string][]models.Paper{}}
	analyzer := &fakeAnalyzer{}
	notifier := &fakeNotifier{}
	c, j := newCoordinator(t, source, analyzer, notifier)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Analyzed)
	assert.False(t, summary.Notified)
	assert.Equal(t, 0, notifier.calls)

	// Nothing was written, so there is nothing to commit.
	_, statErr := os.Stat(j.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunHappyPath(t *testing.T) {
	source := &fakeSource{papers: map[string][]models.Paper{
		"cs.SE": {paper("2507.00001v1", time.Hour, "cs.SE")},
		"cs.CR": {paper("2507.00002v1", 2*time.Hour, "cs.CR")},
	}}
	analyzer := &fakeAnalyzer{}
	notifier := &fakeNotifier{}
	c, j := newCoordinator(t, source, analyzer, notifier)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Analyzed)
	assert.Equal(t, 1, summary.ByDomain["Software Engineering"])
	assert.Equal(t, 1, summary.ByDomain["Security"])
	assert.True(t, summary.Notified)

	require.Equal(t, 1, notifier.calls)
	assert.Contains(t, notifier.subjects[0], time.Now().Format("2006-01-02"))
	assert.Len(t, notifier.reviews[0], 2)

	content, err := os.ReadFile(j.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "Paper 2507.00001v1")
	assert.Contains(t, string(content), "### Security")
}

func TestRunAnalysisFailureIsFatal(t *testing.T) {
	source := &fakeSource{papers: map[string][]models.Paper{
		"cs.SE": {
			paper("2507.00001v1", time.Hour, "cs.SE"),
			paper("2507.00002v1", 2*time.Hour, "cs.SE"),
		},
	}}
	analyzer := &fakeAnalyzer{failOn: "2507.00002v1"}
	notifier := &fakeNotifier{}
	c, j := newCoordinator(t, source, analyzer, notifier)

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2507.00002v1")

	// No partial digest and no partial ledger.
	assert.Equal(t, 0, notifier.calls)
	_, statErr := os.Stat(j.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("arxiv unreachable")}
	notifier := &fakeNotifier{}
	c, _ := newCoordinator(t, source, &fakeAnalyzer{}, notifier)

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, notifier.calls)
}

func TestRunIsIdempotent(t *testing.T) {
	source := &fakeSource{papers: map[string][]models.Paper{
		"cs.SE": {paper("2507.00001v1", time.Hour, "cs.SE")},
	}}
	notifier := &fakeNotifier{}
	c, _ := newCoordinator(t, source, &fakeAnalyzer{}, notifier)

	first, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Analyzed)

	// Unchanged source result: everything is already in the ledger.
	second, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Analyzed)
	assert.False(t, second.Notified)
	assert.Equal(t, 1, notifier.calls)
}

func TestRunSkipsAnalyzedVersions(t *testing.T) {
	// v2 of an already-reviewed paper normalizes to the same ID.
	source := &fakeSource{papers: map[string][]models.Paper{
		"cs.SE": {paper("2507.00001v2", time.Hour, "cs.SE")},
	}}
	analyzer := &fakeAnalyzer{}
	c, j := newCoordinator(t, source, analyzer, &fakeNotifier{})

	require.NoError(t, os.WriteFile(j.Path(), []byte(
		"#### Old Entry\n**Link**: https://arxiv.org/abs/2507.00001v1\n\nreview\n"), 0o644))

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Analyzed)
	assert.Equal(t, 0, analyzer.calls)
}

func TestRunCapsAtAnalyzeBudget(t *testing.T) {
	var papers []models.Paper
	for i := 0; i < 10; i++ {
		papers = append(papers, paper(fmt.Sprintf("2507.%05dv1", i), time.Duration(i)*time.Hour, "cs.SE"))
	}
	source := &fakeSource{papers: map[string][]models.Paper{"cs.SE": papers}}
	analyzer := &fakeAnalyzer{}
	notifier := &fakeNotifier{}

	j := journal.New(filepath.Join(t.TempDir(), "conclusion.md"))
	c, err := NewWithConfig(Config{
		Domains:  []types.DomainConfig{{Name: "SE", Categories: []string{"cs.SE"}, MaxSearch: 30, MaxAnalyze: 3}},
		Source:   source,
		Analyzer: analyzer,
		Journal:  j,
		Notifier: notifier,
	})
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Analyzed)
	// Newest papers first.
	assert.Contains(t, notifier.reviews[0][0].Paper.ID, "00000")
}

func TestRunDedupesAcrossDomains(t *testing.T) {
	// The same paper can show up under both tracked category sets.
	shared := paper("2507.00001v1", time.Hour, "cs.SE", "cs.CR")
	source := &fakeSource{papers: map[string][]models.Paper{
		"cs.SE": {shared},
		"cs.CR": {shared},
	}}
	analyzer := &fakeAnalyzer{}
	c, _ := newCoordinator(t, source, analyzer, &fakeNotifier{})

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Analyzed)
	assert.Equal(t, 1, analyzer.calls)
}

func TestNewWithConfigValidation(t *testing.T) {
	j := journal.New(filepath.Join(t.TempDir(), "conclusion.md"))

	_, err := NewWithConfig(Config{Domains: domains(), Analyzer: &fakeAnalyzer{}, Journal: j})
	assert.ErrorContains(t, err, "paper source")

	_, err = NewWithConfig(Config{Domains: domains(), Source: &fakeSource{}, Journal: j})
	assert.ErrorContains(t, err, "analyzer")

	_, err = NewWithConfig(Config{Source: &fakeSource{}, Analyzer: &fakeAnalyzer{}, Journal: j})
	assert.ErrorContains(t, err, "domain")
}
