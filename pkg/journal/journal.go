package journal

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/xhad/papertrail/internal/models"
	"github.com/xhad/papertrail/pkg/arxiv"
)

// Journal is the markdown ledger of analyzed papers. Every review ever
// produced is appended here, and the arXiv links it contains double as
// the set of already-analyzed paper IDs.
type Journal struct {
	path string
}

func New(path string) *Journal {
	return &Journal{path: path}
}

var (
	absLink = regexp.MustCompile(`https?://arxiv\.org/abs/([^)\s\n]+)`)
	rawID   = regexp.MustCompile(`arxiv:([^)\s\n]+)`)
)

func (j *Journal) Path() string {
	return j.path
}

// AnalyzedIDs returns the set of paper IDs already present in the ledger,
// in both versioned and version-stripped form.
func (j *Journal) AnalyzedIDs() (map[string]bool, error) {
	ids := make(map[string]bool)

	content, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	for _, pattern := range []*regexp.Regexp{absLink, rawID} {
		for _, match := range pattern.FindAllStringSubmatch(string(content), -1) {
			id := match[1]
			ids[id] = true
			ids[arxiv.StripVersion(id)] = true
		}
	}

	return ids, nil
}

// CleanDuplicates removes repeated paper entries, keeping the first
// occurrence per normalized arXiv ID. Entries without a recognizable
// arXiv link are kept as-is.
func (j *Journal) CleanDuplicates() error {
	content, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read journal: %w", err)
	}

	sections := strings.Split(string(content), "\n#### ")
	if len(sections) < 2 {
		return nil
	}

	cleaned := strings.Builder{}
	cleaned.WriteString(sections[0])

	seen := make(map[string]bool)
	for _, section := range sections[1:] {
		match := absLink.FindStringSubmatch(section)
		if match != nil {
			id := match[1]
			normalized := arxiv.StripVersion(id)
			if seen[id] || seen[normalized] {
				continue
			}
			seen[id] = true
			seen[normalized] = true
		}
		cleaned.WriteString("\n#### ")
		cleaned.WriteString(section)
	}

	if err := os.WriteFile(j.path, []byte(cleaned.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

// Append writes a dated section with the run's reviews grouped by domain.
func (j *Journal) Append(reviews []models.Review, now time.Time) error {
	if len(reviews) == 0 {
		return nil
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n\n## ArXiv Paper Reviews (as of %s)\n\n", now.Format("2006-01-02")))

	for _, domain := range domainOrder(reviews) {
		b.WriteString(fmt.Sprintf("### %s\n\n", domain))

		for _, review := range reviews {
			if review.Domain != domain {
				continue
			}
			paper := review.Paper
			b.WriteString(fmt.Sprintf("#### %s\n", paper.Title))
			b.WriteString(fmt.Sprintf("**Authors**: %s\n", strings.Join(paper.Authors, ", ")))
			b.WriteString(fmt.Sprintf("**Categories**: %s\n", strings.Join(paper.Categories, ", ")))
			b.WriteString(fmt.Sprintf("**Published**: %s\n", paper.Published.Format("2006-01-02")))
			b.WriteString(fmt.Sprintf("**Link**: %s\n\n", paper.AbsURL))
			b.WriteString(review.Analysis)
			b.WriteString("\n\n---\n\n")
		}
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append to journal: %w", err)
	}
	return nil
}

// domainOrder preserves first-occurrence order of domains in the run.
func domainOrder(reviews []models.Review) []string {
	var order []string
	seen := make(map[string]bool)
	for _, review := range reviews {
		if !seen[review.Domain] {
			seen[review.Domain] = true
			order = append(order, review.Domain)
		}
	}
	return order
}
