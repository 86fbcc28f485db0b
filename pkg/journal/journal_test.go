package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/papertrail/internal/models"
)

func tempJournal(t *testing.T, content string) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conclusion.md")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return New(path)
}

func TestAnalyzedIDsMissingFile(t *testing.T) {
	j := tempJournal(t, "")

	ids, err := j.AnalyzedIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAnalyzedIDs(t *testing.T) {
	j := tempJournal(t, `# Reviews

#### Some Paper
**Link**: https://arxiv.org/abs/2507.05245v1

analysis

#### Another Paper
See arxiv:2401.00001 for details.
`)

	ids, err := j.AnalyzedIDs()
	require.NoError(t, err)

	// Both versioned and normalized forms are tracked.
	assert.True(t, ids["2507.05245v1"])
	assert.True(t, ids["2507.05245"])
	assert.True(t, ids["2401.00001"])
	assert.False(t, ids["9999.00000"])
}

func TestCleanDuplicates(t *testing.T) {
	j := tempJournal(t, `# Reviews

#### First Paper
**Link**: https://arxiv.org/abs/2507.05245v1

first

---

#### Duplicate Of First
**Link**: https://arxiv.org/abs/2507.05245v2

duplicate

---

#### Unrelated Paper
**Link**: https://arxiv.org/abs/2401.00001v1

kept

---
`)

	require.NoError(t, j.CleanDuplicates())

	content, err := os.ReadFile(j.Path())
	require.NoError(t, err)

	assert.Contains(t, string(content), "First Paper")
	assert.Contains(t, string(content), "Unrelated Paper")
	// v2 of the same paper normalizes to the same ID and is dropped.
	assert.NotContains(t, string(content), "Duplicate Of First")
}

func TestCleanDuplicatesNoFile(t *testing.T) {
	j := tempJournal(t, "")
	assert.NoError(t, j.CleanDuplicates())
}

func TestAppendGroupsByDomain(t *testing.T) {
	j := tempJournal(t, "")

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	reviews := []models.Review{
		{
			Domain: "Software Engineering",
			Paper: models.Paper{
				ID:         "2507.05245v1",
				Title:      "A Study of Flaky Tests",
				Authors:    []string{"Alice Smith"},
				Categories: []string{"cs.SE"},
				Published:  time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
				AbsURL:     "https://arxiv.org/abs/2507.05245v1",
			},
			Analysis: "#### Executive Summary\nGood paper.",
		},
		{
			Domain: "Security",
			Paper: models.Paper{
				ID:     "2507.06000v1",
				Title:  "Breaking Things",
				AbsURL: "https://arxiv.org/abs/2507.06000v1",
			},
			Analysis: "#### Executive Summary\nScary paper.",
		},
	}

	require.NoError(t, j.Append(reviews, now))

	content, err := os.ReadFile(j.Path())
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "## ArXiv Paper Reviews (as of 2026-08-26)")
	assert.Contains(t, text, "### Software Engineering")
	assert.Contains(t, text, "### Security")
	assert.Contains(t, text, "**Authors**: Alice Smith")
	assert.Contains(t, text, "**Link**: https://arxiv.org/abs/2507.05245v1")

	// Appended papers are now part of the analyzed set.
	ids, err := j.AnalyzedIDs()
	require.NoError(t, err)
	assert.True(t, ids["2507.05245"])
	assert.True(t, ids["2507.06000"])
}

func TestAppendNothing(t *testing.T) {
	j := tempJournal(t, "")
	require.NoError(t, j.Append(nil, time.Now()))

	_, err := os.Stat(j.Path())
	assert.True(t, os.IsNotExist(err))
}
