package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/papertrail/internal/models"
)

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "plain text", sanitizeUTF8("plain text"))
	assert.Equal(t, "abc", sanitizeUTF8("ab\xffc"))
	assert.Equal(t, "naïve", sanitizeUTF8("naïve"))
}

type fixedEmbedder struct {
	dim int
}

func (f fixedEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

// Round-trip against a real database; skipped unless DATABASE_URL is set.
func TestArchiveRoundTrip(t *testing.T) {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	a, err := NewWithConfig(ctx, ArchiveConfig{
		ConnString: connString,
		TableName:  "test_reviews",
		VectorDim:  8,
	}, fixedEmbedder{dim: 8})
	require.NoError(t, err)
	defer a.Close()

	reviews := []models.Review{
		{
			Domain: "Software Engineering",
			Paper: models.Paper{
				ID:         "2507.05245v1",
				Title:      "A Study of Flaky Tests",
				Categories: []string{"cs.SE"},
				Published:  time.Now().UTC(),
				AbsURL:     "https://arxiv.org/abs/2507.05245v1",
			},
			Analysis: "Flaky tests are bad.",
		},
	}

	require.NoError(t, a.Store(ctx, reviews))

	results, err := a.Search(ctx, "flaky tests", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2507.05245v1", results[0].ID)
	assert.Equal(t, "A Study of Flaky Tests", results[0].Title)
	assert.Equal(t, "Software Engineering", results[0].Domain)
}
