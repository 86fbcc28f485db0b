package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/papertrail/internal/models"
)

func TestNewWithConfig(t *testing.T) {
	config := AnalyzerConfig{
		Model:       "gpt-4.1-mini",
		Temperature: 0.5,
		MaxTokens:   1000,
		APIKey:      "sk-test",
		BaseURL:     "http://localhost:1234",
	}
	a, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, defaultSystemTemplate, a.config.SystemTemplate)
}

func TestNewWithConfigValidation(t *testing.T) {
	_, err := NewWithConfig(AnalyzerConfig{APIKey: "sk-test", Temperature: 3})
	assert.ErrorContains(t, err, "temperature")

	_, err = NewWithConfig(AnalyzerConfig{APIKey: "sk-test", MaxTokens: -1})
	assert.ErrorContains(t, err, "max tokens")

	_, err = NewWithConfig(AnalyzerConfig{})
	assert.ErrorContains(t, err, "API key")
}

func TestBuildPrompt(t *testing.T) {
	paper := models.Paper{
		ID:         "2507.05245v1",
		Title:      "A Study of Flaky Tests",
		Authors:    []string{"Alice Smith", "Bob Johnson"},
		Categories: []string{"cs.SE", "cs.CR"},
		Published:  time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC),
		Abstract:   "We study flaky tests.",
	}

	prompt := buildPrompt(paper)

	assert.Contains(t, prompt, "Paper Title: A Study of Flaky Tests")
	assert.Contains(t, prompt, "Authors: Alice Smith, Bob Johnson")
	assert.Contains(t, prompt, "Categories: cs.SE, cs.CR")
	assert.Contains(t, prompt, "Published: 2025-07-08")
	assert.Contains(t, prompt, "Executive Summary")
	assert.Contains(t, prompt, "Key Contributions")
	assert.Contains(t, prompt, "Impact & Limitations")
	assert.Contains(t, prompt, "under 200 words")
}

func TestFlattenEmbeddings(t *testing.T) {
	embeddings := [][]float32{{1, 2}, {3}, {4, 5}}
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, FlattenEmbeddings(embeddings))
	assert.Nil(t, FlattenEmbeddings(nil))
}
