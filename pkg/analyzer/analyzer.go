package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/papertrail/internal/models"
)

// AnalyzerConfig represents the configuration for the paper analyzer.
type AnalyzerConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	APIKey         string
	BaseURL        string // OpenAI-compatible endpoint
}

// Analyzer reviews papers with a hosted LLM.
type Analyzer struct {
	config AnalyzerConfig
	llm    llms.Model
}

const defaultSystemTemplate = "You are a research assistant specialized in summarizing " +
	"and analyzing academic papers. Please provide structured, comprehensive analysis in English."

// NewWithConfig creates a new Analyzer with the given configuration.
func NewWithConfig(config AnalyzerConfig) (*Analyzer, error) {
	// Validate and set default values for config fields if necessary
	if config.Model == "" {
		config.Model = "gpt-4.1-mini"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithToken(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Analyzer{
		config: config,
		llm:    llm,
	}, nil
}

// Analyze produces a structured review of the paper.
func (a *Analyzer) Analyze(ctx context.Context, paper models.Paper) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, a.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman, buildPrompt(paper)),
	}

	response, err := a.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(a.config.MaxTokens),
		llms.WithTemperature(a.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("analysis error for %s: %w", paper.ID, err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return "", fmt.Errorf("empty analysis for %s", paper.ID)
	}

	return response.Choices[0].Content, nil
}

// Ask answers a free-form question against archived reviews.
func (a *Analyzer) Ask(ctx context.Context, query string, reviews []models.ArchivedReview) (string, error) {
	var contextBuilder strings.Builder
	for _, review := range reviews {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s (%s)\n%s\n\n", review.Title, review.URL, review.Review))
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem,
			"You are a research assistant with access to the following paper reviews. Answer questions based on this context."),
		llms.TextParts(schema.ChatMessageTypeHuman, query),
		llms.TextParts(schema.ChatMessageTypeHuman, contextBuilder.String()),
	}

	response, err := a.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(a.config.MaxTokens),
		llms.WithTemperature(a.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return response.Choices[0].Content, nil
}

func buildPrompt(paper models.Paper) string {
	return fmt.Sprintf(`Paper Title: %s
Authors: %s
Categories: %s
Published: %s
Abstract: %s

Please analyze this research paper and provide a CONCISE review in the following structured format. Keep each section brief and focused:

#### Executive Summary
Write 2-3 sentences summarizing the core problem, approach, and main result.

### Key Contributions
- List 2-3 main contributions (one line each)
- Focus on what's genuinely novel

### Method & Results
- Core methodology in 1-2 bullet points
- Key datasets/tools used (if any)
- Main experimental results (quantitative when possible)
- Performance compared to baselines (if reported)

### Impact & Limitations
- Practical significance (1-2 sentences)
- Main limitations or future work directions (1-2 points)

Keep the entire analysis under 200 words. Be precise and avoid redundancy. Use bullet points for clarity.`,
		paper.Title,
		strings.Join(paper.Authors, ", "),
		strings.Join(paper.Categories, ", "),
		paper.Published.Format("2006-01-02"),
		paper.Abstract,
	)
}
