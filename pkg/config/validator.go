package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "API key is required (set OPENAI_API_KEY)",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	// Validate SMTP config: the block is optional, but once any field is set
	// the whole block must be complete so a half-configured mailer never
	// fails mid-run.
	if c.SMTPEnabled() {
		if c.SMTP.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "smtp.host",
				Message: "host is required when SMTP is configured",
			})
		}
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   "smtp.port",
				Message: "port must be between 1 and 65535",
			})
		}
		if c.SMTP.Username == "" {
			errors = append(errors, ValidationError{
				Field:   "smtp.username",
				Message: "username is required when SMTP is configured",
			})
		}
		if c.SMTP.Password == "" {
			errors = append(errors, ValidationError{
				Field:   "smtp.password",
				Message: "password is required when SMTP is configured",
			})
		}
		if c.SMTP.From == "" {
			errors = append(errors, ValidationError{
				Field:   "smtp.from",
				Message: "sender address is required when SMTP is configured",
			})
		}
		if len(c.SMTP.To) == 0 {
			errors = append(errors, ValidationError{
				Field:   "smtp.to",
				Message: "at least one recipient is required when SMTP is configured",
			})
		}
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Tracker config
	if c.Tracker.WindowDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "tracker.window_days",
			Message: "window_days must be positive",
		})
	}

	if len(c.Tracker.Domains) == 0 {
		errors = append(errors, ValidationError{
			Field:   "tracker.domains",
			Message: "at least one domain is required",
		})
	}

	for i, domain := range c.Tracker.Domains {
		if domain.Name == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tracker.domains[%d].name", i),
				Message: "domain name is required",
			})
		}
		if len(domain.Categories) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tracker.domains[%d].categories", i),
				Message: "at least one category is required",
			})
		}
		if domain.MaxSearch < 1 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tracker.domains[%d].max_search", i),
				Message: "max_search must be positive",
			})
		}
		if domain.MaxAnalyze < 1 || domain.MaxAnalyze > domain.MaxSearch {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tracker.domains[%d].max_analyze", i),
				Message: "max_analyze must be positive and no larger than max_search",
			})
		}
	}

	// Validate Fetch config
	if c.Fetch.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetch.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if _, err := url.Parse(c.Fetch.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "fetch.base_url",
			Message: "invalid arXiv API base URL",
		})
	}

	return errors
}
