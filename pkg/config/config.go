package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type Domain struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
	MaxSearch  int      `yaml:"max_search"`
	MaxAnalyze int      `yaml:"max_analyze"`
}

type TrackerConfig struct {
	WindowDays  int      `yaml:"window_days"`
	PapersDir   string   `yaml:"papers_dir"`
	JournalPath string   `yaml:"journal_path"`
	Domains     []Domain `yaml:"domains"`
}

type FetchConfig struct {
	BaseURL        string  `yaml:"base_url"`
	RateLimit      float64 `yaml:"rate_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type CacheConfig struct {
	Dir       string `yaml:"dir"`
	KeyPrefix string `yaml:"key_prefix"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Database DatabaseConfig `yaml:"database"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Cache    CacheConfig    `yaml:"cache"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/papertrail/config.yaml"),
			"/etc/papertrail/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-4.1-mini"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "text-embedding-3-small"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.SMTP.Port == 0 {
		config.SMTP.Port = 587
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "reviews"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Tracker.WindowDays == 0 {
		config.Tracker.WindowDays = 7
	}
	if config.Tracker.PapersDir == "" {
		config.Tracker.PapersDir = "./papers"
	}
	if config.Tracker.JournalPath == "" {
		config.Tracker.JournalPath = "./conclusion.md"
	}
	if len(config.Tracker.Domains) == 0 {
		config.Tracker.Domains = []Domain{
			{Name: "Software Engineering", Categories: []string{"cs.SE"}, MaxSearch: 30, MaxAnalyze: 5},
			{Name: "Security", Categories: []string{"cs.CR"}, MaxSearch: 30, MaxAnalyze: 5},
		}
	}
	for i := range config.Tracker.Domains {
		if config.Tracker.Domains[i].MaxSearch == 0 {
			config.Tracker.Domains[i].MaxSearch = 30
		}
		if config.Tracker.Domains[i].MaxAnalyze == 0 {
			config.Tracker.Domains[i].MaxAnalyze = 5
		}
	}

	if config.Fetch.BaseURL == "" {
		config.Fetch.BaseURL = "https://export.arxiv.org/api/query"
	}
	if config.Fetch.RateLimit == 0 {
		config.Fetch.RateLimit = 0.33 // arXiv asks for one request every 3 seconds
	}
	if config.Fetch.TimeoutSeconds == 0 {
		config.Fetch.TimeoutSeconds = 30
	}

	if config.Cache.KeyPrefix == "" {
		config.Cache.KeyPrefix = "papers"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if host := os.Getenv("SMTP_SERVER"); host != "" {
		config.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.SMTP.Port = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		config.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.SMTP.Password = pass
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		config.SMTP.From = from
	}
	if to := os.Getenv("EMAIL_TO"); to != "" {
		var recipients []string
		for _, addr := range strings.Split(to, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				recipients = append(recipients, addr)
			}
		}
		config.SMTP.To = recipients
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}

// SMTPEnabled reports whether any part of the SMTP block was configured.
// The notifier is skipped entirely when nothing was provided.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != "" || c.SMTP.Username != "" || c.SMTP.From != "" || len(c.SMTP.To) > 0
}
