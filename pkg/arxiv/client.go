package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/papertrail/internal/models"
	"golang.org/x/time/rate"
)

type ClientConfig struct {
	BaseURL    string
	RateLimit  float64 // requests per second
	Window     time.Duration
	Timeout    time.Duration
	OnProgress func(id string) // Add progress callback
}

type Client struct {
	config  ClientConfig
	client  *http.Client
	limiter *rate.Limiter
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// StripVersion normalizes an arXiv ID by removing the version suffix,
// e.g. 2507.05245v1 -> 2507.05245.
func StripVersion(id string) string {
	return versionSuffix.ReplaceAllString(id, "")
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://export.arxiv.org/api/query"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 0.33 // arXiv asks for one request every 3 seconds
	}
	if config.Window == 0 {
		config.Window = 7 * 24 * time.Hour
	}

	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func New(baseURL string) *Client {
	c, _ := NewWithConfig(ClientConfig{
		BaseURL: baseURL,
	})
	return c
}

// Atom response types for the arXiv query API.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Rel   string `xml:"rel,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
}

func buildQuery(categories []string) string {
	terms := make([]string, 0, len(categories))
	for _, cat := range categories {
		terms = append(terms, "cat:"+cat)
	}
	return strings.Join(terms, " OR ")
}

// Recent returns papers in the given categories submitted within the
// configured window, newest first. If the combined category query fails,
// a simplified single-category query is tried once before giving up.
func (c *Client) Recent(ctx context.Context, categories []string, max int) ([]models.Paper, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories given")
	}

	papers, err := c.search(ctx, buildQuery(categories), max)
	if err == nil {
		cutoff := time.Now().Add(-c.config.Window)
		recent := papers[:0]
		for _, paper := range papers {
			if paper.Published.After(cutoff) {
				recent = append(recent, paper)
			}
		}
		return recent, nil
	}

	// Simplified query: first category only, no window filter.
	papers, err2 := c.search(ctx, categories[0], max)
	if err2 != nil {
		return nil, fmt.Errorf("query failed: %v (simplified query also failed: %v)", err, err2)
	}
	return papers, nil
}

func (c *Client) search(ctx context.Context, query string, max int) ([]models.Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("max_results", strconv.Itoa(max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d from arXiv API", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse Atom feed: %w", err)
	}

	papers := make([]models.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, entryToPaper(entry))
	}
	return papers, nil
}

func entryToPaper(entry atomEntry) models.Paper {
	paper := models.Paper{
		ID:       shortID(entry.ID),
		Title:    cleanField(entry.Title),
		AbsURL:   entry.ID,
		Abstract: cleanField(entry.Summary),
	}

	for _, author := range entry.Authors {
		paper.Authors = append(paper.Authors, author.Name)
	}
	for _, category := range entry.Categories {
		paper.Categories = append(paper.Categories, category.Term)
	}
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			paper.PDFURL = link.Href
		}
	}
	if paper.PDFURL == "" && paper.ID != "" {
		paper.PDFURL = "https://arxiv.org/pdf/" + paper.ID
	}

	if published, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		paper.Published = published
	}

	return paper
}

// shortID extracts the arXiv ID from an abs URL,
// e.g. http://arxiv.org/abs/2507.05245v1 -> 2507.05245v1.
func shortID(entryID string) string {
	if idx := strings.Index(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

// cleanField collapses the newlines and indentation arXiv embeds in
// title and summary fields.
func cleanField(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Download fetches the paper's PDF into dir and returns its path.
// Already-downloaded files are skipped.
func (c *Client) Download(ctx context.Context, paper models.Paper, dir string) (string, error) {
	pdfPath := filepath.Join(dir, strings.ReplaceAll(paper.ID, "/", "_")+".pdf")

	if _, err := os.Stat(pdfPath); err == nil {
		return pdfPath, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paper.PDFURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d for PDF: %s", resp.StatusCode, paper.PDFURL)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(pdfPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(pdfPath)
		return "", err
	}

	if c.config.OnProgress != nil {
		c.config.OnProgress(paper.ID)
	}

	return pdfPath, nil
}
