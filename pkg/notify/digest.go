package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/papertrail/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// htmlShell wraps the rendered digest in the styled email body.
var htmlShell = template.Must(template.New("digest").Parse(`<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>
body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
    line-height: 1.6;
    max-width: 1000px;
    margin: 0 auto;
    padding: 20px;
    background-color: #f5f5f5;
    color: #333;
}
.container {
    background-color: white;
    padding: 30px;
    border-radius: 8px;
    box-shadow: 0 2px 4px rgba(0,0,0,0.1);
}
h1 { color: #2c3e50; font-size: 24px; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
h2 { color: #34495e; font-size: 20px; padding-bottom: 8px; border-bottom: 1px solid #eee; }
h3 { color: #2980b9; font-size: 18px; }
h4 { color: #2c3e50; font-size: 16px; font-weight: 600; }
a { color: #3498db; text-decoration: none; }
a:hover { text-decoration: underline; }
hr { border: none; border-top: 1px solid #eee; margin: 30px 0; }
strong { color: #2c3e50; font-weight: 600; }
</style>
</head>
<body>
<div class="container">
{{ .Content }}
</div>
</body>
</html>
`))

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderMarkdown builds the digest body for one run, reviews grouped by
// domain, newest section first in each run's email.
func RenderMarkdown(reviews []models.Review, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# ArXiv Paper Analysis Report (%s)\n\n", now.Format("2006-01-02")))

	for _, domain := range domainOrder(reviews) {
		b.WriteString(fmt.Sprintf("## %s\n\n", domain))

		for _, review := range reviews {
			if review.Domain != domain {
				continue
			}
			paper := review.Paper
			b.WriteString(fmt.Sprintf("### %s\n\n", paper.Title))
			b.WriteString(fmt.Sprintf("**Authors**: %s\n", strings.Join(paper.Authors, ", ")))
			b.WriteString(fmt.Sprintf("**Categories**: %s\n", strings.Join(paper.Categories, ", ")))
			b.WriteString(fmt.Sprintf("**Published**: %s\n", paper.Published.Format("2006-01-02")))
			b.WriteString(fmt.Sprintf("**ArXiv Link**: %s\n\n", paper.AbsURL))
			b.WriteString(review.Analysis)
			b.WriteString("\n\n---\n\n")
		}
	}

	return b.String()
}

// RenderHTML converts the markdown digest into the styled HTML email body.
func RenderHTML(digest string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(digest), &body); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}

	var out bytes.Buffer
	err := htmlShell.Execute(&out, struct{ Content template.HTML }{
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render digest shell: %w", err)
	}
	return out.String(), nil
}

// PlainText derives the text/plain alternative from the HTML body.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse digest HTML: %w", err)
	}

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, selection *goquery.Selection) {
		// Collapse the whitespace goquery leaves behind
		text := strings.Join(strings.Fields(selection.Text()), " ")
		if text != "" {
			lines = append(lines, text)
		}
	})

	return strings.Join(lines, "\n"), nil
}

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
