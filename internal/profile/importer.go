package profile

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Importer prefills a Profile from a business website.
type Importer struct {
	httpClient *http.Client
}

// NewImporter creates a new Importer.
func NewImporter() *Importer {
	return &Importer{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// FromURL fetches the page and scrapes name, category and goals hints from
// its metadata. The result still needs the user to confirm and complete the
// required fields before submission.
func (i *Importer) FromURL(ctx context.Context, url string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	p := &Profile{ActorType: ActorBusiness}

	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		p.Name = strings.TrimSpace(name)
	}
	if p.Name == "" {
		p.Name = cleanTitle(doc.Find("title").First().Text())
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		p.CreatorGoals = strings.TrimSpace(desc)
	} else if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		p.CreatorGoals = strings.TrimSpace(desc)
	}

	if keywords, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		if first := strings.SplitN(keywords, ",", 2)[0]; strings.TrimSpace(first) != "" {
			p.Category = strings.TrimSpace(first)
		}
	}

	if p.Name == "" {
		return nil, fmt.Errorf("page has no usable name metadata")
	}

	return p, nil
}

// cleanTitle trims the common "Name | Tagline" and "Name - Tagline" patterns
// down to the name.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " – ", " - " } {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}
