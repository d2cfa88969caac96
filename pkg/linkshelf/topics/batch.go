package topics

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/resolve"
)

// BatchRequest creates a topic from a newline separated list of URLs.
type BatchRequest struct {
	Name    string `json:"name" binding:"required"`
	URLs    string `json:"urls" binding:"required"`
	Resolve bool   `json:"resolve"`
}

// ParseURLList splits text into URLs, one per line. Blank lines and lines
// starting with # are skipped, repeats are dropped.
func ParseURLList(text string) ([]string, error) {
	var out []string
	seen := map[string]bool{}

	sc := bufio.NewScanner(strings.NewReader(text))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := resolve.ParseURL(line)
		if err != nil {
			return nil, httpx.FieldError("topics.ParseURLList", "urls", fmt.Sprintf("line %d is not a valid URL", n))
		}
		if s := u.String(); !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, httpx.FieldError("topics.ParseURLList", "urls", "could not be read")
	}
	if len(out) == 0 {
		return nil, httpx.FieldError("topics.ParseURLList", "urls", "is required")
	}
	return out, nil
}

// Batch creates a new topic holding every URL in req. When req.Resolve is
// set, titles, icons and descriptions are fetched from the pages; a page
// that cannot be fetched is titled by its host.
func (s *Service) Batch(ctx context.Context, userID uint, req BatchRequest) (*UpsertResult, error) {
	urls, err := ParseURLList(req.URLs)
	if err != nil {
		return nil, err
	}

	meta := make([]resolve.Result, len(urls))
	if req.Resolve && s.resolver != nil {
		meta = s.resolver.ResolveAll(ctx, urls)
	}

	drafts := make([]URLDraft, len(urls))
	for i, u := range urls {
		d := URLDraft{URL: u, Title: meta[i].Title, Description: meta[i].Description}
		if meta[i].Error == "" {
			d.Icon = meta[i].Icon
		}
		if strings.TrimSpace(d.Title) == "" {
			d.Title = hostOf(u)
		}
		drafts[i] = d
	}

	return s.Upsert(ctx, userID, TopicRequest{Name: req.Name, URLs: drafts})
}

func hostOf(raw string) string {
	u, err := resolve.ParseURL(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
