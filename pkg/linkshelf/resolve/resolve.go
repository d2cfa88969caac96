// Package resolve fetches a web page and extracts the metadata used to
// prefill a bookmark: title, icon and description.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

// maxBodySize caps how much of a page is parsed.
const maxBodySize = 2 << 20

// Metadata describes a resolved page.
type Metadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Result is one entry of a batch resolution. Error is set when the page
// could not be resolved; Metadata then only carries the URL.
type Result struct {
	Metadata
	Error string `json:"error,omitempty"`
}

// Resolver fetches pages over HTTP.
type Resolver struct {
	client      *http.Client
	userAgent   string
	concurrency int
	policy      *bluemonday.Policy
}

// errBlockedAddress is returned by the dialer for addresses outside the
// public internet.
var errBlockedAddress = errors.New("address not allowed")

// New creates a resolver from cfg. Unless cfg.AllowPrivate is set, pages on
// loopback, link-local and private addresses are refused, including after
// redirects.
func New(cfg config.ResolverConfig) *Resolver {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.AllowPrivate {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Control: publicOnly}
		transport.DialContext = dialer.DialContext
		transport.Proxy = nil
	}
	return NewWithClient(cfg, &http.Client{Timeout: cfg.Timeout, Transport: transport})
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !IsPublicAddr(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

// IsPublicAddr reports whether ip is a globally routable unicast address.
func IsPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast()
}

// NewWithClient creates a resolver that uses client for fetching.
func NewWithClient(cfg config.ResolverConfig, client *http.Client) *Resolver {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		client:      client,
		userAgent:   cfg.UserAgent,
		concurrency: concurrency,
		policy:      bluemonday.StrictPolicy(),
	}
}

// ParseURL checks that raw is an absolute http(s) URL.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errx.Errorf("resolve.ParseURL", errx.Invalid, "invalid url %q", raw)
	}
	return u, nil
}

// Resolve fetches rawURL and extracts its metadata.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Metadata, error) {
	const op = "resolve.Resolve"

	target, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, errx.E(op, errx.Invalid, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddress) {
			return nil, errx.Errorf(op, errx.Forbidden, "Address not allowed")
		}
		if isTimeout(ctx, err) {
			return nil, errx.Errorf(op, errx.Timeout, "Request timed out")
		}
		return nil, errx.E(op, errx.Transport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errx.Errorf(op, errx.Transport, "HTTP error! status: %d", resp.StatusCode)
	}

	// Pages in legacy encodings are converted to UTF-8 before parsing.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errx.E(op, errx.Transport, fmt.Errorf("decoding page: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errx.Errorf(op, errx.Timeout, "Request timed out")
		}
		return nil, errx.E(op, errx.Transport, fmt.Errorf("reading page: %w", err))
	}

	// Relative icons resolve against the final URL after redirects.
	base := resp.Request.URL
	return &Metadata{
		URL:         target.String(),
		Title:       r.clean(firstNonEmpty(metaContent(doc, `meta[property="og:title"]`), doc.Find("title").First().Text())),
		Description: r.clean(firstNonEmpty(metaContent(doc, `meta[name="description"]`), metaContent(doc, `meta[property="og:description"]`))),
		Icon:        iconURL(doc, base),
	}, nil
}

// ResolveAll resolves every URL with bounded concurrency. Results keep the
// order of urls; a failing URL does not fail the batch.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			md, err := r.Resolve(ctx, u)
			if err != nil {
				results[i] = Result{Metadata: Metadata{URL: u}, Error: errx.Message(err)}
				return nil
			}
			results[i] = Result{Metadata: *md}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Resolver) clean(s string) string {
	s = html.UnescapeString(r.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return v
}

var iconSelectors = []string{
	`link[rel="icon"]`,
	`link[rel="shortcut icon"]`,
	`link[rel="apple-touch-icon"]`,
}

func iconURL(doc *goquery.Document, base *url.URL) string {
	for _, sel := range iconSelectors {
		href, ok := doc.Find(sel).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		icon := base.ResolveReference(ref)
		if icon.Scheme != "http" && icon.Scheme != "https" {
			continue
		}
		return icon.String()
	}
	return base.ResolveReference(&url.URL{Path: "/favicon.ico"}).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
