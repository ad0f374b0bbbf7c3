package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"webclip/internal/apperr"
	"webclip/internal/models"
	"webclip/internal/transport"
)

const (
	untitledPage       = "Untitled"
	maxPageBodyBytes   = 20 << 20
	extractorUserAgent = "webclip/1.0"
)

// Extractor fetches a page and pulls out its title and body markup.
type Extractor struct {
	client transport.HTTPDoer
	log    zerolog.Logger
}

func NewExtractor(client transport.HTTPDoer, log zerolog.Logger) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Extractor{client: client, log: log}
}

// Extract downloads pageURL and returns its content.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (models.PageContent, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return models.PageContent{}, apperr.BadInput("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return models.PageContent{}, apperr.BadInput(fmt.Sprintf("invalid url %q: %v", pageURL, err))
	}
	req.Header.Set("User-Agent", extractorUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return models.PageContent{}, apperr.Transport(err, "fetch page", map[string]any{"url": pageURL})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.PageContent{}, apperr.Transport(nil, "fetch page: unexpected status", map[string]any{
			"url":    pageURL,
			"status": resp.StatusCode,
		})
	}

	page, err := ExtractHTML(io.LimitReader(resp.Body, maxPageBodyBytes))
	if err != nil {
		return models.PageContent{}, err
	}
	page.URL = pageURL

	e.log.Debug().Str("url", pageURL).Str("title", page.Title).Int("content_bytes", len(page.Content)).Msg("page extracted")
	return page, nil
}

// ExtractHTML parses a document. The title falls back to "Untitled" and the content is
// the inner markup of <body>.
func ExtractHTML(r io.Reader) (models.PageContent, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return models.PageContent{}, apperr.BadInput("parse html: " + err.Error())
	}

	page := models.PageContent{Title: untitledPage}
	if t := findElement(doc, atom.Title); t != nil {
		if title := strings.TrimSpace(textContent(t)); title != "" {
			page.Title = title
		}
	}

	if body := findElement(doc, atom.Body); body != nil {
		var buf bytes.Buffer
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return models.PageContent{}, fmt.Errorf("render body: %w", err)
			}
		}
		page.Content = buf.String()
	}
	return page, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
