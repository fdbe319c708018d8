package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/docqa/core"
)

const userAgent = "docqa/1.0"

// loadWeb fetches url and chunks the text of the first node matching the selector.
func (l *Loader) loadWeb(ctx context.Context, url string) ([]core.Chunk, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: %s", core.ErrSourceUnavailable, url, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrParseFailure, url, err)
	}

	selection := doc.Find(l.selector).First()
	if selection.Length() == 0 {
		return nil, fmt.Errorf("%w: %s: selector %q matched nothing", core.ErrParseFailure, url, l.selector)
	}

	text := cleanText(selection.Text())
	chunks, err := l.chunk(url, []Page{{Text: text}}, map[string]string{MetaSelector: l.selector})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	l.logger.Debug("loaded page", "url", url, "chunks", len(chunks))
	return chunks, nil
}

// cleanText collapses blank lines and trims the extracted page text.
func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n\n", "\n"))
}
