package arxiv

import (
	"context"
	"fmt"
	"strings"

	"github.com/maxonary/ai-trend-clustering/internal/paper"
)

// Query describes one ingestion request.
type Query struct {
	Category   string
	MaxResults int
	StartYear  int
}

// Validate checks the query before any request is made.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidQuery)
	}
	if q.MaxResults < 1 {
		return fmt.Errorf("%w: max results must be positive, got %d", ErrInvalidQuery, q.MaxResults)
	}
	return nil
}

// page fetches the page at start, re-requesting it while it comes back
// empty even though the feed reports more results. The returned bool is
// false once the result stream is exhausted or stays empty.
func (c *Client) page(ctx context.Context, category string, start int) ([]entry, int, bool, error) {
	for attempt := 0; ; attempt++ {
		f, err := c.getPage(ctx, category, start)
		if err != nil {
			return nil, 0, false, err
		}
		if len(f.Entries) > 0 {
			return f.Entries, f.TotalResults, true, nil
		}
		if start >= f.TotalResults {
			return nil, f.TotalResults, false, nil
		}
		if attempt >= c.emptyPageRetries {
			c.logger.Warn("arXiv returned empty page, stopping",
				"category", category, "start", start, "total_results", f.TotalResults, "attempts", attempt+1)
			return nil, f.TotalResults, false, nil
		}
		c.logger.Debug("arXiv returned empty page, retrying", "start", start, "attempt", attempt+1)
	}
}

// Fetch collects documents for q, newest submission first.
//
// Fetching stops without error when the results are exhausted, when a page
// stays empty after retries, when an entry older than q.StartYear appears,
// or when q.MaxResults documents have been accepted.
//
// If a request fails after at least one page was accepted, Fetch returns the
// documents collected so far together with the error. If the first page
// fails the returned slice is nil.
func (c *Client) Fetch(ctx context.Context, q Query) ([]paper.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	docs := make([]paper.Document, 0, min(q.MaxResults, c.pageSize))
	start := 0
	pages := 0

	for len(docs) < q.MaxResults {
		entries, total, ok, err := c.page(ctx, q.Category, start)
		if err != nil {
			if pages == 0 {
				return nil, fmt.Errorf("fetching page at %d: %w", start, err)
			}
			return docs, fmt.Errorf("fetching page at %d (after %d documents): %w", start, len(docs), err)
		}
		if !ok {
			break
		}

		for _, e := range entries {
			published, err := e.publishedAt()
			if err != nil {
				if pages == 0 {
					return nil, err
				}
				return docs, err
			}
			// Results arrive newest first, so the first older entry ends the window.
			if published.Year() < q.StartYear {
				c.logger.Debug("reached start year boundary", "published", published.Format("2006-01-02"), "collected", len(docs))
				return docs, nil
			}

			docs = append(docs, paper.Document{
				Title:     paper.NormalizeText(e.Title),
				Abstract:  paper.NormalizeText(e.Summary),
				Published: paper.NewDate(published),
			})
			if len(docs) >= q.MaxResults {
				return docs, nil
			}
		}

		pages++
		start += len(entries)
		c.logger.Info("fetched arXiv page", "category", q.Category, "page", pages, "collected", len(docs), "total_results", total)
		if start >= total {
			break
		}
	}

	return docs, nil
}

// Ingest fetches q and writes the corpus to outPath, replacing any existing
// content. On a partial failure the documents collected so far are still
// written and the fetch error is returned.
func (c *Client) Ingest(ctx context.Context, q Query, outPath string) ([]paper.Document, error) {
	docs, fetchErr := c.Fetch(ctx, q)
	if fetchErr != nil && docs == nil {
		return nil, fetchErr
	}

	if err := paper.WriteCorpus(outPath, docs); err != nil {
		return docs, fmt.Errorf("writing corpus: %w", err)
	}
	return docs, fetchErr
}
