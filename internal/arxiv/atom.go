package arxiv

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// feed is the subset of the arXiv Atom response used by the fetcher.
type feed struct {
	XMLName      xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	TotalResults int      `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	StartIndex   int      `xml:"http://a9.com/-/spec/opensearch/1.1/ startIndex"`
	ItemsPerPage int      `xml:"http://a9.com/-/spec/opensearch/1.1/ itemsPerPage"`
	Entries      []entry  `xml:"http://www.w3.org/2005/Atom entry"`
}

type entry struct {
	ID        string `xml:"http://www.w3.org/2005/Atom id"`
	Title     string `xml:"http://www.w3.org/2005/Atom title"`
	Summary   string `xml:"http://www.w3.org/2005/Atom summary"`
	Published string `xml:"http://www.w3.org/2005/Atom published"`
}

// errorEntryMarker identifies the pseudo-entry arXiv returns for bad queries.
const errorEntryMarker = "/api/errors"

// parseFeed decodes an Atom page. A feed carrying an arXiv error entry is
// returned as *APIError.
func parseFeed(r io.Reader, start int) (*feed, error) {
	var f feed
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	for _, e := range f.Entries {
		if strings.Contains(e.ID, errorEntryMarker) {
			return nil, &APIError{Message: strings.TrimSpace(e.Summary), Start: start}
		}
	}
	return &f, nil
}

// publishedAt parses the entry's RFC 3339 publication timestamp.
func (e entry) publishedAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: entry %s: bad published date %q", ErrInvalidResponse, strings.TrimSpace(e.ID), e.Published)
	}
	return t.UTC(), nil
}
