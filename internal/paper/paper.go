// Package paper defines the document model shared by every pipeline stage.
package paper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the on-disk date format of the corpus artifact.
const DateLayout = "2006-01-02"

// Document is one fetched paper. Its identity within a run is its position
// in the corpus array.
type Document struct {
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Published Date   `json:"date"`
}

// Date is a calendar date serialized as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// String returns the date in DateLayout.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. Only DateLayout is accepted.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("date is null")
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	*d = parsed
	return nil
}

// NormalizeText trims s and collapses every whitespace run, including
// embedded line breaks, into a single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Texts returns the abstracts of docs in corpus order.
func Texts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Abstract
	}
	return texts
}

// Dates returns the publication dates of docs in corpus order.
func Dates(docs []Document) []time.Time {
	dates := make([]time.Time, len(docs))
	for i, d := range docs {
		dates[i] = d.Published.Time
	}
	return dates
}
