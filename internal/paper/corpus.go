package paper

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorpusNotFound is returned when the corpus file does not exist.
var ErrCorpusNotFound = errors.New("corpus file not found")

// ParseError reports a malformed corpus file. Index is -1 when the file
// as a whole could not be decoded.
type ParseError struct {
	Path  string
	Index int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
	case e.Field != "":
		return fmt.Sprintf("parsing %s: record %d: field %q: %v", e.Path, e.Index, e.Field, e.Err)
	default:
		return fmt.Sprintf("parsing %s: record %d: %v", e.Path, e.Index, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errMissingField = errors.New("missing field")

// WriteCorpus writes docs as a JSON array to path, replacing any existing
// content. The file is written to a temp path and renamed into place.
func WriteCorpus(path string, docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming corpus file: %w", err)
	}
	return nil
}

// rawDocument is used to detect missing fields, which encoding/json would
// otherwise leave as zero values.
type rawDocument struct {
	Title    *string          `json:"title"`
	Abstract *string          `json:"abstract"`
	Date     *json.RawMessage `json:"date"`
}

// ReadCorpus reads a corpus file written by WriteCorpus. Malformed content
// is reported as a *ParseError.
func ReadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return DecodeCorpus(path, data)
}

// DecodeCorpus parses corpus bytes. path is only used in error messages.
func DecodeCorpus(path string, data []byte) ([]Document, error) {
	var raw []rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Index: -1, Err: err}
	}

	docs := make([]Document, len(raw))
	for i, r := range raw {
		switch {
		case r.Title == nil:
			return nil, &ParseError{Path: path, Index: i, Field: "title", Err: errMissingField}
		case r.Abstract == nil:
			return nil, &ParseError{Path: path, Index: i, Field: "abstract", Err: errMissingField}
		case r.Date == nil:
			return nil, &ParseError{Path: path, Index: i, Field: "date", Err: errMissingField}
		}

		var d Date
		if err := json.Unmarshal(*r.Date, &d); err != nil {
			return nil, &ParseError{Path: path, Index: i, Field: "date", Err: err}
		}
		docs[i] = Document{Title: *r.Title, Abstract: *r.Abstract, Published: d}
	}
	return docs, nil
}

// Identity returns the hex SHA-256 of the corpus file. Two corpora with the
// same identity are byte-identical.
func Identity(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return "", fmt.Errorf("reading corpus: %w", err)
	}
	return IdentityOf(data), nil
}

// IdentityOf returns the hex SHA-256 of already-read corpus bytes.
func IdentityOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
