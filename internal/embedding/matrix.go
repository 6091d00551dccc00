package embedding

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Errors returned by embedding operations.
var (
	ErrNotFound           = errors.New("embeddings file not found")
	ErrUnsupportedVersion = errors.New("unsupported embeddings version")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")

	// ErrUpstream wraps failures talking to the embedding server.
	ErrUpstream = errors.New("embedding server request failed")
)

// CurrentMatrixVersion is the format version for compatibility checking.
// Increment this when making breaking changes to the file format.
const CurrentMatrixVersion = 1

// Matrix is the dense embeddings artifact: one row per document, in corpus
// order.
type Matrix struct {
	Version    int
	Model      string
	Dimensions int
	CreatedAt  time.Time
	Rows       [][]float32
}

// NewMatrix creates an empty matrix for the given model.
func NewMatrix(model string, dimensions int) *Matrix {
	return &Matrix{
		Version:    CurrentMatrixVersion,
		Model:      model,
		Dimensions: dimensions,
		CreatedAt:  time.Now(),
	}
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// Shape returns (rows, columns).
func (m *Matrix) Shape() (int, int) {
	return len(m.Rows), m.Dimensions
}

// Append adds a row, checking its dimensionality.
func (m *Matrix) Append(row []float32) error {
	if len(row) != m.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(row), m.Dimensions)
	}
	m.Rows = append(m.Rows, row)
	return nil
}

// Save persists the matrix using GOB encoding. The file is written to a temp
// path and renamed into place.
func (m *Matrix) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating embeddings directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding embeddings: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Load reads a matrix written by Save.
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening embeddings file: %w", err)
	}
	defer f.Close()

	var m Matrix
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding embeddings: %w", err)
	}

	if m.Version != CurrentMatrixVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, m.Version, CurrentMatrixVersion)
	}
	for i, row := range m.Rows {
		if len(row) != m.Dimensions {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), m.Dimensions)
		}
	}
	return &m, nil
}
