package topicmodel

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Errors returned by bundle operations.
var (
	ErrNotFound           = errors.New("topic model not found")
	ErrUnsupportedVersion = errors.New("unsupported topic model version")
)

const (
	// DBFile is the SQLite file inside a topic model directory.
	DBFile = "model.db"

	// CurrentBundleVersion is the format version for compatibility checking.
	CurrentBundleVersion = 1
)

const schema = `
	CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE topics (
		id INTEGER PRIMARY KEY,
		count INTEGER NOT NULL,
		vector BLOB
	);

	CREATE TABLE terms (
		topic_id INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		term TEXT NOT NULL,
		weight REAL NOT NULL,
		PRIMARY KEY (topic_id, rank)
	);

	CREATE TABLE assignments (
		doc_index INTEGER PRIMARY KEY,
		topic_id INTEGER NOT NULL
	);
`

// DBPath returns the path of the SQLite file inside a model directory.
func DBPath(dir string) string {
	return filepath.Join(dir, DBFile)
}

// Exists reports whether dir holds a saved model.
func Exists(dir string) bool {
	info, err := os.Stat(DBPath(dir))
	return err == nil && info.Mode().IsRegular()
}

// Save writes the model into dir. The bundle is built in a sibling temp
// directory and renamed into place, so dir is either absent or complete.
// An existing bundle at dir is replaced.
func (m *Model) Save(dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tempDir, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	if err := m.writeDB(DBPath(tempDir)); err != nil {
		os.RemoveAll(tempDir)
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("removing previous model: %w", err)
	}
	if err := os.Rename(tempDir, dir); err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("renaming temp directory: %w", err)
	}
	return nil
}

func (m *Model) writeDB(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"version":    strconv.Itoa(CurrentBundleVersion),
		"id":         m.ID,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"ngram_max":  strconv.Itoa(m.NgramMax),
		"min_df":     strconv.Itoa(m.MinDF),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	topicStmt, err := tx.Prepare(`INSERT INTO topics (id, count, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing topic insert: %w", err)
	}
	defer topicStmt.Close()

	termStmt, err := tx.Prepare(`INSERT INTO terms (topic_id, rank, term, weight) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing term insert: %w", err)
	}
	defer termStmt.Close()

	for _, t := range m.Topics {
		if _, err := topicStmt.Exec(t.ID, t.Count, encodeVector(t.Vector)); err != nil {
			return fmt.Errorf("inserting topic %d: %w", t.ID, err)
		}
		for rank, term := range t.Terms {
			if _, err := termStmt.Exec(t.ID, rank, term.Text, term.Weight); err != nil {
				return fmt.Errorf("inserting term %q of topic %d: %w", term.Text, t.ID, err)
			}
		}
	}

	assignStmt, err := tx.Prepare(`INSERT INTO assignments (doc_index, topic_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing assignment insert: %w", err)
	}
	defer assignStmt.Close()

	for i, id := range m.Assignments {
		if _, err := assignStmt.Exec(i, id); err != nil {
			return fmt.Errorf("inserting assignment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing model: %w", err)
	}
	return nil
}

// Load reads and validates the model saved in dir.
func Load(dir string) (*Model, error) {
	if !Exists(dir) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}

	db, err := sql.Open("sqlite", DBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	m := &Model{}
	if err := readMeta(db, m); err != nil {
		return nil, err
	}
	if err := readTopics(db, m); err != nil {
		return nil, err
	}
	if err := readAssignments(db, m); err != nil {
		return nil, err
	}

	m.index()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func readMeta(db *sql.DB, m *Model) error {
	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return fmt.Errorf("querying meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scanning meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}

	version, _ := strconv.Atoi(meta["version"])
	if version != CurrentBundleVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, CurrentBundleVersion)
	}
	if meta["id"] == "" {
		return fmt.Errorf("%w: missing model id", ErrInvalidModel)
	}

	m.ID = meta["id"]
	m.NgramMax, _ = strconv.Atoi(meta["ngram_max"])
	m.MinDF, _ = strconv.Atoi(meta["min_df"])
	if ts, err := time.Parse(time.RFC3339Nano, meta["created_at"]); err == nil {
		m.CreatedAt = ts
	}
	return nil
}

func readTopics(db *sql.DB, m *Model) error {
	rows, err := db.Query(`SELECT id, count, vector FROM topics ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	index := make(map[int]int)
	for rows.Next() {
		var t Topic
		var blob []byte
		if err := rows.Scan(&t.ID, &t.Count, &blob); err != nil {
			return fmt.Errorf("scanning topic: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("topic %d: %w", t.ID, err)
		}
		t.Vector = vec
		index[t.ID] = len(m.Topics)
		m.Topics = append(m.Topics, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading topics: %w", err)
	}

	termRows, err := db.Query(`SELECT topic_id, term, weight FROM terms ORDER BY topic_id, rank`)
	if err != nil {
		return fmt.Errorf("querying terms: %w", err)
	}
	defer termRows.Close()

	for termRows.Next() {
		var id int
		var term Term
		if err := termRows.Scan(&id, &term.Text, &term.Weight); err != nil {
			return fmt.Errorf("scanning term: %w", err)
		}
		i, ok := index[id]
		if !ok {
			return fmt.Errorf("%w: term %q for unknown topic %d", ErrInvalidModel, term.Text, id)
		}
		m.Topics[i].Terms = append(m.Topics[i].Terms, term)
	}
	return termRows.Err()
}

func readAssignments(db *sql.DB, m *Model) error {
	rows, err := db.Query(`SELECT doc_index, topic_id FROM assignments ORDER BY doc_index`)
	if err != nil {
		return fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx, id int
		if err := rows.Scan(&idx, &id); err != nil {
			return fmt.Errorf("scanning assignment: %w", err)
		}
		if idx != len(m.Assignments) {
			return fmt.Errorf("%w: assignments not contiguous at document %d", ErrInvalidModel, idx)
		}
		m.Assignments = append(m.Assignments, id)
	}
	return rows.Err()
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", ErrInvalidModel, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
