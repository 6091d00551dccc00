package runstore

import (
	"errors"
	"log/slog"

	"github.com/maxonary/ai-trend-clustering/internal/cache"
)

// Loader opens runs through a memo so a run's artifacts are deserialized
// once per process.
type Loader struct {
	store  *Store
	memo   *cache.Memo[string, *Run]
	logger *slog.Logger
}

// NewLoader returns a Loader over store keeping at most capacity runs;
// zero means unbounded.
func NewLoader(store *Store, capacity int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:  store,
		memo:   cache.New[string, *Run](capacity),
		logger: logger,
	}
}

// Store returns the underlying store.
func (l *Loader) Store() *Store {
	return l.store
}

// Load returns the run with the given ID. A run whose directory has been
// removed is dropped from the memo.
func (l *Loader) Load(id string) (*Run, error) {
	h, err := l.store.Get(id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			l.memo.Forget(id)
		}
		return nil, err
	}
	return l.memo.Get(id, func() (*Run, error) {
		l.logger.Info("loading run", "run", id)
		return l.store.Open(h)
	})
}

// Stats reports memo usage.
func (l *Loader) Stats() cache.Stats {
	return l.memo.Stats()
}
