// Package cache implements the local purchase cache: an append-only list of
// purchases kept in a single named slot. The list is stored whole and
// rewritten on every append, so the storage medium only needs to load and
// save one blob. Backends exist for memory, a local file and Redis.
//
// Reads are tolerant: a missing slot and a corrupt one both read as an empty
// list. Corruption is logged and counted but never returned to callers.
//
// Appends serialize within one Log. Two processes sharing a backend can
// still lose an update because the read-modify-write is not guarded.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tbourn/vp-storefront/internal/domain"
)

// Backend stores the serialized purchase list.
type Backend interface {
	// Load returns the stored blob, or (nil, nil) when nothing was saved yet.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored blob.
	Save(ctx context.Context, data []byte) error
}

var readAnomalies = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "local_cache_read_anomalies_total",
		Help: "Local purchase cache reads that fell back to an empty list.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(readAnomalies)
}

// Log is the append-only purchase list over a Backend.
type Log struct {
	mu      sync.Mutex
	backend Backend
	logger  zerolog.Logger
}

// NewLog wraps backend. Read anomalies are reported on logger.
func NewLog(backend Backend, logger zerolog.Logger) *Log {
	return &Log{backend: backend, logger: logger.With().Str("component", "local_cache").Logger()}
}

// Append adds p to the end of the stored list. Entries of every user
// accumulate in the same list.
func (l *Log) Append(ctx context.Context, p domain.Purchase) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.read(ctx)
	list = append(list, p)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode purchases: %w", err)
	}
	if err := l.backend.Save(ctx, data); err != nil {
		return fmt.Errorf("save purchases: %w", err)
	}
	return nil
}

// ListAll returns every cached purchase in insertion order. It never fails;
// unreadable content yields an empty list.
func (l *Log) ListAll(ctx context.Context) []domain.Purchase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

func (l *Log) read(ctx context.Context) []domain.Purchase {
	raw, err := l.backend.Load(ctx)
	if err != nil {
		readAnomalies.WithLabelValues("load_error").Inc()
		l.logger.Warn().Err(err).Msg("local cache unreadable, treating as empty")
		return []domain.Purchase{}
	}
	if len(raw) == 0 {
		return []domain.Purchase{}
	}
	var list []domain.Purchase
	if err := json.Unmarshal(raw, &list); err != nil {
		readAnomalies.WithLabelValues("corrupt").Inc()
		l.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("local cache corrupt, treating as empty")
		return []domain.Purchase{}
	}
	if list == nil {
		list = []domain.Purchase{}
	}
	return list
}
