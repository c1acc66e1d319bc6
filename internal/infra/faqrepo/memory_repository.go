package faqrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
)

// MemoryRepository is an in-memory archive used for tests/dev.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]faq.Record
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]faq.Record)}
}

// SaveRecords upserts records keyed by (id, language).
func (r *MemoryRepository) SaveRecords(_ context.Context, records []faq.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range dedupe(records) {
		r.records[archiveKey(rec)] = rec
	}
	return nil
}

// ListRecords returns archived records, optionally limited to one language.
func (r *MemoryRepository) ListRecords(_ context.Context, lang string) ([]faq.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]faq.Record, 0, len(r.records))
	for _, rec := range r.records {
		if lang != "" && rec.Language != lang {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
