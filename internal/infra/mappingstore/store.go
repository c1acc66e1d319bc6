// Package mappingstore keeps the pairing between knowledge base ids and
// storefront handles.
package mappingstore

import (
	"context"
	"sort"
	"sync"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/tabular"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// MemoryStore keeps links in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	links map[string]faq.Link
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(seed ...faq.Link) *MemoryStore {
	s := &MemoryStore{links: make(map[string]faq.Link)}
	_ = s.Save(context.Background(), seed...)
	return s
}

// List returns links in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]faq.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]faq.Link, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.links[id])
	}
	return out, nil
}

// Save upserts links by source id.
func (s *MemoryStore) Save(_ context.Context, links ...faq.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range links {
		if link.SourceID == "" {
			continue
		}
		if _, ok := s.links[link.SourceID]; !ok {
			s.order = append(s.order, link.SourceID)
		}
		s.links[link.SourceID] = link
	}
	return nil
}

// FileStore keeps links in a CSV mapping file. A missing file is an empty store.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore binds the store to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// List reads every link of the file.
func (s *FileStore) List(_ context.Context) ([]faq.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save upserts links by source id and rewrites the file.
func (s *FileStore) Save(_ context.Context, links ...faq.Link) error {
	if len(links) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.read()
	if err != nil {
		return err
	}
	merged := NewMemoryStore(existing...)
	if err := merged.Save(context.Background(), links...); err != nil {
		return err
	}
	all, _ := merged.List(context.Background())
	return tabular.WriteLinksFile(s.path, all)
}

func (s *FileStore) read() ([]faq.Link, error) {
	links, err := tabular.ReadLinksFile(s.path)
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, nil
	}
	return links, err
}

func sortBySource(links []faq.Link) {
	sort.Slice(links, func(i, j int) bool { return links[i].SourceID < links[j].SourceID })
}
