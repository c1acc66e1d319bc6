package shopify

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// MemoryAssets keeps theme assets in memory. Useful for tests and local dev.
type MemoryAssets struct {
	mu     sync.RWMutex
	assets map[string]string
	writes int
}

// NewMemoryAssets seeds the store with the given key/value pairs.
func NewMemoryAssets(seed map[string]string) *MemoryAssets {
	assets := make(map[string]string, len(seed))
	for k, v := range seed {
		assets[k] = v
	}
	return &MemoryAssets{assets: assets}
}

// GetAsset returns the stored value or a not_found error.
func (m *MemoryAssets) GetAsset(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.assets[key]
	if !ok {
		return "", apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("asset %s not found", key), nil)
	}
	return value, nil
}

// PutAsset stores value under key.
func (m *MemoryAssets) PutAsset(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[key] = value
	m.writes++
	return nil
}

// Writes reports how many PutAsset calls succeeded.
func (m *MemoryAssets) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
