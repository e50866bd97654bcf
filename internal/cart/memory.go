package cart

import (
	"bytes"
	"context"
	"sync"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

// MemoryPersister keeps cart records in process memory. Saving an empty cart
// drops the record.
type MemoryPersister struct {
	mu      sync.RWMutex
	records map[domain.Identity][]byte
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: make(map[domain.Identity][]byte)}
}

func (p *MemoryPersister) Load(_ context.Context, id domain.Identity) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.records[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (p *MemoryPersister) Save(_ context.Context, id domain.Identity, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		delete(p.records, id)
		return nil
	}
	p.records[id] = append([]byte(nil), data...)
	return nil
}

// Len reports how many identities have a non-empty cart.
func (p *MemoryPersister) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}
