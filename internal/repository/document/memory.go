package documentrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feichai0017/document-ingest/internal/models"
)

// Memory keeps documents in process. Used when no DATABASE_URL is set and
// in tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]*models.Document),
		now:  time.Now,
	}
}

func (m *Memory) Create(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[doc.ID]; ok {
		return fmt.Errorf("%sCreate: document %s already exists", pkg, doc.ID)
	}
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *Memory) Update(_ context.Context, id string, u models.DocumentUpdate) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%sUpdate: %w", pkg, models.ErrDocumentNotFound)
	}

	next := u.Apply(current)
	next.UpdatedAt = m.now()
	m.docs[id] = next

	return next.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%sGet: %w", pkg, models.ErrDocumentNotFound)
	}
	return doc.Clone(), nil
}
