// Package memory keeps documents in process memory. It backs the "memory"
// database driver and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
)

type itemStore struct {
	mu    sync.RWMutex
	items map[models.CollectionPath]map[string]models.ShoppingItem
	now   func() time.Time
}

// NewItemStore creates an empty in-memory item store
func NewItemStore() repository.ItemStore {
	return &itemStore{
		items: make(map[models.CollectionPath]map[string]models.ShoppingItem),
		now:   time.Now,
	}
}

func (s *itemStore) Create(ctx context.Context, col models.CollectionPath, item *models.ShoppingItem) (*models.ShoppingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := *item
	created.ID = uuid.NewString()
	created.CreatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.items[col]
	if !ok {
		docs = make(map[string]models.ShoppingItem)
		s.items[col] = docs
	}
	docs[created.ID] = created

	return &created, nil
}

func (s *itemStore) Get(ctx context.Context, doc models.DocPath) (*models.ShoppingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[doc.Collection][doc.ItemID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (s *itemStore) Update(ctx context.Context, doc models.DocPath, fields models.ItemFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[doc.Collection][doc.ItemID]
	if !ok {
		return fmt.Errorf("shopping item %s: %w", doc, repository.ErrNotFound)
	}
	s.items[doc.Collection][doc.ItemID] = fields.Apply(item)
	return nil
}

func (s *itemStore) Delete(ctx context.Context, doc models.DocPath) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[doc.Collection][doc.ItemID]; !ok {
		return fmt.Errorf("shopping item %s: %w", doc, repository.ErrNotFound)
	}
	delete(s.items[doc.Collection], doc.ItemID)
	return nil
}

func (s *itemStore) List(ctx context.Context, col models.CollectionPath) ([]*models.ShoppingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	items := make([]*models.ShoppingItem, 0, len(s.items[col]))
	for _, item := range s.items[col] {
		item := item
		items = append(items, &item)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
