package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
)

var col = models.CollectionPath{UserID: "user-1", ListID: models.DefaultListID}

func TestItemStoreOrdersByCreation(t *testing.T) {
	s := NewItemStore().(*itemStore)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()

	for _, name := range []string{"Bread", "Apples", "Cheese"} {
		_, err := s.Create(ctx, col, &models.ShoppingItem{Name: name, Quantity: 1})
		require.NoError(t, err)
	}

	items, err := s.List(ctx, col)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Bread", items[0].Name)
	assert.Equal(t, "Apples", items[1].Name)
	assert.Equal(t, "Cheese", items[2].Name)
}

func TestItemStoreReturnsCopies(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	created, err := s.Create(ctx, col, &models.ShoppingItem{Name: "Milk", Quantity: 1})
	require.NoError(t, err)
	created.Name = "changed"

	got, err := s.Get(ctx, col.Doc(created.ID))
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Name)
}

func TestItemStoreUpdateAndDelete(t *testing.T) {
	s := NewItemStore()
	ctx := context.Background()

	created, err := s.Create(ctx, col, &models.ShoppingItem{Name: "Milk", Quantity: 1, PlannedValue: 100})
	require.NoError(t, err)

	qty := 4
	require.NoError(t, s.Update(ctx, col.Doc(created.ID), models.ItemFields{Quantity: &qty}))
	got, err := s.Get(ctx, col.Doc(created.ID))
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, 100.0, got.PlannedValue)

	require.NoError(t, s.Delete(ctx, col.Doc(created.ID)))
	assert.ErrorIs(t, s.Delete(ctx, col.Doc(created.ID)), repository.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, col.Doc(created.ID), models.ItemFields{Quantity: &qty}), repository.ErrNotFound)
	_, err = s.Get(ctx, col.Doc(created.ID))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestItemStoreHonoursCancelledContext(t *testing.T) {
	s := NewItemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.List(ctx, col)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUserRepository(t *testing.T) {
	r := NewUserRepository()
	ctx := context.Background()

	missing, err := r.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = r.Create(ctx, &models.User{ID: "user-1", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = r.Create(ctx, &models.User{ID: "user-1"})
	assert.Error(t, err)

	_, err = r.Update(ctx, &models.User{ID: "nobody"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
