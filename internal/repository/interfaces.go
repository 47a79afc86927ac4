package repository

import (
	"context"
	"errors"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
)

// ErrNotFound is returned when an addressed document does not exist
var ErrNotFound = errors.New("document not found")

// ItemStore defines the document operations on shopping items. Every
// operation is scoped to a collection or document path so one user can
// never address another user's items.
type ItemStore interface {
	// Create stores item in the collection, assigning its ID and CreatedAt.
	Create(ctx context.Context, col models.CollectionPath, item *models.ShoppingItem) (*models.ShoppingItem, error)
	// Get returns the item or ErrNotFound.
	Get(ctx context.Context, doc models.DocPath) (*models.ShoppingItem, error)
	// Update writes the non-nil fields in a single statement or ErrNotFound.
	Update(ctx context.Context, doc models.DocPath, fields models.ItemFields) error
	// Delete removes the item or returns ErrNotFound.
	Delete(ctx context.Context, doc models.DocPath) error
	// List returns every item in the collection ordered by creation time.
	List(ctx context.Context, col models.CollectionPath) ([]*models.ShoppingItem, error)
}

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
}
