package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
)

// Queries use $n placeholders, which both lib/pq and modernc sqlite accept.
type itemStore struct {
	db *sql.DB
}

// NewItemStore creates a new SQL backed item store
func NewItemStore(db *sql.DB) repository.ItemStore {
	return &itemStore{db: db}
}

func (r *itemStore) Create(ctx context.Context, col models.CollectionPath, item *models.ShoppingItem) (*models.ShoppingItem, error) {
	query := `
		INSERT INTO shopping_items (id, user_id, list_id, name, quantity, planned_value, actual_value, purchased, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	created := *item
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := r.db.ExecContext(ctx, query,
		created.ID,
		col.UserID,
		col.ListID,
		created.Name,
		created.Quantity,
		created.PlannedValue,
		created.ActualValue,
		created.Purchased,
		created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopping item: %w", err)
	}

	return &created, nil
}

func (r *itemStore) Get(ctx context.Context, doc models.DocPath) (*models.ShoppingItem, error) {
	query := `
		SELECT id, name, quantity, planned_value, actual_value, purchased, created_at
		FROM shopping_items
		WHERE user_id = $1 AND list_id = $2 AND id = $3`

	item := &models.ShoppingItem{}
	err := r.db.QueryRowContext(ctx, query,
		doc.Collection.UserID,
		doc.Collection.ListID,
		doc.ItemID,
	).Scan(
		&item.ID,
		&item.Name,
		&item.Quantity,
		&item.PlannedValue,
		&item.ActualValue,
		&item.Purchased,
		&item.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shopping item %s: %w", doc, err)
	}

	return item, nil
}

func (r *itemStore) Update(ctx context.Context, doc models.DocPath, fields models.ItemFields) error {
	if fields.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Name != nil {
		add("name", *fields.Name)
	}
	if fields.Quantity != nil {
		add("quantity", *fields.Quantity)
	}
	if fields.PlannedValue != nil {
		add("planned_value", *fields.PlannedValue)
	}
	if fields.ActualValue != nil {
		add("actual_value", *fields.ActualValue)
	}
	if fields.Purchased != nil {
		add("purchased", *fields.Purchased)
	}

	args = append(args, doc.Collection.UserID, doc.Collection.ListID, doc.ItemID)
	query := fmt.Sprintf(
		`UPDATE shopping_items SET %s WHERE user_id = $%d AND list_id = $%d AND id = $%d`,
		strings.Join(sets, ", "), len(args)-2, len(args)-1, len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update shopping item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("shopping item %s: %w", doc, repository.ErrNotFound)
	}

	return nil
}

func (r *itemStore) Delete(ctx context.Context, doc models.DocPath) error {
	query := `DELETE FROM shopping_items WHERE user_id = $1 AND list_id = $2 AND id = $3`

	result, err := r.db.ExecContext(ctx, query,
		doc.Collection.UserID,
		doc.Collection.ListID,
		doc.ItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete shopping item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("shopping item %s: %w", doc, repository.ErrNotFound)
	}

	return nil
}

func (r *itemStore) List(ctx context.Context, col models.CollectionPath) ([]*models.ShoppingItem, error) {
	query := `
		SELECT id, name, quantity, planned_value, actual_value, purchased, created_at
		FROM shopping_items
		WHERE user_id = $1 AND list_id = $2
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, col.UserID, col.ListID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shopping items: %w", err)
	}
	defer rows.Close()

	items := []*models.ShoppingItem{}
	for rows.Next() {
		item := &models.ShoppingItem{}
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Quantity,
			&item.PlannedValue,
			&item.ActualValue,
			&item.Purchased,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shopping item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
