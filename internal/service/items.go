package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/ShoppingBoT/internal/live"
	"github.com/Kerhoff/ShoppingBoT/internal/metrics"
	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
	"github.com/Kerhoff/ShoppingBoT/internal/summary"
	"github.com/Kerhoff/ShoppingBoT/pkg/logger"
)

// Operation names used in logs and metrics.
const (
	OpCreate         = "create"
	OpToggle         = "toggle_purchased"
	OpEditField      = "edit_field"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpClearPurchased = "clear_purchased"
	OpList           = "list"
)

// CreateItem adds a pending item to the caller's list. The input is
// expected to have passed NewItemInput.Validate; the store assigns the ID
// and creation time.
func (s *Service) CreateItem(ctx context.Context, sess models.Session, in NewItemInput) (*models.ShoppingItem, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	item := &models.ShoppingItem{
		Name:         in.ItemName(),
		Quantity:     in.Quantity,
		PlannedValue: in.PlannedValue,
		ActualValue:  0,
		Purchased:    false,
	}

	created, err := s.items.Create(ctx, sess.Collection(), item)
	if err != nil {
		s.observe(OpCreate, metrics.ResultError)
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.observe(OpCreate, metrics.ResultOK)

	s.log(sess, created.ID).WithFields(logrus.Fields{
		"name":     created.Name,
		"quantity": created.Quantity,
	}).Info("Item added to shopping list")

	return created, nil
}

// TogglePurchased moves an item between pending and purchased in a single
// write. Marking purchased records confirmedActual (clamped to >= 0), or
// the planned value when no amount was confirmed. Marking pending always
// resets the actual value to 0. Quantity and planned value are untouched.
func (s *Service) TogglePurchased(ctx context.Context, sess models.Session, itemID string, purchased bool, confirmedActual *float64) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}
	doc := sess.Collection().Doc(itemID)

	actual := 0.0
	if purchased {
		if confirmedActual != nil {
			actual = ClampAmount(*confirmedActual)
		} else {
			item, err := s.getItem(ctx, doc)
			if err != nil {
				s.observe(OpToggle, resultFor(err))
				return err
			}
			actual = ClampAmount(item.PlannedValue)
		}
	}

	fields := models.ItemFields{Purchased: &purchased, ActualValue: &actual}
	if err := s.items.Update(ctx, doc, fields); err != nil {
		err = mapStoreError(err)
		s.observe(OpToggle, resultFor(err))
		return fmt.Errorf("toggle purchased: %w", err)
	}
	s.observe(OpToggle, metrics.ResultOK)

	entry := s.log(sess, itemID).WithField("purchased", purchased)
	if purchased {
		entry = entry.WithField("actual_value", actual)
	}
	entry.Info("Item purchase state changed")
	return nil
}

// EditField commits an in-place edit of quantity or actual value. raw is
// the text the user typed; invalid or below-floor input is replaced by the
// floor (1 for quantity, 0 for actual value). A pending item's actual value
// always resolves to 0. Nothing is written when the resolved value equals
// the stored one; changed reports whether a write happened.
func (s *Service) EditField(ctx context.Context, sess models.Session, itemID string, field models.ItemField, raw string) (changed bool, err error) {
	if !sess.Authenticated() {
		return false, ErrUnauthenticated
	}
	if field != models.FieldQuantity && field != models.FieldActualValue {
		s.observe(OpEditField, metrics.ResultInvalid)
		return false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	doc := sess.Collection().Doc(itemID)
	item, err := s.getItem(ctx, doc)
	if err != nil {
		s.observe(OpEditField, resultFor(err))
		return false, err
	}

	var fields models.ItemFields
	switch field {
	case models.FieldQuantity:
		q := ParseQuantity(raw)
		if q == item.Quantity {
			s.observe(OpEditField, metrics.ResultNoop)
			return false, nil
		}
		fields.Quantity = &q
	case models.FieldActualValue:
		v := 0.0
		if item.Purchased {
			v = ParseAmount(raw)
		}
		if v == item.ActualValue {
			s.observe(OpEditField, metrics.ResultNoop)
			return false, nil
		}
		fields.ActualValue = &v
	}

	if err := s.items.Update(ctx, doc, fields); err != nil {
		err = mapStoreError(err)
		s.observe(OpEditField, resultFor(err))
		return false, fmt.Errorf("edit %s: %w", field, err)
	}
	s.observe(OpEditField, metrics.ResultOK)

	s.log(sess, itemID).WithFields(logrus.Fields{
		"field": field,
		"raw":   raw,
	}).Info("Item field edited")
	return true, nil
}

// UpdateItem applies an arbitrary subset of fields. Numbers are clamped to
// their floors, a blank name is rejected, and an item that ends up pending
// has its actual value reset to 0. Only fields that differ from the stored
// item are written. The resulting item is returned.
func (s *Service) UpdateItem(ctx context.Context, sess models.Session, itemID string, patch models.ItemFields) (*models.ShoppingItem, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			s.observe(OpUpdate, metrics.ResultInvalid)
			return nil, &FieldError{Field: "name", Message: "item name is required"}
		}
		patch.Name = &name
	}
	if patch.Quantity != nil {
		q := ClampQuantity(*patch.Quantity)
		patch.Quantity = &q
	}
	if patch.PlannedValue != nil {
		v := ClampAmount(*patch.PlannedValue)
		patch.PlannedValue = &v
	}
	if patch.ActualValue != nil {
		v := ClampAmount(*patch.ActualValue)
		patch.ActualValue = &v
	}

	doc := sess.Collection().Doc(itemID)
	current, err := s.getItem(ctx, doc)
	if err != nil {
		s.observe(OpUpdate, resultFor(err))
		return nil, err
	}

	next := patch.Apply(*current)
	if !next.Purchased {
		next.ActualValue = 0
	}

	fields := diff(*current, next)
	if fields.IsEmpty() {
		s.observe(OpUpdate, metrics.ResultNoop)
		return &next, nil
	}

	if err := s.items.Update(ctx, doc, fields); err != nil {
		err = mapStoreError(err)
		s.observe(OpUpdate, resultFor(err))
		return nil, fmt.Errorf("update item: %w", err)
	}
	s.observe(OpUpdate, metrics.ResultOK)

	s.log(sess, itemID).Info("Item updated")
	return &next, nil
}

// DeleteItem removes an item. Deleting an item that no longer exists
// succeeds.
func (s *Service) DeleteItem(ctx context.Context, sess models.Session, itemID string) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}

	err := s.items.Delete(ctx, sess.Collection().Doc(itemID))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.observe(OpDelete, metrics.ResultError)
		return fmt.Errorf("delete item: %w", err)
	}
	s.observe(OpDelete, metrics.ResultOK)

	s.log(sess, itemID).Info("Item deleted")
	return nil
}

// ClearPurchased deletes every purchased item of the caller's list and
// returns how many were removed.
func (s *Service) ClearPurchased(ctx context.Context, sess models.Session) (int, error) {
	items, err := s.Items(ctx, sess)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, item := range items {
		if !item.Purchased {
			continue
		}
		err := s.items.Delete(ctx, sess.Collection().Doc(item.ID))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.observe(OpClearPurchased, metrics.ResultError)
			return removed, fmt.Errorf("clear purchased: %w", err)
		}
		removed++
	}
	s.observe(OpClearPurchased, metrics.ResultOK)

	logger.WithUser(s.logger, sess.UserID, sess.Collection().ListID).
		WithField("removed", removed).Info("Cleared purchased items")
	return removed, nil
}

// Items returns the caller's items in creation order.
func (s *Service) Items(ctx context.Context, sess models.Session) ([]*models.ShoppingItem, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	items, err := s.items.List(ctx, sess.Collection())
	if err != nil {
		s.observe(OpList, metrics.ResultError)
		return nil, fmt.Errorf("list items: %w", err)
	}
	s.observe(OpList, metrics.ResultOK)
	return items, nil
}

// Overview returns the caller's list partitioned, ordered and summarized.
func (s *Service) Overview(ctx context.Context, sess models.Session) (summary.Overview, error) {
	items, err := s.Items(ctx, sess)
	if err != nil {
		return summary.Overview{}, err
	}
	return summary.NewOverview(items, s.lang), nil
}

// Subscribe streams snapshots of the caller's list until ctx is done.
func (s *Service) Subscribe(ctx context.Context, sess models.Session) (<-chan live.Snapshot, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if s.feed == nil {
		return nil, errors.New("live updates are not enabled")
	}
	return s.feed.Subscribe(ctx, sess.Collection())
}

func (s *Service) getItem(ctx context.Context, doc models.DocPath) (*models.ShoppingItem, error) {
	item, err := s.items.Get(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", mapStoreError(err))
	}
	return item, nil
}

func (s *Service) observe(op, result string) {
	s.metrics.Observe(op, result)
}

func (s *Service) log(sess models.Session, itemID string) *logrus.Entry {
	return logger.WithUser(s.logger, sess.UserID, sess.Collection().ListID).WithField("item_id", itemID)
}

// mapStoreError translates store level not-found into ErrItemNotFound and
// leaves every other error as is.
func mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}

func resultFor(err error) string {
	if errors.Is(err, ErrItemNotFound) {
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}

// diff returns the fields of next that differ from current.
func diff(current, next models.ShoppingItem) models.ItemFields {
	var f models.ItemFields
	if next.Name != current.Name {
		f.Name = &next.Name
	}
	if next.Quantity != current.Quantity {
		f.Quantity = &next.Quantity
	}
	if next.PlannedValue != current.PlannedValue {
		f.PlannedValue = &next.PlannedValue
	}
	if next.ActualValue != current.ActualValue {
		f.ActualValue = &next.ActualValue
	}
	if next.Purchased != current.Purchased {
		f.Purchased = &next.Purchased
	}
	return f
}
