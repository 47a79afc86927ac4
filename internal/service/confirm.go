package service

import (
	"context"
	"sync"
	"time"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
)

// DefaultConfirmationTTL bounds how long a purchase may wait for
// confirmation before it is treated as abandoned.
const DefaultConfirmationTTL = 15 * time.Minute

// PurchaseState is the transient confirmation state of one item. It is
// never stored with the item.
type PurchaseState int

const (
	PurchaseIdle PurchaseState = iota
	PurchaseConfirming
	PurchaseCommitting
)

func (p PurchaseState) String() string {
	switch p {
	case PurchaseConfirming:
		return "confirming"
	case PurchaseCommitting:
		return "committing"
	default:
		return "idle"
	}
}

type confirmationKey struct {
	userID string
	listID string
	itemID string
}

type pendingPurchase struct {
	state   PurchaseState
	prefill float64
	started time.Time
}

// ConfirmationTracker holds the per item purchase confirmation state.
// Idle items have no entry.
type ConfirmationTracker struct {
	mu      sync.Mutex
	pending map[confirmationKey]pendingPurchase
	ttl     time.Duration
	now     func() time.Time
}

// NewConfirmationTracker creates a tracker whose confirmations expire
// after ttl.
func NewConfirmationTracker(ttl time.Duration) *ConfirmationTracker {
	return &ConfirmationTracker{
		pending: make(map[confirmationKey]pendingPurchase),
		ttl:     ttl,
		now:     time.Now,
	}
}

func keyFor(sess models.Session, itemID string) confirmationKey {
	col := sess.Collection()
	return confirmationKey{userID: col.UserID, listID: col.ListID, itemID: itemID}
}

// State returns the confirmation state of an item.
func (t *ConfirmationTracker) State(sess models.Session, itemID string) PurchaseState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(keyFor(sess, itemID)).state
}

// lookup returns the live entry for key, dropping an expired confirmation.
// Callers hold t.mu.
func (t *ConfirmationTracker) lookup(key confirmationKey) pendingPurchase {
	p, ok := t.pending[key]
	if !ok {
		return pendingPurchase{}
	}
	if p.state == PurchaseConfirming && t.now().Sub(p.started) > t.ttl {
		delete(t.pending, key)
		return pendingPurchase{}
	}
	return p
}

// prune drops every expired confirmation. Callers hold t.mu.
func (t *ConfirmationTracker) prune() {
	for key := range t.pending {
		t.lookup(key)
	}
}

func (t *ConfirmationTracker) begin(key confirmationKey, prefill float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune()
	if t.lookup(key).state == PurchaseCommitting {
		return ErrPurchaseInProgress
	}
	t.pending[key] = pendingPurchase{state: PurchaseConfirming, prefill: prefill, started: t.now()}
	return nil
}

// commit moves a confirming item to committing and returns its prefill.
func (t *ConfirmationTracker) commit(key confirmationKey) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.lookup(key)
	switch p.state {
	case PurchaseConfirming:
		p.state = PurchaseCommitting
		t.pending[key] = p
		return p.prefill, nil
	case PurchaseCommitting:
		return 0, ErrPurchaseInProgress
	default:
		return 0, ErrNoPendingConfirmation
	}
}

func (t *ConfirmationTracker) cancel(key confirmationKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lookup(key).state == PurchaseCommitting {
		return ErrPurchaseInProgress
	}
	delete(t.pending, key)
	return nil
}

func (t *ConfirmationTracker) finish(key confirmationKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

// BeginPurchase starts the confirmation step for marking an item
// purchased and returns the amount to pre-fill, the item's planned value.
// Nothing is written to the store.
func (s *Service) BeginPurchase(ctx context.Context, sess models.Session, itemID string) (float64, error) {
	if !sess.Authenticated() {
		return 0, ErrUnauthenticated
	}

	item, err := s.getItem(ctx, sess.Collection().Doc(itemID))
	if err != nil {
		return 0, err
	}
	if item.Purchased {
		return 0, ErrAlreadyPurchased
	}

	prefill := ClampAmount(item.PlannedValue)
	if err := s.confirmations.begin(keyFor(sess, itemID), prefill); err != nil {
		return 0, err
	}

	s.log(sess, itemID).WithField("prefill", prefill).Debug("Purchase awaiting confirmation")
	return prefill, nil
}

// ConfirmPurchase commits a purchase started with BeginPurchase. actual is
// the confirmed unit cost; nil keeps the pre-filled amount. The item
// returns to idle whether or not the write succeeds, so a failed commit
// leaves the stored item as it was.
func (s *Service) ConfirmPurchase(ctx context.Context, sess models.Session, itemID string, actual *float64) (float64, error) {
	if !sess.Authenticated() {
		return 0, ErrUnauthenticated
	}

	key := keyFor(sess, itemID)
	prefill, err := s.confirmations.commit(key)
	if err != nil {
		return 0, err
	}
	defer s.confirmations.finish(key)

	value := prefill
	if actual != nil {
		value = ClampAmount(*actual)
	}
	if err := s.TogglePurchased(ctx, sess, itemID, true, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// CancelPurchase abandons a pending confirmation. Cancelling an item that
// is idle is a no-op.
func (s *Service) CancelPurchase(ctx context.Context, sess models.Session, itemID string) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}
	if err := s.confirmations.cancel(keyFor(sess, itemID)); err != nil {
		return err
	}
	s.log(sess, itemID).Debug("Purchase confirmation cancelled")
	return nil
}
