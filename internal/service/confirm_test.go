package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/ShoppingBoT/internal/repository/memory"
)

func TestPurchaseConfirmationFlow(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	milk := mustCreate(t, svc, "Milk", 2, 3000)

	assert.Equal(t, PurchaseIdle, svc.Confirmations().State(testSession, milk.ID))

	prefill, err := svc.BeginPurchase(ctx, testSession, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, prefill)
	assert.Equal(t, PurchaseConfirming, svc.Confirmations().State(testSession, milk.ID))
	assert.False(t, mustGet(t, svc, milk.ID).Purchased, "nothing is written before confirmation")

	amount := 2800.0
	value, err := svc.ConfirmPurchase(ctx, testSession, milk.ID, &amount)
	require.NoError(t, err)
	assert.Equal(t, 2800.0, value)
	assert.Equal(t, PurchaseIdle, svc.Confirmations().State(testSession, milk.ID))

	got := mustGet(t, svc, milk.ID)
	assert.True(t, got.Purchased)
	assert.Equal(t, 2800.0, got.ActualValue)
}

func TestConfirmPurchaseKeepsPrefill(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	bread := mustCreate(t, svc, "Bread", 1, 1500)

	_, err := svc.BeginPurchase(ctx, testSession, bread.ID)
	require.NoError(t, err)

	value, err := svc.ConfirmPurchase(ctx, testSession, bread.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, value)
	assert.Equal(t, 1500.0, mustGet(t, svc, bread.ID).ActualValue)
}

func TestCancelPurchaseWritesNothing(t *testing.T) {
	store := &failingStore{ItemStore: memory.NewItemStore()}
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	bread := mustCreate(t, svc, "Bread", 1, 1500)

	_, err := svc.BeginPurchase(ctx, testSession, bread.ID)
	require.NoError(t, err)
	require.NoError(t, svc.CancelPurchase(ctx, testSession, bread.ID))

	assert.Equal(t, PurchaseIdle, svc.Confirmations().State(testSession, bread.ID))
	assert.Zero(t, store.updates)

	_, err = svc.ConfirmPurchase(ctx, testSession, bread.ID, nil)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)

	// Cancelling an idle item is fine.
	assert.NoError(t, svc.CancelPurchase(ctx, testSession, bread.ID))
}

func TestConfirmWithoutBegin(t *testing.T) {
	svc, _ := newTestService(t, nil)
	bread := mustCreate(t, svc, "Bread", 1, 1500)

	_, err := svc.ConfirmPurchase(context.Background(), testSession, bread.ID, nil)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
	assert.False(t, mustGet(t, svc, bread.ID).Purchased)
}

func TestBeginPurchaseOnPurchasedItem(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	bread := mustCreate(t, svc, "Bread", 1, 1500)
	require.NoError(t, svc.TogglePurchased(ctx, testSession, bread.ID, true, nil))

	_, err := svc.BeginPurchase(ctx, testSession, bread.ID)
	assert.ErrorIs(t, err, ErrAlreadyPurchased)
}

func TestFailedCommitReturnsToIdle(t *testing.T) {
	store := &failingStore{ItemStore: memory.NewItemStore()}
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	bread := mustCreate(t, svc, "Bread", 1, 1500)

	_, err := svc.BeginPurchase(ctx, testSession, bread.ID)
	require.NoError(t, err)

	store.failUpdate = true
	_, err = svc.ConfirmPurchase(ctx, testSession, bread.ID, nil)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, PurchaseIdle, svc.Confirmations().State(testSession, bread.ID))
	assert.False(t, mustGet(t, svc, bread.ID).Purchased)
}

func TestConfirmationsArePerItem(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	a := mustCreate(t, svc, "A", 1, 10)
	b := mustCreate(t, svc, "B", 1, 20)

	_, err := svc.BeginPurchase(ctx, testSession, a.ID)
	require.NoError(t, err)

	assert.Equal(t, PurchaseConfirming, svc.Confirmations().State(testSession, a.ID))
	assert.Equal(t, PurchaseIdle, svc.Confirmations().State(testSession, b.ID))
}

func TestConfirmationTrackerExpiry(t *testing.T) {
	tracker := NewConfirmationTracker(time.Minute)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	key := keyFor(testSession, "item-1")
	require.NoError(t, tracker.begin(key, 100))
	assert.Equal(t, PurchaseConfirming, tracker.State(testSession, "item-1"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, PurchaseIdle, tracker.State(testSession, "item-1"))

	_, err := tracker.commit(key)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestBeginDropsAbandonedConfirmations(t *testing.T) {
	tracker := NewConfirmationTracker(time.Minute)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	for _, id := range []string{"item-1", "item-2", "item-3"} {
		require.NoError(t, tracker.begin(keyFor(testSession, id), 100))
	}
	assert.Len(t, tracker.pending, 3)

	now = now.Add(2 * time.Minute)
	require.NoError(t, tracker.begin(keyFor(testSession, "item-4"), 50))

	assert.Len(t, tracker.pending, 1)
	assert.Contains(t, tracker.pending, keyFor(testSession, "item-4"))
}

func TestConfirmationTrackerCommitting(t *testing.T) {
	tracker := NewConfirmationTracker(time.Minute)
	key := keyFor(testSession, "item-1")

	require.NoError(t, tracker.begin(key, 100))
	prefill, err := tracker.commit(key)
	require.NoError(t, err)
	assert.Equal(t, 100.0, prefill)
	assert.Equal(t, PurchaseCommitting, tracker.State(testSession, "item-1"))

	_, err = tracker.commit(key)
	assert.ErrorIs(t, err, ErrPurchaseInProgress)
	assert.ErrorIs(t, tracker.cancel(key), ErrPurchaseInProgress)
	assert.ErrorIs(t, tracker.begin(key, 100), ErrPurchaseInProgress)

	tracker.finish(key)
	assert.Equal(t, PurchaseIdle, tracker.State(testSession, "item-1"))
}

func TestPurchaseStateString(t *testing.T) {
	assert.Equal(t, "idle", PurchaseIdle.String())
	assert.Equal(t, "confirming", PurchaseConfirming.String())
	assert.Equal(t, "committing", PurchaseCommitting.String())
}
