// Package live turns the item store into a stream of full collection
// snapshots. Writes made through the Hub are published immediately;
// Run picks up writes made by other processes sharing the database.
package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/ShoppingBoT/internal/metrics"
	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
)

// Snapshot is the complete state of one collection at a point in time.
type Snapshot struct {
	Path  models.CollectionPath
	Items []*models.ShoppingItem
	At    time.Time
}

type subscriber struct {
	ch chan Snapshot
	// last is the fingerprint of the most recent snapshot offered.
	last string
}

// offer replaces any undelivered snapshot with s. Callers hold Hub.mu.
func (s *subscriber) offer(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// Hub wraps an ItemStore and fans snapshots out to subscribers.
type Hub struct {
	repository.ItemStore

	logger  *logrus.Logger
	metrics *metrics.Metrics

	// pub serializes list-and-deliver so subscribers never see an older
	// snapshot after a newer one.
	pub  sync.Mutex
	mu   sync.Mutex
	subs map[models.CollectionPath]map[*subscriber]struct{}
}

// NewHub creates a hub publishing snapshots of store
func NewHub(store repository.ItemStore, logger *logrus.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		ItemStore: store,
		logger:    logger,
		metrics:   m,
		subs:      make(map[models.CollectionPath]map[*subscriber]struct{}),
	}
}

// Subscribe returns a channel that receives the current snapshot of col
// right away and a new one after every change. The channel only ever holds
// the latest snapshot. It is closed when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, col models.CollectionPath) (<-chan Snapshot, error) {
	h.pub.Lock()
	defer h.pub.Unlock()

	items, err := h.ItemStore.List(ctx, col)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial snapshot: %w", err)
	}

	sub := &subscriber{ch: make(chan Snapshot, 1), last: fingerprint(items)}
	sub.offer(Snapshot{Path: col, Items: items, At: time.Now()})

	h.mu.Lock()
	if h.subs[col] == nil {
		h.subs[col] = make(map[*subscriber]struct{})
	}
	h.subs[col][sub] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}
	h.logger.WithField("path", col.String()).Debug("Live subscription opened")

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[col], sub)
		if len(h.subs[col]) == 0 {
			delete(h.subs, col)
		}
		close(sub.ch)
		h.mu.Unlock()

		if h.metrics != nil {
			h.metrics.Subscribers.Dec()
		}
		h.logger.WithField("path", col.String()).Debug("Live subscription closed")
	}()

	return sub.ch, nil
}

// Create stores the item and publishes the collection.
func (h *Hub) Create(ctx context.Context, col models.CollectionPath, item *models.ShoppingItem) (*models.ShoppingItem, error) {
	created, err := h.ItemStore.Create(ctx, col, item)
	if err != nil {
		return nil, err
	}
	h.Publish(context.WithoutCancel(ctx), col)
	return created, nil
}

// Update writes the fields and publishes the collection.
func (h *Hub) Update(ctx context.Context, doc models.DocPath, fields models.ItemFields) error {
	if err := h.ItemStore.Update(ctx, doc, fields); err != nil {
		return err
	}
	h.Publish(context.WithoutCancel(ctx), doc.Collection)
	return nil
}

// Delete removes the item and publishes the collection.
func (h *Hub) Delete(ctx context.Context, doc models.DocPath) error {
	if err := h.ItemStore.Delete(ctx, doc); err != nil {
		return err
	}
	h.Publish(context.WithoutCancel(ctx), doc.Collection)
	return nil
}

// Publish re-reads col and delivers it to every subscriber whose last
// snapshot differs. Collections without subscribers are skipped.
func (h *Hub) Publish(ctx context.Context, col models.CollectionPath) {
	if !h.watched(col) {
		return
	}

	h.pub.Lock()
	defer h.pub.Unlock()

	items, err := h.ItemStore.List(ctx, col)
	if err != nil {
		h.logger.WithError(err).WithField("path", col.String()).Warn("Failed to load snapshot")
		return
	}

	fp := fingerprint(items)
	snap := Snapshot{Path: col, Items: items, At: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[col] {
		if sub.last == fp {
			continue
		}
		sub.last = fp
		sub.offer(snap)
		if h.metrics != nil {
			h.metrics.Snapshots.Inc()
		}
	}
}

// Run re-publishes every watched collection on each tick until ctx is
// cancelled. It blocks, so it should be launched in a separate goroutine.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("Snapshot poller started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Snapshot poller stopped")
			return
		case <-ticker.C:
			for _, col := range h.watchedPaths() {
				h.Publish(ctx, col)
			}
		}
	}
}

func (h *Hub) watched(col models.CollectionPath) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[col]) > 0
}

func (h *Hub) watchedPaths() []models.CollectionPath {
	h.mu.Lock()
	defer h.mu.Unlock()
	paths := make([]models.CollectionPath, 0, len(h.subs))
	for col := range h.subs {
		paths = append(paths, col)
	}
	return paths
}

func fingerprint(items []*models.ShoppingItem) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "%s|%s|%d|%g|%g|%t;",
			item.ID, item.Name, item.Quantity, item.PlannedValue, item.ActualValue, item.Purchased)
	}
	return sb.String()
}
