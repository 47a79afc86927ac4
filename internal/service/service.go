package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/Kerhoff/ShoppingBoT/internal/live"
	"github.com/Kerhoff/ShoppingBoT/internal/metrics"
	"github.com/Kerhoff/ShoppingBoT/internal/models"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
)

// Feed streams collection snapshots; implemented by *live.Hub.
type Feed interface {
	Subscribe(ctx context.Context, col models.CollectionPath) (<-chan live.Snapshot, error)
}

// Service is the item lifecycle controller. Every state transition on a
// shopping item goes through it, and every call is scoped by the Session
// passed in by the transport.
type Service struct {
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	items         repository.ItemStore
	users         repository.UserRepository
	feed          Feed
	lang          language.Tag
	confirmations *ConfirmationTracker
}

// New creates a new Service with all required dependencies. feed may be
// nil when live subscriptions are not needed.
func New(logger *logrus.Logger, m *metrics.Metrics,
	items repository.ItemStore,
	users repository.UserRepository,
	feed Feed,
	lang language.Tag,
) *Service {
	return &Service{
		logger:        logger,
		metrics:       m,
		items:         items,
		users:         users,
		feed:          feed,
		lang:          lang,
		confirmations: NewConfirmationTracker(DefaultConfirmationTTL),
	}
}

// Language returns the locale used to order item names.
func (s *Service) Language() language.Tag {
	return s.lang
}

// Confirmations exposes the purchase confirmation tracker.
func (s *Service) Confirmations() *ConfirmationTracker {
	return s.confirmations
}

// EnsureUser retrieves the user with the given identity, creating it on
// first login. Changed profile fields (email, display name) are written
// back.
func (s *Service) EnsureUser(ctx context.Context, id, email, displayName, provider string) (*models.User, error) {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)
	if strings.TrimSpace(id) == "" {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user %s: %w", id, err)
	}
	if user == nil {
		user = &models.User{
			ID:          id,
			Email:       email,
			DisplayName: displayName,
			Provider:    provider,
		}
		user, err = s.users.Create(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", id, err)
		}
		s.logger.Infof("Created new user: %s (id=%s)", user.Label(), id)
		return user, nil
	}

	needsUpdate := false
	if email != "" && user.Email != email {
		user.Email = email
		needsUpdate = true
	}
	if displayName != "" && user.DisplayName != displayName {
		user.DisplayName = displayName
		needsUpdate = true
	}
	if provider != "" && user.Provider != provider {
		user.Provider = provider
		needsUpdate = true
	}

	if needsUpdate {
		user, err = s.users.Update(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", id, err)
		}
		s.logger.Infof("Updated user profile: %s (id=%s)", user.Label(), id)
	}

	return user, nil
}
