package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/id"
	"github.com/listenupapp/notes-server/internal/store"
)

// DefaultActivityLimit is the number of entries returned by ListActivity.
const DefaultActivityLimit = 20

// ActivityService records and lists the audit trail of user actions.
type ActivityService struct {
	store  store.Store
	logger *slog.Logger
}

// NewActivityService creates a new activity service.
func NewActivityService(store store.Store, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		store:  store,
		logger: logger,
	}
}

// Record writes one activity entry. Failures are logged and never returned:
// the action has already happened.
func (s *ActivityService) Record(ctx context.Context, userID string, action domain.ActivityType, ipAddress string) {
	activityID, err := id.Generate(id.PrefixActivity)
	if err != nil {
		s.logger.Warn("failed to generate activity ID", "action", action, "error", err)
		return
	}

	entry := &domain.ActivityLog{
		ID:        activityID,
		UserID:    userID,
		Action:    action,
		IPAddress: ipAddress,
		Timestamp: time.Now(),
	}
	if err := s.store.RecordActivity(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity",
			"user_id", userID,
			"action", action,
			"error", err,
		)
	}
}

// List returns the caller's most recent activity, newest first.
func (s *ActivityService) List(ctx context.Context, principal *auth.Principal, limit int) ([]*domain.ActivityLog, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return s.store.ListActivity(ctx, principal.UserID, limit)
}
