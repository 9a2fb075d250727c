package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/importcheck/internal/logging"
)

// recordActivity appends one activity entry for the actor in ctx. A failed
// append is logged; the operation it describes has already been committed.
func (s *Service) recordActivity(ctx context.Context, collection, action, rowID string) {
	actor := ActorFromContext(ctx)
	entry := ActivityEntry{
		ID:             s.newID(),
		UserID:         actor.UserID,
		CollectionName: collection,
		Workspace:      actor.Workspace,
		Organization:   actor.Organization,
		Action:         action,
		RowID:          rowID,
		Timestamp:      s.now(),
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		logging.WithFields(ctx,
			"action", action,
			"collection", collection,
		).Error("activity append failed", "error", err)
	}
}

// AppendActivity stores an externally produced activity entry. Missing
// workspace and organization default to Unassigned; the timestamp defaults
// to now. Missing userId, collection_name or action is rejected by storage.
func (s *Service) AppendActivity(ctx context.Context, e ActivityEntry) (ActivityEntry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Workspace == "" {
		e.Workspace = Unassigned
	}
	if e.Organization == "" {
		e.Organization = Unassigned
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if err := s.store.AppendActivity(ctx, e); err != nil {
		return ActivityEntry{}, err
	}
	return e, nil
}

// ListActivity returns activity entries matching f, newest first.
func (s *Service) ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error) {
	return s.store.ListActivity(ctx, f)
}

// PurgeActivity deletes entries older than retention and returns how many
// were removed.
func (s *Service) PurgeActivity(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PurgeActivity(ctx, s.now().Add(-retention))
}
