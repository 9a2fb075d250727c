package core

import (
	"context"
	"time"
)

// RecordStore persists records in named collections.
//
// Every mutating call is a single atomic write. Find streams one consistent
// read of the collection to fn; fn must not call back into the store.
// Operations on a missing collection return ErrNotFound, except
// CollectionExists and EnsureCollection.
type RecordStore interface {
	EnsureCollection(ctx context.Context, collection string) error
	CollectionExists(ctx context.Context, collection string) (bool, error)
	CountDocuments(ctx context.Context, collection string, filter RecordFilter) (int64, error)
	Find(ctx context.Context, collection string, filter RecordFilter, fn func(Record) error) error
	FindOne(ctx context.Context, collection, id string) (Record, error)
	InsertOne(ctx context.Context, collection string, rec Record) error
	InsertMany(ctx context.Context, collection string, recs []Record) error
	UpdateOne(ctx context.Context, collection string, rec Record) error
	DeleteOne(ctx context.Context, collection, id string) error
}

// TemplateStore persists templates and import configurations.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t Template) error
	GetTemplate(ctx context.Context, id string) (Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	UpdateTemplate(ctx context.Context, t Template) error
	DeleteTemplate(ctx context.Context, id string) error

	CreateImportConfig(ctx context.Context, c ImportConfig) error
	// FindImportConfig returns the newest configuration for templateID.
	FindImportConfig(ctx context.Context, templateID string) (ImportConfig, error)
}

// ActivityStore is the append-only user activity log. Append rejects
// entries missing a required field with ErrInvalidSpecification.
type ActivityStore interface {
	AppendActivity(ctx context.Context, e ActivityEntry) error
	ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error)
	PurgeActivity(ctx context.Context, before time.Time) (int64, error)
}

// Store bundles the storage interfaces the service needs.
type Store interface {
	RecordStore
	TemplateStore
	ActivityStore
	Ping(ctx context.Context) error
	Close()
}

// SnapshotCache caches aggregate snapshots per collection.
// A miss is reported with ok=false and a nil error.
//
// Each collection has a write generation that Invalidate advances. Store
// writes only when the generation still equals gen, so a snapshot computed
// before a write can never be cached after that write's Invalidate.
type SnapshotCache interface {
	Load(ctx context.Context, collection string) (snap AggregateSnapshot, ok bool, err error)
	Generation(ctx context.Context, collection string) (uint64, error)
	Store(ctx context.Context, collection string, gen uint64, snap AggregateSnapshot) (stored bool, err error)
	Invalidate(ctx context.Context, collection string) error
}

// validateActivity enforces the required activity fields.
func validateActivity(e ActivityEntry) error {
	switch {
	case e.UserID == "":
		return invalid("activity entry is missing userId")
	case e.CollectionName == "":
		return invalid("activity entry is missing collection_name")
	case e.Action == "":
		return invalid("activity entry is missing action")
	case e.Timestamp.IsZero():
		return invalid("activity entry is missing timestamp")
	}
	return nil
}
