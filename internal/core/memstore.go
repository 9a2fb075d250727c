package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/importcheck/internal/schema"
)

// MemStore is a thread-safe in-memory Store used for development and tests.
// Reads return deep copies so callers never share state with the store.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	templates   map[string]Template
	configs     []ImportConfig
	activity    []ActivityEntry
}

type memCollection struct {
	ids  []string
	docs map[string]Record
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]*memCollection),
		templates:   make(map[string]Template),
	}
}

func (m *MemStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemStore) Close() {}

// --- records ---

func (m *MemStore) EnsureCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = &memCollection{docs: make(map[string]Record)}
	}
	return nil
}

func (m *MemStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[collection]
	return ok, nil
}

func (m *MemStore) CountDocuments(ctx context.Context, collection string, filter RecordFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return 0, notFound("collection", collection)
	}
	var n int64
	for _, id := range c.ids {
		if filter.Matches(c.docs[id]) {
			n++
		}
	}
	return n, nil
}

// Find copies the matching records under the read lock, then streams the
// copy to fn without holding it.
func (m *MemStore) Find(ctx context.Context, collection string, filter RecordFilter, fn func(Record) error) error {
	m.mu.RLock()
	c, ok := m.collections[collection]
	if !ok {
		m.mu.RUnlock()
		return notFound("collection", collection)
	}
	matched := make([]Record, 0, len(c.ids))
	skipped := 0
	for _, id := range c.ids {
		rec := c.docs[id]
		if !filter.Matches(rec) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(matched) >= filter.Limit {
			break
		}
		matched = append(matched, copyRecord(rec))
	}
	m.mu.RUnlock()

	for _, rec := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemStore) FindOne(ctx context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return Record{}, notFound("collection", collection)
	}
	rec, ok := c.docs[id]
	if !ok {
		return Record{}, notFound("record", id)
	}
	return copyRecord(rec), nil
}

func (m *MemStore) InsertOne(ctx context.Context, collection string, rec Record) error {
	return m.InsertMany(ctx, collection, []Record{rec})
}

// InsertMany inserts all records or none.
func (m *MemStore) InsertMany(ctx context.Context, collection string, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return notFound("collection", collection)
	}
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			return invalid("record id is empty")
		}
		if _, dup := c.docs[rec.ID]; dup {
			return fmt.Errorf("duplicate key: record %q", rec.ID)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("duplicate key: record %q", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}
	for _, rec := range recs {
		c.ids = append(c.ids, rec.ID)
		c.docs[rec.ID] = copyRecord(rec)
	}
	return nil
}

func (m *MemStore) UpdateOne(ctx context.Context, collection string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return notFound("collection", collection)
	}
	old, ok := c.docs[rec.ID]
	if !ok {
		return notFound("record", rec.ID)
	}
	rec.CreatedAt = old.CreatedAt
	c.docs[rec.ID] = copyRecord(rec)
	return nil
}

func (m *MemStore) DeleteOne(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return notFound("collection", collection)
	}
	if _, ok := c.docs[id]; !ok {
		return notFound("record", id)
	}
	delete(c.docs, id)
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
	return nil
}

// --- templates ---

func (m *MemStore) CreateTemplate(ctx context.Context, t Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; ok {
		return fmt.Errorf("duplicate key: template %q", t.ID)
	}
	m.templates[t.ID] = copyTemplate(t)
	return nil
}

func (m *MemStore) GetTemplate(ctx context.Context, id string) (Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return Template{}, notFound("template", id)
	}
	return copyTemplate(t), nil
}

func (m *MemStore) ListTemplates(ctx context.Context) ([]Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, copyTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemStore) UpdateTemplate(ctx context.Context, t Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.templates[t.ID]
	if !ok {
		return notFound("template", t.ID)
	}
	t.CreatedAt = old.CreatedAt
	m.templates[t.ID] = copyTemplate(t)
	return nil
}

func (m *MemStore) DeleteTemplate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return notFound("template", id)
	}
	delete(m.templates, id)
	return nil
}

func (m *MemStore) CreateImportConfig(ctx context.Context, c ImportConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = append(m.configs, c)
	return nil
}

func (m *MemStore) FindImportConfig(ctx context.Context, templateID string) (ImportConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		found ImportConfig
		ok    bool
	)
	for _, c := range m.configs {
		if c.TemplateID != templateID {
			continue
		}
		if !ok || !c.CreatedAt.Before(found.CreatedAt) {
			found, ok = c, true
		}
	}
	if !ok {
		return ImportConfig{}, notFound("import config for template", templateID)
	}
	return found, nil
}

// --- activity ---

func (m *MemStore) AppendActivity(ctx context.Context, e ActivityEntry) error {
	if err := validateActivity(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, e)
	return nil
}

// ListActivity returns matching entries, newest first.
func (m *MemStore) ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ActivityEntry, 0)
	for i := len(m.activity) - 1; i >= 0; i-- {
		e := m.activity[i]
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.CollectionName != "" && e.CollectionName != f.CollectionName {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) PurgeActivity(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.activity[:0]
	var purged int64
	for _, e := range m.activity {
		if e.Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	m.activity = kept
	return purged, nil
}

func copyRecord(r Record) Record {
	out := r
	out.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.ValidationData = make([]ValidationError, len(r.ValidationData))
	for i, e := range r.ValidationData {
		out.ValidationData[i] = ValidationError{Key: e.Key}
		if e.Value != nil {
			v := *e.Value
			out.ValidationData[i].Value = &v
		}
	}
	return out
}

func copyTemplate(t Template) Template {
	out := t
	out.Columns = make([]schema.Column, len(t.Columns))
	for i, c := range t.Columns {
		c.CustomValidations = append([]string(nil), c.CustomValidations...)
		out.Columns[i] = c
	}
	out.Schema = t.Schema.Clone()
	out.Validators = t.Validators.Clone()
	return out
}
