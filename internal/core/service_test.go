package core

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/importcheck/internal/schema"
)

const importCSV = "name,AGE,Extra\nAnn,30,x\n,,\nBob,abc,y\n,5,\n"

var peopleColumns = []schema.Column{
	{Label: "Name", DataType: schema.TypeText},
	{Label: "Age", DataType: schema.TypeNumber},
}

func csvReader(s string) RowReader {
	return NewCSVRowReader(strings.NewReader(s), 0)
}

func TestService_CreateTemplate(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := t.Context()

	t.Run("generates schema and collection", func(t *testing.T) {
		tmpl, err := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})
		if err != nil {
			t.Fatalf("CreateTemplate() error = %v", err)
		}
		if !reflect.DeepEqual(tmpl.Schema.Required, []string{"Name", "Age"}) {
			t.Errorf("Required = %v, want [Name Age]", tmpl.Schema.Required)
		}
		if tmpl.DateFormat != schema.DefaultDateFormat {
			t.Errorf("DateFormat = %q, want %q", tmpl.DateFormat, schema.DefaultDateFormat)
		}
		ok, _ := svc.store.CollectionExists(ctx, tmpl.CollectionName)
		if !ok {
			t.Errorf("collection %s was not created", tmpl.CollectionName)
		}
	})

	invalidCases := []struct {
		name string
		p    TemplateParams
	}{
		{"blank name", TemplateParams{Name: " ", Columns: peopleColumns}},
		{"nil columns", TemplateParams{Name: "x"}},
		{"duplicate label", TemplateParams{Name: "x", Columns: []schema.Column{
			{Label: "A", DataType: schema.TypeText}, {Label: "A", DataType: schema.TypeNumber},
		}}},
		{"unknown type", TemplateParams{Name: "x", Columns: []schema.Column{{Label: "A", DataType: "Money"}}}},
		{"bad date format", TemplateParams{Name: "x", Columns: peopleColumns, DateFormat: "QQ"}},
		{"missing base", TemplateParams{Name: "x", Columns: peopleColumns, BaseTemplateID: "nope"}},
	}
	for _, tt := range invalidCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateTemplate(ctx, tt.p); !errors.Is(err, ErrInvalidSpecification) {
				t.Errorf("CreateTemplate() error = %v, want ErrInvalidSpecification", err)
			}
		})
	}
}

func TestService_DerivedTemplate(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := t.Context()

	base, err := svc.CreateTemplate(ctx, TemplateParams{
		Name:       "base",
		Columns:    append(peopleColumns, schema.Column{Label: "Tier", DataType: schema.TypeText, CustomValidations: []string{"A", "B"}}),
		Validators: schema.Validators{"Age": map[string]any{"min": 18.0}},
		DateFormat: "DD.MM.YYYY",
	})
	if err != nil {
		t.Fatalf("CreateTemplate(base) error = %v", err)
	}

	derived, err := svc.CreateTemplate(ctx, TemplateParams{
		Name: "derived",
		Columns: []schema.Column{
			{Label: "Tier", DataType: schema.TypeText},
			{Label: "Name", DataType: schema.TypeText},
			{Label: "Unknown", DataType: schema.TypeText},
		},
		BaseTemplateID: base.ID,
	})
	if err != nil {
		t.Fatalf("CreateTemplate(derived) error = %v", err)
	}

	if !derived.IsDerived() {
		t.Error("IsDerived() = false")
	}
	if _, ok := derived.Schema.Properties["Unknown"]; ok {
		t.Error("derived schema has a label the base lacks")
	}
	if _, ok := derived.Schema.Properties["Age"]; ok {
		t.Error("derived schema kept a base label it does not list")
	}
	if p := derived.Schema.Properties["Tier"]; len(p.Enum) != 2 {
		t.Errorf("derived Tier enum = %v, want base enum", p.Enum)
	}
	if derived.DateFormat != "DD.MM.YYYY" {
		t.Errorf("derived DateFormat = %q, want the base format", derived.DateFormat)
	}

	stored, _ := svc.GetTemplate(ctx, base.ID)
	if len(stored.Schema.Properties) != 3 || len(stored.Validators) != 1 {
		t.Errorf("base template changed: %d properties, %d validators", len(stored.Schema.Properties), len(stored.Validators))
	}
}

func TestService_ImportAndEdit(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := ContextWithActor(t.Context(), Actor{UserID: "u1", Workspace: "ws"})

	tmpl, err := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}

	res, err := svc.Import(ctx, tmpl.ID, "people.csv", csvReader(importCSV))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.TotalRows != 4 || res.Inserted != 3 || res.ValidRows != 1 || res.InvalidRows != 2 || res.SkippedRows != 1 {
		t.Errorf("Import() = %+v, want 4 rows, 3 inserted, 1 valid, 2 invalid, 1 skipped", res)
	}
	if !reflect.DeepEqual(res.IgnoredHeaders, []string{"Extra"}) {
		t.Errorf("IgnoredHeaders = %v, want [Extra]", res.IgnoredHeaders)
	}

	snap, err := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	if err != nil {
		t.Fatalf("ComputeAggregate() error = %v", err)
	}
	if snap.TotalRecords != 3 || snap.ValidRecords != 1 || snap.ErrorRecords != 2 {
		t.Errorf("snapshot = %+v, want 3/1/2", snap)
	}
	if want := map[string]int64{"Name": 1, "Age": 1}; !reflect.DeepEqual(snap.ErrorCountByColumn, want) {
		t.Errorf("ErrorCountByColumn = %v, want %v", snap.ErrorCountByColumn, want)
	}

	invalid, err := svc.InvalidRecords(ctx, tmpl)
	if err != nil || len(invalid) != 2 {
		t.Fatalf("InvalidRecords() = %d records, %v; want 2", len(invalid), err)
	}
	var bob Record
	for _, r := range invalid {
		if r.Fields["Name"] == "Bob" {
			bob = r
		}
	}
	if bob.ID == "" {
		t.Fatal("Bob was not stored as an invalid record")
	}

	t.Run("edit revalidates", func(t *testing.T) {
		got, err := svc.UpdateRecord(ctx, tmpl.ID, bob.ID, map[string]string{"Age": "40"})
		if err != nil {
			t.Fatalf("UpdateRecord() error = %v", err)
		}
		if !got.Valid() {
			t.Errorf("record after edit has errors %v", got.ValidationData)
		}
		if _, err := svc.UpdateRecord(ctx, tmpl.ID, bob.ID, map[string]string{"Nope": "1"}); !errors.Is(err, ErrInvalidSpecification) {
			t.Errorf("UpdateRecord(unknown column) error = %v, want ErrInvalidSpecification", err)
		}
		if _, err := svc.UpdateRecord(ctx, tmpl.ID, "missing", map[string]string{"Age": "1"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateRecord(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("template update revalidates changed records only", func(t *testing.T) {
		cols := []schema.Column{
			{Label: "Name", DataType: schema.TypeText},
			{Label: "Age", DataType: schema.TypeNumber, CustomValidations: []string{"30", "40"}},
		}
		_, rv, err := svc.UpdateTemplate(ctx, tmpl.ID, TemplateParams{Columns: cols})
		if err != nil {
			t.Fatalf("UpdateTemplate() error = %v", err)
		}
		if rv.Scanned != 3 || rv.Changed != 1 {
			t.Errorf("revalidate = %+v, want 3 scanned, 1 changed", rv)
		}
		again, err := svc.Revalidate(ctx, tmpl.ID)
		if err != nil || again.Changed != 0 {
			t.Errorf("second Revalidate() = %+v, %v; want no changes", again, err)
		}
	})

	t.Run("delete record", func(t *testing.T) {
		if err := svc.DeleteRecord(ctx, tmpl.ID, bob.ID); err != nil {
			t.Fatalf("DeleteRecord() error = %v", err)
		}
		recs, _ := svc.ListRecords(ctx, tmpl.ID, RecordFilter{})
		if len(recs) != 2 {
			t.Errorf("records after delete = %d, want 2", len(recs))
		}
	})

	t.Run("activity", func(t *testing.T) {
		entries, err := svc.ListActivity(ctx, ActivityFilter{Action: ActionImport})
		if err != nil || len(entries) != 1 {
			t.Fatalf("ListActivity(import) = %v, %v; want one entry", entries, err)
		}
		e := entries[0]
		if e.UserID != "u1" || e.Workspace != "ws" || e.Organization != Unassigned || e.CollectionName != tmpl.CollectionName {
			t.Errorf("activity entry = %+v", e)
		}
		edits, _ := svc.ListActivity(ctx, ActivityFilter{Action: ActionEditRecord})
		if len(edits) != 1 || edits[0].RowID != bob.ID {
			t.Errorf("edit activity = %+v, want one entry for %s", edits, bob.ID)
		}
	})

	t.Run("delete template keeps records", func(t *testing.T) {
		if err := svc.DeleteTemplate(ctx, tmpl.ID); err != nil {
			t.Fatalf("DeleteTemplate() error = %v", err)
		}
		if _, err := svc.GetTemplate(ctx, tmpl.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetTemplate(deleted) error = %v, want ErrNotFound", err)
		}
		n, err := svc.store.CountDocuments(ctx, tmpl.CollectionName, RecordFilter{})
		if err != nil || n != 2 {
			t.Errorf("records after template delete = %d, %v; want 2", n, err)
		}
	})
}

func TestService_ImportRejects(t *testing.T) {
	svc := NewService(NewMemStore(), nil, Options{MaxConcurrentImports: 1, ImportWait: 10 * time.Millisecond})
	ctx := t.Context()
	tmpl, _ := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})

	t.Run("no matching header", func(t *testing.T) {
		_, err := svc.Import(ctx, tmpl.ID, "x.csv", csvReader("foo,bar\n1,2\n"))
		if !errors.Is(err, ErrInvalidSpecification) {
			t.Errorf("Import() error = %v, want ErrInvalidSpecification", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := svc.Import(ctx, tmpl.ID, "x.csv", csvReader(""))
		if err == nil || MapError(err).Code != "IMP006" {
			t.Errorf("Import(empty) error = %v, want IMP006", err)
		}
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := svc.Import(ctx, "nope", "x.csv", csvReader(importCSV))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Import() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("limiter full", func(t *testing.T) {
		if !svc.Limiter().TryAcquire() {
			t.Fatal("TryAcquire() = false")
		}
		defer svc.Limiter().Release()
		_, err := svc.Import(ctx, tmpl.ID, "x.csv", csvReader(importCSV))
		if !errors.Is(err, ErrTooManyImports) {
			t.Errorf("Import() error = %v, want ErrTooManyImports", err)
		}
	})
}

func TestService_PreviewImport(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := t.Context()
	tmpl, _ := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})

	resp, err := svc.PreviewImport(ctx, tmpl.ID, csvReader(importCSV))
	if err != nil {
		t.Fatalf("PreviewImport() error = %v", err)
	}
	want := PreviewSummary{TotalRows: 4, ValidRows: 1, InvalidRows: 2, SkippedRows: 1}
	if resp.Summary != want {
		t.Errorf("Summary = %+v, want %+v", resp.Summary, want)
	}
	if len(resp.ErrorSamples) != 2 || resp.ErrorSamples[0].LineNumber != 4 {
		t.Errorf("ErrorSamples = %+v, want 2 samples starting at line 4", resp.ErrorSamples)
	}
	if len(resp.ValidSamples) != 1 || resp.ValidSamples[0].Values["Name"] != "Ann" {
		t.Errorf("ValidSamples = %+v", resp.ValidSamples)
	}
	if len(resp.ValidSamples) == 1 && resp.ValidSamples[0].Typed["Age"] != json.Number("30") {
		t.Errorf("typed Age = %#v, want json.Number(30)", resp.ValidSamples[0].Typed["Age"])
	}

	n, _ := svc.store.CountDocuments(ctx, tmpl.CollectionName, RecordFilter{})
	if n != 0 {
		t.Errorf("preview stored %d records", n)
	}
}

func TestService_ValidateCell(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := t.Context()
	tmpl, _ := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})

	if e, err := svc.ValidateCell(ctx, tmpl.ID, "Age", "12"); err != nil || e != nil {
		t.Errorf("ValidateCell(12) = %v, %v; want nil, nil", e, err)
	}
	e, err := svc.ValidateCell(ctx, tmpl.ID, "Age", "twelve")
	if err != nil || e == nil || e.Reason() != "Age must be a number" {
		t.Errorf("ValidateCell(twelve) = %v, %v", e, err)
	}
	if _, err := svc.ValidateCell(ctx, tmpl.ID, "Nope", "x"); !errors.Is(err, ErrInvalidSpecification) {
		t.Errorf("ValidateCell(unknown) error = %v, want ErrInvalidSpecification", err)
	}
	if _, err := svc.ValidateFields(ctx, tmpl.ID, nil); !errors.Is(err, ErrInvalidSpecification) {
		t.Errorf("ValidateFields(nil) error = %v, want ErrInvalidSpecification", err)
	}
}

type memCache struct {
	mu          sync.Mutex
	snaps       map[string]AggregateSnapshot
	gens        map[string]uint64
	hits        int
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{snaps: map[string]AggregateSnapshot{}, gens: map[string]uint64{}}
}

func (c *memCache) Load(_ context.Context, collection string) (AggregateSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[collection]
	if ok {
		c.hits++
	}
	return s, ok, nil
}

func (c *memCache) Generation(_ context.Context, collection string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[collection], nil
}

func (c *memCache) Store(_ context.Context, collection string, gen uint64, snap AggregateSnapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[collection] != gen {
		return false, nil
	}
	c.snaps[collection] = snap
	return true, nil
}

func (c *memCache) Invalidate(_ context.Context, collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[collection]++
	delete(c.snaps, collection)
	c.invalidated++
	return nil
}

// afterFindStore runs hook once, right after the first Find that sees it set.
type afterFindStore struct {
	Store
	once sync.Once
	hook func()
}

func (s *afterFindStore) Find(ctx context.Context, collection string, filter RecordFilter, fn func(Record) error) error {
	err := s.Store.Find(ctx, collection, filter, fn)
	if s.hook != nil {
		s.once.Do(s.hook)
	}
	return err
}

func TestService_SnapshotCache(t *testing.T) {
	cache := newMemCache()
	svc := NewService(NewMemStore(), cache, Options{})
	ctx := t.Context()
	tmpl, _ := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})

	first, _ := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	second, _ := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	if cache.hits != 1 || !reflect.DeepEqual(first, second) {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	if _, err := svc.Import(ctx, tmpl.ID, "p.csv", csvReader(importCSV)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if cache.invalidated != 1 {
		t.Errorf("invalidations = %d, want 1", cache.invalidated)
	}
	snap, _ := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	if snap.TotalRecords != 3 {
		t.Errorf("TotalRecords after import = %d, want 3", snap.TotalRecords)
	}
}

func TestService_SnapshotCache_WriteDuringScan(t *testing.T) {
	cache := newMemCache()
	store := &afterFindStore{Store: NewMemStore()}
	svc := NewService(store, cache, Options{})
	ctx := t.Context()

	tmpl, _ := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})
	if _, err := svc.Import(ctx, tmpl.ID, "a.csv", csvReader("Name,Age\nAnn,30\n")); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	// The second import commits after the scan has read the collection but
	// before the snapshot is cached.
	store.hook = func() {
		if _, err := svc.Import(ctx, tmpl.ID, "b.csv", csvReader("Name,Age\nBob,abc\n")); err != nil {
			t.Errorf("Import() during scan error = %v", err)
		}
	}

	first, err := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	if err != nil {
		t.Fatalf("ComputeAggregate() error = %v", err)
	}
	if first.TotalRecords != 1 {
		t.Errorf("TotalRecords during scan = %d, want 1", first.TotalRecords)
	}

	snap, err := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	if err != nil {
		t.Fatalf("ComputeAggregate() error = %v", err)
	}
	if snap.TotalRecords != 2 || snap.ValidRecords != 1 || snap.ErrorRecords != 1 {
		t.Errorf("snapshot after write = %d/%d/%d, want 2/1/1",
			snap.TotalRecords, snap.ValidRecords, snap.ErrorRecords)
	}
	if cache.hits != 0 {
		t.Errorf("cache hits = %d, want 0 (outdated snapshot must not be cached)", cache.hits)
	}
}

// failingUpdateStore fails the failOn-th UpdateOne call.
type failingUpdateStore struct {
	Store
	calls  atomic.Int32
	failOn int32
}

func (s *failingUpdateStore) UpdateOne(ctx context.Context, collection string, rec Record) error {
	if s.calls.Add(1) == s.failOn {
		return errors.New("boom")
	}
	return s.Store.UpdateOne(ctx, collection, rec)
}

func TestService_RevalidatePartialFailure(t *testing.T) {
	cache := newMemCache()
	store := &failingUpdateStore{Store: NewMemStore(), failOn: 3}
	svc := NewService(store, cache, Options{RevalidateWorkers: 1})
	ctx := t.Context()

	tmpl, _ := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})
	if _, err := svc.Import(ctx, tmpl.ID, "p.csv", csvReader("Name,Age\nAnn,30\nBob,40\nCid,50\n")); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if snap, _ := svc.ComputeAggregate(ctx, tmpl.CollectionName); snap.ValidRecords != 3 {
		t.Fatalf("ValidRecords before update = %d, want 3", snap.ValidRecords)
	}

	// Every Age value fails the Boolean type, so all three records change.
	retyped := []schema.Column{
		{Label: "Name", DataType: schema.TypeText},
		{Label: "Age", DataType: schema.TypeBoolean},
	}
	_, res, err := svc.UpdateTemplate(ctx, tmpl.ID, TemplateParams{Columns: retyped})
	if err == nil {
		t.Fatal("UpdateTemplate() error = nil, want store failure")
	}
	if res.Changed != 2 {
		t.Errorf("Changed = %d, want 2", res.Changed)
	}

	snap, err := svc.ComputeAggregate(ctx, tmpl.CollectionName)
	if err != nil {
		t.Fatalf("ComputeAggregate() error = %v", err)
	}
	if snap.ValidRecords != 1 || snap.ErrorRecords != 2 {
		t.Errorf("snapshot after partial revalidation = %d valid, %d invalid; want 1, 2",
			snap.ValidRecords, snap.ErrorRecords)
	}
}

func TestService_AppendActivity(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := t.Context()

	e, err := svc.AppendActivity(ctx, ActivityEntry{UserID: "u", CollectionName: "c", Action: "custom"})
	if err != nil {
		t.Fatalf("AppendActivity() error = %v", err)
	}
	if e.Workspace != Unassigned || e.Organization != Unassigned || e.Timestamp.IsZero() || e.ID == "" {
		t.Errorf("defaults not applied: %+v", e)
	}
	if _, err := svc.AppendActivity(ctx, ActivityEntry{CollectionName: "c", Action: "custom"}); !errors.Is(err, ErrInvalidSpecification) {
		t.Errorf("AppendActivity(no user) error = %v, want ErrInvalidSpecification", err)
	}

	purged, err := svc.PurgeActivity(ctx, -time.Hour)
	if err != nil || purged != 1 {
		t.Errorf("PurgeActivity(-1h) = %d, %v; want 1", purged, err)
	}
}

func TestService_CountRecords(t *testing.T) {
	svc := newTestService(t, NewMemStore())
	ctx := t.Context()

	tmpl, err := svc.CreateTemplate(ctx, TemplateParams{Name: "People", Columns: peopleColumns})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if n, err := svc.CountRecords(ctx, tmpl.ID, RecordFilter{}); err != nil || n != 0 {
		t.Errorf("CountRecords(before import) = %d, %v; want 0, nil", n, err)
	}
	if _, err := svc.Import(ctx, tmpl.ID, "people.csv", csvReader(importCSV)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	yes, no := true, false
	tests := []struct {
		name   string
		filter RecordFilter
		want   int64
	}{
		{"all", RecordFilter{}, 3},
		{"valid", RecordFilter{Valid: &yes}, 1},
		{"invalid", RecordFilter{Valid: &no}, 2},
		{"paging ignored", RecordFilter{Valid: &no, Limit: 1, Offset: 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := svc.CountRecords(ctx, tmpl.ID, tt.filter)
			if err != nil {
				t.Fatalf("CountRecords() error = %v", err)
			}
			if n != tt.want {
				t.Errorf("CountRecords() = %v, want %v", n, tt.want)
			}
		})
	}

	if _, err := svc.CountRecords(ctx, "missing", RecordFilter{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CountRecords(missing) error = %v, want ErrNotFound", err)
	}
}
