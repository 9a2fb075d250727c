package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/importcheck/internal/database"
	"github.com/JonMunkholm/importcheck/internal/schema"
)

// PostgreSQL error codes the store distinguishes.
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// PostgresStore is the PostgreSQL-backed Store. All collections share the
// records table; a collection is a row in the collections table.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    *database.Queries
}

// NewPostgresStore returns a store over pool. The schema must already be
// migrated (see database.Migrate).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: database.New(pool)}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return pgError(err, "database", "")
	}
	return nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

// --- records ---

func (p *PostgresStore) EnsureCollection(ctx context.Context, collection string) error {
	return pgError(p.q.CreateCollection(ctx, collection), "collection", collection)
}

func (p *PostgresStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	ok, err := p.q.CollectionExists(ctx, collection)
	return ok, pgError(err, "collection", collection)
}

func (p *PostgresStore) requireCollection(ctx context.Context, collection string) error {
	ok, err := p.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("collection", collection)
	}
	return nil
}

func (p *PostgresStore) CountDocuments(ctx context.Context, collection string, filter RecordFilter) (int64, error) {
	if err := p.requireCollection(ctx, collection); err != nil {
		return 0, err
	}
	n, err := p.q.CountRecords(ctx, database.CountRecordsParams{
		Collection: collection,
		Valid:      validFilter(filter),
	})
	return n, pgError(err, "collection", collection)
}

// Find streams matching records in insertion order from a single query.
func (p *PostgresStore) Find(ctx context.Context, collection string, filter RecordFilter, fn func(Record) error) error {
	if err := p.requireCollection(ctx, collection); err != nil {
		return err
	}

	params := database.ListRecordsParams{
		Collection: collection,
		Valid:      validFilter(filter),
		Offset:     int64(filter.Offset),
	}
	if filter.Limit > 0 {
		params.Limit = pgtype.Int8{Int64: int64(filter.Limit), Valid: true}
	}

	var cbErr error
	err := p.q.StreamRecords(ctx, params, func(row database.Record) error {
		rec, err := recordFromRow(row)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			cbErr = err
			return err
		}
		return nil
	})
	if cbErr != nil {
		return cbErr
	}
	return pgError(err, "collection", collection)
}

func (p *PostgresStore) FindOne(ctx context.Context, collection, id string) (Record, error) {
	row, err := p.q.GetRecord(ctx, database.GetRecordParams{
		Collection: collection,
		ID:         ToPgUUID(id),
	})
	if err != nil {
		return Record{}, pgError(err, "record", id)
	}
	return recordFromRow(row)
}

func (p *PostgresStore) InsertOne(ctx context.Context, collection string, rec Record) error {
	return p.InsertMany(ctx, collection, []Record{rec})
}

// InsertMany copies recs in one transaction, so either all rows land or none.
func (p *PostgresStore) InsertMany(ctx context.Context, collection string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	params := make([]database.InsertRecordsParams, len(recs))
	for i, rec := range recs {
		id := ToPgUUID(rec.ID)
		if !id.Valid {
			return invalid("record id %q is not a uuid", rec.ID)
		}
		fields, verrs, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		params[i] = database.InsertRecordsParams{
			ID:             id,
			Collection:     collection,
			Fields:         fields,
			ValidationData: verrs,
			CreatedAt:      ToPgTimestamptz(rec.CreatedAt),
			UpdatedAt:      ToPgTimestamptz(rec.UpdatedAt),
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return pgError(err, "collection", collection)
	}
	defer tx.Rollback(ctx)

	if _, err := p.q.WithTx(tx).InsertRecords(ctx, params); err != nil {
		return pgError(err, "collection", collection)
	}
	return pgError(tx.Commit(ctx), "collection", collection)
}

func (p *PostgresStore) UpdateOne(ctx context.Context, collection string, rec Record) error {
	fields, verrs, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	n, err := p.q.UpdateRecord(ctx, database.UpdateRecordParams{
		Collection:     collection,
		ID:             ToPgUUID(rec.ID),
		Fields:         fields,
		ValidationData: verrs,
		UpdatedAt:      ToPgTimestamptz(rec.UpdatedAt),
	})
	if err != nil {
		return pgError(err, "record", rec.ID)
	}
	if n == 0 {
		return notFound("record", rec.ID)
	}
	return nil
}

func (p *PostgresStore) DeleteOne(ctx context.Context, collection, id string) error {
	n, err := p.q.DeleteRecord(ctx, database.DeleteRecordParams{
		Collection: collection,
		ID:         ToPgUUID(id),
	})
	if err != nil {
		return pgError(err, "record", id)
	}
	if n == 0 {
		return notFound("record", id)
	}
	return nil
}

// --- templates ---

func (p *PostgresStore) CreateTemplate(ctx context.Context, t Template) error {
	cols, sc, vals, err := encodeTemplate(t)
	if err != nil {
		return err
	}
	err = p.q.CreateTemplate(ctx, database.CreateTemplateParams{
		ID:             ToPgUUID(t.ID),
		TemplateName:   t.Name,
		Columns:        cols,
		Schema:         sc,
		Validators:     vals,
		CollectionName: t.CollectionName,
		BaseTemplateID: ToPgUUID(t.BaseTemplateID),
		DateFormat:     t.DateFormat,
		CreatedAt:      ToPgTimestamptz(t.CreatedAt),
		UpdatedAt:      ToPgTimestamptz(t.UpdatedAt),
	})
	return pgError(err, "template", t.ID)
}

func (p *PostgresStore) GetTemplate(ctx context.Context, id string) (Template, error) {
	row, err := p.q.GetTemplate(ctx, ToPgUUID(id))
	if err != nil {
		return Template{}, pgError(err, "template", id)
	}
	return templateFromRow(row)
}

func (p *PostgresStore) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := p.q.ListTemplates(ctx)
	if err != nil {
		return nil, pgError(err, "templates", "")
	}
	out := make([]Template, 0, len(rows))
	for _, row := range rows {
		t, err := templateFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *PostgresStore) UpdateTemplate(ctx context.Context, t Template) error {
	cols, sc, vals, err := encodeTemplate(t)
	if err != nil {
		return err
	}
	n, err := p.q.UpdateTemplate(ctx, database.UpdateTemplateParams{
		ID:           ToPgUUID(t.ID),
		TemplateName: t.Name,
		Columns:      cols,
		Schema:       sc,
		Validators:   vals,
		DateFormat:   t.DateFormat,
		UpdatedAt:    ToPgTimestamptz(t.UpdatedAt),
	})
	if err != nil {
		return pgError(err, "template", t.ID)
	}
	if n == 0 {
		return notFound("template", t.ID)
	}
	return nil
}

func (p *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	n, err := p.q.DeleteTemplate(ctx, ToPgUUID(id))
	if err != nil {
		return pgError(err, "template", id)
	}
	if n == 0 {
		return notFound("template", id)
	}
	return nil
}

func (p *PostgresStore) CreateImportConfig(ctx context.Context, c ImportConfig) error {
	err := p.q.CreateImportConfig(ctx, database.CreateImportConfigParams{
		ID:         ToPgUUID(c.ID),
		TemplateID: ToPgUUID(c.TemplateID),
		ImporterID: c.ImporterID,
		OrgID:      c.OrgID,
		CreatedAt:  ToPgTimestamptz(c.CreatedAt),
	})
	return pgError(err, "import config", c.ID)
}

func (p *PostgresStore) FindImportConfig(ctx context.Context, templateID string) (ImportConfig, error) {
	row, err := p.q.GetLatestImportConfig(ctx, ToPgUUID(templateID))
	if err != nil {
		return ImportConfig{}, pgError(err, "import config for template", templateID)
	}
	return ImportConfig{
		ID:         PgUUIDToString(row.ID),
		TemplateID: PgUUIDToString(row.TemplateID),
		ImporterID: row.ImporterID,
		OrgID:      row.OrgID,
		CreatedAt:  FromPgTimestamptz(row.CreatedAt),
	}, nil
}

// --- activity ---

func (p *PostgresStore) AppendActivity(ctx context.Context, e ActivityEntry) error {
	if err := validateActivity(e); err != nil {
		return err
	}
	err := p.q.InsertActivity(ctx, database.InsertActivityParams{
		ID:             ToPgUUID(e.ID),
		UserID:         e.UserID,
		CollectionName: e.CollectionName,
		Workspace:      e.Workspace,
		Organization:   e.Organization,
		Action:         e.Action,
		RowID:          ToPgText(e.RowID),
		Timestamp:      ToPgTimestamptz(e.Timestamp),
	})
	return pgError(err, "activity", e.ID)
}

func (p *PostgresStore) ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error) {
	params := database.ListActivityParams{
		UserID:         ToPgText(f.UserID),
		CollectionName: ToPgText(f.CollectionName),
		Action:         ToPgText(f.Action),
		Since:          ToPgTimestamptz(f.Since),
	}
	if f.Limit > 0 {
		params.Limit = pgtype.Int8{Int64: int64(f.Limit), Valid: true}
	}
	rows, err := p.q.ListActivity(ctx, params)
	if err != nil {
		return nil, pgError(err, "activity", "")
	}
	out := make([]ActivityEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ActivityEntry{
			ID:             PgUUIDToString(row.ID),
			UserID:         row.UserID,
			CollectionName: row.CollectionName,
			Workspace:      row.Workspace,
			Organization:   row.Organization,
			Action:         row.Action,
			RowID:          FromPgText(row.RowID),
			Timestamp:      FromPgTimestamptz(row.Timestamp),
		})
	}
	return out, nil
}

func (p *PostgresStore) PurgeActivity(ctx context.Context, before time.Time) (int64, error) {
	n, err := p.q.PurgeActivity(ctx, ToPgTimestamptz(before))
	return n, pgError(err, "activity", "")
}

// --- encoding ---

func validFilter(f RecordFilter) pgtype.Bool {
	if f.Valid == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *f.Valid, Valid: true}
}

func encodeRecord(rec Record) (fields, verrs []byte, err error) {
	f := rec.Fields
	if f == nil {
		f = map[string]string{}
	}
	v := rec.ValidationData
	if v == nil {
		v = []ValidationError{}
	}
	if fields, err = json.Marshal(f); err != nil {
		return nil, nil, fmt.Errorf("encode fields: %w", err)
	}
	if verrs, err = json.Marshal(v); err != nil {
		return nil, nil, fmt.Errorf("encode validationData: %w", err)
	}
	return fields, verrs, nil
}

func recordFromRow(row database.Record) (Record, error) {
	rec := Record{
		ID:        PgUUIDToString(row.ID),
		CreatedAt: FromPgTimestamptz(row.CreatedAt),
		UpdatedAt: FromPgTimestamptz(row.UpdatedAt),
	}
	if err := json.Unmarshal(row.Fields, &rec.Fields); err != nil {
		return Record{}, fmt.Errorf("decode fields of record %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(row.ValidationData, &rec.ValidationData); err != nil {
		return Record{}, fmt.Errorf("decode validationData of record %s: %w", rec.ID, err)
	}
	return rec, nil
}

func encodeTemplate(t Template) (cols, sc, vals []byte, err error) {
	if cols, err = json.Marshal(t.Columns); err != nil {
		return nil, nil, nil, fmt.Errorf("encode columns: %w", err)
	}
	if sc, err = json.Marshal(t.Schema); err != nil {
		return nil, nil, nil, fmt.Errorf("encode schema: %w", err)
	}
	if vals, err = json.Marshal(t.Validators); err != nil {
		return nil, nil, nil, fmt.Errorf("encode validators: %w", err)
	}
	return cols, sc, vals, nil
}

func templateFromRow(row database.Template) (Template, error) {
	t := Template{
		ID:             PgUUIDToString(row.ID),
		Name:           row.TemplateName,
		CollectionName: row.CollectionName,
		BaseTemplateID: PgUUIDToString(row.BaseTemplateID),
		DateFormat:     row.DateFormat,
		CreatedAt:      FromPgTimestamptz(row.CreatedAt),
		UpdatedAt:      FromPgTimestamptz(row.UpdatedAt),
	}
	if err := json.Unmarshal(row.Columns, &t.Columns); err != nil {
		return Template{}, fmt.Errorf("decode columns of template %s: %w", t.ID, err)
	}
	t.Schema = &schema.Schema{}
	if err := json.Unmarshal(row.Schema, t.Schema); err != nil {
		return Template{}, fmt.Errorf("decode schema of template %s: %w", t.ID, err)
	}
	if len(row.Validators) > 0 {
		if err := json.Unmarshal(row.Validators, &t.Validators); err != nil {
			return Template{}, fmt.Errorf("decode validators of template %s: %w", t.ID, err)
		}
	}
	return t, nil
}

// pgError maps driver errors onto the package sentinels. A missing row, a
// malformed id or a dangling reference is ErrNotFound; constraint failures
// are ErrInvalidSpecification; connection failures are ErrStorageUnavailable.
func pgError(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidText, pgForeignKeyViolation:
			return notFound(kind, id)
		case pgNotNullViolation, pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrInvalidSpecification, pgErr.Message)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return err
}
