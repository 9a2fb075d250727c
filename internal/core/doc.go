// Package core holds the validation, aggregation and import logic of the
// service, independent of any transport. HTTP handlers, the feedback client
// and tests all drive it through [Service].
//
// # Templates
//
// A [Template] pairs a column list with the schema generated from it (see
// package schema) and the collection its records live in. A template
// created with a base template id copies the base schema restricted to its
// own labels instead of generating one.
//
// # Validation
//
// [ValidateRecord] and [ValidateField] apply a schema to raw string cells.
// Failures are data: a record carries its []ValidationError and is stored
// either way. [Coerce] returns the typed values alongside the failures.
//
// # Aggregation
//
// [Aggregator] reduces one consistent read of a collection into an
// [AggregateSnapshot] using a bounded worker pool. [Service.ComputeAggregate]
// fronts it with an optional [SnapshotCache] that writes invalidate.
//
// # Import
//
// [Service.Import] streams rows from a [RowReader] (CSV here, XLSX in
// package report), validates each row and inserts batches. Concurrent
// imports are bounded by an [ImportLimiter].
//
// # Error Handling
//
// Operations return the sentinels in errors.go, matched with errors.Is.
// [MapError] turns any error into a coded user-facing message:
//
//   - TPL001-TPL006: template and schema errors
//   - VAL001-VAL002: validation request errors
//   - STO001-STO005: storage errors
//   - IMP001-IMP008: import errors
//   - REQ001: malformed requests
//   - RATE001: rate limiting
//
// # Storage
//
// [MemStore] keeps everything in process; [PostgresStore] keeps all
// collections in one records table. Both satisfy [Store].
package core
