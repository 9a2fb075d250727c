package database

import (
	"context"
)

// StreamRecords runs the ListRecords query and hands each row to fn as it
// is read, so a full collection scan never materialises in memory. The
// query is a single statement and therefore sees one consistent snapshot.
// Returning an error from fn stops the scan.
func (q *Queries) StreamRecords(ctx context.Context, arg ListRecordsParams, fn func(Record) error) error {
	rows, err := q.db.Query(ctx, listRecords,
		arg.Collection,
		arg.Valid,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var i Record
		if err := rows.Scan(
			&i.ID,
			&i.Collection,
			&i.Fields,
			&i.ValidationData,
			&i.Valid,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return err
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return rows.Err()
}
