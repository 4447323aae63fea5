package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ehr/ehr/internal/apperr"
)

// Delete implements spec §4.1 delete(): idempotent 204. Soft mode appends a
// tombstone version; hard mode (WithHardDelete) purges all history rows.
// Deleting a resource that was never created is a no-op (spec §3 invariant
// "still creates no row").
func (s *Store) Delete(ctx context.Context, resourceType, id string) error {
	return s.withTx(ctx, func(ctx context.Context, q Querier) error {
		var current int
		var alreadyDeleted bool
		err := q.QueryRow(ctx, `SELECT version_id, deleted FROM resources WHERE resource_type=$1 AND id=$2 FOR UPDATE`,
			resourceType, id).Scan(&current, &alreadyDeleted)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return apperr.Wrap(err, "lock resource row for delete")
		}
		if alreadyDeleted {
			return nil
		}
		if s.hardDel {
			if _, err := q.Exec(ctx, `DELETE FROM resource_history WHERE resource_type=$1 AND id=$2`, resourceType, id); err != nil {
				return apperr.Wrap(err, "purge history")
			}
			if _, err := q.Exec(ctx, `DELETE FROM resources WHERE resource_type=$1 AND id=$2`, resourceType, id); err != nil {
				return apperr.Wrap(err, "purge current pointer")
			}
			if s.indexer != nil {
				if err := s.indexer.DeleteIndex(ctx, q, resourceType, id); err != nil {
					return apperr.Wrap(err, "purge index rows")
				}
			}
			return nil
		}
		next := current + 1
		now := time.Now()
		tombstone := map[string]interface{}{
			"resourceType": resourceType,
			"id":           id,
		}
		stamp(resourceType, tombstone, next, now)
		bodyJSON, _ := json.Marshal(tombstone)
		if _, err := q.Exec(ctx, `INSERT INTO resource_history (resource_type, id, version_id, deleted, last_updated, body)
			VALUES ($1,$2,$3,true,$4,$5)`, resourceType, id, next, now, bodyJSON); err != nil {
			return apperr.Wrap(err, "insert tombstone")
		}
		if _, err := q.Exec(ctx, `UPDATE resources SET version_id=$3, deleted=true, last_updated=$4
			WHERE resource_type=$1 AND id=$2`, resourceType, id, next, now); err != nil {
			return apperr.Wrap(err, "mark current pointer deleted")
		}
		if s.indexer != nil {
			if err := s.indexer.DeleteIndex(ctx, q, resourceType, id); err != nil {
				return apperr.Wrap(err, "delete index rows on tombstone")
			}
		}
		return nil
	})
}
