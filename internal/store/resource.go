package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ehr/ehr/internal/apperr"
)

const resourceCols = `resource_type, id, version_id, deleted, last_updated, body`

// stamp rewrites meta.versionId and meta.lastUpdated on body, ignoring
// whatever the client supplied (spec §3 "Body ... meta ... re-stamped by the
// server on every write").
func stamp(resourceType string, body map[string]interface{}, versionID int, lastUpdated time.Time) {
	body["resourceType"] = resourceType
	meta, _ := body["meta"].(map[string]interface{})
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["versionId"] = strconv.Itoa(versionID)
	meta["lastUpdated"] = lastUpdated.UTC().Format(time.RFC3339Nano)
	body["meta"] = meta
}

// nextVersion locks the current-pointer row (if any) and returns the version
// id the next write should use, along with whether a current row already
// existed. Locking the row is what prevents two concurrent writers from
// allocating the same version_id (spec §4.1 "Concurrency").
func (s *Store) nextVersion(ctx context.Context, q Querier, resourceType, id string) (next int, existed bool, deleted bool, err error) {
	var current int
	var isDeleted bool
	row := q.QueryRow(ctx, `SELECT version_id, deleted FROM resources WHERE resource_type=$1 AND id=$2 FOR UPDATE`, resourceType, id)
	switch scanErr := row.Scan(&current, &isDeleted); scanErr {
	case nil:
		return current + 1, true, isDeleted, nil
	case pgx.ErrNoRows:
		return 1, false, false, nil
	default:
		return 0, false, false, apperr.Wrap(scanErr, "lock resource row")
	}
}

// Create implements spec §4.1 create(). If id is empty a UUID is generated;
// if id is non-empty, update-as-create semantics apply only via Update, not
// here — Create always makes a new id unless the caller deliberately wants
// PUT-to-create (see Update).
func (s *Store) Create(ctx context.Context, resourceType string, body map[string]interface{}) (*Resource, error) {
	id, _ := body["id"].(string)
	if id == "" {
		id = uuid.New().String()
	} else if err := validateID(id); err != nil {
		return nil, err
	}
	return s.put(ctx, resourceType, id, body, nil)
}

// put performs the insert-new-version path shared by Create and
// Update-as-create. expectedVersion, when non-nil, enforces If-Match.
func (s *Store) put(ctx context.Context, resourceType, id string, body map[string]interface{}, expectedVersion *int) (*Resource, error) {
	var out *Resource
	err := s.withTx(ctx, func(ctx context.Context, q Querier) error {
		next, existed, deleted, err := s.nextVersion(ctx, q, resourceType, id)
		if err != nil {
			return err
		}
		if expectedVersion != nil {
			if !existed {
				return apperr.NotFound(resourceType, id)
			}
			if *expectedVersion != next-1 {
				return apperr.PreconditionFailed("version mismatch", `W/"`+strconv.Itoa(next-1)+`"`)
			}
		}
		_ = deleted
		now := time.Now()
		body["id"] = id
		stamp(resourceType, body, next, now)
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return apperr.Invalid("", "encode resource body: %v", err)
		}
		if _, err := q.Exec(ctx, `INSERT INTO resource_history (resource_type, id, version_id, deleted, last_updated, body)
			VALUES ($1,$2,$3,false,$4,$5)`, resourceType, id, next, now, bodyJSON); err != nil {
			return apperr.Wrap(err, "insert history row")
		}
		if _, err := q.Exec(ctx, `INSERT INTO resources (resource_type, id, version_id, deleted, last_updated)
			VALUES ($1,$2,$3,false,$4)
			ON CONFLICT (resource_type, id) DO UPDATE SET version_id=$3, deleted=false, last_updated=$4`,
			resourceType, id, next, now); err != nil {
			return apperr.Wrap(err, "upsert current pointer")
		}
		res := &Resource{Type: resourceType, ID: id, VersionID: next, LastUpdated: now, Body: body}
		if s.indexer != nil {
			if err := s.indexer.Index(ctx, q, res); err != nil {
				return apperr.Wrap(err, "index resource")
			}
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.runHooks(ctx, out)
	return out, nil
}

// Read implements spec §4.1 read(): current version, or NotFound/Deleted.
func (s *Store) Read(ctx context.Context, resourceType, id string) (*Resource, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+resourceVersionedCols()+` FROM resources r
		JOIN resource_history h ON h.resource_type=r.resource_type AND h.id=r.id AND h.version_id=r.version_id
		WHERE r.resource_type=$1 AND r.id=$2`, resourceType, id)
	res, err := scanResource(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound(resourceType, id)
		}
		return nil, apperr.Wrap(err, "read resource")
	}
	if res.Deleted {
		return nil, apperr.Deleted(resourceType, id, res.VersionID)
	}
	return res, nil
}

// VRead implements spec §4.1 vread(): exact historical body.
func (s *Store) VRead(ctx context.Context, resourceType, id string, versionID int) (*Resource, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+resourceCols+` FROM resource_history
		WHERE resource_type=$1 AND id=$2 AND version_id=$3`, resourceType, id, versionID)
	res, err := scanResource(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound(resourceType, id)
		}
		return nil, apperr.Wrap(err, "vread resource")
	}
	return res, nil
}

// Update implements spec §4.1 update(). updateAsCreate lets a PUT to an
// absent id behave like create with that id.
func (s *Store) Update(ctx context.Context, resourceType, id string, body map[string]interface{}, ifMatch *int, updateAsCreate bool) (*Resource, bool, error) {
	if bodyID, ok := body["id"].(string); ok && bodyID != "" && bodyID != id {
		return nil, false, apperr.Invalid("id", "body id %q does not match URL id %q", bodyID, id)
	}
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	existing, err := s.Read(ctx, resourceType, id)
	if err != nil {
		var ae *apperr.Error
		notFound := errors.As(err, &ae) && ae.Code == apperr.CodeNotFound
		if !notFound {
			return nil, false, err
		}
		if !updateAsCreate {
			return nil, false, err
		}
		if ifMatch != nil {
			return nil, false, apperr.PreconditionFailed("resource does not exist", "")
		}
		res, err := s.put(ctx, resourceType, id, body, nil)
		return res, true, err
	}
	if ifMatch != nil && *ifMatch != existing.VersionID {
		return nil, false, apperr.PreconditionFailed("version mismatch, current is %d", existing.ETag(), existing.VersionID)
	}
	expected := existing.VersionID
	res, err := s.put(ctx, resourceType, id, body, &expected)
	return res, false, err
}

func resourceVersionedCols() string {
	return `h.resource_type, h.id, h.version_id, h.deleted, h.last_updated, h.body`
}

func scanResource(row pgx.Row) (*Resource, error) {
	var r Resource
	var bodyJSON []byte
	if err := row.Scan(&r.Type, &r.ID, &r.VersionID, &r.Deleted, &r.LastUpdated, &bodyJSON); err != nil {
		return nil, err
	}
	if len(bodyJSON) > 0 {
		if err := json.Unmarshal(bodyJSON, &r.Body); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
