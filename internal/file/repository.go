package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, original_file_name, storage_key, content_type, owner_id,
	upload_finished_at, expire_at, reminder_at, thumbnail_key, is_deleted, created_at, updated_at`

// Repository handles all file-record database operations. Soft-deleted rows
// are excluded from every method except GetByIDAny.
type Repository struct {
	db *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending record and returns the stored row.
func (r *Repository) Create(ctx context.Context, rec *Record) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO files (id, original_file_name, storage_key, content_type, owner_id, expire_at, reminder_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+recordColumns,
		rec.ID, rec.OriginalFileName, rec.StorageKey, rec.ContentType, rec.OwnerID, rec.ExpireAt, rec.ReminderAt,
	)
	created, err := scanRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("storage key %q already taken: %w", rec.StorageKey, err)
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}
	return created, nil
}

// GetByID fetches a record by ID, excluding soft-deleted rows.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM files WHERE id = $1 AND NOT is_deleted`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapLookupErr(err, "get file by id")
	}
	return rec, nil
}

// GetByIDAny fetches a record by ID including soft-deleted rows. Used by
// administrative tooling and tests that need to observe the deleted flag.
func (r *Repository) GetByIDAny(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM files WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapLookupErr(err, "get file by id (any)")
	}
	return rec, nil
}

// Update persists the mutable metadata of a record: display name, expiry and
// reminder schedule. storage_key and content_type are deliberately absent
// from the statement — they are immutable after creation.
func (r *Repository) Update(ctx context.Context, rec *Record) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE files
		 SET original_file_name = $2, expire_at = $3, reminder_at = $4, updated_at = now()
		 WHERE id = $1 AND NOT is_deleted
		 RETURNING `+recordColumns,
		rec.ID, rec.OriginalFileName, rec.ExpireAt, rec.ReminderAt,
	)
	updated, err := scanRecord(row)
	if err != nil {
		return nil, mapLookupErr(err, "update file")
	}
	return updated, nil
}

// MarkFinished stamps the upload-finished time, transitioning the record from
// pending to complete. Re-stamping an already complete record is allowed.
func (r *Repository) MarkFinished(ctx context.Context, id string, at time.Time) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE files SET upload_finished_at = $2, updated_at = now()
		 WHERE id = $1 AND NOT is_deleted
		 RETURNING `+recordColumns,
		id, at,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapLookupErr(err, "mark upload finished")
	}
	return rec, nil
}

// SetThumbnailKey stores the derived thumbnail reference.
func (r *Repository) SetThumbnailKey(ctx context.Context, id, key string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET thumbnail_key = $2, updated_at = now()
		 WHERE id = $1 AND NOT is_deleted`,
		id, key,
	)
	if err != nil {
		return fmt.Errorf("set thumbnail key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the record deleted without removing the row or the blob.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET is_deleted = TRUE, updated_at = now()
		 WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("soft delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner returns the owner's complete files, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM files
		 WHERE owner_id = $1 AND upload_finished_at IS NOT NULL AND NOT is_deleted
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files by owner: %w", err)
	}
	return collectRecords(rows)
}

// ListExpiredByOwner returns the owner's complete files whose expiry has
// already passed.
func (r *Repository) ListExpiredByOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM files
		 WHERE owner_id = $1 AND upload_finished_at IS NOT NULL AND NOT is_deleted
		   AND expire_at IS NOT NULL AND expire_at <= $2
		 ORDER BY created_at DESC`,
		ownerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired files: %w", err)
	}
	return collectRecords(rows)
}

// ListExpiringOn returns records whose expiry falls within the calendar day
// containing now, bounds inclusive.
func (r *Repository) ListExpiringOn(ctx context.Context, now time.Time) ([]Record, error) {
	start, end := dayBounds(now)
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM files
		 WHERE expire_at BETWEEN $1 AND $2 AND NOT is_deleted
		 ORDER BY created_at DESC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list files expiring today: %w", err)
	}
	return collectRecords(rows)
}

// ListReminderOn returns records whose reminder falls within the calendar day
// containing now, bounds inclusive.
func (r *Repository) ListReminderOn(ctx context.Context, now time.Time) ([]Record, error) {
	start, end := dayBounds(now)
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM files
		 WHERE reminder_at BETWEEN $1 AND $2 AND NOT is_deleted
		 ORDER BY created_at DESC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list files to remind today: %w", err)
	}
	return collectRecords(rows)
}

// dayBounds returns the inclusive [00:00:00.000000, 23:59:59.999999] window of
// the calendar day containing t, in t's location. Microsecond precision
// matches the column type.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.Add(24*time.Hour - time.Microsecond)
	return start, end
}

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	err := row.Scan(
		&rec.ID, &rec.OriginalFileName, &rec.StorageKey, &rec.ContentType, &rec.OwnerID,
		&rec.UploadFinishedAt, &rec.ExpireAt, &rec.ReminderAt, &rec.ThumbnailKey,
		&rec.IsDeleted, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file records: %w", err)
	}
	return out, nil
}

// mapLookupErr converts "no row" and "not a uuid" errors into ErrNotFound so
// handlers can treat a malformed ID like a missing one.
func mapLookupErr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation checks for a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidUUID checks for a PostgreSQL invalid_text_representation (22P02),
// raised when a lookup ID is not a well-formed UUID.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
