package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Fixed-width UTC layout so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var sortColumns = map[SortField]string{
	SortByCreatedAt: "created_at",
	SortBySize:      "size",
	SortByName:      "path",
}

// SQLiteRepository keeps records in the media_files table of a SQLite database.
type SQLiteRepository struct {
	db     *sql.DB
	logger log.Logger
	now    func() time.Time
	newID  func() string
}

// OpenSQLite opens (or creates) the database at path and makes sure the schema exists.
func OpenSQLite(ctx context.Context, path string, logger log.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	r := &SQLiteRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	if err := r.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) createTables(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS media_files (
    id TEXT PRIMARY KEY,
    bucket TEXT NOT NULL,
    path TEXT NOT NULL,
    title TEXT,
    description TEXT,
    size INTEGER NOT NULL,
    mime_type TEXT NOT NULL,
    metadata TEXT,
    user_id TEXT NOT NULL,
    public INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (bucket, path)
);
`)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS media_files_bucket_created_at ON media_files (bucket, created_at);
`)
	return err
}

// Close ...
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Insert writes a new record. ID and timestamps are generated when empty.
func (r *SQLiteRepository) Insert(ctx context.Context, record Record) error {
	if record.Bucket == "" || record.Path == "" {
		return fmt.Errorf("bucket and path must not be empty")
	}
	if record.ID == "" {
		record.ID = r.newID()
	}
	now := r.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	q := `
  INSERT INTO media_files
  (id,
  bucket,
  path,
  title,
  description,
  size,
  mime_type,
  metadata,
  user_id,
  public,
  created_at,
  updated_at)
  VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		record.ID,
		record.Bucket,
		record.Path,
		nullString(record.Title),
		nullString(record.Description),
		record.Size,
		record.MimeType,
		string(meta),
		record.OwnerID,
		record.Public,
		toTimeStr(record.CreatedAt),
		toTimeStr(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert media file %s/%s: %w", record.Bucket, record.Path, err)
	}

	r.logger.Debugf("db: inserted media file %s/%s", record.Bucket, record.Path)
	return nil
}

// Delete removes the record of bucket/path. A missing record is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, bucket, path string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media_files WHERE bucket = ? AND path = ?`, bucket, path)
	if err != nil {
		return fmt.Errorf("delete media file %s/%s: %w", bucket, path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Debugf("db: no media file record for %s/%s", bucket, path)
	}
	return nil
}

// List returns one page of the bucket's records.
func (r *SQLiteRepository) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	direction := "DESC"
	if opts.Order == OrderAsc {
		direction = "ASC"
	}

	var b strings.Builder
	args := []interface{}{opts.Bucket}
	b.WriteString(`
  SELECT
  id,
  bucket,
  path,
  title,
  description,
  size,
  mime_type,
  metadata,
  user_id,
  public,
  created_at,
  updated_at
  FROM media_files
  WHERE bucket = ?`)
	if opts.Search != "" {
		b.WriteString(` AND path LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(opts.Search)+"%")
	}
	fmt.Fprintf(&b, "\n  ORDER BY %s %s, path %s\n  LIMIT ? OFFSET ?", sortColumns[opts.SortBy], direction, direction)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var title, description, meta sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&rec.ID, &rec.Bucket, &rec.Path, &title, &description, &rec.Size,
			&rec.MimeType, &meta, &rec.OwnerID, &rec.Public, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		rec.Title = title.String
		rec.Description = description.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", rec.Path, err)
			}
		}
		if rec.CreatedAt, err = fromTimeStr(createdAt); err != nil {
			return nil, err
		}
		if rec.UpdatedAt, err = fromTimeStr(updatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func toTimeStr(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fromTimeStr(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
