// Package postgres provides the PostgreSQL-backed metadata store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/metrics"
)

// uniqueViolation is the Postgres error code for unique constraint breaks.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS files (
	id          UUID PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES users(id),
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	parent_id   TEXT NOT NULL DEFAULT '0',
	is_public   BOOLEAN NOT NULL DEFAULT FALSE,
	storage_key TEXT,
	thumb_100   TEXT,
	thumb_250   TEXT,
	thumb_500   TEXT,
	seq         BIGSERIAL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_files_owner_parent ON files (user_id, parent_id, seq);
`

// Store is a PostgreSQL metadata store.
type Store struct {
	db *sql.DB
}

var _ metadata.Store = (*Store)(nil)

// New opens a connection pool against databaseURL and ensures the schema.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics publishes current pool stats.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// InsertUser creates a user record.
func (s *Store) InsertUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_user", time.Since(start)) }()

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, domain.Conflict("Email already exists")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("user_by_email", time.Since(start)) }()

	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user by email: %w", err)
	}
	return &u, nil
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("user_by_id", time.Since(start)) }()

	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user by id: %w", err)
	}
	return &u, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

const fileColumns = `id, user_id, name, kind, parent_id, is_public, storage_key, thumb_100, thumb_250, thumb_500, created_at`

// InsertFile persists a new file entry.
func (s *Store) InsertFile(ctx context.Context, entry *domain.FileEntry) (*domain.FileEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_file", time.Since(start)) }()

	e := *entry
	e.ID = uuid.NewString()

	var key sql.NullString
	if e.StorageKey != "" {
		key = sql.NullString{String: e.StorageKey, Valid: true}
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO files (id, user_id, name, kind, parent_id, is_public, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		e.ID, e.UserID, e.Name, string(e.Kind), e.ParentID, e.IsPublic, key).Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return &e, nil
}

// FileByID returns an entry by id alone.
func (s *Store) FileByID(ctx context.Context, id string) (*domain.FileEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("file_by_id", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	return scanFile(row)
}

// FileByIDAndOwner returns an entry by id scoped to its owner.
func (s *Store) FileByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.FileEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("file_by_id_owner", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND user_id = $2`, id, ownerID)
	return scanFile(row)
}

// ListByParent pages through an owner's entries under one parent.
func (s *Store) ListByParent(ctx context.Context, ownerID, parentID string, page int) ([]domain.FileEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_by_parent", time.Since(start)) }()

	if page < 0 {
		page = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE user_id = $1 AND parent_id = $2
		 ORDER BY seq
		 OFFSET $3 LIMIT $4`,
		ownerID, parentID, page*metadata.PageSize, metadata.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	entries := []domain.FileEntry{}
	for rows.Next() {
		e, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return entries, nil
}

// SetVisibility flips isPublic on an owned entry and returns the result.
func (s *Store) SetVisibility(ctx context.Context, id, ownerID string, public bool) (*domain.FileEntry, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_visibility", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`UPDATE files SET is_public = $3 WHERE id = $1 AND user_id = $2
		 RETURNING `+fileColumns, id, ownerID, public)
	return scanFile(row)
}

// SetThumbnailKey records one generated thumbnail storage key.
func (s *Store) SetThumbnailKey(ctx context.Context, id string, width int, key string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_thumbnail_key", time.Since(start)) }()

	col, ok := thumbColumn(width)
	if !ok {
		return fmt.Errorf("unsupported thumbnail width %d", width)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET `+col+` = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("set thumbnail key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountFiles returns the number of file entries.
func (s *Store) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

// thumbColumn maps a thumbnail width to its column. The widths are a
// fixed set, so columns beat a jsonb map for single-width updates.
func thumbColumn(width int) (string, bool) {
	switch width {
	case 100:
		return "thumb_100", true
	case 250:
		return "thumb_250", true
	case 500:
		return "thumb_500", true
	}
	return "", false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*domain.FileEntry, error) {
	var (
		e                     domain.FileEntry
		kind                  string
		key, t100, t250, t500 sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &kind, &e.ParentID, &e.IsPublic,
		&key, &t100, &t250, &t500, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	e.Kind = domain.Kind(kind)
	e.StorageKey = key.String
	thumbs := map[int]string{}
	if t100.Valid {
		thumbs[100] = t100.String
	}
	if t250.Valid {
		thumbs[250] = t250.String
	}
	if t500.Valid {
		thumbs[500] = t500.String
	}
	if len(thumbs) > 0 {
		e.ThumbnailKeys = thumbs
	}
	return &e, nil
}
