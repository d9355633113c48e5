package assets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/makeasinger/autoedit/internal/model"
)

// ErrNotFound is returned when no asset has the requested id.
var ErrNotFound = errors.New("asset not found")

// Store persists assets in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the asset database and runs migrations.
func Open(dbPath string) (*Store, error) {
	// modernc.org/sqlite applies _pragma to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		source_ref TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		transcript TEXT NOT NULL DEFAULT '',
		audio_levels TEXT NOT NULL DEFAULT '[]',
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		thumbnail TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ready' CHECK(status IN ('ready', 'processing', 'edited', 'failed')),
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get loads one asset.
func (s *Store) Get(ctx context.Context, id string) (*model.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_ref, duration_seconds, transcript, audio_levels, width, height, thumbnail, status, updated_at
		FROM assets
		WHERE id = ?
	`, id)

	var (
		a         model.Asset
		levels    string
		status    string
		updatedAt string
	)
	err := row.Scan(&a.ID, &a.SourceRef, &a.DurationSeconds, &a.Transcript, &levels,
		&a.Width, &a.Height, &a.Thumbnail, &status, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("query asset: %w", err)
	}

	if err := json.Unmarshal([]byte(levels), &a.AudioLevelSamples); err != nil {
		return nil, fmt.Errorf("decode audio levels: %w", err)
	}
	a.Status = model.AssetStatus(status)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &a, nil
}

// Put inserts or replaces an asset.
func (s *Store) Put(ctx context.Context, a *model.Asset) error {
	if a.ID == "" || a.SourceRef == "" {
		return errors.New("asset requires id and source ref")
	}
	levels := a.AudioLevelSamples
	if levels == nil {
		levels = []float64{}
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	status := a.Status
	if status == "" {
		status = model.AssetStatusReady
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (id, source_ref, duration_seconds, transcript, audio_levels, width, height, thumbnail, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_ref = excluded.source_ref,
			duration_seconds = excluded.duration_seconds,
			transcript = excluded.transcript,
			audio_levels = excluded.audio_levels,
			width = excluded.width,
			height = excluded.height,
			thumbnail = excluded.thumbnail,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, a.ID, a.SourceRef, a.DurationSeconds, a.Transcript, string(data), a.Width, a.Height, a.Thumbnail, string(status), now())
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// SetSourceRef rewrites only the source reference. It is the single write a
// version restore performs.
func (s *Store) SetSourceRef(ctx context.Context, id, ref string) error {
	return s.update(ctx, `UPDATE assets SET source_ref = ? WHERE id = ?`, ref, id)
}

// Promotion is what a verified render writes back to its asset.
type Promotion struct {
	SourceRef string
	Thumbnail string
}

// Promote points the asset at a rendered output. An empty thumbnail keeps the
// previous one. Duration, transcript and levels stay those of the registered
// source, like after a restore.
func (s *Store) Promote(ctx context.Context, id string, p Promotion) error {
	return s.update(ctx, `
		UPDATE assets SET
			source_ref = ?,
			thumbnail = CASE WHEN ? = '' THEN thumbnail ELSE ? END,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`, p.SourceRef, p.Thumbnail, p.Thumbnail, string(model.AssetStatusEdited), now(), id)
}

// SetStatus records where the asset is in its edit lifecycle.
func (s *Store) SetStatus(ctx context.Context, id string, status model.AssetStatus) error {
	return s.update(ctx, `UPDATE assets SET status = ?, updated_at = ? WHERE id = ?`, string(status), now(), id)
}

func (s *Store) update(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
