package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamOverlayAPI/internal/types/overlay"
)

const overlaySchema = `
	CREATE TABLE IF NOT EXISTS overlays (
		seq        BIGSERIAL,
		id         UUID PRIMARY KEY,
		stream_id  TEXT NOT NULL,
		kind       TEXT NOT NULL CHECK (kind IN ('text', 'image')),
		content    TEXT NOT NULL,
		x          INTEGER NOT NULL,
		y          INTEGER NOT NULL,
		width      INTEGER NOT NULL,
		height     INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS overlays_stream_seq_idx ON overlays (stream_id, seq);
`

const overlayColumns = `id, stream_id, kind, content, x, y, width, height, created_at, updated_at`

var _ OverlayStore = (*PostgresOverlayStore)(nil)

type PostgresOverlayStore struct {
	db *pgxpool.Pool
}

func NewPostgresOverlayStore(db *pgxpool.Pool) *PostgresOverlayStore {
	return &PostgresOverlayStore{db: db}
}

// Migrate creates the overlays table if it does not exist yet.
func (s *PostgresOverlayStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, overlaySchema); err != nil {
		return storageErr("migrate overlays", err)
	}
	return nil
}

func (s *PostgresOverlayStore) Put(ctx context.Context, o *overlay.Overlay) (*overlay.Overlay, error) {
	if o == nil {
		return nil, fmt.Errorf("put overlay: nil record")
	}

	id := uuid.New()
	if o.ID != "" {
		parsed, err := uuid.Parse(o.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid overlay ID %q: %w", o.ID, err)
		}
		id = parsed
	}

	now := time.Now().UTC()
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	// stream_id, kind and created_at are never touched on conflict
	query := `
		INSERT INTO overlays (id, stream_id, kind, content, x, y, width, height, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			x = EXCLUDED.x,
			y = EXCLUDED.y,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + overlayColumns

	row := s.db.QueryRow(ctx, query,
		id,
		o.StreamID,
		string(o.Kind),
		o.Content,
		o.X,
		o.Y,
		o.Width,
		o.Height,
		createdAt,
		now,
	)

	rec, err := scanOverlay(row)
	if err != nil {
		return nil, storageErr("put overlay", err)
	}
	return rec, nil
}

func (s *PostgresOverlayStore) Get(ctx context.Context, id string) (*overlay.Overlay, error) {
	overlayUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("get overlay %s: %w", id, overlay.ErrNotFound)
	}

	row := s.db.QueryRow(ctx, `SELECT `+overlayColumns+` FROM overlays WHERE id = $1`, overlayUUID)
	rec, err := scanOverlay(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get overlay %s: %w", id, overlay.ErrNotFound)
		}
		return nil, storageErr("get overlay", err)
	}
	return rec, nil
}

func (s *PostgresOverlayStore) List(ctx context.Context, streamID string) ([]overlay.Overlay, error) {
	query := `
		SELECT ` + overlayColumns + `
		FROM overlays
		WHERE stream_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.Query(ctx, query, streamID)
	if err != nil {
		return nil, storageErr("list overlays", err)
	}
	defer rows.Close()

	overlays := make([]overlay.Overlay, 0)
	for rows.Next() {
		rec, err := scanOverlay(rows)
		if err != nil {
			return nil, storageErr("scan overlay", err)
		}
		overlays = append(overlays, *rec)
	}

	if err = rows.Err(); err != nil {
		return nil, storageErr("list overlays", err)
	}

	return overlays, nil
}

func (s *PostgresOverlayStore) Patch(ctx context.Context, id string, fields overlay.Patch) (*overlay.Overlay, error) {
	overlayUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("patch overlay %s: %w", id, overlay.ErrNotFound)
	}

	query := `
		UPDATE overlays SET
			content = COALESCE($2, content),
			x = COALESCE($3, x),
			y = COALESCE($4, y),
			width = COALESCE($5, width),
			height = COALESCE($6, height),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + overlayColumns

	row := s.db.QueryRow(ctx, query,
		overlayUUID,
		fields.Content,
		fields.X,
		fields.Y,
		fields.Width,
		fields.Height,
	)

	rec, err := scanOverlay(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patch overlay %s: %w", id, overlay.ErrNotFound)
		}
		return nil, storageErr("patch overlay", err)
	}
	return rec, nil
}

func (s *PostgresOverlayStore) Delete(ctx context.Context, id string) (bool, error) {
	overlayUUID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM overlays WHERE id = $1`, overlayUUID)
	if err != nil {
		return false, storageErr("delete overlay", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresOverlayStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	overlayUUIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if parsed, err := uuid.Parse(id); err == nil {
			overlayUUIDs = append(overlayUUIDs, parsed)
		}
	}
	if len(overlayUUIDs) == 0 {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM overlays WHERE id = ANY($1)`, overlayUUIDs)
	if err != nil {
		return 0, storageErr("bulk delete overlays", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresOverlayStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func scanOverlay(row pgx.Row) (*overlay.Overlay, error) {
	var (
		rec  overlay.Overlay
		id   uuid.UUID
		kind string
	)
	err := row.Scan(
		&id,
		&rec.StreamID,
		&kind,
		&rec.Content,
		&rec.X,
		&rec.Y,
		&rec.Width,
		&rec.Height,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.String()
	rec.Kind = overlay.Kind(kind)
	return &rec, nil
}

// storageErr marks everything that is not a server-side query error as the
// store being unreachable.
func storageErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, overlay.ErrStorageUnavailable, err)
}
