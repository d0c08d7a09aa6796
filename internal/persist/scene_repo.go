package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/undoredo/internal/scene"
)

// ErrSnapshotNotFound is returned by LoadSnapshot for an unknown name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ObjectRow maps to one scene_objects row.
type ObjectRow struct {
	Seq     int32
	Name    string
	X       int32
	Y       int32
	MapID   int16
	Heading int16
	HP      *int16 // NULL when the object has no health
	MaxHP   *int16
	Tags    []string
}

// SnapshotInfo maps to one scene_snapshots row.
type SnapshotInfo struct {
	Name    string
	SavedAt time.Time
	Objects int32
}

// SceneRepo stores named snapshots of the scene. Undo history is never
// persisted, only the world it produced.
type SceneRepo struct {
	db *DB
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db}
}

// SaveSnapshot replaces the snapshot called name with objs in one transaction.
func (r *SceneRepo) SaveSnapshot(ctx context.Context, name string, objs []scene.Object) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO scene_snapshots (name, saved_at, objects) VALUES ($1, now(), $2)
		 ON CONFLICT (name) DO UPDATE SET saved_at = now(), objects = EXCLUDED.objects
		 RETURNING id`,
		name, len(objs),
	).Scan(&id); err != nil {
		return fmt.Errorf("snapshot upsert: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM scene_objects WHERE snapshot_id = $1`, id); err != nil {
		return fmt.Errorf("snapshot clear: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range ObjectsToRows(objs) {
		batch.Queue(
			`INSERT INTO scene_objects (snapshot_id, seq, name, x, y, map_id, heading, hp, max_hp, tags)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, row.Seq, row.Name, row.X, row.Y, row.MapID, row.Heading, row.HP, row.MaxHP, row.Tags,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("snapshot insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// LoadSnapshot returns the objects saved under name, in saved order.
func (r *SceneRepo) LoadSnapshot(ctx context.Context, name string) ([]scene.Object, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `SELECT id FROM scene_snapshots WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot lookup: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT seq, name, x, y, map_id, heading, hp, max_hp, tags
		 FROM scene_objects WHERE snapshot_id = $1 ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot query: %w", err)
	}
	defer rows.Close()

	var out []ObjectRow
	for rows.Next() {
		var row ObjectRow
		if err := rows.Scan(&row.Seq, &row.Name, &row.X, &row.Y, &row.MapID, &row.Heading,
			&row.HP, &row.MaxHP, &row.Tags); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
	}
	return RowsToObjects(out), nil
}

// ListSnapshots returns every saved snapshot, newest first.
func (r *SceneRepo) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, saved_at, objects FROM scene_snapshots ORDER BY saved_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var s SnapshotInfo
		if err := rows.Scan(&s.Name, &s.SavedAt, &s.Objects); err != nil {
			return nil, fmt.Errorf("list snapshots scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSnapshot removes a snapshot and its objects.
func (r *SceneRepo) DeleteSnapshot(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM scene_snapshots WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return nil
}

// ObjectsToRows converts scene objects to rows, numbering them in order.
func ObjectsToRows(objs []scene.Object) []ObjectRow {
	rows := make([]ObjectRow, len(objs))
	for i, o := range objs {
		row := ObjectRow{
			Seq:     int32(i),
			Name:    o.Name,
			X:       o.X,
			Y:       o.Y,
			MapID:   o.MapID,
			Heading: o.Heading,
			Tags:    o.Tags,
		}
		if row.Tags == nil {
			row.Tags = []string{}
		}
		if o.HasHealth {
			hp, maxHP := o.HP, o.MaxHP
			row.HP, row.MaxHP = &hp, &maxHP
		}
		rows[i] = row
	}
	return rows
}

// RowsToObjects converts rows back to scene objects.
func RowsToObjects(rows []ObjectRow) []scene.Object {
	objs := make([]scene.Object, len(rows))
	for i, r := range rows {
		o := scene.Object{
			Name:    r.Name,
			X:       r.X,
			Y:       r.Y,
			MapID:   r.MapID,
			Heading: r.Heading,
		}
		if len(r.Tags) > 0 {
			o.Tags = r.Tags
		}
		if r.HP != nil && r.MaxHP != nil {
			o.HP, o.MaxHP, o.HasHealth = *r.HP, *r.MaxHP, true
		}
		objs[i] = o
	}
	return objs
}
