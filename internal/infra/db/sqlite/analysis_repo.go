package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
)

// timeLayout is RFC 3339 with fixed nanosecond width. Fixed width keeps the
// stored TEXT column lexicographically ordered by instant, so ORDER BY on the
// column matches the listing invariant.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AnalysisRepository persists analyses to a local sqlite file. Schema
// creation is lazy and happens exactly once per repository instance through
// initOnce, which is distinct from the per-operation data lock so concurrent
// first callers never race to create the tables twice.
type AnalysisRepository struct {
	db    *sql.DB
	clock domain.Clock

	initOnce sync.Once
	initErr  error

	mu             sync.Mutex
	nextAnalysisID domain.AnalysisID
	nextItemID     domain.ItemID
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db, clock: domain.SystemClock{}}
}

func (r *AnalysisRepository) ensureSchema(ctx context.Context) error {
	r.initOnce.Do(func() {
		r.initErr = r.createSchema(ctx)
	})
	return r.initErr
}

func (r *AnalysisRepository) createSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS analysis (
	id          INTEGER PRIMARY KEY,
	snapshot_id INTEGER NOT NULL,
	created_at  TEXT    NOT NULL,
	author      TEXT    NOT NULL,
	title       TEXT    NOT NULL,
	notes       TEXT
);

CREATE TABLE IF NOT EXISTS analysis_item (
	id          INTEGER PRIMARY KEY,
	analysis_id INTEGER NOT NULL REFERENCES analysis(id) ON DELETE CASCADE,
	label       TEXT    NOT NULL,
	score       INTEGER NOT NULL,
	payload     TEXT
);

CREATE TABLE IF NOT EXISTS store_meta (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	next_analysis_id INTEGER NOT NULL,
	next_item_id     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_analysis_snapshot_id ON analysis(snapshot_id);
CREATE INDEX IF NOT EXISTS ix_analysis_item_analysis_id ON analysis_item(analysis_id);
`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: create schema: %w", domain.ErrStorage, err)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO store_meta (id, next_analysis_id, next_item_id) VALUES (1, 1, 1)
		 ON CONFLICT (id) DO NOTHING`); err != nil {
		return fmt.Errorf("%w: seed counters: %w", domain.ErrStorage, err)
	}
	return r.loadCounters(ctx)
}

// loadCounters restores the id counters from store_meta, clamped above any
// existing row in case the meta row lags behind the data.
func (r *AnalysisRepository) loadCounters(ctx context.Context) error {
	var nextAnalysis, nextItem int64
	err := r.db.QueryRowContext(ctx,
		`SELECT next_analysis_id, next_item_id FROM store_meta WHERE id = 1`).
		Scan(&nextAnalysis, &nextItem)
	if err != nil {
		return fmt.Errorf("%w: load counters: %w", domain.ErrStorage, err)
	}

	var maxAnalysis, maxItem int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM analysis`).Scan(&maxAnalysis); err != nil {
		return fmt.Errorf("%w: load max analysis id: %w", domain.ErrStorage, err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM analysis_item`).Scan(&maxItem); err != nil {
		return fmt.Errorf("%w: load max item id: %w", domain.ErrStorage, err)
	}

	if nextAnalysis <= maxAnalysis {
		nextAnalysis = maxAnalysis + 1
	}
	if nextItem <= maxItem {
		nextItem = maxItem + 1
	}
	r.nextAnalysisID = domain.AnalysisID(nextAnalysis)
	r.nextItemID = domain.ItemID(nextItem)
	return nil
}

func (r *AnalysisRepository) CreateAnalysis(ctx context.Context, in domain.NewAnalysis) (*domain.Analysis, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	record := &domain.Analysis{
		ID:         r.nextAnalysisID,
		SnapshotID: in.SnapshotID,
		Author:     in.Author,
		Title:      in.Title,
		Notes:      in.Notes,
		CreatedAt:  r.clock.Now().UTC(),
		Items:      make([]domain.Item, 0, len(in.Items)),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analysis (id, snapshot_id, created_at, author, title, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(record.ID), record.SnapshotID, record.CreatedAt.Format(timeLayout),
		record.Author, record.Title, nullableText(record.Notes),
	); err != nil {
		return nil, fmt.Errorf("%w: insert analysis: %w", domain.ErrStorage, err)
	}

	nextItem := r.nextItemID
	for _, item := range in.Items {
		payload, err := marshalPayload(item.Payload)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_item (id, analysis_id, label, score, payload)
			 VALUES (?, ?, ?, ?, ?)`,
			int64(nextItem), int64(record.ID), item.Label, item.Score, payload,
		); err != nil {
			return nil, fmt.Errorf("%w: insert item: %w", domain.ErrStorage, err)
		}
		record.Items = append(record.Items, domain.Item{
			ID:         nextItem,
			AnalysisID: record.ID,
			Label:      item.Label,
			Score:      item.Score,
			Payload:    item.Payload,
		})
		nextItem++
	}

	if err := persistCounters(ctx, tx, record.ID+1, nextItem); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}

	r.nextAnalysisID = record.ID + 1
	r.nextItemID = nextItem
	return record, nil
}

func (r *AnalysisRepository) GetAnalysis(ctx context.Context, id domain.AnalysisID) (*domain.Analysis, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, created_at, author, title, notes
		 FROM analysis WHERE id = ? LIMIT 1`, int64(id))
	record, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: analysis %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, map[domain.AnalysisID]*domain.Analysis{record.ID: record}, []int64{int64(record.ID)}); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *AnalysisRepository) ListAnalysis(ctx context.Context, snapshotID *int64) ([]*domain.Analysis, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(ctx, snapshotID)
}

// listLocked reads headers and items in two round trips: one header query,
// then one batched item query keyed by the header ids just fetched.
func (r *AnalysisRepository) listLocked(ctx context.Context, snapshotID *int64) ([]*domain.Analysis, error) {
	q := `SELECT id, snapshot_id, created_at, author, title, notes FROM analysis`
	var args []any
	if snapshotID != nil {
		q += ` WHERE snapshot_id = ?`
		args = append(args, *snapshotID)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query analysis: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	out := make([]*domain.Analysis, 0)
	byID := make(map[domain.AnalysisID]*domain.Analysis)
	var ids []int64
	for rows.Next() {
		record, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
		byID[record.ID] = record
		ids = append(ids, int64(record.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate analysis: %w", domain.ErrStorage, err)
	}

	if err := r.attachItems(ctx, byID, ids); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnalysisRepository) attachItems(ctx context.Context, byID map[domain.AnalysisID]*domain.Analysis, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, analysis_id, label, score, payload FROM analysis_item
		 WHERE analysis_id IN (`+placeholders+`) ORDER BY analysis_id, id`, args...)
	if err != nil {
		return fmt.Errorf("%w: query items: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item       domain.Item
			analysisID int64
			payload    sql.NullString
		)
		if err := rows.Scan(&item.ID, &analysisID, &item.Label, &item.Score, &payload); err != nil {
			return fmt.Errorf("%w: scan item: %w", domain.ErrStorage, err)
		}
		item.AnalysisID = domain.AnalysisID(analysisID)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &item.Payload); err != nil {
				return fmt.Errorf("%w: decode item payload: %w", domain.ErrStorage, err)
			}
		}
		if parent, ok := byID[item.AnalysisID]; ok {
			parent.Items = append(parent.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate items: %w", domain.ErrStorage, err)
	}
	return nil
}

func (r *AnalysisRepository) Clear(ctx context.Context) error {
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_item`); err != nil {
		return fmt.Errorf("%w: clear items: %w", domain.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis`); err != nil {
		return fmt.Errorf("%w: clear analysis: %w", domain.ErrStorage, err)
	}
	if err := persistCounters(ctx, tx, 1, 1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}

	r.nextAnalysisID = 1
	r.nextItemID = 1
	return nil
}

func (r *AnalysisRepository) ExportState(ctx context.Context) (*domain.State, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.listLocked(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &domain.State{
		NextAnalysisID: r.nextAnalysisID,
		NextItemID:     r.nextItemID,
		Analysis:       records,
	}, nil
}

func (r *AnalysisRepository) ImportState(ctx context.Context, state *domain.State) error {
	if err := domain.ValidateState(state); err != nil {
		return err
	}
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_item`); err != nil {
		return fmt.Errorf("%w: clear items: %w", domain.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis`); err != nil {
		return fmt.Errorf("%w: clear analysis: %w", domain.ErrStorage, err)
	}

	for _, a := range state.Analysis {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analysis (id, snapshot_id, created_at, author, title, notes)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			int64(a.ID), a.SnapshotID, a.CreatedAt.UTC().Format(timeLayout),
			a.Author, a.Title, nullableText(a.Notes),
		); err != nil {
			return fmt.Errorf("%w: import analysis %d: %w", domain.ErrStorage, a.ID, err)
		}
		for _, item := range a.Items {
			payload, err := marshalPayload(item.Payload)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO analysis_item (id, analysis_id, label, score, payload)
				 VALUES (?, ?, ?, ?, ?)`,
				int64(item.ID), int64(a.ID), item.Label, item.Score, payload,
			); err != nil {
				return fmt.Errorf("%w: import item %d: %w", domain.ErrStorage, item.ID, err)
			}
		}
	}

	if err := persistCounters(ctx, tx, state.NextAnalysisID, state.NextItemID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}

	r.nextAnalysisID = state.NextAnalysisID
	r.nextItemID = state.NextItemID
	return nil
}

func (r *AnalysisRepository) Close() error { return r.db.Close() }

func persistCounters(ctx context.Context, tx *sql.Tx, nextAnalysis domain.AnalysisID, nextItem domain.ItemID) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE store_meta SET next_analysis_id = ?, next_item_id = ? WHERE id = 1`,
		int64(nextAnalysis), int64(nextItem)); err != nil {
		return fmt.Errorf("%w: persist counters: %w", domain.ErrStorage, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var (
		record    domain.Analysis
		createdAt string
		notes     sql.NullString
	)
	if err := row.Scan(&record.ID, &record.SnapshotID, &createdAt, &record.Author, &record.Title, &notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan analysis: %w", domain.ErrStorage, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: parse created_at %q: %w", domain.ErrStorage, createdAt, err)
	}
	record.CreatedAt = ts.UTC()
	if notes.Valid {
		record.Notes = &notes.String
	}
	record.Items = make([]domain.Item, 0)
	return &record, nil
}

func marshalPayload(payload map[string]any) (sql.NullString, error) {
	if payload == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: items payload is not JSON-serializable: %v", domain.ErrValidation, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

var _ domain.Repository = (*AnalysisRepository)(nil)
