package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/pkg/database"
)

// opsPerRecord is the number of batched statements one upserted record
// costs: the delete of its previous version and the insert.
const opsPerRecord = 2

// DocumentRepository implements repository.DocumentRepository using one
// PostgreSQL table per collection with JSONB payloads.
type DocumentRepository struct {
	db     database.DBTX
	maxOps int
}

// NewDocumentRepository creates a document repository that sends at most
// maxOps statements per batch.
func NewDocumentRepository(db database.DBTX, maxOps int) *DocumentRepository {
	if maxOps < 1 {
		maxOps = 1
	}
	return &DocumentRepository{db: db, maxOps: maxOps}
}

type docRow struct {
	email    string
	day      string
	sourceID string
	payload  []byte
}

const latestDayQuery = `SELECT COALESCE(MAX(day), '') FROM display_info WHERE email = $1`

// LatestDay returns the greatest display day of the user, or domain.EpochDay.
func (r *DocumentRepository) LatestDay(ctx context.Context, email string) (_ string, err error) {
	ctx, end := database.TraceQuery(ctx, "LatestDay", latestDayQuery)
	defer func() { end(err) }()

	var day string
	if err = r.db.QueryRow(ctx, latestDayQuery, email).Scan(&day); err != nil {
		return "", fmt.Errorf("query latest day: %w", err)
	}
	if day == "" {
		return domain.EpochDay, nil
	}
	return day, nil
}

const listDisplayQuery = `SELECT payload FROM display_info WHERE email = $1 ORDER BY day DESC`

// ListDisplay returns the stored display rows of the user, most recent first.
func (r *DocumentRepository) ListDisplay(ctx context.Context, email string) (_ []domain.DisplayRecord, err error) {
	ctx, end := database.TraceQuery(ctx, "ListDisplay", listDisplayQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listDisplayQuery, email)
	if err != nil {
		return nil, fmt.Errorf("query display rows: %w", err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan display rows: %w", err)
	}

	records := make([]domain.DisplayRecord, 0, len(payloads))
	for _, p := range payloads {
		var rec domain.DisplayRecord
		if err = json.Unmarshal(p, &rec); err != nil {
			return nil, fmt.Errorf("decode display row: %w", err)
		}
		records = append(records, rec)
	}
	domain.SortByDayDesc(records)
	return records, nil
}

// UpsertDisplay replaces the display row of each (email, day).
func (r *DocumentRepository) UpsertDisplay(ctx context.Context, records []domain.DisplayRecord) error {
	rows := make([]docRow, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode display row %s: %w", rec.Day, err)
		}
		rows = append(rows, docRow{email: rec.Email, day: rec.Day, payload: payload})
	}
	return r.upsert(ctx, domain.CollectionDisplay, rows, false)
}

// UpsertRaw replaces the raw documents of a series. Main series documents are
// keyed by (email, day, provider id) so several sleep periods of one day are
// kept; every other series by (email, day).
func (r *DocumentRepository) UpsertRaw(ctx context.Context, series domain.Series, records []domain.RawRecord) error {
	rows := make([]docRow, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encode %s document %s: %w", series, rec.Day, err)
		}
		rows = append(rows, docRow{email: rec.Email, day: rec.Day, sourceID: rec.SourceID, payload: payload})
	}
	return r.upsert(ctx, series.Collection(), rows, series == domain.SeriesMain)
}

func (r *DocumentRepository) upsert(ctx context.Context, collection domain.Collection, rows []docRow, bySource bool) (err error) {
	if !collection.Valid() {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if len(rows) == 0 {
		return nil
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE email = $1 AND day = $2`, collection)
	if bySource {
		deleteQuery += ` AND source_id = $3`
	}
	insertQuery := fmt.Sprintf(`INSERT INTO %s (id, email, day, source_id, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`, collection)

	ctx, end := database.TraceQuery(ctx, "Upsert", insertQuery)
	defer func() { end(err) }()

	perBatch := max(r.maxOps/opsPerRecord, 1)
	now := time.Now().UTC()
	for start := 0; start < len(rows); start += perBatch {
		stop := min(start+perBatch, len(rows))

		batch := &pgx.Batch{}
		for _, row := range rows[start:stop] {
			if bySource {
				batch.Queue(deleteQuery, row.email, row.day, row.sourceID)
			} else {
				batch.Queue(deleteQuery, row.email, row.day)
			}
			batch.Queue(insertQuery, uuid.NewString(), row.email, row.day, row.sourceID, row.payload, now)
		}

		if err = r.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("upsert %s records %d-%d: %w", collection, start, stop-1, err)
		}
	}
	return nil
}

// sendBatch runs a batch in its own transaction and commits it.
func (r *DocumentRepository) sendBatch(ctx context.Context, batch *pgx.Batch) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err = br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err = br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteByEmail removes every row of the user from collection, deleting the
// selected ids in chunks of at most maxOps.
func (r *DocumentRepository) DeleteByEmail(ctx context.Context, collection domain.Collection, email string) (_ int64, err error) {
	if !collection.Valid() {
		return 0, fmt.Errorf("unknown collection %q", collection)
	}

	selectQuery := fmt.Sprintf(`SELECT id::text FROM %s WHERE email = $1`, collection)
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1::uuid[])`, collection)

	ctx, end := database.TraceQuery(ctx, "DeleteByEmail", selectQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectQuery, email)
	if err != nil {
		return 0, fmt.Errorf("select %s ids: %w", collection, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("scan %s ids: %w", collection, err)
	}

	var deleted int64
	for start := 0; start < len(ids); start += r.maxOps {
		stop := min(start+r.maxOps, len(ids))
		ct, execErr := r.db.Exec(ctx, deleteQuery, ids[start:stop])
		if execErr != nil {
			return deleted, fmt.Errorf("delete %s ids %d-%d: %w", collection, start, stop-1, execErr)
		}
		deleted += ct.RowsAffected()
	}
	return deleted, nil
}
