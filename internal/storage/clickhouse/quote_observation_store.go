package clickhouse

import (
	"context"
	"fmt"
	"time"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
	"stock-gateway/internal/storage"
)

// QuoteObservationStore implements storage.QuoteObservationStore using
// ClickHouse. Observations are append-only; duplicates collapse via the
// table's ReplacingMergeTree key.
type QuoteObservationStore struct {
	conn *Conn
}

// NewQuoteObservationStore creates a new QuoteObservationStore.
func NewQuoteObservationStore(conn *Conn) *QuoteObservationStore {
	return &QuoteObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteObservationStore = (*QuoteObservationStore)(nil)

// InsertBulk adds multiple observations in a single batch.
func (s *QuoteObservationStore) InsertBulk(ctx context.Context, obs []*domain.QuoteObservation) error {
	if len(obs) == 0 {
		return nil
	}

	start := time.Now()
	err := s.insertBulk(ctx, obs)
	observability.RecordDBQuery("clickhouse", "observation_insert_bulk", time.Since(start).Seconds(), err)
	return err
}

func (s *QuoteObservationStore) insertBulk(ctx context.Context, obs []*domain.QuoteObservation) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quote_observations (
			run_id, symbol, name, price, exchange, page, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		err = batch.Append(
			o.RunID, o.Symbol, o.Name, o.Price, o.Exchange,
			uint32(o.Page), o.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetLatestBySymbol retrieves the most recent observation of symbol.
// Returns ErrNotFound if the symbol was never observed.
func (s *QuoteObservationStore) GetLatestBySymbol(ctx context.Context, symbol string) (*domain.QuoteObservation, error) {
	query := `
		SELECT run_id, symbol, name, price, exchange, page, observed_at
		FROM quote_observations
		WHERE symbol = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, symbol)
	observability.RecordDBQuery("clickhouse", "observation_latest", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query latest observation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate observation rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var o domain.QuoteObservation
	var page uint32
	err = rows.Scan(&o.RunID, &o.Symbol, &o.Name, &o.Price, &o.Exchange, &page, &o.ObservedAt)
	if err != nil {
		return nil, fmt.Errorf("scan observation row: %w", err)
	}
	o.Page = int(page)
	return &o, nil
}

// CountByRun returns the number of observations recorded by one rebuild run.
func (s *QuoteObservationStore) CountByRun(ctx context.Context, runID string) (uint64, error) {
	query := `
		SELECT count(*) FROM quote_observations
		WHERE run_id = ?
	`

	start := time.Now()
	var count uint64
	err := s.conn.QueryRow(ctx, query, runID).Scan(&count)
	observability.RecordDBQuery("clickhouse", "observation_count_by_run", time.Since(start).Seconds(), err)
	if err != nil {
		return 0, fmt.Errorf("count observations by run: %w", err)
	}
	return count, nil
}
