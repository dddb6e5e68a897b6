package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/jinford/seqsearch/internal/platform/database"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS search_runs (
    run_id      UUID PRIMARY KEY,
    database    TEXT        NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at TIMESTAMPTZ,
    total       INTEGER,
    succeeded   INTEGER,
    failed      INTEGER
);

CREATE TABLE IF NOT EXISTS search_results (
    id                 BIGSERIAL PRIMARY KEY,
    run_id             UUID             NOT NULL REFERENCES search_runs (run_id) ON DELETE CASCADE,
    query_label        TEXT             NOT NULL,
    query_raw_text     TEXT             NOT NULL,
    reference_name     TEXT             NOT NULL,
    reference_sequence TEXT             NOT NULL,
    accession          TEXT             NOT NULL,
    ranking_score      DOUBLE PRECISION NOT NULL,
    bit_score          DOUBLE PRECISION NOT NULL,
    raw_score          INTEGER          NOT NULL,
    identity           INTEGER          NOT NULL,
    hit_from           INTEGER          NOT NULL,
    hit_to             INTEGER          NOT NULL,
    evalue             DOUBLE PRECISION NOT NULL,
    job_id             TEXT             NOT NULL,
    completed_at       TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_results_run_id ON search_results (run_id);
`

const postgresInsert = `
INSERT INTO search_results (
    run_id, query_label, query_raw_text, reference_name, reference_sequence, accession,
    ranking_score, bit_score, raw_score, identity, hit_from, hit_to, evalue, job_id, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Finisher は実行終了時に集計を記録できる出力先
type Finisher interface {
	Finish(ctx context.Context, summary search.RunSummary) error
}

// PostgresSink は結果を PostgreSQL のテーブルに追記する
type PostgresSink struct {
	pool     *pgxpool.Pool
	runID    uuid.UUID
	ownsPool bool
}

var (
	_ search.ResultSink = (*PostgresSink)(nil)
	_ Finisher          = (*PostgresSink)(nil)
)

// PostgresOption は PostgresSink のオプション設定
type PostgresOption func(*PostgresSink)

// WithOwnedPool は Close 時に接続プールも閉じる
func WithOwnedPool() PostgresOption {
	return func(s *PostgresSink) {
		s.ownsPool = true
	}
}

// NewPostgresSink はスキーマを作成し、実行レコードを登録する。
// 複数の実行が同時に初期化してもよいようにアドバイザリロックで直列化する
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, db string, opts ...PostgresOption) (*PostgresSink, error) {
	_, err := database.Transact(ctx, pool, func(tx pgx.Tx) (struct{}, error) {
		if err := database.AcquireXactLock(ctx, tx, database.LockID("seqsearch", "schema")); err != nil {
			return struct{}{}, err
		}
		if _, err := tx.Exec(ctx, postgresSchema); err != nil {
			return struct{}{}, fmt.Errorf("failed to create schema: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO search_runs (run_id, database) VALUES ($1, $2)`, runID, db); err != nil {
			return struct{}{}, fmt.Errorf("failed to register run: %w", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	s := &PostgresSink{pool: pool, runID: runID}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write は1行を挿入する
func (s *PostgresSink) Write(ctx context.Context, row search.ResultRow) error {
	_, err := s.pool.Exec(ctx, postgresInsert,
		s.runID,
		row.QueryLabel,
		row.QueryRawText,
		row.ReferenceName,
		row.ReferenceSequence,
		row.Accession,
		row.RankingScore,
		row.BitScore,
		row.RawScore,
		row.Identity,
		row.HitFrom,
		row.HitTo,
		row.EValue,
		row.JobID,
		row.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for %q: %w", row.QueryLabel, err)
	}
	return nil
}

// Finish は実行レコードに集計を書き込む
func (s *PostgresSink) Finish(ctx context.Context, summary search.RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE search_runs SET finished_at = now(), total = $2, succeeded = $3, failed = $4 WHERE run_id = $1`,
		s.runID, summary.Total, summary.Succeeded, summary.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", s.runID, err)
	}
	return nil
}

// Close は WithOwnedPool を指定した場合のみ接続プールを閉じる
func (s *PostgresSink) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
