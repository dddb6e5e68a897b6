package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/seqsearch/internal/core/search"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS search_results (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id             TEXT    NOT NULL,
    query_label        TEXT    NOT NULL,
    query_raw_text     TEXT    NOT NULL,
    reference_name     TEXT    NOT NULL,
    reference_sequence TEXT    NOT NULL,
    accession          TEXT    NOT NULL,
    ranking_score      REAL    NOT NULL,
    bit_score          REAL    NOT NULL,
    raw_score          INTEGER NOT NULL,
    identity           INTEGER NOT NULL,
    hit_from           INTEGER NOT NULL,
    hit_to             INTEGER NOT NULL,
    evalue             REAL    NOT NULL,
    job_id             TEXT    NOT NULL,
    completed_at       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_results_run_id ON search_results (run_id);
`

const sqliteInsert = `
INSERT INTO search_results (
    run_id, query_label, query_raw_text, reference_name, reference_sequence, accession,
    ranking_score, bit_score, raw_score, identity, hit_from, hit_to, evalue, job_id, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink は結果を SQLite のテーブルに追記する
type SQLiteSink struct {
	db    *sql.DB
	runID uuid.UUID
}

var _ search.ResultSink = (*SQLiteSink)(nil)

// OpenSQLite はデータベースファイルを開き、テーブルがなければ作成する
func OpenSQLite(ctx context.Context, path string, runID uuid.UUID) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// 書き込みは常に1接続から行う
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLiteSink{db: db, runID: runID}, nil
}

// Write は1行を挿入する
func (s *SQLiteSink) Write(ctx context.Context, row search.ResultRow) error {
	_, err := s.db.ExecContext(ctx, sqliteInsert,
		s.runID.String(),
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
		row.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for %q: %w", row.QueryLabel, err)
	}
	return nil
}

// Close はデータベースを閉じる
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
