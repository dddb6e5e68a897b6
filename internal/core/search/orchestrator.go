package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxParseRetries は結果ドキュメントの解析失敗による再投入回数の上限（0 は無制限）
const DefaultMaxParseRetries = 3

// SearchOrchestrator はクエリを1件ずつ最後まで処理し、クエリ単位で失敗を隔離する
type SearchOrchestrator struct {
	poller          *JobPoller
	parser          HitParser
	fetcher         *RecordFetcher
	quarantine      Quarantine
	ranking         RankingConfig
	maxParseRetries int
	runID           uuid.UUID
	now             func() time.Time
	logger          *slog.Logger
}

// OrchestratorOption は SearchOrchestrator のオプション設定
type OrchestratorOption func(*SearchOrchestrator)

// WithOrchestratorLogger はロガーを設定する
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		o.logger = logger
	}
}

// WithMaxParseRetries は解析失敗時の再投入回数の上限を上書きする。0 は無制限
func WithMaxParseRetries(n int) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		o.maxParseRetries = n
	}
}

// WithRunID は実行IDを指定する（省略時は生成する）
func WithRunID(id uuid.UUID) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		o.runID = id
	}
}

// WithClock は現在時刻の取得処理を差し替える
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *SearchOrchestrator) {
		o.now = now
	}
}

// NewSearchOrchestrator は新しい SearchOrchestrator を作成する
func NewSearchOrchestrator(
	poller *JobPoller,
	parser HitParser,
	fetcher *RecordFetcher,
	quarantine Quarantine,
	ranking RankingConfig,
	opts ...OrchestratorOption,
) *SearchOrchestrator {
	o := &SearchOrchestrator{
		poller:          poller,
		parser:          parser,
		fetcher:         fetcher,
		quarantine:      quarantine,
		ranking:         ranking,
		maxParseRetries: DefaultMaxParseRetries,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.runID == uuid.Nil {
		o.runID = uuid.New()
	}
	return o
}

// RunID は実行IDを返す
func (o *SearchOrchestrator) RunID() uuid.UUID {
	return o.runID
}

// Process は1クエリを 投入→待機→解析→ランキング→レコード取得 の順に処理する。
// 解析に失敗した結果は隔離し、同じクエリを新しいジョブで投入し直す
func (o *SearchOrchestrator) Process(ctx context.Context, query SequenceQuery) (ResultRow, error) {
	logger := o.logger.With("label", query.Label)
	parseFailures := 0

	for {
		job, err := o.poller.Submit(ctx, query, o.ranking)
		if err != nil {
			return ResultRow{}, err
		}

		doc, err := o.poller.AwaitReady(ctx, job, query, o.ranking)
		if err != nil {
			return ResultRow{}, err
		}

		hits, err := o.parser.Parse(doc)
		if err != nil {
			if !errors.Is(err, ErrParse) {
				return ResultRow{}, err
			}

			path, qerr := o.quarantine.Save(ctx, QuarantineEntry{
				RunID:    o.runID,
				Label:    query.Label,
				JobID:    job.ID,
				Document: doc,
				Reason:   err.Error(),
			})
			if qerr != nil {
				logger.Error("結果ドキュメントの隔離に失敗しました", "jobID", job.ID, "error", qerr)
			}

			parseFailures++
			logger.Warn("結果ドキュメントを解析できないため再投入します",
				"jobID", job.ID,
				"quarantine", path,
				"parseFailures", parseFailures,
				"error", err,
			)

			if o.maxParseRetries > 0 && parseFailures > o.maxParseRetries {
				return ResultRow{}, fmt.Errorf("%w: %q: %w", ErrParseRetriesExhausted, query.Label, err)
			}
			continue
		}

		best, err := Rank(hits, o.ranking)
		if err != nil {
			return ResultRow{}, err
		}

		logger.Info("最良ヒットを選択しました",
			"jobID", job.ID,
			"hits", len(hits),
			"accession", best.Accession,
			"rankingScore", best.RankingScore,
		)

		record, err := o.fetcher.Fetch(ctx, best.Accession)
		if err != nil {
			return ResultRow{}, err
		}

		return ResultRow{
			QueryLabel:        query.Label,
			QueryRawText:      query.RawText,
			ReferenceName:     record.Description,
			ReferenceSequence: record.Sequence,
			Accession:         best.Accession,
			RankingScore:      best.RankingScore,
			BitScore:          best.BitScore,
			RawScore:          best.RawScore,
			Identity:          best.Identity,
			HitFrom:           best.HitFrom,
			HitTo:             best.HitTo,
			EValue:            best.EValue,
			JobID:             job.ID,
			CompletedAt:       o.now(),
		}, nil
	}
}

// Run は入力順に全クエリを処理し、得られた行を sink に追記する。
// クエリ単位の失敗は記録して次へ進む。コンテキストのキャンセル、入力の読み込み失敗、
// 出力の書き込み失敗のみ実行全体を中断する
func (o *SearchOrchestrator) Run(ctx context.Context, source QuerySource, sink ResultSink) (RunSummary, error) {
	start := o.now()
	summary := RunSummary{RunID: o.runID}

	o.logger.Info("検索処理を開始します", "runID", o.runID, "database", o.ranking.Database)

	for {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = o.now().Sub(start)
			return summary, err
		}

		query, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			summary.Elapsed = o.now().Sub(start)
			return summary, fmt.Errorf("failed to read query: %w", err)
		}

		summary.Total++

		row, err := o.Process(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				summary.Elapsed = o.now().Sub(start)
				return summary, ctx.Err()
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, QueryFailure{Label: query.Label, Err: err})
			o.logger.Error("クエリの処理に失敗しました", "label", query.Label, "error", err)
			continue
		}

		if err := sink.Write(ctx, row); err != nil {
			summary.Elapsed = o.now().Sub(start)
			return summary, fmt.Errorf("failed to write result for %q: %w", query.Label, err)
		}
		summary.Succeeded++
	}

	summary.Elapsed = o.now().Sub(start)

	o.logger.Info("検索処理が完了しました",
		"runID", o.runID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed,
	)

	return summary, nil
}
