package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval はステータス問い合わせの間隔
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxPollAttempts はこの回数ポーリングしても READY にならなければ再投入する
	DefaultMaxPollAttempts = 40

	// DefaultMaxResubmissions は1クエリあたりの再投入回数の上限（0 は無制限）
	DefaultMaxResubmissions = 10
)

// JobPoller は1クエリ分のリモートジョブのライフサイクルを管理する
type JobPoller struct {
	client           SearchClient
	sleeper          Sleeper
	interval         time.Duration
	maxAttempts      int
	maxResubmissions int
	failedIsTerminal bool
	logger           *slog.Logger
}

// PollerOption は JobPoller のオプション設定
type PollerOption func(*JobPoller)

// WithPollerLogger はロガーを設定する
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *JobPoller) {
		p.logger = logger
	}
}

// WithPollInterval はポーリング間隔を上書きする
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *JobPoller) {
		p.interval = d
	}
}

// WithMaxPollAttempts は再投入までのポーリング回数を上書きする
func WithMaxPollAttempts(n int) PollerOption {
	return func(p *JobPoller) {
		p.maxAttempts = n
	}
}

// WithMaxResubmissions は再投入回数の上限を上書きする。0 は無制限
func WithMaxResubmissions(n int) PollerOption {
	return func(p *JobPoller) {
		p.maxResubmissions = n
	}
}

// WithFailedAsTerminal は FAILED を観測した時点で即座に再投入するかどうかを設定する
func WithFailedAsTerminal(enabled bool) PollerOption {
	return func(p *JobPoller) {
		p.failedIsTerminal = enabled
	}
}

// WithPollerSleeper は待機処理を差し替える
func WithPollerSleeper(s Sleeper) PollerOption {
	return func(p *JobPoller) {
		p.sleeper = s
	}
}

// NewJobPoller は新しい JobPoller を作成する
func NewJobPoller(client SearchClient, opts ...PollerOption) *JobPoller {
	p := &JobPoller{
		client:           client,
		sleeper:          timerSleeper{},
		interval:         DefaultPollInterval,
		maxAttempts:      DefaultMaxPollAttempts,
		maxResubmissions: DefaultMaxResubmissions,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxPollAttempts
	}
	return p
}

// Submit は配列と検索対象データベースを検索サービスへ投入する
func (p *JobPoller) Submit(ctx context.Context, query SequenceQuery, cfg RankingConfig) (*Job, error) {
	sub, err := p.client.Submit(ctx, SubmitRequest{
		Database: cfg.Database,
		Sequence: query.Sequence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit %q: %w", query.Label, err)
	}
	if sub.JobID == "" || sub.EstimatedWaitSeconds < 0 {
		return nil, fmt.Errorf("%w: response for %q has no job id or estimated time", ErrSubmission, query.Label)
	}

	job := &Job{
		ID:            sub.JobID,
		EstimatedWait: time.Duration(sub.EstimatedWaitSeconds) * time.Second,
		Status:        JobStatusWaiting,
	}

	p.logger.Info("検索ジョブを投入しました",
		"label", query.Label,
		"jobID", job.ID,
		"estimatedWait", job.EstimatedWait,
	)

	return job, nil
}

// AwaitReady は推定時間だけ待機した後ステータスをポーリングし、READY になったジョブの
// 結果ドキュメントを返す。ポーリング回数が上限に達した場合は再投入して待機を続ける
func (p *JobPoller) AwaitReady(ctx context.Context, job *Job, query SequenceQuery, cfg RankingConfig) ([]byte, error) {
	if err := p.sleeper.Sleep(ctx, job.EstimatedWait); err != nil {
		return nil, err
	}

	for {
		status, err := p.client.Status(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// 問い合わせ自体の失敗は失効扱い
			p.logger.Warn("ステータス取得に失敗しました", "jobID", job.ID, "error", err)
			status = JobStatusUnknown
		}
		if status == JobStatusNoMatch {
			p.logger.Warn("ステータス応答を解釈できません", "jobID", job.ID)
			status = JobStatusUnknown
		}

		job.PollAttempts++
		job.Status = status

		p.logger.Debug("ジョブのステータスを確認しました",
			"jobID", job.ID,
			"status", status,
			"attempt", job.PollAttempts,
		)

		if status == JobStatusReady {
			doc, err := p.client.Result(ctx, job.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch result for job %s: %w", job.ID, err)
			}
			return doc, nil
		}

		if status == JobStatusFailed && p.failedIsTerminal {
			if err := p.resubmit(ctx, job, query, cfg, "failed"); err != nil {
				return nil, err
			}
			continue
		}

		if job.PollAttempts >= p.maxAttempts {
			if err := p.resubmit(ctx, job, query, cfg, "poll attempts exhausted"); err != nil {
				return nil, err
			}
			continue
		}

		if err := p.sleeper.Sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
}

// resubmit は新しいジョブIDを取得し、ポーリング回数をリセットして推定時間だけ待機する
func (p *JobPoller) resubmit(ctx context.Context, job *Job, query SequenceQuery, cfg RankingConfig, reason string) error {
	if p.maxResubmissions > 0 && job.Resubmissions >= p.maxResubmissions {
		return fmt.Errorf("%w: %q gave up after %d resubmissions (last job %s)",
			ErrResubmissionsExhausted, query.Label, job.Resubmissions, job.ID)
	}

	next, err := p.Submit(ctx, query, cfg)
	if err != nil {
		return err
	}

	p.logger.Warn("ジョブを再投入しました",
		"label", query.Label,
		"previousJobID", job.ID,
		"jobID", next.ID,
		"reason", reason,
		"resubmissions", job.Resubmissions+1,
	)

	job.ID = next.ID
	job.EstimatedWait = next.EstimatedWait
	job.Status = next.Status
	job.PollAttempts = 0
	job.Resubmissions++

	return p.sleeper.Sleep(ctx, job.EstimatedWait)
}
