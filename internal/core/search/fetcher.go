package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxFetchAttempts はレコード取得の最大試行回数（0 は無制限）
	DefaultMaxFetchAttempts = 20

	// DefaultFetchInitialBackoff は再試行間隔の初期値
	DefaultFetchInitialBackoff = 500 * time.Millisecond

	// DefaultFetchMaxBackoff は再試行間隔の上限
	DefaultFetchMaxBackoff = 30 * time.Second

	recordMarker = ">"
)

var errMalformedRecord = errors.New("record text does not start with a record marker")

// RecordFetcher はアクセッションから参照配列を取得する
type RecordFetcher struct {
	client      RecordClient
	maxAttempts int
	newBackOff  func() backoff.BackOff
	logger      *slog.Logger
}

// FetcherOption は RecordFetcher のオプション設定
type FetcherOption func(*RecordFetcher)

// WithFetcherLogger はロガーを設定する
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *RecordFetcher) {
		f.logger = logger
	}
}

// WithMaxFetchAttempts は試行回数の上限を上書きする。0 は無制限
func WithMaxFetchAttempts(n int) FetcherOption {
	return func(f *RecordFetcher) {
		f.maxAttempts = n
	}
}

// WithFetchBackoff は再試行間隔を上書きする
func WithFetchBackoff(initial, max time.Duration) FetcherOption {
	return func(f *RecordFetcher) {
		f.newBackOff = func() backoff.BackOff {
			return newExponentialBackOff(initial, max)
		}
	}
}

// WithFetchBackOffFactory は BackOff の生成処理を差し替える（テスト用）
func WithFetchBackOffFactory(factory func() backoff.BackOff) FetcherOption {
	return func(f *RecordFetcher) {
		f.newBackOff = factory
	}
}

// NewRecordFetcher は新しい RecordFetcher を作成する
func NewRecordFetcher(client RecordClient, opts ...FetcherOption) *RecordFetcher {
	f := &RecordFetcher{
		client:      client,
		maxAttempts: DefaultMaxFetchAttempts,
		newBackOff: func() backoff.BackOff {
			return newExponentialBackOff(DefaultFetchInitialBackoff, DefaultFetchMaxBackoff)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

func newExponentialBackOff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	// 総経過時間では打ち切らない（試行回数で制御する）
	b.MaxElapsedTime = 0
	return b
}

// Fetch はアクセッションを解決してレコードを取得する。レコード本文が不正または空の場合や
// 通信に失敗した場合は2段階の取得をやり直す。解決応答の構造が不正な場合は即座に ErrFetch を返す
func (f *RecordFetcher) Fetch(ctx context.Context, accession string) (Record, error) {
	var (
		record  Record
		attempt int
	)

	operation := func() error {
		attempt++

		session, err := f.client.Lookup(ctx, accession)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			if errors.Is(err, ErrInvalidLookup) {
				return backoff.Permanent(fmt.Errorf("%w: lookup %s: %w", ErrFetch, accession, err))
			}
			return fmt.Errorf("lookup %s: %w", accession, err)
		}
		if session.WebEnv == "" || session.QueryKey == "" {
			return backoff.Permanent(fmt.Errorf("%w: lookup %s: %w: no session", ErrFetch, accession, ErrInvalidLookup))
		}

		text, err := f.client.FetchText(ctx, session)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return backoff.Permanent(ctxErr)
			}
			return fmt.Errorf("fetch %s: %w", accession, err)
		}

		parsed, ok := ParseRecordText(text)
		if !ok {
			return errMalformedRecord
		}
		record = parsed
		return nil
	}

	b := f.newBackOff()
	if f.maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(f.maxAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		f.logger.Warn("レコードを取得できないため再試行します",
			"accession", accession,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Record{}, ctxErr
		}
		if errors.Is(err, ErrFetch) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: %s after %d attempts: %w (last error: %v)", ErrFetch, accession, attempt, ErrRecordUnavailable, err)
	}

	f.logger.Info("参照レコードを取得しました",
		"accession", accession,
		"attempts", attempt,
		"length", len(record.Sequence),
	)

	return record, nil
}

// ParseRecordText は行区切りのレコードテキストを説明行と配列に分ける。
// 先頭行がレコードマーカーで始まらない、または配列が空の場合は false を返す。
// 複数レコードを含む場合は先頭のレコードのみを使う
func ParseRecordText(text string) (Record, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(strings.TrimLeft(text, "\n"), "\n")

	header := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(header, recordMarker) {
		return Record{}, false
	}

	var seq strings.Builder
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, recordMarker) {
			break
		}
		seq.WriteString(line)
	}
	if seq.Len() == 0 {
		return Record{}, false
	}

	return Record{
		Description: strings.TrimSpace(strings.TrimPrefix(header, recordMarker)),
		Sequence:    seq.String(),
	}, true
}
