package sink

import (
	"context"
	"errors"

	"github.com/jinford/seqsearch/internal/core/search"
)

// Multi は複数の出力先へ同じ行を順に書き込む
type Multi []search.ResultSink

var _ search.ResultSink = Multi(nil)

// Write は最初に失敗した出力先のエラーを返す
func (m Multi) Write(ctx context.Context, row search.ResultRow) error {
	for _, s := range m {
		if err := s.Write(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Finish は Finisher を実装する出力先に集計を渡す
func (m Multi) Finish(ctx context.Context, summary search.RunSummary) error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Finisher); ok {
			if err := f.Finish(ctx, summary); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close はすべての出力先を閉じる
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
