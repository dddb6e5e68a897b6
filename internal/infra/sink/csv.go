package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jinford/seqsearch/internal/core/search"
)

// CSVSink は行ごとに CSV へ追記してフラッシュする
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
}

var _ search.ResultSink = (*CSVSink)(nil)

// NewCSVSink はヘッダー行を書き込んだ CSVSink を作成する。closer は nil でもよい
func NewCSVSink(w io.Writer, closer io.Closer) (*CSVSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	return &CSVSink{w: cw, closer: closer}, nil
}

// CreateCSV は path を作成して CSVSink を返す
func CreateCSV(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s, err := NewCSVSink(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Write は1行を書き込む
func (s *CSVSink) Write(ctx context.Context, row search.ResultRow) error {
	if err := s.w.Write(record(row)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close はバッファをフラッシュしてファイルを閉じる
func (s *CSVSink) Close() error {
	s.w.Flush()
	errs := []error{s.w.Error()}
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
	}
	return errors.Join(errs...)
}
