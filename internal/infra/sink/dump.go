package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jinford/seqsearch/internal/core/search"
)

// dumpLineWidth は参照配列を折り返す桁数
const dumpLineWidth = 70

// TextDumpSink はクエリと参照配列を FASTA 形式で並べたテキストを書き出す
type TextDumpSink struct {
	w      *bufio.Writer
	closer io.Closer
}

var _ search.ResultSink = (*TextDumpSink)(nil)

// NewTextDumpSink は新しい TextDumpSink を作成する。closer は nil でもよい
func NewTextDumpSink(w io.Writer, closer io.Closer) *TextDumpSink {
	return &TextDumpSink{w: bufio.NewWriter(w), closer: closer}
}

// CreateTextDump は path を作成して TextDumpSink を返す
func CreateTextDump(path string) (*TextDumpSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return NewTextDumpSink(f, f), nil
}

// Write はクエリの元テキストの後に参照レコードを書き、空行で区切る
func (s *TextDumpSink) Write(ctx context.Context, row search.ResultRow) error {
	var b strings.Builder

	raw := strings.TrimRight(row.QueryRawText, "\n")
	if raw == "" {
		raw = ">" + row.QueryLabel
	}
	b.WriteString(raw)
	b.WriteString("\n")

	AppendFASTA(&b, row.ReferenceName, row.ReferenceSequence)
	b.WriteString("\n")

	if _, err := s.w.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}
	return s.w.Flush()
}

// AppendFASTA は header と配列を FASTA 形式で b に追記する
func AppendFASTA(b *strings.Builder, header, sequence string) {
	b.WriteString(">" + header + "\n")
	for seq := sequence; len(seq) > 0; {
		n := min(dumpLineWidth, len(seq))
		b.WriteString(seq[:n] + "\n")
		seq = seq[n:]
	}
}

// Close はバッファをフラッシュしてファイルを閉じる
func (s *TextDumpSink) Close() error {
	errs := []error{s.w.Flush()}
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
	}
	return errors.Join(errs...)
}
