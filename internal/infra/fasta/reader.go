package fasta

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jinford/seqsearch/internal/core/search"
)

// maxLine は1行の最大長（改行なしの長い配列を許容する）
const maxLine = 64 * 1024 * 1024

// ErrInvalidFASTA はヘッダー行より前に配列行がある場合のエラー
var ErrInvalidFASTA = errors.New("invalid FASTA input")

// Reader は FASTA 形式の入力を1レコードずつ search.SequenceQuery として返す
type Reader struct {
	sc      *bufio.Scanner
	header  string
	line    int
	started bool
	done    bool
}

var _ search.QuerySource = (*Reader)(nil)

// NewReader は新しい Reader を作成する
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Next は次のレコードを返す。配列が空のレコードは読み飛ばす。終端では io.EOF を返す
func (r *Reader) Next() (search.SequenceQuery, error) {
	for !r.done {
		q, ok, err := r.readRecord()
		if err != nil {
			return search.SequenceQuery{}, err
		}
		if ok {
			return q, nil
		}
	}
	return search.SequenceQuery{}, io.EOF
}

func (r *Reader) readRecord() (search.SequenceQuery, bool, error) {
	var (
		raw strings.Builder
		seq strings.Builder
	)

	if r.started {
		raw.WriteString(">" + r.header)
	}

	for r.sc.Scan() {
		r.line++
		line := strings.TrimRight(r.sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, ">") {
			if !r.started {
				r.started = true
				r.header = strings.TrimSpace(trimmed[1:])
				raw.WriteString(">" + r.header)
				continue
			}
			q, ok := r.build(raw.String(), seq.String())
			r.header = strings.TrimSpace(trimmed[1:])
			return q, ok, nil
		}

		if trimmed == "" {
			continue
		}
		if !r.started {
			return search.SequenceQuery{}, false, fmt.Errorf("%w: line %d: sequence data before the first header", ErrInvalidFASTA, r.line)
		}

		raw.WriteString("\n" + line)
		seq.WriteString(residues(trimmed))
	}

	if err := r.sc.Err(); err != nil {
		return search.SequenceQuery{}, false, fmt.Errorf("failed to read FASTA: %w", err)
	}

	r.done = true
	if !r.started {
		return search.SequenceQuery{}, false, nil
	}
	q, ok := r.build(raw.String(), seq.String())
	return q, ok, nil
}

func (r *Reader) build(raw, seq string) (search.SequenceQuery, bool) {
	if seq == "" {
		return search.SequenceQuery{}, false
	}
	return search.SequenceQuery{
		Label:    r.header,
		Sequence: seq,
		RawText:  raw,
	}, true
}

// residues は配列行から残基文字以外（空白や番号など）を取り除く
func residues(line string) string {
	return strings.Map(func(c rune) rune {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			return c
		}
		return -1
	}, line)
}

// File はファイルから開いた Reader
type File struct {
	*Reader
	closers []io.Closer
}

// Open は path を開いて Reader を返す。"-" は標準入力を表す。
// gzip 圧縮されたファイルは自動で展開する
func Open(path string) (*File, error) {
	if path == "-" {
		return &File{Reader: NewReader(os.Stdin)}, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var sig [2]byte
	n, _ := io.ReadFull(fh, sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}

	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		return &File{Reader: NewReader(gr), closers: []io.Closer{gr, fh}}, nil
	}

	return &File{Reader: NewReader(fh), closers: []io.Closer{fh}}, nil
}

// Close は開いたファイルを閉じる
func (f *File) Close() error {
	var err error
	for _, c := range f.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
