package quarantine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/seqsearch/internal/core/search"
)

// IndexFileName は隔離記録の索引ファイル名
const IndexFileName = "quarantine.jsonl"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// IndexRecord は索引ファイルの1行
type IndexRecord struct {
	// Timestamp は隔離した時刻
	Timestamp time.Time `json:"timestamp"`
	// RunID は実行ID
	RunID uuid.UUID `json:"run_id"`
	// Label はクエリのラベル
	Label string `json:"label"`
	// JobID は解析できなかった結果のジョブID
	JobID string `json:"job_id"`
	// Path は保存した結果ドキュメントのパス
	Path string `json:"path"`
	// Bytes はドキュメントのサイズ
	Bytes int `json:"bytes"`
	// Reason は解析エラーのメッセージ
	Reason string `json:"reason"`
}

// Store は解析できなかった結果ドキュメントをディレクトリに保存する search.Quarantine の実装
type Store struct {
	dir   string
	index *os.File
	mu    sync.Mutex
	now   func() time.Time
}

var _ search.Quarantine = (*Store)(nil)

// Option は Store のオプション設定
type Option func(*Store)

// WithClock は現在時刻の取得処理を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore はディレクトリを作成し、索引ファイルを追記モードで開く
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("quarantine directory is empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create quarantine directory: %w", err)
	}

	index, err := os.OpenFile(filepath.Join(dir, IndexFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open quarantine index: %w", err)
	}

	s := &Store{dir: dir, index: index, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir は保存先ディレクトリを返す
func (s *Store) Dir() string {
	return s.dir
}

// Save はドキュメントを <ラベル>_<ジョブID>.xml として保存し、索引に1行追記する。
// 同じクエリが何度失敗してもジョブIDが異なるため上書きしない
func (s *Store) Save(ctx context.Context, entry search.QuarantineEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, FileName(entry.Label, entry.JobID))
	if err := os.WriteFile(path, entry.Document, 0o644); err != nil {
		return "", fmt.Errorf("failed to write quarantined document: %w", err)
	}

	record := IndexRecord{
		Timestamp: s.now(),
		RunID:     entry.RunID,
		Label:     entry.Label,
		JobID:     entry.JobID,
		Path:      path,
		Bytes:     len(entry.Document),
		Reason:    entry.Reason,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal quarantine record: %w", err)
	}
	if _, err := s.index.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("failed to write quarantine index: %w", err)
	}

	return path, nil
}

// Close は索引ファイルを閉じる
func (s *Store) Close() error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

// FileName はラベルとジョブIDからファイル名を作る。パスに使えない文字は '_' に置き換える
func FileName(label, jobID string) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(label, "_"), "_.")
	if name == "" {
		name = "query"
	}
	if jobID == "" {
		return name + ".xml"
	}
	return name + "_" + unsafeChars.ReplaceAllString(jobID, "_") + ".xml"
}

// ReadIndex は索引ファイルを読み込む
func ReadIndex(dir string) ([]IndexRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read quarantine index: %w", err)
	}

	var records []IndexRecord
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec IndexRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("quarantine index line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
