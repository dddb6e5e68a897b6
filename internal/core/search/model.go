package search

import (
	"time"

	"github.com/google/uuid"
)

// SequenceQuery は入力FASTAの1レコードを表す
type SequenceQuery struct {
	// Label はヘッダー行から '>' を除いたもの
	Label string `json:"label"`
	// Sequence は残基文字のみの配列
	Sequence string `json:"sequence"`
	// RawText は改行を含む元のレコード全体
	RawText string `json:"rawText"`
}

// JobStatus はリモート検索ジョブの状態
type JobStatus string

const (
	JobStatusWaiting JobStatus = "WAITING"
	JobStatusFailed  JobStatus = "FAILED"
	// JobStatusUnknown はサービス側でジョブが失効したことを示す
	JobStatusUnknown JobStatus = "UNKNOWN"
	JobStatusReady   JobStatus = "READY"
	// JobStatusNoMatch はステータス応答にどのマーカーも含まれなかった場合の内部値
	JobStatusNoMatch JobStatus = "NOMATCH"
)

// Job は1回の投入で得られた非同期検索ジョブ
type Job struct {
	ID            string        `json:"id"`
	EstimatedWait time.Duration `json:"estimatedWait"`
	PollAttempts  int           `json:"pollAttempts"`
	Status        JobStatus     `json:"status"`
	// Resubmissions は同一クエリで再投入した回数
	Resubmissions int `json:"resubmissions"`
}

// HitRecord は検索結果の1ヒットを表す
type HitRecord struct {
	Accession   string  `json:"accession"`
	HitID       string  `json:"hitID"`
	Description string  `json:"description"`
	BitScore    float64 `json:"bitScore"`
	RawScore    int     `json:"rawScore"`
	Identity    int     `json:"identity"`
	HitFrom     int     `json:"hitFrom"`
	HitTo       int     `json:"hitTo"`
	EValue      float64 `json:"eValue"`
	AlignLen    int     `json:"alignLen"`

	// RankingScore はランカーが設定する（Scored が true の場合のみ有効）
	RankingScore float64 `json:"rankingScore"`
	Scored       bool    `json:"-"`
}

// HitSpan はヒット座標の長さを返す（逆鎖の場合も正の値）
func (h HitRecord) HitSpan() int {
	if h.HitTo >= h.HitFrom {
		return h.HitTo - h.HitFrom + 1
	}
	return h.HitFrom - h.HitTo + 1
}

// Record はレコード取得サービスから得た参照配列
type Record struct {
	Description string `json:"description"`
	Sequence    string `json:"sequence"`
}

// ResultRow は出力テーブルの1行
type ResultRow struct {
	QueryLabel        string    `json:"queryLabel"`
	QueryRawText      string    `json:"queryRawText"`
	ReferenceName     string    `json:"referenceName"`
	ReferenceSequence string    `json:"referenceSequence"`
	Accession         string    `json:"accession"`
	RankingScore      float64   `json:"rankingScore"`
	BitScore          float64   `json:"bitScore"`
	RawScore          int       `json:"rawScore"`
	Identity          int       `json:"identity"`
	HitFrom           int       `json:"hitFrom"`
	HitTo             int       `json:"hitTo"`
	EValue            float64   `json:"eValue"`
	JobID             string    `json:"jobID"`
	CompletedAt       time.Time `json:"completedAt"`
}

// QuarantineEntry は解析できなかった結果ドキュメント
type QuarantineEntry struct {
	RunID    uuid.UUID
	Label    string
	JobID    string
	Document []byte
	Reason   string
}

// QueryFailure はクエリ単位の終端エラー
type QueryFailure struct {
	Label string `json:"label"`
	Err   error  `json:"-"`
}

// RunSummary は1回の実行結果の集計
type RunSummary struct {
	RunID     uuid.UUID      `json:"runID"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []QueryFailure `json:"failures"`
	Elapsed   time.Duration  `json:"elapsed"`
}
