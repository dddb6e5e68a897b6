package search

import "context"

// SubmitRequest は検索サービスへの投入パラメータ
type SubmitRequest struct {
	Database string
	Sequence string
}

// Submission は投入応答から取り出した値
type Submission struct {
	JobID string
	// EstimatedWaitSeconds は完了までの推定秒数（下限の目安）
	EstimatedWaitSeconds int
}

// SearchClient は非同期検索サービスとのやり取りを抽象化するインターフェース
type SearchClient interface {
	// Submit は配列を投入する。ジョブIDと推定時間が取れなければ ErrSubmission を返す
	Submit(ctx context.Context, req SubmitRequest) (Submission, error)

	// Status はジョブの状態を問い合わせる。マーカーが無ければ JobStatusNoMatch を返す
	Status(ctx context.Context, jobID string) (JobStatus, error)

	// Result は READY のジョブの結果ドキュメントを取得する
	Result(ctx context.Context, jobID string) ([]byte, error)
}

// LookupSession はアクセッション解決で得られるセッション情報
type LookupSession struct {
	WebEnv   string
	QueryKey string
}

// RecordClient はレコード取得サービスとの2段階プロトコルを抽象化する
type RecordClient interface {
	// Lookup はアクセッションをセッション情報に解決する。応答の構造が不正な場合は
	// ErrInvalidLookup をラップしたエラーを返す。それ以外のエラーは再試行される
	Lookup(ctx context.Context, accession string) (LookupSession, error)

	// FetchText は行区切りテキスト形式のレコードを取得する
	FetchText(ctx context.Context, session LookupSession) (string, error)
}

// HitParser は結果ドキュメントをヒット列に変換する
type HitParser interface {
	// Parse は構造が想定と異なる場合 ErrParse をラップしたエラーを返す
	Parse(document []byte) ([]HitRecord, error)
}
