package search

import "context"

// QuerySource は入力クエリを順に返す。終端では io.EOF を返す
type QuerySource interface {
	Next() (SequenceQuery, error)
}

// ResultSink は出力テーブルへの追記先
type ResultSink interface {
	Write(ctx context.Context, row ResultRow) error
	Close() error
}

// Quarantine は解析できなかった結果ドキュメントを保存する
type Quarantine interface {
	Save(ctx context.Context, entry QuarantineEntry) (string, error)
}
