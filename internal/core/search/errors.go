package search

import "errors"

var (
	// ErrSubmission は投入応答からジョブIDまたは推定待ち時間を取り出せない場合のエラー
	ErrSubmission = errors.New("search submission failed")

	// ErrParse は結果ドキュメントの構造が想定と異なる場合のエラー
	ErrParse = errors.New("result document parse failed")

	// ErrNoMatch は採用可能なヒットが1件もない場合のエラー
	ErrNoMatch = errors.New("no acceptable hit")

	// ErrFetch は参照レコードの取得に失敗した場合のエラー
	ErrFetch = errors.New("record fetch failed")

	// ErrInvalidLookup は解決応答の構造が不正でセッション情報を取り出せない場合のエラー
	ErrInvalidLookup = errors.New("invalid lookup response")

	// ErrRecordUnavailable は取得試行回数を使い切っても正しいレコードが返らない場合のエラー
	ErrRecordUnavailable = errors.New("record unavailable")

	// ErrResubmissionsExhausted は再投入回数の上限に達した場合のエラー
	ErrResubmissionsExhausted = errors.New("max resubmissions exceeded")

	// ErrParseRetriesExhausted は解析失敗による再投入回数の上限に達した場合のエラー
	ErrParseRetriesExhausted = errors.New("max parse retries exceeded")

	// ErrInvalidRankingConfig はランキング設定が不正な場合のエラー
	ErrInvalidRankingConfig = errors.New("invalid ranking config")
)
