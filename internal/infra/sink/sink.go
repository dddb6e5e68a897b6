package sink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinford/seqsearch/internal/core/search"
)

// Format は出力テーブルの形式
type Format string

const (
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
)

// ErrUnknownFormat は未対応の出力形式が指定された場合のエラー
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat は形式名を解釈する。空文字列は出力パスの拡張子から推定する
func ParseFormat(name, output string) (Format, error) {
	if name == "" {
		switch {
		case strings.HasSuffix(output, ".xlsx"):
			return FormatXLSX, nil
		case strings.HasSuffix(output, ".db"), strings.HasSuffix(output, ".sqlite"):
			return FormatSQLite, nil
		default:
			return FormatCSV, nil
		}
	}

	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatXLSX, FormatSQLite, FormatPostgres:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Columns は表形式出力の列名（順序固定）
var Columns = []string{
	"query_label",
	"query_raw_text",
	"reference_name",
	"reference_sequence",
	"accession",
	"ranking_score",
	"bit_score",
	"raw_score",
	"identity",
	"hit_from",
	"hit_to",
	"evalue",
	"job_id",
	"completed_at",
}

// values は Columns の順に行の値を並べる
func values(row search.ResultRow) []any {
	return []any{
		row.QueryLabel,
		row.QueryRawText,
		row.ReferenceName,
		row.ReferenceSequence,
		row.Accession,
		row.RankingScore,
		row.BitScore,
		row.RawScore,
		row.Identity,
		row.HitFrom,
		row.HitTo,
		row.EValue,
		row.JobID,
		row.CompletedAt.UTC().Format(time.RFC3339),
	}
}

// record は Columns の順に行の値を文字列化する
func record(row search.ResultRow) []string {
	return []string{
		row.QueryLabel,
		row.QueryRawText,
		row.ReferenceName,
		row.ReferenceSequence,
		row.Accession,
		formatFloat(row.RankingScore),
		formatFloat(row.BitScore),
		strconv.Itoa(row.RawScore),
		strconv.Itoa(row.Identity),
		strconv.Itoa(row.HitFrom),
		strconv.Itoa(row.HitTo),
		strconv.FormatFloat(row.EValue, 'g', -1, 64),
		row.JobID,
		row.CompletedAt.UTC().Format(time.RFC3339),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
