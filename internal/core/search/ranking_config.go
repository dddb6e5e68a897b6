package search

import (
	"fmt"
	"regexp"
)

// ScoreField はランキングの基準スコアに使う項目
type ScoreField string

const (
	ScoreFieldBitScore ScoreField = "bit_score"
	ScoreFieldRawScore ScoreField = "raw_score"
	ScoreFieldIdentity ScoreField = "identity"
	ScoreFieldAlignLen ScoreField = "align_len"
	ScoreFieldHitSpan  ScoreField = "hit_span"
)

// MultiplierRule は説明文にマッチした場合に掛けるスコア倍率
type MultiplierRule struct {
	Pattern *regexp.Regexp
	Factor  float64
}

// RankingConfig はヒット選択ポリシー。NewRankingConfig で生成し、生成後は変更しない
type RankingConfig struct {
	// Database は検索対象データベース名
	Database string

	// AvoidPatterns にマッチしたヒットは候補から除外する
	AvoidPatterns []*regexp.Regexp

	// ScoreMultipliers は宣言順に適用する
	ScoreMultipliers []MultiplierRule

	// BaseScoreField は初期スコアに使う項目（デフォルト: bit_score）
	BaseScoreField ScoreField
}

// MultiplierSpec はコンパイル前の倍率定義
type MultiplierSpec struct {
	Pattern string  `yaml:"pattern"`
	Factor  float64 `yaml:"factor"`
}

// RankingSpec はコンパイル前のランキング設定
type RankingSpec struct {
	Database         string
	AvoidPatterns    []string
	ScoreMultipliers []MultiplierSpec
	BaseScoreField   string
	CaseSensitive    bool
}

// NewRankingConfig はパターンをコンパイルし、検証済みの RankingConfig を返す
func NewRankingConfig(spec RankingSpec) (RankingConfig, error) {
	if spec.Database == "" {
		return RankingConfig{}, fmt.Errorf("%w: database is required", ErrInvalidRankingConfig)
	}

	field := ScoreField(spec.BaseScoreField)
	if field == "" {
		field = ScoreFieldBitScore
	}
	switch field {
	case ScoreFieldBitScore, ScoreFieldRawScore, ScoreFieldIdentity, ScoreFieldAlignLen, ScoreFieldHitSpan:
	default:
		return RankingConfig{}, fmt.Errorf("%w: unknown base_score_field %q", ErrInvalidRankingConfig, spec.BaseScoreField)
	}

	avoid := make([]*regexp.Regexp, 0, len(spec.AvoidPatterns))
	for _, p := range spec.AvoidPatterns {
		re, err := compilePattern(p, spec.CaseSensitive)
		if err != nil {
			return RankingConfig{}, err
		}
		avoid = append(avoid, re)
	}

	multipliers := make([]MultiplierRule, 0, len(spec.ScoreMultipliers))
	for _, m := range spec.ScoreMultipliers {
		re, err := compilePattern(m.Pattern, spec.CaseSensitive)
		if err != nil {
			return RankingConfig{}, err
		}
		multipliers = append(multipliers, MultiplierRule{Pattern: re, Factor: m.Factor})
	}

	return RankingConfig{
		Database:         spec.Database,
		AvoidPatterns:    avoid,
		ScoreMultipliers: multipliers,
		BaseScoreField:   field,
	}, nil
}

func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidRankingConfig)
	}
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidRankingConfig, pattern, err)
	}
	return re, nil
}
