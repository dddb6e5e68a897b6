package config

import (
	"fmt"
	"os"

	"github.com/jinford/seqsearch/internal/core/search"
	"gopkg.in/yaml.v3"
)

// rankingFile はランキング設定ファイルの構造
type rankingFile struct {
	Database       string   `yaml:"database"`
	AvoidPatterns  []string `yaml:"avoid_patterns"`
	BaseScoreField string   `yaml:"base_score_field"`
	CaseSensitive  bool     `yaml:"case_sensitive"`
	// ScoreMultipliers は "パターン: 倍率" のマッピングか {pattern, factor} のリスト。
	// どちらの形式でも記述順を保つ
	ScoreMultipliers yaml.Node `yaml:"score_multipliers"`
}

// LoadRankingConfig はランキング設定ファイルを読み込み、検証済みの search.RankingConfig を返す
func LoadRankingConfig(path string) (search.RankingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return search.RankingConfig{}, fmt.Errorf("failed to read ranking config: %w", err)
	}
	return ParseRankingConfig(data)
}

// ParseRankingConfig は YAML からランキング設定を組み立てる
func ParseRankingConfig(data []byte) (search.RankingConfig, error) {
	var file rankingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return search.RankingConfig{}, fmt.Errorf("%w: failed to parse ranking config: %v", search.ErrInvalidRankingConfig, err)
	}

	multipliers, err := decodeMultipliers(&file.ScoreMultipliers)
	if err != nil {
		return search.RankingConfig{}, err
	}

	return search.NewRankingConfig(search.RankingSpec{
		Database:         file.Database,
		AvoidPatterns:    file.AvoidPatterns,
		ScoreMultipliers: multipliers,
		BaseScoreField:   file.BaseScoreField,
		CaseSensitive:    file.CaseSensitive,
	})
}

func decodeMultipliers(node *yaml.Node) ([]search.MultiplierSpec, error) {
	switch node.Kind {
	case 0:
		// 未指定
		return nil, nil

	case yaml.MappingNode:
		specs := make([]search.MultiplierSpec, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			var factor float64
			if err := value.Decode(&factor); err != nil {
				return nil, fmt.Errorf("%w: score_multipliers[%q] (line %d): factor must be a number",
					search.ErrInvalidRankingConfig, key.Value, value.Line)
			}
			specs = append(specs, search.MultiplierSpec{Pattern: key.Value, Factor: factor})
		}
		return specs, nil

	case yaml.SequenceNode:
		var specs []search.MultiplierSpec
		if err := node.Decode(&specs); err != nil {
			return nil, fmt.Errorf("%w: score_multipliers (line %d): %v", search.ErrInvalidRankingConfig, node.Line, err)
		}
		return specs, nil

	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("%w: score_multipliers (line %d) must be a mapping or a list", search.ErrInvalidRankingConfig, node.Line)
}
