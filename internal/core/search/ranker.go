package search

import (
	"fmt"
	"sort"
)

// ScoreHits は除外パターンにマッチしたヒットを取り除き、残りにランキングスコアを付けて
// 降順に並べた新しいスライスを返す。同点の場合は解析順を保つ
func ScoreHits(records []HitRecord, cfg RankingConfig) []HitRecord {
	survivors := make([]HitRecord, 0, len(records))

	for _, rec := range records {
		if matchesAny(rec.Description, cfg) {
			continue
		}

		score := baseScore(rec, cfg.BaseScoreField)
		for _, m := range cfg.ScoreMultipliers {
			if m.Pattern.MatchString(rec.Description) {
				score *= m.Factor
			}
		}

		rec.RankingScore = score
		rec.Scored = true
		survivors = append(survivors, rec)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].RankingScore > survivors[j].RankingScore
	})

	return survivors
}

// Rank は最良のヒットを1件返す。候補が残らなければ ErrNoMatch を返す
func Rank(records []HitRecord, cfg RankingConfig) (HitRecord, error) {
	if len(records) == 0 {
		return HitRecord{}, fmt.Errorf("%w: result contains no hits", ErrNoMatch)
	}

	ranked := ScoreHits(records, cfg)
	if len(ranked) == 0 {
		return HitRecord{}, fmt.Errorf("%w: all %d hits excluded by avoid patterns", ErrNoMatch, len(records))
	}

	return ranked[0], nil
}

func matchesAny(description string, cfg RankingConfig) bool {
	for _, re := range cfg.AvoidPatterns {
		if re.MatchString(description) {
			return true
		}
	}
	return false
}

func baseScore(rec HitRecord, field ScoreField) float64 {
	switch field {
	case ScoreFieldRawScore:
		return float64(rec.RawScore)
	case ScoreFieldIdentity:
		return float64(rec.Identity)
	case ScoreFieldAlignLen:
		return float64(rec.AlignLen)
	case ScoreFieldHitSpan:
		return float64(rec.HitSpan())
	default:
		return rec.BitScore
	}
}
