package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/jinford/seqsearch/internal/infra/ncbi"
	"github.com/jinford/seqsearch/internal/platform/config"
)

// RankAction は保存済みの BLAST XML を読み込み、ランキング結果を表示するコマンドのアクション
func RankAction(ctx context.Context, cmd *cli.Command) error {
	xmlPath := cmd.String("xml")
	rankingPath := cmd.String("ranking")
	top := int(cmd.Int("top"))

	document, err := os.ReadFile(xmlPath)
	if err != nil {
		return fmt.Errorf("結果ドキュメントを読み込めません: %w", err)
	}

	ranking, err := config.LoadRankingConfig(rankingPath)
	if err != nil {
		return fmt.Errorf("ランキング設定の読み込みに失敗: %w", err)
	}

	hits, err := ncbi.NewBlastXMLParser().Parse(document)
	if err != nil {
		return err
	}

	ranked := search.ScoreHits(hits, ranking)
	if len(ranked) == 0 {
		return fmt.Errorf("%s: %w", xmlPath, search.ErrNoMatch)
	}

	renderRanking(os.Stdout, ranked, top)
	return nil
}

// renderRanking は上位 top 件のヒットを表形式で出力する（top <= 0 は全件）
func renderRanking(w io.Writer, ranked []search.HitRecord, top int) {
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Accession", "Score", "Bit Score", "E-value", "Description")
	for i, h := range ranked {
		table.Append(
			strconv.Itoa(i+1),
			h.Accession,
			strconv.FormatFloat(h.RankingScore, 'f', 2, 64),
			strconv.FormatFloat(h.BitScore, 'f', 2, 64),
			strconv.FormatFloat(h.EValue, 'g', 3, 64),
			truncateString(h.Description, 60),
		)
	}
	table.Render()
}
