package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/jinford/seqsearch/internal/infra/fasta"
	"github.com/jinford/seqsearch/internal/infra/sink"
	"github.com/jinford/seqsearch/internal/platform/config"
	"github.com/jinford/seqsearch/internal/platform/container"
)

// ErrQueriesFailed は --fail-on-error 指定時に失敗したクエリがあった場合のエラー
var ErrQueriesFailed = errors.New("some queries failed")

// RunAction は FASTA ファイルの全配列を検索し、結果テーブルを書き出すコマンドのアクション
func RunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	input := cmd.String("input")
	output := cmd.String("output")
	dump := cmd.String("dump")
	failOnError := cmd.Bool("fail-on-error")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	log := appCtx.Logger()

	rankingPath := cmd.String("ranking")
	if rankingPath == "" {
		rankingPath = appCtx.Config.RankingConfigPath
	}
	ranking, err := config.LoadRankingConfig(rankingPath)
	if err != nil {
		return fmt.Errorf("ランキング設定の読み込みに失敗: %w", err)
	}

	format, err := sink.ParseFormat(cmd.String("format"), output)
	if err != nil {
		return err
	}

	orchestrator, err := appCtx.Container.NewOrchestrator(ranking)
	if err != nil {
		return err
	}

	source, err := fasta.Open(input)
	if err != nil {
		return fmt.Errorf("入力ファイルを開けません: %w", err)
	}
	defer source.Close()

	out, err := appCtx.Container.OpenSink(ctx, container.SinkOptions{
		Format:   format,
		Output:   output,
		Dump:     dump,
		RunID:    orchestrator.RunID(),
		Database: ranking.Database,
	})
	if err != nil {
		return fmt.Errorf("出力先を開けません: %w", err)
	}

	log.Info("検索を開始します",
		"runID", orchestrator.RunID(),
		"input", input,
		"format", format,
		"database", ranking.Database,
	)

	summary, runErr := orchestrator.Run(ctx, source, out)

	// 中断された場合も集計は残す
	finishCtx := context.WithoutCancel(ctx)
	if f, ok := out.(sink.Finisher); ok {
		if err := f.Finish(finishCtx, summary); err != nil {
			log.Warn("実行結果の記録に失敗しました", "error", err)
		}
	}
	if err := out.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("出力先のクローズに失敗: %w", err))
	}

	renderSummary(os.Stdout, summary)

	if runErr != nil {
		return runErr
	}
	if failOnError && summary.Failed > 0 {
		return fmt.Errorf("%w: %d/%d", ErrQueriesFailed, summary.Failed, summary.Total)
	}
	return nil
}

// renderSummary は実行結果の集計と失敗したクエリを表形式で出力する
func renderSummary(w io.Writer, summary search.RunSummary) {
	fmt.Fprintf(w, "Run ID: %s\n", summary.RunID)

	table := tablewriter.NewWriter(w)
	table.Header("Total", "Succeeded", "Failed", "Elapsed")
	table.Append(
		strconv.Itoa(summary.Total),
		strconv.Itoa(summary.Succeeded),
		strconv.Itoa(summary.Failed),
		summary.Elapsed.Round(time.Millisecond).String(),
	)
	table.Render()

	if len(summary.Failures) == 0 {
		return
	}

	fmt.Fprintln(w, "\n失敗したクエリ:")
	failures := tablewriter.NewWriter(w)
	failures.Header("Label", "Error")
	for _, f := range summary.Failures {
		failures.Append(f.Label, truncateString(errorText(f.Err), 80))
	}
	failures.Render()
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
