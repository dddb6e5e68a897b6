package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/seqsearch/cmd/seqsearch/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "seqsearch",
		Usage: "NCBI BLAST による配列一括検索と参照レコード取得",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "FASTA ファイルの全配列を検索し、最良ヒットの参照配列を書き出す",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "input",
						Usage:    "入力 FASTA ファイル（- で標準入力、.gz 可）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "出力ファイル（postgres 形式では不要）",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "出力形式 (csv|xlsx|sqlite|postgres)。省略時は拡張子から判定",
					},
					&cli.StringFlag{
						Name:  "dump",
						Usage: "クエリと参照配列を FASTA 形式で並べたテキストの出力先",
					},
					&cli.StringFlag{
						Name:  "ranking",
						Usage: "ランキング設定ファイル（省略時は RANKING_CONFIG）",
					},
					&cli.BoolFlag{
						Name:  "fail-on-error",
						Usage: "失敗したクエリがあれば終了コード1で終了する",
					},
				},
				Action: commands.RunAction,
			},
			{
				Name:  "rank",
				Usage: "保存済みの BLAST XML をランキングして表示する",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "xml",
						Usage:    "BLAST XML ファイル（隔離ディレクトリのものも可）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "ranking",
						Usage: "ランキング設定ファイル",
						Value: "ranking.yaml",
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "表示件数（0 は全件）",
						Value: 10,
					},
				},
				Action: commands.RankAction,
			},
			{
				Name:  "fetch",
				Usage: "アクセッションの参照レコードを取得して表示する",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "accession",
						Usage:    "アクセッション番号",
						Required: true,
					},
				},
				Action: commands.FetchAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}
