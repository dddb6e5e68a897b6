package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/seqsearch/internal/infra/sink"
)

// FetchAction はアクセッションの参照レコードを取得して FASTA 形式で表示するコマンドのアクション
func FetchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	accession := cmd.String("accession")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	record, err := appCtx.Container.Fetcher.Fetch(ctx, accession)
	if err != nil {
		return err
	}

	var b strings.Builder
	sink.AppendFASTA(&b, record.Description, record.Sequence)
	_, err = fmt.Fprint(os.Stdout, b.String())
	return err
}
