package container

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/jinford/seqsearch/internal/infra/fasta"
	"github.com/jinford/seqsearch/internal/infra/sink"
	"github.com/jinford/seqsearch/internal/platform/config"
)

type noopSleeper struct{}

func (noopSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// newFakeNCBI は BLAST と E-utilities の両方に応答するテスト用サーバーを起動する
func newFakeNCBI(t *testing.T) *httptest.Server {
	t.Helper()

	document, err := os.ReadFile(filepath.Join("..", "..", "infra", "ncbi", "testdata", "blast_result.xml"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/blast", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.Form.Get("CMD") == "Put":
			_, _ = io.WriteString(w, "<!--QBlastInfoBegin\n    RID = FAKE0001\n    RTOE = 1\nQBlastInfoEnd\n-->")
		case r.Form.Get("FORMAT_OBJECT") == "SearchInfo":
			_, _ = io.WriteString(w, "QBlastInfoBegin\n\tStatus=READY\nQBlastInfoEnd")
		case r.Form.Get("FORMAT_TYPE") == "XML":
			_, _ = w.Write(document)
		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/eutils/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"esearchresult":{"count":"1","webenv":"MCID_fake","querykey":"1"}}`)
	})
	mux.HandleFunc("/eutils/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, ">JQ745646.1 Duganella sp. c1 16S ribosomal RNA gene, partial sequence\nAGAGTTTGAT\nCCTGGCTCAG\n\n")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Blast:       config.BlastConfig{URL: baseURL + "/blast", Program: "blastn", Megablast: true},
		Entrez:      config.EntrezConfig{URL: baseURL + "/eutils", Database: "nuccore", Tool: "seqsearch"},
		HTTPTimeout: 5 * time.Second,
		Poll: config.PollConfig{
			Interval:         time.Millisecond,
			MaxAttempts:      40,
			MaxResubmissions: 2,
		},
		Fetch: config.FetchConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
		ParseMaxRetries: 1,
		QuarantineDir:   filepath.Join(t.TempDir(), "quarantine"),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceContainer_EndToEnd(t *testing.T) {
	srv := newFakeNCBI(t)
	cfg := testConfig(t, srv.URL)

	c, err := NewContainer(cfg,
		WithContainerLogger(discardLogger()),
		WithContainerSleeper(noopSleeper{}),
	)
	require.NoError(t, err)
	defer c.Close()

	ranking, err := search.NewRankingConfig(search.RankingSpec{
		Database:      "nt",
		AvoidPatterns: []string{"uncultured"},
	})
	require.NoError(t, err)

	runID := uuid.New()
	orchestrator, err := c.NewOrchestrator(ranking, search.WithRunID(runID))
	require.NoError(t, err)

	dir := t.TempDir()
	output := filepath.Join(dir, "results.csv")
	dump := filepath.Join(dir, "results.txt")
	out, err := c.OpenSink(context.Background(), SinkOptions{
		Format:   sink.FormatCSV,
		Output:   output,
		Dump:     dump,
		RunID:    runID,
		Database: ranking.Database,
	})
	require.NoError(t, err)

	source := fasta.NewReader(strings.NewReader(">sample-1\nACGTACGTAC\n"))
	summary, err := orchestrator.Run(context.Background(), source, out)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	assert.Equal(t, runID, summary.RunID)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sink.Columns, rows[0])
	assert.Equal(t, "sample-1", rows[1][0])
	assert.Equal(t, "JQ745646", rows[1][4])
	assert.Equal(t, "AGAGTTTGATCCTGGCTCAG", rows[1][3])

	text, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(text), ">JQ745646.1 Duganella sp. c1")
}

func TestServiceContainer_OpenSink_Errors(t *testing.T) {
	c, err := NewContainer(testConfig(t, "http://127.0.0.1:0"), WithContainerLogger(discardLogger()))
	require.NoError(t, err)

	t.Run("未対応の形式", func(t *testing.T) {
		_, err := c.OpenSink(context.Background(), SinkOptions{Format: "parquet", Output: "x"})
		require.ErrorIs(t, err, sink.ErrUnknownFormat)
	})

	t.Run("出力先が未指定", func(t *testing.T) {
		_, err := c.OpenSink(context.Background(), SinkOptions{Format: sink.FormatCSV})
		require.Error(t, err)
	})
}

func TestNewContainer_NilConfig(t *testing.T) {
	_, err := NewContainer(nil)
	require.Error(t, err)
}
