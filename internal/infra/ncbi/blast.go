package ncbi

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/jinford/seqsearch/internal/core/search"
)

const (
	// DefaultBlastURL は BLAST URL API のエンドポイント
	DefaultBlastURL = "https://blast.ncbi.nlm.nih.gov/blast/Blast.cgi"

	// DefaultProgram はデフォルトの検索プログラム
	DefaultProgram = "blastn"
)

var (
	ridPattern  = regexp.MustCompile(`RID\s=\s(\S+)`)
	rtoePattern = regexp.MustCompile(`RTOE\s=\s(\d+)`)

	// 判定順に並べる
	statusPatterns = []struct {
		status search.JobStatus
		re     *regexp.Regexp
	}{
		{search.JobStatusReady, regexp.MustCompile(`\s+Status=READY`)},
		{search.JobStatusWaiting, regexp.MustCompile(`\s+Status=WAITING`)},
		{search.JobStatusFailed, regexp.MustCompile(`\s+Status=FAILED`)},
		{search.JobStatusUnknown, regexp.MustCompile(`\s+Status=UNKNOWN`)},
	}
)

// BlastConfig は BLAST URL API の接続設定
type BlastConfig struct {
	URL       string
	Program   string
	Megablast bool
	Tool      string
	Email     string
}

// BlastClient は BLAST URL API を使った search.SearchClient の実装
type BlastClient struct {
	cfg BlastConfig
	t   *transport
}

var _ search.SearchClient = (*BlastClient)(nil)

// NewBlastClient は新しい BlastClient を作成する
func NewBlastClient(cfg BlastConfig, opts ...Option) *BlastClient {
	if cfg.URL == "" {
		cfg.URL = DefaultBlastURL
	}
	if cfg.Program == "" {
		cfg.Program = DefaultProgram
	}
	return &BlastClient{cfg: cfg, t: newTransport(opts...)}
}

// Submit は CMD=Put で配列を投入し、応答本文から RID と RTOE を取り出す
func (c *BlastClient) Submit(ctx context.Context, req search.SubmitRequest) (search.Submission, error) {
	form := url.Values{}
	form.Set("CMD", "Put")
	form.Set("PROGRAM", c.cfg.Program)
	form.Set("DATABASE", req.Database)
	form.Set("QUERY", req.Sequence)
	if c.cfg.Megablast {
		form.Set("MEGABLAST", "on")
	}
	c.etiquette(form)

	body, err := c.t.postForm(ctx, c.cfg.URL, form)
	if err != nil {
		return search.Submission{}, fmt.Errorf("blast put: %w", err)
	}

	return ParseSubmission(body)
}

// ParseSubmission は投入応答から RID と推定待ち時間を取り出す
func ParseSubmission(body []byte) (search.Submission, error) {
	rid := ridPattern.FindSubmatch(body)
	if rid == nil {
		return search.Submission{}, fmt.Errorf("%w: RID not found in response", search.ErrSubmission)
	}
	rtoe := rtoePattern.FindSubmatch(body)
	if rtoe == nil {
		return search.Submission{}, fmt.Errorf("%w: RTOE not found in response", search.ErrSubmission)
	}

	seconds, err := strconv.Atoi(string(rtoe[1]))
	if err != nil {
		return search.Submission{}, fmt.Errorf("%w: invalid RTOE %q: %v", search.ErrSubmission, rtoe[1], err)
	}

	return search.Submission{
		JobID:                string(rid[1]),
		EstimatedWaitSeconds: seconds,
	}, nil
}

// Status は CMD=Get&FORMAT_OBJECT=SearchInfo でジョブの状態を問い合わせる
func (c *BlastClient) Status(ctx context.Context, jobID string) (search.JobStatus, error) {
	params := url.Values{}
	params.Set("CMD", "Get")
	params.Set("FORMAT_OBJECT", "SearchInfo")
	params.Set("RID", jobID)
	c.etiquette(params)

	body, err := c.t.get(ctx, c.cfg.URL, params)
	if err != nil {
		return "", fmt.Errorf("blast status %s: %w", jobID, err)
	}

	return ParseStatus(body), nil
}

// ParseStatus はステータス応答のマーカーを判定する。どれにも当たらなければ NOMATCH
func ParseStatus(body []byte) search.JobStatus {
	for _, p := range statusPatterns {
		if p.re.Match(body) {
			return p.status
		}
	}
	return search.JobStatusNoMatch
}

// Result は CMD=Get&FORMAT_TYPE=XML で結果ドキュメントを取得する
func (c *BlastClient) Result(ctx context.Context, jobID string) ([]byte, error) {
	params := url.Values{}
	params.Set("CMD", "Get")
	params.Set("FORMAT_TYPE", "XML")
	params.Set("RID", jobID)
	c.etiquette(params)

	body, err := c.t.get(ctx, c.cfg.URL, params)
	if err != nil {
		return nil, fmt.Errorf("blast result %s: %w", jobID, err)
	}
	return body, nil
}

func (c *BlastClient) etiquette(v url.Values) {
	if c.cfg.Tool != "" {
		v.Set("TOOL", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		v.Set("EMAIL", c.cfg.Email)
	}
}
