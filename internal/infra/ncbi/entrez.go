package ncbi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jinford/seqsearch/internal/core/search"
)

const (
	// DefaultEutilsURL は E-utilities のベースURL
	DefaultEutilsURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultEntrezDB は参照配列を引くデータベース
	DefaultEntrezDB = "nuccore"
)

// EntrezConfig は E-utilities の接続設定
type EntrezConfig struct {
	BaseURL  string
	Database string
	APIKey   string
	Tool     string
	Email    string
}

// EntrezClient は esearch + efetch による search.RecordClient の実装
type EntrezClient struct {
	cfg EntrezConfig
	t   *transport
}

var _ search.RecordClient = (*EntrezClient)(nil)

type esearchResponse struct {
	Result struct {
		WebEnv   string `json:"webenv"`
		QueryKey string `json:"querykey"`
	} `json:"esearchresult"`
	Error string `json:"error,omitempty"`
}

// NewEntrezClient は新しい EntrezClient を作成する
func NewEntrezClient(cfg EntrezConfig, opts ...Option) *EntrezClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEutilsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Database == "" {
		cfg.Database = DefaultEntrezDB
	}
	return &EntrezClient{cfg: cfg, t: newTransport(opts...)}
}

// Lookup は esearch (usehistory=y) でアクセッションを履歴サーバーに登録し、
// WebEnv と query_key を返す
func (c *EntrezClient) Lookup(ctx context.Context, accession string) (search.LookupSession, error) {
	params := url.Values{}
	params.Set("db", c.cfg.Database)
	params.Set("term", accession)
	params.Set("usehistory", "y")
	params.Set("retmode", "json")
	c.etiquette(params)

	body, err := c.t.get(ctx, c.cfg.BaseURL+"/esearch.fcgi", params)
	if err != nil {
		return search.LookupSession{}, fmt.Errorf("esearch %s: %w", accession, err)
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return search.LookupSession{}, fmt.Errorf("%w: esearch %s: failed to decode response: %v", search.ErrInvalidLookup, accession, err)
	}
	if resp.Error != "" {
		return search.LookupSession{}, fmt.Errorf("esearch %s: %s", accession, resp.Error)
	}

	// count が 0 でも履歴サーバーのセッションは返る。直後の取得でレコードが空なら呼び出し側が再試行する
	return search.LookupSession{
		WebEnv:   resp.Result.WebEnv,
		QueryKey: resp.Result.QueryKey,
	}, nil
}

// FetchText は efetch で FASTA テキスト形式のレコードを取得する
func (c *EntrezClient) FetchText(ctx context.Context, session search.LookupSession) (string, error) {
	params := url.Values{}
	params.Set("db", c.cfg.Database)
	params.Set("query_key", session.QueryKey)
	params.Set("WebEnv", session.WebEnv)
	params.Set("rettype", "fasta")
	params.Set("retmode", "text")
	c.etiquette(params)

	body, err := c.t.get(ctx, c.cfg.BaseURL+"/efetch.fcgi", params)
	if err != nil {
		return "", fmt.Errorf("efetch: %w", err)
	}
	return string(body), nil
}

func (c *EntrezClient) etiquette(v url.Values) {
	if c.cfg.APIKey != "" {
		v.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.Tool != "" {
		v.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		v.Set("email", c.cfg.Email)
	}
}
