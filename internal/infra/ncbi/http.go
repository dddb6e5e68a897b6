package ncbi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout はリクエスト1件あたりのタイムアウト
	DefaultTimeout = 60 * time.Second

	// maxBodySize は応答本文の読み込み上限（結果XMLが大きくなる場合を考慮）
	maxBodySize = 64 << 20
)

// ErrUnexpectedStatus は 2xx 以外の HTTP 応答を受け取った場合のエラー
var ErrUnexpectedStatus = errors.New("unexpected http status")

// Option は NCBI クライアント共通のオプション設定
type Option func(*transport)

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		t.client = client
	}
}

// WithTimeout はリクエストのタイムアウトを設定する
func WithTimeout(d time.Duration) Option {
	return func(t *transport) {
		t.timeout = d
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(t *transport) {
		t.logger = logger
	}
}

// transport は BLAST と E-utilities で共有する HTTP 呼び出し部分
type transport struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func newTransport(opts ...Option) *transport {
	t := &transport{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: t.timeout}
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

func (t *transport) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := endpoint
	if len(params) > 0 {
		target = endpoint + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return t.do(req)
}

func (t *transport) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

func (t *transport) do(req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	t.logger.Debug("NCBI API を呼び出しました",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode)
	}

	return body, nil
}
