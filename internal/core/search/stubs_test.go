package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

// recordingSleeper は待機時間を記録するだけで実際には待たない
type recordingSleeper struct {
	calls []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

// stubSearchClient はスクリプト化されたステータス列を返す検索クライアント
type stubSearchClient struct {
	submissions []Submission
	submitErr   error
	statuses    map[string][]JobStatus
	results     map[string][]byte

	submitted   []SubmitRequest
	statusCalls []string
	resultCalls []string
}

func (c *stubSearchClient) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	c.submitted = append(c.submitted, req)
	if c.submitErr != nil {
		return Submission{}, c.submitErr
	}
	idx := len(c.submitted) - 1
	if idx >= len(c.submissions) {
		return Submission{}, fmt.Errorf("unexpected submission #%d", idx+1)
	}
	return c.submissions[idx], nil
}

func (c *stubSearchClient) Status(ctx context.Context, jobID string) (JobStatus, error) {
	c.statusCalls = append(c.statusCalls, jobID)
	queue := c.statuses[jobID]
	if len(queue) == 0 {
		return JobStatusWaiting, nil
	}
	status := queue[0]
	c.statuses[jobID] = queue[1:]
	return status, nil
}

func (c *stubSearchClient) Result(ctx context.Context, jobID string) ([]byte, error) {
	c.resultCalls = append(c.resultCalls, jobID)
	doc, ok := c.results[jobID]
	if !ok {
		return nil, fmt.Errorf("no result for %s", jobID)
	}
	return doc, nil
}

// stubRecordClient は呼び出し順にレコードテキストを返す
type stubRecordClient struct {
	session   LookupSession
	lookupErr error
	texts     []string
	// lookupErrs と fetchErrs は n 回目の呼び出しで返すエラー（nil は成功）
	lookupErrs []error
	fetchErrs  []error

	lookups int
	fetches int
}

func (c *stubRecordClient) Lookup(ctx context.Context, accession string) (LookupSession, error) {
	c.lookups++
	if idx := c.lookups - 1; idx < len(c.lookupErrs) && c.lookupErrs[idx] != nil {
		return LookupSession{}, c.lookupErrs[idx]
	}
	if c.lookupErr != nil {
		return LookupSession{}, c.lookupErr
	}
	return c.session, nil
}

func (c *stubRecordClient) FetchText(ctx context.Context, session LookupSession) (string, error) {
	c.fetches++
	if idx := c.fetches - 1; idx < len(c.fetchErrs) && c.fetchErrs[idx] != nil {
		return "", c.fetchErrs[idx]
	}
	if len(c.texts) == 0 {
		return "", nil
	}
	idx := c.fetches - 1
	if idx >= len(c.texts) {
		idx = len(c.texts) - 1
	}
	return c.texts[idx], nil
}

// stubParser はドキュメント本文をキーにヒット列またはエラーを返す
type stubParser struct {
	hits map[string][]HitRecord
}

func (p *stubParser) Parse(document []byte) ([]HitRecord, error) {
	hits, ok := p.hits[string(document)]
	if !ok {
		return nil, fmt.Errorf("%w: missing BlastOutput_iterations", ErrParse)
	}
	return hits, nil
}

type stubQuarantine struct {
	entries []QuarantineEntry
}

func (q *stubQuarantine) Save(ctx context.Context, entry QuarantineEntry) (string, error) {
	q.entries = append(q.entries, entry)
	return "quarantine/" + entry.JobID + ".xml", nil
}

type sliceSource struct {
	queries []SequenceQuery
	pos     int
}

func (s *sliceSource) Next() (SequenceQuery, error) {
	if s.pos >= len(s.queries) {
		return SequenceQuery{}, io.EOF
	}
	q := s.queries[s.pos]
	s.pos++
	return q, nil
}

type memorySink struct {
	rows []ResultRow
}

func (s *memorySink) Write(ctx context.Context, row ResultRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *memorySink) Close() error { return nil }
