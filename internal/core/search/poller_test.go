package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(client SearchClient, sleeper Sleeper, opts ...PollerOption) *JobPoller {
	base := []PollerOption{
		WithPollerLogger(discardLogger()),
		WithPollerSleeper(sleeper),
	}
	return NewJobPoller(client, append(base, opts...)...)
}

func testQuery() SequenceQuery {
	return SequenceQuery{Label: "sample-1", Sequence: "ACGTACGTAC", RawText: ">sample-1\nACGTACGTAC"}
}

func TestJobPoller_Submit(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{{JobID: "RID0000001A", EstimatedWaitSeconds: 12}},
	}
	poller := newTestPoller(client, &recordingSleeper{})
	cfg := mustRankingConfig(t, RankingSpec{Database: "nt"})

	job, err := poller.Submit(context.Background(), testQuery(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "RID0000001A", job.ID)
	assert.Equal(t, 12*time.Second, job.EstimatedWait)
	assert.Equal(t, JobStatusWaiting, job.Status)
	assert.Zero(t, job.PollAttempts)

	require.Len(t, client.submitted, 1)
	assert.Equal(t, SubmitRequest{Database: "nt", Sequence: "ACGTACGTAC"}, client.submitted[0])
}

func TestJobPoller_Submit_Errors(t *testing.T) {
	cfg := mustRankingConfig(t, RankingSpec{})

	t.Run("ジョブIDがない応答", func(t *testing.T) {
		client := &stubSearchClient{submissions: []Submission{{JobID: "", EstimatedWaitSeconds: 5}}}
		_, err := newTestPoller(client, &recordingSleeper{}).Submit(context.Background(), testQuery(), cfg)
		require.ErrorIs(t, err, ErrSubmission)
	})

	t.Run("クライアントのエラーはラップして返す", func(t *testing.T) {
		client := &stubSearchClient{submitErr: ErrSubmission}
		_, err := newTestPoller(client, &recordingSleeper{}).Submit(context.Background(), testQuery(), cfg)
		require.ErrorIs(t, err, ErrSubmission)
		assert.Contains(t, err.Error(), "sample-1")
	})
}

func TestJobPoller_AwaitReady_WaitsThenPolls(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{{JobID: "JOB1", EstimatedWaitSeconds: 30}},
		statuses: map[string][]JobStatus{
			"JOB1": {JobStatusWaiting, JobStatusWaiting, JobStatusReady},
		},
		results: map[string][]byte{"JOB1": []byte("<BlastOutput/>")},
	}
	sleeper := &recordingSleeper{}
	poller := newTestPoller(client, sleeper)
	cfg := mustRankingConfig(t, RankingSpec{})
	ctx := context.Background()

	job, err := poller.Submit(ctx, testQuery(), cfg)
	require.NoError(t, err)

	doc, err := poller.AwaitReady(ctx, job, testQuery(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []byte("<BlastOutput/>"), doc)
	assert.Equal(t, []time.Duration{30 * time.Second, DefaultPollInterval, DefaultPollInterval}, sleeper.calls)
	assert.Equal(t, []string{"JOB1", "JOB1", "JOB1"}, client.statusCalls)
	assert.Equal(t, []string{"JOB1"}, client.resultCalls)
	assert.Equal(t, 3, job.PollAttempts)
	assert.Equal(t, JobStatusReady, job.Status)
}

func TestJobPoller_AwaitReady_ResubmitsAfterMaxPollAttempts(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{
			{JobID: "OLD", EstimatedWaitSeconds: 10},
			{JobID: "NEW", EstimatedWaitSeconds: 20},
		},
		statuses: map[string][]JobStatus{
			"NEW": {JobStatusReady},
		},
		results: map[string][]byte{"NEW": []byte("doc")},
	}
	sleeper := &recordingSleeper{}
	poller := newTestPoller(client, sleeper, WithMaxPollAttempts(3))
	cfg := mustRankingConfig(t, RankingSpec{})
	ctx := context.Background()

	job, err := poller.Submit(ctx, testQuery(), cfg)
	require.NoError(t, err)

	doc, err := poller.AwaitReady(ctx, job, testQuery(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), doc)

	// 同じ配列で2回投入されている
	require.Len(t, client.submitted, 2)
	assert.Equal(t, client.submitted[0], client.submitted[1])

	assert.Equal(t, "NEW", job.ID)
	assert.Equal(t, 1, job.Resubmissions)
	assert.Equal(t, 1, job.PollAttempts)
	assert.Equal(t, 20*time.Second, job.EstimatedWait)

	assert.Equal(t, []string{"OLD", "OLD", "OLD", "NEW"}, client.statusCalls)
	assert.Equal(t, []time.Duration{
		10 * time.Second,
		DefaultPollInterval,
		DefaultPollInterval,
		20 * time.Second,
	}, sleeper.calls)
}

func TestJobPoller_AwaitReady_DefaultCapResubmits(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{
			{JobID: "FIRST", EstimatedWaitSeconds: 1},
			{JobID: "SECOND", EstimatedWaitSeconds: 1},
		},
		statuses: map[string][]JobStatus{"SECOND": {JobStatusReady}},
		results:  map[string][]byte{"SECOND": []byte("doc")},
	}
	poller := newTestPoller(client, &recordingSleeper{})
	cfg := mustRankingConfig(t, RankingSpec{})

	job, err := poller.Submit(context.Background(), testQuery(), cfg)
	require.NoError(t, err)
	_, err = poller.AwaitReady(context.Background(), job, testQuery(), cfg)
	require.NoError(t, err)

	assert.Len(t, client.statusCalls, DefaultMaxPollAttempts+1)
	assert.Equal(t, "SECOND", job.ID)
}

func TestJobPoller_AwaitReady_UnknownAndNoMatchKeepPolling(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{{JobID: "JOB", EstimatedWaitSeconds: 0}},
		statuses: map[string][]JobStatus{
			"JOB": {JobStatusUnknown, JobStatusNoMatch, JobStatusReady},
		},
		results: map[string][]byte{"JOB": []byte("doc")},
	}
	poller := newTestPoller(client, &recordingSleeper{})
	cfg := mustRankingConfig(t, RankingSpec{})

	job, err := poller.Submit(context.Background(), testQuery(), cfg)
	require.NoError(t, err)
	_, err = poller.AwaitReady(context.Background(), job, testQuery(), cfg)
	require.NoError(t, err)

	assert.Len(t, client.submitted, 1)
	assert.Equal(t, 3, job.PollAttempts)
}

func TestJobPoller_AwaitReady_Failed(t *testing.T) {
	newClient := func() *stubSearchClient {
		return &stubSearchClient{
			submissions: []Submission{
				{JobID: "A", EstimatedWaitSeconds: 0},
				{JobID: "B", EstimatedWaitSeconds: 0},
			},
			statuses: map[string][]JobStatus{
				"A": {JobStatusFailed, JobStatusReady},
				"B": {JobStatusReady},
			},
			results: map[string][]byte{"A": []byte("a"), "B": []byte("b")},
		}
	}
	cfg := mustRankingConfig(t, RankingSpec{})

	t.Run("デフォルトでは FAILED は待機として扱う", func(t *testing.T) {
		client := newClient()
		poller := newTestPoller(client, &recordingSleeper{})
		job, err := poller.Submit(context.Background(), testQuery(), cfg)
		require.NoError(t, err)

		doc, err := poller.AwaitReady(context.Background(), job, testQuery(), cfg)
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), doc)
		assert.Len(t, client.submitted, 1)
	})

	t.Run("終端扱いにすると即座に再投入する", func(t *testing.T) {
		client := newClient()
		poller := newTestPoller(client, &recordingSleeper{}, WithFailedAsTerminal(true))
		job, err := poller.Submit(context.Background(), testQuery(), cfg)
		require.NoError(t, err)

		doc, err := poller.AwaitReady(context.Background(), job, testQuery(), cfg)
		require.NoError(t, err)
		assert.Equal(t, []byte("b"), doc)
		assert.Len(t, client.submitted, 2)
		assert.Equal(t, 1, job.Resubmissions)
	})
}

func TestJobPoller_AwaitReady_ResubmissionsExhausted(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{
			{JobID: "J1", EstimatedWaitSeconds: 0},
			{JobID: "J2", EstimatedWaitSeconds: 0},
			{JobID: "J3", EstimatedWaitSeconds: 0},
		},
		statuses: map[string][]JobStatus{},
	}
	poller := newTestPoller(client, &recordingSleeper{}, WithMaxPollAttempts(2), WithMaxResubmissions(2))
	cfg := mustRankingConfig(t, RankingSpec{})

	job, err := poller.Submit(context.Background(), testQuery(), cfg)
	require.NoError(t, err)

	_, err = poller.AwaitReady(context.Background(), job, testQuery(), cfg)
	require.ErrorIs(t, err, ErrResubmissionsExhausted)
	assert.Len(t, client.submitted, 3)
	assert.Equal(t, "J3", job.ID)
	assert.Equal(t, 2, job.Resubmissions)
}

type statusErrorClient struct {
	stubSearchClient
	failures int
}

func (c *statusErrorClient) Status(ctx context.Context, jobID string) (JobStatus, error) {
	if c.failures > 0 {
		c.failures--
		c.statusCalls = append(c.statusCalls, jobID)
		return "", errors.New("connection reset by peer")
	}
	return c.stubSearchClient.Status(ctx, jobID)
}

func TestJobPoller_AwaitReady_StatusTransportErrorIsUnknown(t *testing.T) {
	client := &statusErrorClient{
		stubSearchClient: stubSearchClient{
			submissions: []Submission{{JobID: "JOB", EstimatedWaitSeconds: 0}},
			statuses:    map[string][]JobStatus{"JOB": {JobStatusReady}},
			results:     map[string][]byte{"JOB": []byte("doc")},
		},
		failures: 2,
	}
	poller := newTestPoller(client, &recordingSleeper{})
	cfg := mustRankingConfig(t, RankingSpec{})

	job, err := poller.Submit(context.Background(), testQuery(), cfg)
	require.NoError(t, err)

	doc, err := poller.AwaitReady(context.Background(), job, testQuery(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), doc)
	assert.Equal(t, 3, job.PollAttempts)
}

func TestJobPoller_AwaitReady_ContextCanceled(t *testing.T) {
	client := &stubSearchClient{
		submissions: []Submission{{JobID: "JOB", EstimatedWaitSeconds: 60}},
	}
	poller := newTestPoller(client, &recordingSleeper{})
	cfg := mustRankingConfig(t, RankingSpec{})

	job, err := poller.Submit(context.Background(), testQuery(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = poller.AwaitReady(ctx, job, testQuery(), cfg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.statusCalls)
}

func TestTimerSleeper(t *testing.T) {
	t.Run("ゼロ以下は待たない", func(t *testing.T) {
		require.NoError(t, timerSleeper{}.Sleep(context.Background(), 0))
	})

	t.Run("キャンセルで中断する", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := timerSleeper{}.Sleep(ctx, time.Hour)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("短い待機は完了する", func(t *testing.T) {
		require.NoError(t, timerSleeper{}.Sleep(context.Background(), time.Millisecond))
	})
}
