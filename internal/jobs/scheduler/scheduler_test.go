package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinscope/coinscope/internal/database"
	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/queue"
)

type addCall struct {
	queue string
	name  string
	opts  queue.JobOptions
}

// fakeBackend records AddJob and pause/resume calls without running anything.
type fakeBackend struct {
	adds    []addCall
	paused  map[string]bool
	failOn  string // queue name whose pause/resume fails
	nextID  int
	lastErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{paused: make(map[string]bool)}
}

func (b *fakeBackend) AddJob(ctx context.Context, q, name string, payload any, opts queue.JobOptions) (*queue.Job, error) {
	if b.lastErr != nil {
		return nil, b.lastErr
	}
	b.adds = append(b.adds, addCall{queue: q, name: name, opts: opts})
	b.nextID++
	return &queue.Job{ID: "job-" + name, Queue: q, Name: name}, nil
}

func (b *fakeBackend) GetJob(ctx context.Context, q, jobID string) (*queue.Job, error) {
	return nil, errors.New("not found")
}

func (b *fakeBackend) GetQueueStatus(ctx context.Context, q string) (queue.Status, error) {
	return queue.Status{}, nil
}

func (b *fakeBackend) PauseQueue(ctx context.Context, q string) error {
	if q == b.failOn {
		return errors.New("pause refused")
	}
	b.paused[q] = true
	return nil
}

func (b *fakeBackend) ResumeQueue(ctx context.Context, q string) error {
	if q == b.failOn {
		return errors.New("resume refused")
	}
	b.paused[q] = false
	return nil
}

func (b *fakeBackend) Subscribe(q string) (<-chan queue.Event, func()) {
	ch := make(chan queue.Event)
	return ch, func() {}
}

func (b *fakeBackend) Dequeue(ctx context.Context, q string) (*queue.Job, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *fakeBackend) Complete(job *queue.Job)           {}
func (b *fakeBackend) Fail(job *queue.Job, jobErr error) {}
func (b *fakeBackend) Progress(job *queue.Job, pct int)  {}
func (b *fakeBackend) Close() error                      { return nil }

func (b *fakeBackend) callsFor(queueName string) []addCall {
	var out []addCall
	for _, c := range b.adds {
		if c.queue == queueName {
			out = append(out, c)
		}
	}
	return out
}

func newCoinsRepo(t *testing.T) *coins.Repository {
	t.Helper()
	db, err := database.New(database.Config{Path: t.TempDir(), Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return coins.NewRepository(db.Conn(), zerolog.Nop())
}

func seedCoin(t *testing.T, repo *coins.Repository, symbol string) int64 {
	t.Helper()
	id, err := repo.Insert(domain.Coin{
		Symbol:          symbol,
		Name:            symbol + " Token",
		ContractAddress: "0x" + symbol,
		Active:          true,
	})
	require.NoError(t, err)
	return id
}

func TestInitializeRegistersRecurringJobsPerCoin(t *testing.T) {
	repo := newCoinsRepo(t)
	seedCoin(t, repo, "AAA")
	seedCoin(t, repo, "BBB")

	backend := newFakeBackend()
	s := New(backend, repo, false, zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))

	// Five recurring jobs per coin plus four global jobs, backup disabled.
	assert.Len(t, backend.adds, 2*5+4)

	price := backend.callsFor(queue.QueuePriceUpdates)
	require.Len(t, price, 2)
	for _, c := range price {
		assert.Equal(t, jobs.JobUpdateCoinPrice, c.name)
		require.NotNil(t, c.opts.Repeat)
		assert.Equal(t, "*/5 * * * *", c.opts.Repeat.Pattern)
	}

	whale := backend.callsFor(queue.QueueWhaleMonitoring)
	assert.Len(t, whale, 4) // scan and impact per coin

	maint := backend.callsFor(queue.QueueMaintenance)
	assert.Len(t, maint, 3)
	for _, c := range maint {
		assert.NotEqual(t, jobs.JobBackupDatabase, c.name)
	}

	alerts := backend.callsFor(queue.QueueAlerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, "* * * * *", alerts[0].opts.Repeat.Pattern)
}

func TestInitializeRegistersBackupWhenEnabled(t *testing.T) {
	repo := newCoinsRepo(t)
	backend := newFakeBackend()
	s := New(backend, repo, true, zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))

	var found bool
	for _, c := range backend.callsFor(queue.QueueMaintenance) {
		if c.name == jobs.JobBackupDatabase {
			found = true
			assert.Equal(t, "0 4 * * *", c.opts.Repeat.Pattern)
		}
	}
	assert.True(t, found)
}

func TestScheduleCoinPriceUpdate(t *testing.T) {
	repo := newCoinsRepo(t)
	id := seedCoin(t, repo, "CCC")

	backend := newFakeBackend()
	s := New(backend, repo, false, zerolog.Nop())

	job, err := s.ScheduleCoinPriceUpdate(context.Background(), id, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.Len(t, backend.adds, 1)
	call := backend.adds[0]
	assert.Equal(t, queue.QueuePriceUpdates, call.queue)
	assert.Equal(t, jobs.JobUpdateCoinPrice, call.name)
	assert.Equal(t, 5*time.Second, call.opts.Delay)
	assert.Equal(t, 3, call.opts.Attempts)
	assert.Equal(t, queue.BackoffExponential, call.opts.Backoff.Type)
}

func TestScheduleUnknownCoinEnqueuesNothing(t *testing.T) {
	repo := newCoinsRepo(t)
	backend := newFakeBackend()
	s := New(backend, repo, false, zerolog.Nop())
	ctx := context.Background()

	_, err := s.ScheduleCoinPriceUpdate(ctx, 999999, 0)
	assert.True(t, domain.IsNotFound(err))

	_, err = s.ScheduleCoinSocialScraping(ctx, 999999, 0)
	assert.True(t, domain.IsNotFound(err))

	_, err = s.ScheduleCoinRiskAssessment(ctx, 999999, 0)
	assert.True(t, domain.IsNotFound(err))

	assert.Empty(t, backend.adds, "failed lookups must not enqueue")
}

func TestScheduleCoinRiskAssessmentForcesRefresh(t *testing.T) {
	repo := newCoinsRepo(t)
	id := seedCoin(t, repo, "DDD")

	backend := newFakeBackend()
	s := New(backend, repo, false, zerolog.Nop())

	_, err := s.ScheduleCoinRiskAssessment(context.Background(), id, 0)
	require.NoError(t, err)

	require.Len(t, backend.adds, 1)
	assert.Equal(t, queue.QueueRiskAssessment, backend.adds[0].queue)
	assert.Equal(t, 2, backend.adds[0].opts.Attempts)
}

func TestPauseAllJobsContinuesPastFailures(t *testing.T) {
	repo := newCoinsRepo(t)
	backend := newFakeBackend()
	backend.failOn = queue.QueueAlerts
	s := New(backend, repo, false, zerolog.Nop())

	err := s.PauseAllJobs(context.Background())
	require.Error(t, err)

	// Every other queue was still paused.
	for _, name := range queue.AllQueues {
		if name == queue.QueueAlerts {
			continue
		}
		assert.True(t, backend.paused[name], name)
	}
}

func TestResumeAllJobs(t *testing.T) {
	repo := newCoinsRepo(t)
	backend := newFakeBackend()
	s := New(backend, repo, false, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.PauseAllJobs(ctx))
	require.NoError(t, s.ResumeAllJobs(ctx))
	for _, name := range queue.AllQueues {
		assert.False(t, backend.paused[name], name)
	}
}
