package repository

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/reliability/circuitbreaker"
)

func TestPostgresAllocateUsesSingleUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1")).
		WithArgs(domain.ProjectCounter).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	alloc := NewPostgresSequenceAllocator(db, nil)
	seq, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
	assert.Equal(t, "PRJ-007", domain.FormatProjectID(seq))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAllocateStoreFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO counters").
		WithArgs(domain.ProjectCounter).
		WillReturnError(errors.New("connection refused"))

	alloc := NewPostgresSequenceAllocator(db, nil)
	seq, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Zero(t, seq)
}

type fakeIncrementer struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
	calls  int
}

func (f *fakeIncrementer) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key]++
	return f.values[key], nil
}

func TestRedisAllocateConcurrentCallersGetDistinctConsecutiveValues(t *testing.T) {
	inc := &fakeIncrementer{values: map[string]int64{"counter:projectId": 10}}
	alloc := NewRedisSequenceAllocator(inc, nil, nil)

	const n = 64
	results := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seq, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
			assert.NoError(t, err)
			results[i] = seq
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, v := range results {
		assert.Equal(t, int64(11+i), v)
	}
}

func TestRedisAllocateStoreFailure(t *testing.T) {
	alloc := NewRedisSequenceAllocator(&fakeIncrementer{err: errors.New("i/o timeout")}, nil, nil)
	_, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRedisAllocateFailsFastWhenBreakerOpen(t *testing.T) {
	inc := &fakeIncrementer{err: errors.New("connection refused")}
	breaker := circuitbreaker.New(2, 1, time.Minute)
	alloc := NewRedisSequenceAllocator(inc, breaker, nil)

	for i := 0; i < 3; i++ {
		_, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())
	assert.Equal(t, 2, inc.calls, "third call must not reach redis")

	_, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
	assert.Contains(t, err.Error(), circuitbreaker.ErrOpen.Error())
}

func TestRedisAllocateCancellationDoesNotTrip(t *testing.T) {
	inc := &fakeIncrementer{err: context.Canceled}
	breaker := circuitbreaker.New(1, 1, time.Minute)
	alloc := NewRedisSequenceAllocator(inc, breaker, nil)

	_, err := alloc.Allocate(context.Background(), domain.ProjectCounter)
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())
}
