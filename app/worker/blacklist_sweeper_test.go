package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/metrics"
	"github.com/vibast-solutions/ms-go-nengtul/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deleteExpiredQuery = `DELETE FROM blacklist_tokens WHERE expires_at <= \?`

type countingPruner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingPruner) DeleteExpired(context.Context, time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 1, p.err
}

func (p *countingPruner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestSweepDeletesExpiredRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(deleteExpiredQuery).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	sweeper := NewBlacklistSweeper(repository.NewBlacklistTokenRepository(db), time.Minute, collector)
	sweeper.now = func() time.Time { return now }

	deleted, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())

	count, err := testutil.GatherAndCount(reg, "nengtul_blacklist_pruned_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSweepPropagatesStoreError(t *testing.T) {
	sweeper := NewBlacklistSweeper(&countingPruner{err: errors.New("db down")}, time.Minute, nil)

	_, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	pruner := &countingPruner{}
	sweeper := NewBlacklistSweeper(pruner, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pruner.count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
