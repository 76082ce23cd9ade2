package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/service"
)

type fakeResetter struct {
	mu       sync.Mutex
	failures int
	requests []service.ResetRequest
	done     chan struct{}
}

func (f *fakeResetter) Reset(ctx context.Context, req service.ResetRequest) (*dto.ResetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("db down")
	}
	close(f.done)
	return &dto.ResetResponse{Success: true, DeletedCount: 3}, nil
}

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) SweepExpired(ctx context.Context) (int64, error) {
	f.calls++
	return 1, nil
}

func TestResetSchedulerRetriesFailedReset(t *testing.T) {
	resetter := &fakeResetter{failures: 1, done: make(chan struct{})}
	sweeper := &fakeSweeper{}
	s, err := NewResetScheduler(resetter, sweeper, Config{
		Spec:       "0 6 * * *",
		Retries:    2,
		RetryDelay: time.Millisecond,
	}, nil)
	require.NoError(t, err)

	s.Start(context.Background())
	s.Trigger()

	select {
	case <-resetter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reset never succeeded")
	}
	s.Stop()

	resetter.mu.Lock()
	defer resetter.mu.Unlock()
	require.Len(t, resetter.requests, 2)
	assert.Equal(t, service.ResetTriggerScheduled, resetter.requests[0].Trigger)
	assert.Nil(t, resetter.requests[0].Actor)
	assert.Equal(t, 1, sweeper.calls)
}

func TestResetSchedulerUsesCohortTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Makassar")
	require.NoError(t, err)

	s, err := NewResetScheduler(&fakeResetter{done: make(chan struct{})}, nil, Config{Spec: "0 6 * * *", Location: loc}, nil)
	require.NoError(t, err)
	s.Start(context.Background())
	defer s.Stop()

	next := s.Next().In(loc)
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestResetSchedulerRejectsInvalidSpec(t *testing.T) {
	_, err := NewResetScheduler(&fakeResetter{}, nil, Config{Spec: "every morning"}, nil)
	assert.Error(t, err)
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	err   error
	calls int
	limit int
	done  chan struct{}
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.limit {
		close(f.done)
	}
	return "2024-03/attendance_XI-2.csv", f.err
}

func TestResetSchedulerSkipsWipeWhenSnapshotFails(t *testing.T) {
	resetter := &fakeResetter{done: make(chan struct{})}
	snapshots := &fakeSnapshotter{err: errors.New("disk full"), limit: 2, done: make(chan struct{})}
	s, err := NewResetScheduler(resetter, nil, Config{
		Spec:       "0 6 * * *",
		Retries:    1,
		RetryDelay: time.Millisecond,
		Snapshots:  snapshots,
	}, nil)
	require.NoError(t, err)

	s.Start(context.Background())
	s.Trigger()

	select {
	case <-snapshots.done:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not retried")
	}
	s.Stop()

	resetter.mu.Lock()
	defer resetter.mu.Unlock()
	assert.Empty(t, resetter.requests)
}
