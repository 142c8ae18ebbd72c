package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls int
	err   error
}

func (r *stubRunner) Run(context.Context) (*Report, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &Report{Best: "random_forest"}, nil
}

func TestSchedulerNext(t *testing.T) {
	s, err := NewScheduler("0 3 * * 0", &stubRunner{}, nil, nil)
	require.NoError(t, err)

	// 2024-06-05 is a Wednesday
	from := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 9, 3, 0, 0, 0, time.UTC), s.Next(from))
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	_, err := NewScheduler("every sunday", &stubRunner{}, nil, nil)
	assert.Error(t, err)
	_, err = NewScheduler("0 0 3 * * 0", &stubRunner{}, nil, nil)
	assert.Error(t, err)
}

func TestSchedulerRunOnceReports(t *testing.T) {
	runner := &stubRunner{}
	var got []error
	s, err := NewScheduler("@daily", runner, nil, func(_ *Report, err error) { got = append(got, err) })
	require.NoError(t, err)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "random_forest", report.Best)

	runner.err = errors.New("no data")
	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)

	require.Len(t, got, 2)
	assert.NoError(t, got[0])
	assert.Error(t, got[1])
}

func TestSchedulerStartStopsWithContext(t *testing.T) {
	s, err := NewScheduler("* * * * *", &stubRunner{}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
