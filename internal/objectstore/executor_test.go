package objectstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineExecutorRunsSynchronously(t *testing.T) {
	var ran bool
	v, err := InlineExecutor{}.Run(context.Background(), func() (any, error) {
		ran = true
		return 42, nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, 42, v)
}

func TestInlineExecutorRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := InlineExecutor{}.Run(ctx, func() (any, error) {
		t.Fatal("should not run")
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPoolExecutorBoundsConcurrency(t *testing.T) {
	ex := NewPoolExecutor(2)
	var inFlight, maxInFlight int32

	release := make(chan struct{})
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, _ = ex.Run(context.Background(), func() (any, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxInFlight)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
						break
					}
				}
				<-release
				atomic.AddInt32(&inFlight, -1)
				return nil, nil
			})
			done <- struct{}{}
		}()
	}

	close(release)
	for i := 0; i < 5; i++ {
		<-done
	}
	require.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestPoolExecutorPropagatesError(t *testing.T) {
	ex := NewPoolExecutor(1)
	wantErr := errors.New("boom")

	_, err := ex.Run(context.Background(), func() (any, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestRunTReturnsZeroValueOnError(t *testing.T) {
	ex := NewPoolExecutor(1)
	wantErr := errors.New("boom")

	v, err := RunT(context.Background(), ex, func() (string, error) {
		return "unused", wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, "", v)
}

func TestRunTReturnsTypedValue(t *testing.T) {
	ex := InlineExecutor{}
	v, err := RunT(context.Background(), ex, func() (string, error) {
		return "hello", nil
	})
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}
