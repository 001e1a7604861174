package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion_Resolve(t *testing.T) {
	c := NewCompletion[int]()

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Resolve(7)
	}()

	v, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	// Already settled: later Await returns the same value immediately.
	v, err = c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCompletion_Reject(t *testing.T) {
	c := NewCompletion[string]()
	boom := errors.New("boom")

	assert.True(t, c.Reject(boom))

	_, err := c.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCompletion_SettlesOnce(t *testing.T) {
	c := NewCompletion[int]()

	assert.True(t, c.Resolve(1))
	assert.False(t, c.Resolve(2))
	assert.False(t, c.Reject(errors.New("late")))

	v, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCompletion_AwaitCancellation(t *testing.T) {
	c := NewCompletion[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := c.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-c.Done():
		t.Fatal("completion should remain unsettled")
	default:
	}
}
