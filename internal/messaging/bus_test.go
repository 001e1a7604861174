package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus[string](4)
	defer bus.Close()

	sub, err := bus.Subscribe("orders")
	require.NoError(t, err)

	delivered, err := bus.Publish(context.Background(), "orders", "created")
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	env := <-sub.C()
	assert.Equal(t, "orders", env.Topic())
	assert.Equal(t, "created", env.Data())
	assert.NotEmpty(t, env.ID())
	assert.False(t, env.At().IsZero())
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus[int](4)
	defer bus.Close()

	sub1, err := bus.Subscribe("ticks")
	require.NoError(t, err)
	sub2, err := bus.Subscribe("ticks")
	require.NoError(t, err)

	delivered, err := bus.Publish(context.Background(), "ticks", 42)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	assert.Equal(t, 42, (<-sub1.C()).Data())
	assert.Equal(t, 42, (<-sub2.C()).Data())
}

func TestBus_TopicAllReceivesEverything(t *testing.T) {
	bus := NewBus[string](4)
	defer bus.Close()

	all, err := bus.Subscribe(TopicAll)
	require.NoError(t, err)

	_, err = bus.Publish(context.Background(), "a", "first")
	require.NoError(t, err)
	_, err = bus.Publish(context.Background(), "b", "second")
	require.NoError(t, err)

	assert.Equal(t, "first", (<-all.C()).Data())
	assert.Equal(t, "second", (<-all.C()).Data())
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus[string](4)
	defer bus.Close()

	sub, err := bus.Subscribe("orders")
	require.NoError(t, err)

	delivered, err := bus.Publish(context.Background(), "payments", "unrelated")
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	select {
	case env := <-sub.C():
		t.Fatalf("unexpected delivery: %v", env.Data())
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_FullSubscriberDrops(t *testing.T) {
	bus := NewBus[int](1)
	defer bus.Close()

	_, err := bus.Subscribe("ticks")
	require.NoError(t, err)

	_, err = bus.Publish(context.Background(), "ticks", 1)
	require.NoError(t, err)
	delivered, err := bus.Publish(context.Background(), "ticks", 2)
	require.NoError(t, err)

	assert.Equal(t, 0, delivered)
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus[string](4)
	defer bus.Close()

	sub, err := bus.Subscribe("orders")
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed after unsubscribe")

	delivered, err := bus.Publish(context.Background(), "orders", "late")
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
}

func TestBus_Close(t *testing.T) {
	bus := NewBus[string](4)

	sub, err := bus.Subscribe("orders")
	require.NoError(t, err)

	bus.Close()
	bus.Close() // idempotent

	_, ok := <-sub.C()
	assert.False(t, ok)

	_, err = bus.Publish(context.Background(), "orders", "x")
	assert.ErrorIs(t, err, ErrBusClosed)

	_, err = bus.Subscribe("orders")
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBus_PublishCancelledContext(t *testing.T) {
	bus := NewBus[string](4)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.Publish(ctx, "orders", "x")
	assert.ErrorIs(t, err, context.Canceled)
}
