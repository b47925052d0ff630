package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Value int
}

func recvOne(t *testing.T, sub *Subscription) any {
	t.Helper()
	select {
	case e := <-sub.Out():
		return e
	case <-time.After(time.Second):
		t.Fatal("no event")
		return nil
	}
}

func TestBus_EmitAndReceive(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	defer em.Close()

	require.NoError(t, em.Emit(testEvent{Value: 7}))
	assert.Equal(t, testEvent{Value: 7}, recvOne(t, sub))
}

func TestBus_InvalidTypes(t *testing.T) {
	bus := NewBus()
	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)
	_, err = bus.Subscribe(testEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)
	_, err = bus.Emitter(testEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	a, _ := bus.Subscribe(new(testEvent))
	b, _ := bus.Subscribe(new(testEvent))
	em, _ := bus.Emitter(new(testEvent))

	require.NoError(t, em.Emit(testEvent{Value: 1}))
	assert.Equal(t, testEvent{Value: 1}, recvOne(t, a))
	assert.Equal(t, testEvent{Value: 1}, recvOne(t, b))
}

func TestBus_TypesAreIsolated(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe(new(EvtData))
	em, _ := bus.Emitter(new(EvtOpen))

	require.NoError(t, em.Emit(EvtOpen{}))
	select {
	case e := <-sub.Out():
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestBus_Stateful(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(testEvent), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(testEvent{Value: 3}))

	late, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	assert.Equal(t, testEvent{Value: 3}, recvOne(t, late))
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe(new(testEvent), BufSize(1))
	em, _ := bus.Emitter(new(testEvent))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			em.Emit(testEvent{Value: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked")
	}
	assert.Equal(t, testEvent{Value: 0}, recvOne(t, sub))
}

func TestSubscription_Close(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe(new(testEvent))
	em, _ := bus.Emitter(new(testEvent))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, ok := <-sub.Out()
	assert.False(t, ok)
	assert.NoError(t, em.Emit(testEvent{}))
}

func TestEmitter_Close(t *testing.T) {
	bus := NewBus()
	em, _ := bus.Emitter(new(testEvent))
	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(testEvent{}), ErrEmitterClosed)

	bus.mu.RLock()
	assert.Empty(t, bus.nodes)
	bus.mu.RUnlock()
}

func TestBus_CloseEndsSubscriptions(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe(new(EvtNodeAdded))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range sub.Out() {
		}
	}()
	require.NoError(t, bus.Close())
	wg.Wait()

	_, err := bus.Subscribe(new(EvtNodeAdded))
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, bus.Close())
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe(new(testEvent), BufSize(1000))
	em, _ := bus.Emitter(new(testEvent))

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				em.Emit(testEvent{Value: i})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, sub.Out(), 500)
}
