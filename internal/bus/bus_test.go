package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/pkg/apitypes"
)

func ev(typ string) apitypes.Event {
	return apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification, typ, nil)
}

func TestOnReceivesMatchingType(t *testing.T) {
	b := New(logging.Noop())
	var got apitypes.Event
	b.On("text_delta", func(e apitypes.Event) { got = e })
	b.Emit(ev("text_delta"))
	assert.Equal(t, "text_delta", got.Type)
}

func TestOnIgnoresOtherTypes(t *testing.T) {
	b := New(logging.Noop())
	called := false
	b.On("text_delta", func(e apitypes.Event) { called = true })
	b.Emit(ev("message_stop"))
	assert.False(t, called)
}

func TestPriorityOrdering(t *testing.T) {
	b := New(logging.Noop())
	var order []string
	b.On("x", func(e apitypes.Event) { order = append(order, "low") }, Options{Priority: 1})
	b.On("x", func(e apitypes.Event) { order = append(order, "high") }, Options{Priority: 10})
	b.On("x", func(e apitypes.Event) { order = append(order, "mid") }, Options{Priority: 5})
	b.Emit(ev("x"))
	require.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestOnceUnsubscribesAfterFirstCall(t *testing.T) {
	b := New(logging.Noop())
	count := 0
	b.Once("x", func(e apitypes.Event) { count++ })
	b.Emit(ev("x"))
	b.Emit(ev("x"))
	assert.Equal(t, 1, count)
}

func TestOnAnyReceivesEveryType(t *testing.T) {
	b := New(logging.Noop())
	var types []string
	b.OnAny(func(e apitypes.Event) { types = append(types, e.Type) })
	b.Emit(ev("a"))
	b.Emit(ev("b"))
	assert.Equal(t, []string{"a", "b"}, types)
}

func TestFilterSkipsNonMatching(t *testing.T) {
	b := New(logging.Noop())
	called := false
	b.On("x", func(e apitypes.Event) { called = true }, Options{
		Filter: func(e apitypes.Event) bool { return false },
	})
	b.Emit(ev("x"))
	assert.False(t, called)
}

func TestSubscriptionCloseUnsubscribes(t *testing.T) {
	b := New(logging.Noop())
	called := false
	sub := b.On("x", func(e apitypes.Event) { called = true })
	sub.Close()
	b.Emit(ev("x"))
	assert.False(t, called)
}

func TestDestroyStopsDelivery(t *testing.T) {
	b := New(logging.Noop())
	called := false
	b.On("x", func(e apitypes.Event) { called = true })
	b.Destroy()
	b.Emit(ev("x"))
	assert.False(t, called)
}

// TestReentrantEmitDoesNotRecurse verifies that a handler which emits a new
// event while running does not cause Emit to recurse; the nested event is
// queued and processed after the current fan-out completes.
func TestReentrantEmitDoesNotRecurse(t *testing.T) {
	b := New(logging.Noop())
	var order []string
	var mu sync.Mutex
	b.On("a", func(e apitypes.Event) {
		mu.Lock()
		order = append(order, "a-start")
		mu.Unlock()
		b.Emit(ev("b"))
		mu.Lock()
		order = append(order, "a-end")
		mu.Unlock()
	})
	b.On("b", func(e apitypes.Event) {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	})
	b.Emit(ev("a"))
	require.Equal(t, []string{"a-start", "a-end", "b"}, order)
}

func TestHandlerPanicDoesNotStopOtherHandlers(t *testing.T) {
	b := New(logging.Noop())
	secondCalled := false
	b.On("x", func(e apitypes.Event) { panic("boom") }, Options{Priority: 10})
	b.On("x", func(e apitypes.Event) { secondCalled = true }, Options{Priority: 1})
	assert.NotPanics(t, func() { b.Emit(ev("x")) })
	assert.True(t, secondCalled)
}
