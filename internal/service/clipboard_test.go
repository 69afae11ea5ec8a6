package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAsync starts a write and returns its result channel and the event
// each subscriber received.
func writeAsync(t *testing.T, ctx context.Context, c *BusClipboard, subs ...chan Event) (<-chan error, []Event) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.WriteText(ctx, "55.7060000, 13.1906000") }()

	evs := make([]Event, len(subs))
	for i, ch := range subs {
		select {
		case evs[i] = <-ch:
		case <-time.After(time.Second):
			t.Fatal("no clipboard event")
		}
	}
	return done, evs
}

func TestBusClipboardNoPage(t *testing.T) {
	c := NewBusClipboard(NewEventBus())
	assert.ErrorIs(t, c.WriteText(context.Background(), "x"), ErrClipboardUnavailable)
	assert.Zero(t, c.Pending())

	var nilClip *BusClipboard
	assert.ErrorIs(t, nilClip.WriteText(context.Background(), "x"), ErrClipboardUnavailable)
}

func TestBusClipboardConfirmed(t *testing.T) {
	bus := NewEventBus()
	c := NewBusClipboard(bus)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	done, evs := writeAsync(t, context.Background(), c, ch)
	ev := evs[0]
	assert.Equal(t, ResourceClipboard, ev.Resource)
	assert.Equal(t, "write", ev.Action)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, c.Pending())

	require.NoError(t, c.Confirm(ev.ID, nil))
	require.NoError(t, <-done)
	assert.Zero(t, c.Pending())
}

func TestBusClipboardEveryPageFails(t *testing.T) {
	bus := NewEventBus()
	c := NewBusClipboard(bus)
	a, b := bus.Subscribe(), bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	done, evs := writeAsync(t, context.Background(), c, a, b)
	require.Equal(t, evs[0].ID, evs[1].ID)

	require.NoError(t, c.Confirm(evs[0].ID, errors.New("not focused")))
	select {
	case err := <-done:
		t.Fatalf("write finished after one of two pages: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, c.Confirm(evs[0].ID, errors.New("permission denied")))

	err := <-done
	assert.ErrorContains(t, err, "not focused")
	assert.ErrorContains(t, err, "permission denied")
}

func TestBusClipboardOnePageSucceeds(t *testing.T) {
	bus := NewEventBus()
	c := NewBusClipboard(bus)
	a, b := bus.Subscribe(), bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	done, evs := writeAsync(t, context.Background(), c, a, b)
	require.NoError(t, c.Confirm(evs[0].ID, errors.New("not focused")))
	require.NoError(t, c.Confirm(evs[0].ID, nil))
	require.NoError(t, <-done)

	// late answers are refused
	assert.ErrorIs(t, c.Confirm(evs[0].ID, nil), ErrUnknownClipboardRequest)
}

func TestBusClipboardNoAnswer(t *testing.T) {
	bus := NewEventBus()
	c := NewBusClipboard(bus)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done, evs := writeAsync(t, ctx, c, ch)

	err := <-done
	assert.ErrorIs(t, err, ErrClipboardUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Pending())
	assert.ErrorIs(t, c.Confirm(evs[0].ID, nil), ErrUnknownClipboardRequest)
}

func TestBusClipboardRequestIDs(t *testing.T) {
	bus := NewEventBus()
	c := NewBusClipboard(bus)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	first, evs1 := writeAsync(t, context.Background(), c, ch)
	second, evs2 := writeAsync(t, context.Background(), c, ch)
	require.NotEqual(t, evs1[0].ID, evs2[0].ID)

	require.NoError(t, c.Confirm(evs2[0].ID, errors.New("denied")))
	assert.Error(t, <-second)
	require.NoError(t, c.Confirm(evs1[0].ID, nil))
	assert.NoError(t, <-first)
}
