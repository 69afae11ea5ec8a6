package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// Clipboard writes text to the user's clipboard. WriteText returns once the
// write is known to have succeeded or failed, or ctx is done.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// ErrUnknownClipboardRequest is returned by Confirm for a request that is
// not waiting, because it never existed, was answered or timed out.
var ErrUnknownClipboardRequest = errors.New("unknown clipboard request")

// BusClipboard hands clipboard writes to the pages subscribed to an event
// bus. Each write is published as a clipboard event carrying a request id;
// the pages perform the write and report back through Confirm.
//
// A write succeeds as soon as one page confirms it and fails once every
// page that received it has reported a failure.
type BusClipboard struct {
	bus *EventBus

	mu      sync.Mutex
	next    uint64
	pending map[string]*clipboardRequest
}

type clipboardRequest struct {
	result  chan error
	waiting int
	errs    []error
}

// NewBusClipboard creates a clipboard that writes through the pages on bus.
func NewBusClipboard(bus *EventBus) *BusClipboard {
	return &BusClipboard{bus: bus, pending: make(map[string]*clipboardRequest)}
}

// WriteText publishes a clipboard event and waits for the pages to answer.
// It fails at once when no page is listening.
func (c *BusClipboard) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.bus == nil {
		return ErrClipboardUnavailable
	}

	req := &clipboardRequest{result: make(chan error, 1)}
	// publishing under the lock keeps an answer from arriving before
	// waiting is set
	c.mu.Lock()
	c.next++
	id := strconv.FormatUint(c.next, 10)
	c.pending[id] = req
	req.waiting = c.bus.Publish(Event{Resource: ResourceClipboard, Action: "write", ID: id, Text: text})
	c.mu.Unlock()
	defer c.forget(id)

	if req.waiting == 0 {
		return fmt.Errorf("%w: no page connected", ErrClipboardUnavailable)
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: no page answered: %w", ErrClipboardUnavailable, ctx.Err())
	}
}

// Confirm reports the outcome of request id on one page: nil for a
// successful write, the page's error otherwise.
func (c *BusClipboard) Confirm(id string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.pending[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownClipboardRequest, id)
	}
	if err == nil {
		req.result <- nil
		delete(c.pending, id)
		return nil
	}
	req.errs = append(req.errs, err)
	if len(req.errs) >= req.waiting {
		req.result <- errors.Join(req.errs...)
		delete(c.pending, id)
	}
	return nil
}

// Pending returns the number of writes waiting for an answer.
func (c *BusClipboard) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *BusClipboard) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
