// Package correlator pairs outbound requests with the frame events that
// answer them.
package correlator

import (
	"context"
	"github.com/google/uuid"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
	"sync"
)

var ErrClosed = errors.New("correlator closed")

// Correlator keeps one pending entry per issued request. Replies carrying an
// id settle that request. Replies without one settle the most recently issued
// request of their kind, so older same kind requests still wait for their own
// reply.
type Correlator struct {
	mu      sync.Mutex
	closed  bool
	pending map[string]*Pending
	// byKind holds pending ids in issue order.
	byKind map[schema.Kind][]string
}

func New() *Correlator {
	return &Correlator{
		pending: map[string]*Pending{},
		byKind:  map[schema.Kind][]string{},
	}
}

type Pending struct {
	ID   string
	Kind schema.Kind

	c    *Correlator
	done chan struct{}
	ev   schema.Event
	err  error
}

// Issue registers a new pending request of kind.
func (c *Correlator) Issue(kind schema.Kind) (*Pending, error) {
	p := &Pending{
		ID:   uuid.NewString(),
		Kind: kind,
		c:    c,
		done: make(chan struct{}),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.pending[p.ID] = p
	c.byKind[kind] = append(c.byKind[kind], p.ID)
	return p, nil
}

// Wait blocks until the request is settled. Abandoning the wait through ctx
// removes the pending entry.
func (p *Pending) Wait(ctx context.Context) (schema.Event, error) {
	select {
	case <-p.done:
		return p.ev, p.err
	case <-ctx.Done():
		p.Cancel()
		// settled concurrently
		select {
		case <-p.done:
			return p.ev, p.err
		default:
		}
		return schema.Event{}, ctx.Err()
	}
}

// Cancel drops the pending entry without settling it.
func (p *Pending) Cancel() {
	p.c.mu.Lock()
	p.c.remove(p)
	p.c.mu.Unlock()
}

// Settle hands a success or error frame event to its request. It reports
// false when nothing was waiting for it.
func (c *Correlator) Settle(ev schema.Event) bool {
	p := c.Take(ev)
	if p == nil {
		return false
	}
	p.Resolve(ev)
	return true
}

// Take removes and returns the request ev answers, or nil. The caller must
// Resolve it.
func (c *Correlator) Take(ev schema.Event) *Pending {
	kind, outcome, ok := schema.ParseFrameType(ev.Type)
	if !ok || outcome == schema.OutcomeNone {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var p *Pending
	if ev.ID != "" {
		p = c.pending[ev.ID]
		if p != nil && p.Kind != kind {
			p = nil
		}
	} else if ids := c.byKind[kind]; len(ids) > 0 {
		p = c.pending[ids[len(ids)-1]]
	}
	if p != nil {
		c.remove(p)
	}
	return p
}

// Resolve settles a request returned by Take.
func (p *Pending) Resolve(ev schema.Event) {
	p.ev = ev
	close(p.done)
}

// remove must be called with mu held.
func (c *Correlator) remove(p *Pending) {
	if _, ok := c.pending[p.ID]; !ok {
		return
	}
	delete(c.pending, p.ID)
	ids := c.byKind[p.Kind]
	for i, id := range ids {
		if id == p.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(c.byKind, p.Kind)
	} else {
		c.byKind[p.Kind] = ids
	}
}

// Len returns the number of requests still waiting.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close rejects every pending request with ErrClosed. Later Issue calls fail.
func (c *Correlator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = map[string]*Pending{}
	c.byKind = map[schema.Kind][]string{}
	c.mu.Unlock()

	for _, p := range pending {
		p.err = ErrClosed
		close(p.done)
	}
}
