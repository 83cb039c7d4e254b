package frame

import (
	"context"
	"sync"
)

// Channel is one end of the message primitive shared by the application and
// the embedded surface. Messages is closed once the channel is closed.
type Channel interface {
	Post(ctx context.Context, data []byte) error
	Messages() <-chan []byte
	Close() error
}

// Embedder attaches the remote surface found at src and returns the channel
// to its content context. Embed returning settles the frame load.
type Embedder interface {
	Embed(ctx context.Context, src string) (Channel, error)
}

type EmbedderFunc func(ctx context.Context, src string) (Channel, error)

func (f EmbedderFunc) Embed(ctx context.Context, src string) (Channel, error) {
	return f(ctx, src)
}

const pipeBuffer = 64

type pipeEnd struct {
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	msgs    chan []byte
	senders sync.WaitGroup
	peer    *pipeEnd
}

// NewPipe returns two connected in-memory channels. Closing either end closes
// both.
func NewPipe() (Channel, Channel) {
	a := &pipeEnd{done: make(chan struct{}), msgs: make(chan []byte, pipeBuffer)}
	b := &pipeEnd{done: make(chan struct{}), msgs: make(chan []byte, pipeBuffer)}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeEnd) Post(ctx context.Context, data []byte) error {
	return p.peer.deliver(ctx, append([]byte(nil), data...))
}

func (p *pipeEnd) deliver(ctx context.Context, data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.senders.Add(1)
	p.mu.Unlock()
	defer p.senders.Done()

	select {
	case p.msgs <- data:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Messages() <-chan []byte {
	return p.msgs
}

func (p *pipeEnd) Close() error {
	p.shutdown()
	p.peer.shutdown()
	return nil
}

func (p *pipeEnd) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.senders.Wait()
	close(p.msgs)
}
