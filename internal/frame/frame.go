package frame

import (
	"context"
	"fmt"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
	"moff.io/frame-bridge/internal/chains"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"net/url"
	"sort"
	"strings"
	"sync"
)

const DefaultSecureSite = "https://secure.walletconnect.com/sdk"

// EventFunc receives validated events in arrival order.
type EventFunc func(ev schema.Event)

type Option func(f *Frame)

// WithEmbedder sets how the initiator attaches the remote surface.
func WithEmbedder(e Embedder) Option {
	return func(f *Frame) { f.embedder = e }
}

// WithParent sets the channel towards the parent context of an embedded frame.
func WithParent(c Channel) Option {
	return func(f *Frame) { f.parent = c }
}

func WithSecureSite(site string) Option {
	return func(f *Frame) { f.secureSite = site }
}

// WithRPCURL overrides the blockchain api host used by Networks.
func WithRPCURL(base string) Option {
	return func(f *Frame) { f.rpcURL = base }
}

// Frame owns the embedded surface lifecycle and both message directions.
// The initiator runs in the application and embeds the surface; the other
// side runs inside the surface and talks to its parent.
type Frame struct {
	projectID  string
	initiator  bool
	secureSite string
	rpcURL     string
	embedder   Embedder
	parent     Channel

	ctx    context.Context
	cancel context.CancelFunc

	loadOnce sync.Once
	loaded   chan struct{}
	loadErr  error
	// content is the channel into the embedded surface, set before loaded closes.
	content Channel

	subMu     sync.RWMutex
	subID     atomic.Int64
	frameSubs map[int64]EventFunc
	appSubs   map[int64]EventFunc

	closed atomic.Bool
	wg     sync.WaitGroup
	// done closes once the read loop has stopped or the frame is closed.
	done     chan struct{}
	doneOnce sync.Once
}

func New(projectID string, asInitiator bool, opts ...Option) *Frame {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Frame{
		projectID:  projectID,
		initiator:  asInitiator,
		secureSite: DefaultSecureSite,
		ctx:        ctx,
		cancel:     cancel,
		loaded:     make(chan struct{}),
		done:       make(chan struct{}),
		frameSubs:  map[int64]EventFunc{},
		appSubs:    map[int64]EventFunc{},
	}
	for _, opt := range opts {
		opt(f)
	}
	switch {
	case asInitiator && f.embedder == nil:
		f.settle(nil, ErrTransportUnavailable)
	case asInitiator:
		f.wg.Add(1)
		go f.embed()
	default:
		if f.parent == nil {
			f.settle(nil, ErrTransportUnavailable)
		} else {
			f.settle(nil, nil)
			f.listen(f.parent)
		}
	}
	return f
}

// Src is the url the initiator embeds.
func (f *Frame) Src() string {
	return fmt.Sprintf("%s?projectId=%s", f.secureSite, url.QueryEscape(f.projectID))
}

func (f *Frame) ProjectID() string {
	return f.projectID
}

func (f *Frame) embed() {
	defer f.wg.Done()
	src := f.Src()
	ch, err := f.embedder.Embed(f.ctx, src)
	if err != nil {
		log.Warnf("frame - embed %v: %v", src, err)
		f.settle(nil, &LoadError{Src: src, Err: err})
		return
	}
	if !f.settle(ch, nil) {
		_ = ch.Close()
		return
	}
	log.Debugf("frame - loaded %v", src)
	f.listen(ch)
}

func (f *Frame) settle(ch Channel, err error) bool {
	settled := false
	f.loadOnce.Do(func() {
		f.content = ch
		f.loadErr = err
		close(f.loaded)
		settled = true
	})
	return settled
}

// Ready blocks until the surface has loaded. A load failure is returned to
// every caller.
func (f *Frame) Ready(ctx context.Context) error {
	select {
	case <-f.loaded:
		return f.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PostToFrame validates ev as an app event and sends it into the embedded
// surface. The event is also delivered to local app event subscribers on the
// caller's goroutine.
func (f *Frame) PostToFrame(ctx context.Context, ev schema.Event) error {
	if !f.initiator || f.embedder == nil {
		return ErrTransportUnavailable
	}
	if f.closed.Load() {
		return ErrClosed
	}
	data, err := schema.CheckApp(ev)
	if err != nil {
		return err
	}
	if err := f.Ready(ctx); err != nil {
		return err
	}
	if err := f.content.Post(ctx, data); err != nil {
		return errors.Wrapf(err, "post %v to frame", ev.Type)
	}
	f.dispatch(data)
	return nil
}

// PostToParent validates ev as a frame event and sends it to the parent context.
func (f *Frame) PostToParent(ctx context.Context, ev schema.Event) error {
	if f.parent == nil {
		return ErrTransportUnavailable
	}
	if f.closed.Load() {
		return ErrClosed
	}
	data, err := schema.CheckFrame(ev)
	if err != nil {
		return err
	}
	if err := f.parent.Post(ctx, data); err != nil {
		return errors.Wrapf(err, "post %v to parent", ev.Type)
	}
	return nil
}

// OnFrameEvent subscribes to validated frame events. The returned func
// removes the subscription.
func (f *Frame) OnFrameEvent(cb EventFunc) func() {
	return f.subscribe(f.frameSubs, cb)
}

// OnAppEvent subscribes to validated app events.
func (f *Frame) OnAppEvent(cb EventFunc) func() {
	return f.subscribe(f.appSubs, cb)
}

func (f *Frame) subscribe(subs map[int64]EventFunc, cb EventFunc) func() {
	id := f.subID.Inc()
	f.subMu.Lock()
	subs[id] = cb
	f.subMu.Unlock()
	return func() {
		f.subMu.Lock()
		delete(subs, id)
		f.subMu.Unlock()
	}
}

// Networks derives the rpc endpoints for the frame's project.
func (f *Frame) Networks(timezone string) chains.NetworkMap {
	base := f.rpcURL
	if base == "" {
		base = chains.BlockchainAPIURL(timezone)
	}
	return chains.Networks(base, f.projectID)
}

// Done is closed when the channel stops delivering messages or the frame is
// closed.
func (f *Frame) Done() <-chan struct{} {
	return f.done
}

func (f *Frame) finish() {
	f.doneOnce.Do(func() { close(f.done) })
}

func (f *Frame) listen(ch Channel) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.finish()
		for {
			select {
			case data, ok := <-ch.Messages():
				if !ok {
					log.Debugf("frame - channel closed")
					return
				}
				f.dispatch(data)
			case <-f.ctx.Done():
				return
			}
		}
	}()
}

func (f *Frame) dispatch(data []byte) {
	typ := gjson.GetBytes(data, "type").Str
	var (
		ev   schema.Event
		err  error
		subs map[int64]EventFunc
	)
	switch {
	case strings.HasPrefix(typ, schema.FrameEventKey):
		ev, err = schema.ParseFrameEvent(data)
		subs = f.frameSubs
	case strings.HasPrefix(typ, schema.AppEventKey):
		ev, err = schema.ParseAppEvent(data)
		subs = f.appSubs
	default:
		log.Debugf("frame - ignored foreign message type %q", typ)
		return
	}
	if err != nil {
		log.Warnf("frame - dropped message: %v", err)
		return
	}

	f.subMu.RLock()
	cbs := make([]EventFunc, 0, len(subs))
	ids := make([]int64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cbs = append(cbs, subs[id])
	}
	f.subMu.RUnlock()

	for _, cb := range cbs {
		cb(ev)
	}
}

// Close tears the frame down. A pending load fails with ErrClosed.
func (f *Frame) Close() error {
	if !f.closed.CAS(false, true) {
		return nil
	}
	f.cancel()
	f.settle(nil, ErrClosed)
	var err error
	if f.content != nil {
		err = f.content.Close()
	}
	if f.parent != nil {
		if perr := f.parent.Close(); err == nil {
			err = perr
		}
	}
	f.wg.Wait()
	f.finish()
	return err
}
