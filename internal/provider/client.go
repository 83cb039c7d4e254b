// Package provider 对应用暴露frame的全部操作.
// 每个操作: 等待frame加载 -> (邮件类)检查冷却 -> 校验并发送 -> 等待对应回复 -> 更新会话.
package provider

import (
	"context"
	"encoding/json"
	"moff.io/frame-bridge/internal/correlator"
	"moff.io/frame-bridge/internal/frame"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/internal/session"
	"moff.io/frame-bridge/pkg/concurrent"
	"moff.io/frame-bridge/pkg/log"
	"moff.io/frame-bridge/pkg/log/meta"
	"time"
)

// EventSink receives every validated frame event.
type EventSink interface {
	PublishFrameEvent(ev schema.Event) error
}

type Option func(c *Client)

func WithEventSink(sink EventSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithMaxInFlight bounds the number of requests waiting for a reply. Further
// calls block until a slot frees or their context ends.
func WithMaxInFlight(n int) Option {
	return func(c *Client) { c.inFlight = concurrent.NewLimiter(n) }
}

// WithStoreTimeout bounds session writes made while handling inbound events.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Client) { c.storeTimeout = d }
}

type Client struct {
	frame      *frame.Frame
	store      *session.Store
	correlator *correlator.Correlator
	sink       EventSink
	inFlight   concurrent.Limiter

	storeTimeout time.Duration
	unsubscribe  func()
}

func New(f *frame.Frame, store *session.Store, opts ...Option) *Client {
	c := &Client{
		frame:        f,
		store:        store,
		correlator:   correlator.New(),
		storeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsubscribe = f.OnFrameEvent(c.handle)
	return c
}

func (c *Client) Frame() *frame.Frame {
	return c.frame
}

func (c *Client) Session() *session.Store {
	return c.store
}

// Pending returns the number of requests waiting for a reply.
func (c *Client) Pending() int {
	return c.correlator.Len()
}

// Close stops handling frame events and fails every waiting request with
// correlator.ErrClosed. The frame itself stays open.
func (c *Client) Close() {
	c.unsubscribe()
	c.correlator.Close()
}

// call sends one request of kind and decodes the success payload into out.
func (c *Client) call(ctx context.Context, kind schema.Kind, payload, out interface{}) error {
	if c.inFlight != nil {
		if err := c.inFlight.Add(ctx); err != nil {
			return err
		}
		defer c.inFlight.Done()
	}
	p, err := c.correlator.Issue(kind)
	if err != nil {
		return err
	}
	ev, err := schema.NewAppEvent(kind, p.ID, payload)
	if err != nil {
		p.Cancel()
		return err
	}
	log.Debugf("provider - [%v] send %v id=%v", meta.RequestID(ctx), ev.Type, p.ID)
	if err := c.frame.PostToFrame(ctx, ev); err != nil {
		p.Cancel()
		return err
	}
	reply, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	log.Debugf("provider - [%v] got %v id=%v", meta.RequestID(ctx), reply.Type, p.ID)
	if reply.Outcome() == schema.OutcomeError {
		return &RemoteError{Type: reply.Type, Message: reply.ErrorMessage()}
	}
	if out == nil {
		return nil
	}
	return reply.Decode(out)
}

// ConnectEmail starts an email login. It is refused inside the cooldown.
func (c *Client) ConnectEmail(ctx context.Context, email string) (*schema.ConnectEmailResponse, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	if err := c.store.Throttle().AssertAllowed(ctx); err != nil {
		return nil, err
	}
	resp := &schema.ConnectEmailResponse{}
	if err := c.call(ctx, schema.KindConnectEmail, schema.ConnectEmailRequest{Email: email}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ConnectDevice(ctx context.Context) error {
	if err := c.frame.Ready(ctx); err != nil {
		return err
	}
	return c.call(ctx, schema.KindConnectDevice, nil, nil)
}

func (c *Client) ConnectOtp(ctx context.Context, otp string) error {
	if err := c.frame.Ready(ctx); err != nil {
		return err
	}
	return c.call(ctx, schema.KindConnectOtp, schema.ConnectOtpRequest{Otp: otp}, nil)
}

// Connect fetches the signed in user on chainID, or on the last used chain
// when chainID is nil.
func (c *Client) Connect(ctx context.Context, chainID *int64) (*schema.GetUserResponse, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	if chainID == nil {
		id, err := c.store.DefaultChainID(ctx)
		if err != nil {
			return nil, err
		}
		chainID = &id
	}
	resp := &schema.GetUserResponse{}
	if err := c.call(ctx, schema.KindGetUser, schema.GetUserRequest{ChainID: chainID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) SwitchNetwork(ctx context.Context, chainID int64) (*schema.ChainIDResponse, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	resp := &schema.ChainIDResponse{}
	if err := c.call(ctx, schema.KindSwitchNetwork, schema.SwitchNetworkRequest{ChainID: chainID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.frame.Ready(ctx); err != nil {
		return err
	}
	return c.call(ctx, schema.KindSignOut, nil, nil)
}

// IsConnected asks the frame whether the persisted session is still valid.
func (c *Client) IsConnected(ctx context.Context) (*schema.IsConnectedResponse, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	token, err := c.store.SessionToken(ctx)
	if err != nil {
		return nil, err
	}
	var payload interface{}
	if token != "" {
		payload = schema.SessionToken{Token: token}
	}
	resp := &schema.IsConnectedResponse{}
	if err := c.call(ctx, schema.KindIsConnected, payload, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetChainID(ctx context.Context) (*schema.ChainIDResponse, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	resp := &schema.ChainIDResponse{}
	if err := c.call(ctx, schema.KindGetChainID, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateEmail starts an email change. It shares the login cooldown.
func (c *Client) UpdateEmail(ctx context.Context, email string) error {
	if err := c.frame.Ready(ctx); err != nil {
		return err
	}
	if err := c.store.Throttle().AssertAllowed(ctx); err != nil {
		return err
	}
	return c.call(ctx, schema.KindUpdateEmail, schema.UpdateEmailRequest{Email: email}, nil)
}

// AwaitUpdateEmail waits until the user confirmed the new email.
func (c *Client) AwaitUpdateEmail(ctx context.Context) (*schema.AwaitUpdateEmailResponse, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	resp := &schema.AwaitUpdateEmailResponse{}
	if err := c.call(ctx, schema.KindAwaitUpdateEmail, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) SyncTheme(ctx context.Context, req schema.SyncThemeRequest) error {
	if err := c.frame.Ready(ctx); err != nil {
		return err
	}
	return c.call(ctx, schema.KindSyncTheme, req, nil)
}

func (c *Client) SyncDappData(ctx context.Context, req schema.SyncDappDataRequest) error {
	if err := c.frame.Ready(ctx); err != nil {
		return err
	}
	return c.call(ctx, schema.KindSyncDappData, req, nil)
}

// Request forwards a wallet rpc call and returns the raw result. eth_chainId
// is answered from the session without reaching the frame.
func (c *Client) Request(ctx context.Context, req schema.RPCRequest) (json.RawMessage, error) {
	if err := c.frame.Ready(ctx); err != nil {
		return nil, err
	}
	if req.Method == schema.RPCEthChainID {
		id, err := c.store.DefaultChainID(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(id)
	}
	var result json.RawMessage
	if err := c.call(ctx, schema.KindRPCRequest, req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// TimeToNextEmailLogin returns the seconds left in the email cooldown.
func (c *Client) TimeToNextEmailLogin(ctx context.Context) (int64, error) {
	return c.store.Throttle().Remaining(ctx)
}
