package provider

import (
	"context"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/log"
)

// handle runs on the frame read loop. Session side effects are applied before
// the waiting caller is released, and only for replies somebody waited for.
func (c *Client) handle(ev schema.Event) {
	if c.sink != nil {
		if err := c.sink.PublishFrameEvent(ev); err != nil {
			log.Warnf("provider - publish %v: %v", ev.Type, err)
		}
	}
	if ev.Type == schema.FrameSessionUpdate {
		c.sideEffect(ev)
		return
	}
	p := c.correlator.Take(ev)
	if p == nil {
		log.Debugf("provider - dropped unsolicited %v id=%v", ev.Type, ev.ID)
		return
	}
	c.sideEffect(ev)
	p.Resolve(ev)
}

func (c *Client) sideEffect(ev schema.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), c.storeTimeout)
	defer cancel()
	if err := c.applySideEffect(ctx, ev); err != nil {
		log.Errorf("provider - update session on %v: %v", ev.Type, err)
	}
}

func (c *Client) applySideEffect(ctx context.Context, ev schema.Event) error {
	switch ev.Type {
	case schema.FrameConnectEmailSuccess, schema.FrameUpdateEmailSuccess:
		return c.store.Throttle().Record(ctx)
	case schema.FrameGetUserSuccess:
		var u schema.GetUserResponse
		if err := ev.Decode(&u); err != nil {
			return err
		}
		if err := c.store.RecordLogin(ctx, u.Email); err != nil {
			return err
		}
		return c.store.RecordChainID(ctx, u.ChainID)
	case schema.FrameSwitchNetworkSuccess, schema.FrameGetChainIDSuccess:
		var r schema.ChainIDResponse
		if err := ev.Decode(&r); err != nil {
			return err
		}
		return c.store.RecordChainID(ctx, r.ChainID)
	case schema.FrameIsConnectedSuccess:
		var r schema.IsConnectedResponse
		if err := ev.Decode(&r); err != nil {
			return err
		}
		if !r.IsConnected {
			return c.store.Clear(ctx)
		}
	case schema.FrameSignOutSuccess:
		return c.store.Clear(ctx)
	case schema.FrameAwaitUpdateEmailSuccess:
		var r schema.AwaitUpdateEmailResponse
		if err := ev.Decode(&r); err != nil {
			return err
		}
		return c.store.RecordLogin(ctx, r.Email)
	case schema.FrameSessionUpdate:
		var t schema.SessionToken
		if err := ev.Decode(&t); err != nil {
			return err
		}
		return c.store.RecordSessionToken(ctx, t.Token)
	}
	return nil
}

// OnRPCRequest observes outbound rpc requests. The returned func unsubscribes.
func (c *Client) OnRPCRequest(cb func(ev schema.Event)) func() {
	return c.frame.OnAppEvent(func(ev schema.Event) {
		if schema.IsRPCType(ev.Type) {
			cb(ev)
		}
	})
}

// OnRPCResponse observes rpc replies.
func (c *Client) OnRPCResponse(cb func(ev schema.Event)) func() {
	return c.frame.OnFrameEvent(func(ev schema.Event) {
		if schema.IsRPCType(ev.Type) {
			cb(ev)
		}
	})
}

// OnIsConnected fires whenever the frame reports the signed in user.
func (c *Client) OnIsConnected(cb func(user schema.GetUserResponse)) func() {
	return c.frame.OnFrameEvent(func(ev schema.Event) {
		if ev.Type != schema.FrameGetUserSuccess {
			return
		}
		var u schema.GetUserResponse
		if err := ev.Decode(&u); err != nil {
			log.Warnf("provider - decode %v: %v", ev.Type, err)
			return
		}
		cb(u)
	})
}
