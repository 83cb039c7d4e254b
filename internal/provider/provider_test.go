package provider

import (
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/big"
	"moff.io/frame-bridge/internal/cache"
	"moff.io/frame-bridge/internal/correlator"
	"moff.io/frame-bridge/internal/frame"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/internal/session"
	"moff.io/frame-bridge/internal/surface"
	"moff.io/frame-bridge/pkg/errors"
	"sync"
	"testing"
	"time"
)

const testOtp = "123456"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	client  *Client
	surface *surface.Surface
	store   *session.Store
	clock   *fakeClock
}

func embedderOf(ch frame.Channel) frame.Embedder {
	return frame.EmbedderFunc(func(ctx context.Context, src string) (frame.Channel, error) {
		return ch, nil
	})
}

func newStore(clock *fakeClock) *session.Store {
	backend := cache.NewMemory()
	return session.NewStore(backend, session.NewThrottle(backend, session.WithClock(clock.now)))
}

func newEnv(t *testing.T, opts surface.Options) *env {
	appEnd, surfaceEnd := frame.NewPipe()
	opts.ProjectID = "pid"
	s, err := surface.New(surfaceEnd, opts)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	store := newStore(clock)
	f := frame.New("pid", true, frame.WithEmbedder(embedderOf(appEnd)))
	c := New(f, store)
	t.Cleanup(func() {
		c.Close()
		_ = f.Close()
		_ = s.Close()
	})
	return &env{client: c, surface: s, store: store, clock: clock}
}

func (e *env) login(t *testing.T, email string) {
	ctx := context.Background()
	resp, err := e.client.ConnectEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, schema.ActionVerifyOtp, resp.Action)
	require.NoError(t, e.client.ConnectOtp(ctx, testOtp))
	_, err = e.client.Connect(ctx, nil)
	require.NoError(t, err)
}

func TestConnectEmailThrottled(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp})
	ctx := context.Background()

	resp, err := e.client.ConnectEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, schema.ActionVerifyOtp, resp.Action)

	e.clock.advance(5 * time.Second)
	_, err = e.client.ConnectEmail(ctx, "a@b.com")
	require.Error(t, err)
	var terr *session.ThrottledError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, int64(25), terr.Remaining)
	assert.Equal(t, int64(1), e.surface.Served())

	remaining, err := e.client.TimeToNextEmailLogin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(25), remaining)

	assert.True(t, errors.Is(e.client.UpdateEmail(ctx, "b@b.com"), session.ErrThrottled))
}

func TestEthChainIDFromSession(t *testing.T) {
	e := newEnv(t, surface.Options{})
	ctx := context.Background()
	require.NoError(t, e.store.RecordChainID(ctx, 10))

	requests := 0
	e.client.OnRPCRequest(func(ev schema.Event) { requests++ })

	raw, err := e.client.Request(ctx, schema.RPCRequest{Method: schema.RPCEthChainID})
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(raw))
	assert.Equal(t, int64(0), e.surface.Served())
	assert.Equal(t, 0, requests)
}

func TestLoginFlow(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp, ChainID: 1})
	ctx := context.Background()

	users := make(chan schema.GetUserResponse, 1)
	e.client.OnIsConnected(func(u schema.GetUserResponse) { users <- u })

	_, err := e.client.ConnectEmail(ctx, "a@b.com")
	require.NoError(t, err)
	err = e.client.ConnectOtp(ctx, "000000")
	assert.True(t, errors.Is(err, ErrRemote))
	assert.Equal(t, "Invalid code", err.Error())

	require.NoError(t, e.client.ConnectOtp(ctx, testOtp))
	token, err := e.store.SessionToken(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	user, err := e.client.Connect(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, e.surface.Address().Hex(), user.Address)
	assert.Equal(t, int64(1), user.ChainID)

	select {
	case u := <-users:
		assert.Equal(t, "a@b.com", u.Email)
	case <-time.After(2 * time.Second):
		t.Fatal("OnIsConnected not fired")
	}

	email, err := e.store.Email(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
	used, err := e.store.IsEmailLoginUsed(ctx)
	require.NoError(t, err)
	assert.True(t, used)
	remaining, err := e.client.TimeToNextEmailLogin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	connected, err := e.client.IsConnected(ctx)
	require.NoError(t, err)
	assert.True(t, connected.IsConnected)

	chainID := int64(137)
	user, err = e.client.Connect(ctx, &chainID)
	require.NoError(t, err)
	assert.Equal(t, int64(137), user.ChainID)
	id, err := e.store.DefaultChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(137), id)
}

func TestSwitchNetworkAndDisconnect(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp})
	ctx := context.Background()
	e.login(t, "a@b.com")

	resp, err := e.client.SwitchNetwork(ctx, 137)
	require.NoError(t, err)
	assert.Equal(t, int64(137), resp.ChainID)
	id, err := e.store.DefaultChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(137), id)

	_, err = e.client.SwitchNetwork(ctx, 3)
	var rerr *RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, schema.FrameSwitchNetworkError, rerr.Type)
	assert.Equal(t, "Unsupported chain 3", rerr.Message)

	got, err := e.client.GetChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(137), got.ChainID)

	require.NoError(t, e.client.Disconnect(ctx))
	id, err = e.store.DefaultChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	email, err := e.store.Email(ctx)
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestIsConnectedFalseClearsSession(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp})
	ctx := context.Background()
	e.login(t, "a@b.com")

	// sign out behind the client's back; the reply is unsolicited and dropped
	signOut, err := schema.NewAppEvent(schema.KindSignOut, "not-issued-here", nil)
	require.NoError(t, err)
	require.NoError(t, e.client.Frame().PostToFrame(ctx, signOut))
	require.Eventually(t, func() bool { return e.surface.Served() == 4 }, 2*time.Second, 5*time.Millisecond)
	email, err := e.store.Email(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)

	connected, err := e.client.IsConnected(ctx)
	require.NoError(t, err)
	assert.False(t, connected.IsConnected)
	email, err = e.store.Email(ctx)
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestUpdateEmail(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp})
	ctx := context.Background()
	e.login(t, "a@b.com")

	_, err := e.client.AwaitUpdateEmail(ctx)
	assert.True(t, errors.Is(err, ErrRemote))

	require.NoError(t, e.client.UpdateEmail(ctx, "new@b.com"))
	e.clock.advance(time.Second)
	assert.True(t, errors.Is(e.client.UpdateEmail(ctx, "other@b.com"), session.ErrThrottled))

	resp, err := e.client.AwaitUpdateEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new@b.com", resp.Email)
	email, err := e.store.Email(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new@b.com", email)
	remaining, err := e.client.TimeToNextEmailLogin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestRPCHelpers(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp})
	ctx := context.Background()

	_, err := e.client.GetUserInfo(ctx)
	assert.True(t, errors.Is(err, ErrRemote))

	e.login(t, "a@b.com")
	responses := make(chan schema.Event, 8)
	e.client.OnRPCResponse(func(ev schema.Event) { responses <- ev })

	info, err := e.client.GetUserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.surface.Address(), info.Address)
	assert.Equal(t, int64(1), info.ChainID)

	balance, err := e.client.GetBalance(ctx, info.Address)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(big.NewInt(1e18)))

	block, err := e.client.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block)

	msg := []byte("sign in to frame bridge")
	sig, err := e.client.PersonalSign(ctx, msg, info.Address)
	require.NoError(t, err)
	assert.True(t, VerifyPersonalSign(info.Address, sig, msg))
	assert.False(t, VerifyPersonalSign(info.Address, sig, []byte("something else")))
	assert.False(t, VerifyPersonalSign(info.Address, "0x1234", msg))

	// eth_accounts, eth_getBalance, eth_blockNumber, personal_sign
	require.Eventually(t, func() bool { return len(responses) == 4 }, 2*time.Second, 5*time.Millisecond)
	ev := <-responses
	assert.Equal(t, schema.FrameRPCRequestSuccess, ev.Type)

	raw, err := e.client.Request(ctx, schema.RPCRequest{Method: schema.RPCEthGasPrice})
	require.NoError(t, err)
	var price string
	require.NoError(t, json.Unmarshal(raw, &price))
	assert.Equal(t, "0x3b9aca00", price)

	_, err = e.client.Request(ctx, schema.RPCRequest{Method: "eth_sign"})
	assert.True(t, errors.Is(err, schema.ErrSchemaViolation))
}

func TestRemoteErrorPassThrough(t *testing.T) {
	e := newEnv(t, surface.Options{})
	ctx := context.Background()
	e.surface.FailNext(schema.KindConnectDevice, "device denied: try again")

	err := e.client.ConnectDevice(ctx)
	require.Error(t, err)
	assert.Equal(t, "device denied: try again", err.Error())
	assert.True(t, errors.Is(err, ErrRemote))
}

func TestSchemaViolationNeverPosted(t *testing.T) {
	e := newEnv(t, surface.Options{})
	_, err := e.client.ConnectEmail(context.Background(), "not-an-email")
	assert.True(t, errors.Is(err, schema.ErrSchemaViolation))
	assert.Equal(t, 0, e.client.Pending())
	assert.Equal(t, int64(0), e.surface.Served())
}

func TestSyncThemeAndDapp(t *testing.T) {
	e := newEnv(t, surface.Options{})
	ctx := context.Background()
	require.NoError(t, e.client.SyncTheme(ctx, schema.SyncThemeRequest{
		ThemeMode:      schema.ThemeDark,
		ThemeVariables: map[string]interface{}{"--w3m-z-index": 10},
	}))
	assert.Equal(t, schema.ThemeDark, e.surface.Theme().ThemeMode)

	require.NoError(t, e.client.SyncDappData(ctx, schema.SyncDappDataRequest{
		Metadata:   &schema.DappMetadata{Name: "n", Description: "d", URL: "https://x", Icons: []string{}},
		SdkVersion: "1.0.0",
		ProjectID:  "pid",
	}))
	assert.Equal(t, "1.0.0", e.surface.DappData().SdkVersion)
	assert.Equal(t, "n", e.surface.DappData().Metadata.Name)
}

func TestConcurrentSameKind(t *testing.T) {
	e := newEnv(t, surface.Options{ChainID: 10})
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.client.GetChainID(ctx)
			if err == nil && resp.ChainID != 10 {
				err = errors.Errorf("unexpected chain %d", resp.ChainID)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, e.client.Pending())
}

func TestLegacySurfaceWithoutIDs(t *testing.T) {
	e := newEnv(t, surface.Options{Otp: testOtp, Legacy: true})
	e.login(t, "legacy@b.com")
	resp, err := e.client.SwitchNetwork(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.ChainID)
}

func TestAbandonAndClose(t *testing.T) {
	appEnd, _ := frame.NewPipe()
	f := frame.New("pid", true, frame.WithEmbedder(embedderOf(appEnd)))
	defer f.Close()
	c := New(f, newStore(&fakeClock{t: time.Now()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetChainID(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, c.Pending())

	done := make(chan error, 1)
	go func() {
		done <- c.Disconnect(context.Background())
	}()
	require.Eventually(t, func() bool { return c.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)
	c.Close()
	select {
	case err := <-done:
		assert.Equal(t, correlator.ErrClosed, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not rejected on close")
	}
}

func TestLoadFailure(t *testing.T) {
	f := frame.New("pid", true, frame.WithEmbedder(frame.EmbedderFunc(func(ctx context.Context, src string) (frame.Channel, error) {
		return nil, errors.New("blocked by csp")
	})))
	defer f.Close()
	c := New(f, newStore(&fakeClock{t: time.Now()}))
	defer c.Close()

	_, err := c.ConnectEmail(context.Background(), "a@b.com")
	assert.True(t, errors.Is(err, frame.ErrLoadFailure))
	_, err = c.Request(context.Background(), schema.RPCRequest{Method: schema.RPCEthChainID})
	assert.True(t, errors.Is(err, frame.ErrLoadFailure))
}

func TestSyncer(t *testing.T) {
	e := newEnv(t, surface.Options{})
	s := NewSyncer(e.client, &schema.SyncThemeRequest{ThemeMode: schema.ThemeLight}, schema.SyncDappDataRequest{
		SdkVersion: "1.0.0",
		ProjectID:  "pid",
	})
	s.Start(context.Background())
	require.NoError(t, s.Wait())
	assert.Equal(t, schema.ThemeLight, e.surface.Theme().ThemeMode)
	assert.Equal(t, "pid", e.surface.DappData().ProjectID)
}

func TestMaxInFlight(t *testing.T) {
	appEnd, _ := frame.NewPipe()
	f := frame.New("pid", true, frame.WithEmbedder(embedderOf(appEnd)))
	defer f.Close()
	c := New(f, newStore(&fakeClock{t: time.Now()}), WithMaxInFlight(1))

	first := make(chan error, 1)
	go func() {
		_, err := c.GetChainID(context.Background())
		first <- err
	}()
	require.Eventually(t, func() bool { return c.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetChainID(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, c.Pending())

	c.Close()
	assert.True(t, errors.Is(<-first, correlator.ErrClosed))
}
