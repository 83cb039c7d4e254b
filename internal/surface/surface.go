// Package surface simulates the remote authentication surface. It runs a
// frame in embedded mode and answers app events like the hosted site does,
// backed by a local wallet key.
package surface

import (
	"context"
	"crypto/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"moff.io/frame-bridge/internal/chains"
	"moff.io/frame-bridge/internal/frame"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"strings"
	"sync"
	"time"
)

type Options struct {
	ProjectID string
	// PrivateKey is hex encoded. A key is generated when empty.
	PrivateKey string
	ChainID    int64
	// Otp selects one time code login. Empty means device approval.
	Otp string
	// Legacy replies without request ids.
	Legacy bool
}

type Surface struct {
	frame  *frame.Frame
	opts   Options
	key    *ecdsa.PrivateKey
	served atomic.Int64

	mu           sync.Mutex
	connected    bool
	email        string
	pendingEmail string
	updateEmail  string
	chainID      int64
	token        string
	theme        schema.SyncThemeRequest
	dapp         schema.SyncDappDataRequest
	failures     map[schema.Kind]string
}

func New(parent frame.Channel, opts Options) (*Surface, error) {
	key, err := loadKey(opts.PrivateKey)
	if err != nil {
		return nil, err
	}
	if opts.ChainID == 0 {
		opts.ChainID = chains.DefaultChainID
	}
	s := &Surface{
		opts:     opts,
		key:      key,
		chainID:  opts.ChainID,
		failures: map[schema.Kind]string{},
	}
	s.frame = frame.New(opts.ProjectID, false, frame.WithParent(parent))
	s.frame.OnAppEvent(s.handle)
	log.Debugf("surface - serving wallet %v", s.Address().Hex())
	return s, nil
}

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate surface wallet key")
		}
		return key, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decode surface wallet key")
	}
	return key, nil
}

func (s *Surface) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Served returns the number of app events answered so far.
func (s *Surface) Served() int64 {
	return s.served.Load()
}

// FailNext makes the next request of kind fail with message.
func (s *Surface) FailNext(kind schema.Kind, message string) {
	s.mu.Lock()
	s.failures[kind] = message
	s.mu.Unlock()
}

func (s *Surface) Theme() schema.SyncThemeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *Surface) DappData() schema.SyncDappDataRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dapp
}

// Done is closed once the parent channel is gone.
func (s *Surface) Done() <-chan struct{} {
	return s.frame.Done()
}

func (s *Surface) Close() error {
	return s.frame.Close()
}

func (s *Surface) handle(ev schema.Event) {
	s.served.Inc()
	kind := ev.Kind()
	id := ev.ID
	if s.opts.Legacy {
		id = ""
	}

	s.mu.Lock()
	failure, fail := s.failures[kind]
	delete(s.failures, kind)
	var (
		payload interface{}
		err     error
		extra   []schema.Event
	)
	if !fail {
		payload, extra, err = s.answer(kind, ev)
	}
	s.mu.Unlock()

	var reply schema.Event
	switch {
	case fail:
		reply = schema.NewFrameError(kind, id, failure)
	case err != nil:
		reply = schema.NewFrameError(kind, id, err.Error())
	default:
		if reply, err = schema.NewFrameSuccess(kind, id, payload); err != nil {
			reply = schema.NewFrameError(kind, id, err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, e := range append(extra, reply) {
		if err := s.frame.PostToParent(ctx, e); err != nil {
			log.Warnf("surface - reply %v: %v", e.Type, err)
		}
	}
}

var (
	errNotLoggedIn = errors.New("Not logged in")
	errNoUpdate    = errors.New("No email update in progress")
)

// answer must be called with mu held.
func (s *Surface) answer(kind schema.Kind, ev schema.Event) (interface{}, []schema.Event, error) {
	switch kind {
	case schema.KindConnectEmail:
		var req schema.ConnectEmailRequest
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		s.pendingEmail = req.Email
		action := schema.ActionVerifyDevice
		if s.opts.Otp != "" {
			action = schema.ActionVerifyOtp
		}
		return schema.ConnectEmailResponse{Action: action}, nil, nil

	case schema.KindConnectDevice:
		if s.opts.Otp != "" {
			return nil, nil, errors.New("Device approval is disabled")
		}
		return nil, s.login(), nil

	case schema.KindConnectOtp:
		var req schema.ConnectOtpRequest
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		if s.opts.Otp == "" || req.Otp != s.opts.Otp {
			return nil, nil, errors.New("Invalid code")
		}
		return nil, s.login(), nil

	case schema.KindGetUser:
		if !s.connected {
			return nil, nil, errNotLoggedIn
		}
		var req schema.GetUserRequest
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		if req.ChainID != nil {
			if !chains.Supported(*req.ChainID) {
				return nil, nil, errors.Errorf("Unsupported chain %d", *req.ChainID)
			}
			s.chainID = *req.ChainID
		}
		return schema.GetUserResponse{Email: s.email, Address: s.Address().Hex(), ChainID: s.chainID}, nil, nil

	case schema.KindSignOut:
		s.connected = false
		s.token = ""
		return nil, nil, nil

	case schema.KindIsConnected:
		var req schema.SessionToken
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		ok := s.connected && (req.Token == "" || req.Token == s.token)
		return schema.IsConnectedResponse{IsConnected: ok}, nil, nil

	case schema.KindGetChainID:
		return schema.ChainIDResponse{ChainID: s.chainID}, nil, nil

	case schema.KindSwitchNetwork:
		var req schema.SwitchNetworkRequest
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		if !chains.Supported(req.ChainID) {
			return nil, nil, errors.Errorf("Unsupported chain %d", req.ChainID)
		}
		s.chainID = req.ChainID
		return schema.ChainIDResponse{ChainID: s.chainID}, nil, nil

	case schema.KindUpdateEmail:
		if !s.connected {
			return nil, nil, errNotLoggedIn
		}
		var req schema.UpdateEmailRequest
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		s.updateEmail = req.Email
		return nil, nil, nil

	case schema.KindAwaitUpdateEmail:
		if s.updateEmail == "" {
			return nil, nil, errNoUpdate
		}
		s.email, s.updateEmail = s.updateEmail, ""
		return schema.AwaitUpdateEmailResponse{Email: s.email}, nil, nil

	case schema.KindSyncTheme:
		if err := ev.Decode(&s.theme); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil

	case schema.KindSyncDappData:
		if err := ev.Decode(&s.dapp); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil

	case schema.KindRPCRequest:
		var req schema.RPCRequest
		if err := ev.Decode(&req); err != nil {
			return nil, nil, err
		}
		result, err := s.rpc(req)
		return result, nil, err
	}
	return nil, nil, errors.Errorf("unsupported request %v", ev.Type)
}

// login must be called with mu held. It returns the SESSION_UPDATE to send.
func (s *Surface) login() []schema.Event {
	s.connected = true
	s.email = s.pendingEmail
	s.token = uuid.NewString()
	update, err := schema.NewSessionUpdate(s.token)
	if err != nil {
		return nil
	}
	return []schema.Event{update}
}
