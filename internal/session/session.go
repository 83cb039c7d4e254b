package session

import (
	"context"
	"moff.io/frame-bridge/internal/cache"
	"moff.io/frame-bridge/internal/chains"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"strconv"
)

// Persisted keys.
const (
	KeyEmail              = "EMAIL"
	KeyEmailLoginUsed     = "EMAIL_LOGIN_USED_KEY"
	KeyLastUsedChain      = "LAST_USED_CHAIN_KEY"
	KeyLastEmailLoginTime = "LAST_EMAIL_LOGIN_TIME"
	KeySessionToken       = "SESSION_TOKEN"
)

// Store is the durable session record of one application instance.
type Store struct {
	cache    cache.Store
	throttle *Throttle
}

func NewStore(c cache.Store, throttle *Throttle) *Store {
	return &Store{cache: c, throttle: throttle}
}

func (s *Store) Throttle() *Throttle {
	return s.throttle
}

// RecordLogin persists email, marks email login as used and ends any
// cooldown.
func (s *Store) RecordLogin(ctx context.Context, email string) error {
	if err := s.cache.Set(ctx, KeyEmail, email); err != nil {
		return errors.Wrap(err, "record email")
	}
	if err := s.cache.Set(ctx, KeyEmailLoginUsed, "true"); err != nil {
		return errors.Wrap(err, "record email login used")
	}
	return s.throttle.Clear(ctx)
}

func (s *Store) RecordChainID(ctx context.Context, chainID int64) error {
	if err := s.cache.Set(ctx, KeyLastUsedChain, strconv.FormatInt(chainID, 10)); err != nil {
		return errors.Wrap(err, "record chain id")
	}
	return nil
}

// LastUsedChainID reports false when no chain was recorded.
func (s *Store) LastUsedChainID(ctx context.Context) (int64, bool, error) {
	v, ok, err := s.cache.Get(ctx, KeyLastUsedChain)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warnf("session - ignored malformed %v %q", KeyLastUsedChain, v)
		return 0, false, nil
	}
	return id, true, nil
}

// DefaultChainID is the last used chain, or mainnet.
func (s *Store) DefaultChainID(ctx context.Context) (int64, error) {
	id, ok, err := s.LastUsedChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return chains.DefaultChainID, nil
	}
	return id, nil
}

func (s *Store) Email(ctx context.Context) (string, error) {
	v, _, err := s.cache.Get(ctx, KeyEmail)
	return v, err
}

func (s *Store) IsEmailLoginUsed(ctx context.Context) (bool, error) {
	v, _, err := s.cache.Get(ctx, KeyEmailLoginUsed)
	return v == "true", err
}

func (s *Store) RecordSessionToken(ctx context.Context, token string) error {
	if err := s.cache.Set(ctx, KeySessionToken, token); err != nil {
		return errors.Wrap(err, "record session token")
	}
	return nil
}

func (s *Store) SessionToken(ctx context.Context) (string, error) {
	v, _, err := s.cache.Get(ctx, KeySessionToken)
	return v, err
}

// Clear forgets the signed in identity.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.cache.Delete(ctx, KeyEmail, KeyEmailLoginUsed, KeyLastUsedChain, KeySessionToken); err != nil {
		return errors.Wrap(err, "clear session")
	}
	return nil
}

// Record is the persisted session as read back.
type Record struct {
	Email                   string `json:"email"`
	EmailLoginUsed          bool   `json:"emailLoginUsed"`
	LastUsedChainID         int64  `json:"lastUsedChainId,omitempty"`
	LastEmailLoginTimestamp int64  `json:"lastEmailLoginTimestamp,omitempty"`
	TimeToNextEmailLogin    int64  `json:"timeToNextEmailLogin"`
}

func (s *Store) Snapshot(ctx context.Context) (*Record, error) {
	var (
		r   Record
		err error
	)
	if r.Email, err = s.Email(ctx); err != nil {
		return nil, err
	}
	if r.EmailLoginUsed, err = s.IsEmailLoginUsed(ctx); err != nil {
		return nil, err
	}
	if r.LastUsedChainID, _, err = s.LastUsedChainID(ctx); err != nil {
		return nil, err
	}
	if r.LastEmailLoginTimestamp, _, err = s.throttle.last(ctx); err != nil {
		return nil, err
	}
	if r.TimeToNextEmailLogin, err = s.throttle.Remaining(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}
