package provider

import (
	"context"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/pkg/log"
	"time"
)

// Syncer pushes the application theme and dapp metadata to the frame once it
// has loaded.
type Syncer struct {
	client  *Client
	theme   *schema.SyncThemeRequest
	dapp    schema.SyncDappDataRequest
	timeout time.Duration
	done    chan error
}

func NewSyncer(c *Client, theme *schema.SyncThemeRequest, dapp schema.SyncDappDataRequest) *Syncer {
	return &Syncer{client: c, theme: theme, dapp: dapp, timeout: time.Minute, done: make(chan error, 1)}
}

func (s *Syncer) Start(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		s.done <- s.sync(ctx)
	}()
}

// Wait returns the outcome of the sync started by Start.
func (s *Syncer) Wait() error {
	return <-s.done
}

func (s *Syncer) sync(ctx context.Context) error {
	if err := s.client.SyncDappData(ctx, s.dapp); err != nil {
		log.Warnf("provider - sync dapp data: %v", err)
		return err
	}
	if s.theme == nil {
		return nil
	}
	if err := s.client.SyncTheme(ctx, *s.theme); err != nil {
		log.Warnf("provider - sync theme: %v", err)
		return err
	}
	log.Debugf("provider - synced dapp data and theme")
	return nil
}
