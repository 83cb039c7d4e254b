package main

import (
	"context"
	"github.com/go-redis/redis_rate/v9"
	"moff.io/frame-bridge/internal/cache"
	"moff.io/frame-bridge/internal/config"
	"moff.io/frame-bridge/internal/databus"
	"moff.io/frame-bridge/internal/frame"
	"moff.io/frame-bridge/internal/http"
	"moff.io/frame-bridge/internal/provider"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/internal/session"
	"moff.io/frame-bridge/internal/starter"
	"moff.io/frame-bridge/internal/surface"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	log.Infof("Starting frame bridge")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	conf := config.Global
	log.SetLevel(log.ParseLevel(conf.LogLevel))
	setupReporters(conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, limiter := openStore(ctx, conf)
	defer closeBackend()
	store := cache.Namespace(backend, conf.Storage.Namespace)
	throttle := session.NewThrottle(store, session.WithCooldown(conf.EmailCooldown))
	sessions := session.NewStore(store, throttle)

	embedder, sf := newEmbedder(conf)
	if sf != nil {
		defer sf.Close()
	}
	f := frame.New(conf.ProjectID, true,
		frame.WithEmbedder(embedder),
		frame.WithSecureSite(conf.SecureSiteURL),
		frame.WithRPCURL(conf.RPCURL))
	defer f.Close()

	var opts []provider.Option
	if conf.MaxInFlight > 0 {
		opts = append(opts, provider.WithMaxInFlight(conf.MaxInFlight))
	}
	if conf.KafkaServer != "" {
		bus, err := databus.New(conf.KafkaServer, conf.KafkaTopic)
		if err != nil {
			log.Fatal(err)
		}
		defer bus.Close()
		opts = append(opts, provider.WithEventSink(bus))
	}
	client := provider.New(f, sessions, opts...)
	defer client.Close()

	var serverOpts []http.Option
	if limiter != nil && conf.HTTP.RateLimitPerMinute > 0 {
		serverOpts = append(serverOpts, http.WithRateLimit(limiter, conf.HTTP.RateLimitPerMinute))
	}
	if conf.Surface.Enabled {
		serverOpts = append(serverOpts, http.WithSurface(surfaceOptions(conf)))
	}
	server := http.NewServer(client, serverOpts...)

	starter.Start(ctx, conf,
		provider.NewSyncer(client, themeOf(conf), schema.SyncDappDataRequest{
			Metadata:   &conf.Dapp,
			SdkVersion: conf.SdkVersion,
			ProjectID:  conf.ProjectID,
		}),
		server,
	)
	<-ctx.Done()
	log.Infof("Stopping frame bridge")
	starter.Stop(server)
}

func setupReporters(conf *config.Configuration) {
	if conf.SentryDSN != "" {
		if err := errors.NewSentryReporter(conf.SentryDSN, conf.Environment); err != nil {
			log.Warnf("sentry reporter: %v", err)
		}
	}
	if conf.LarkAlarmWebhook != "" {
		errors.NewLarkReporter(conf.LarkAlarmWebhook, "frame-bridge "+conf.Environment, time.Minute)
	}
}

func openStore(ctx context.Context, conf *config.Configuration) (cache.Store, func(), *redis_rate.Limiter) {
	switch conf.Storage.Backend {
	case config.StorageMemory:
		return cache.NewMemory(), func() {}, nil
	case config.StorageRedis:
		r, err := cache.NewRedis(ctx, &conf.RedisCredential)
		if err != nil {
			log.Fatal(err)
		}
		return r, func() { _ = r.Close() }, r.Limiter()
	default:
		f, err := cache.OpenFile(conf.Storage.Path)
		if err != nil {
			log.Fatal(err)
		}
		return f, func() {}, nil
	}
}

// newEmbedder hosts the simulated surface in process when enabled, otherwise
// dials the secure site over websocket.
func newEmbedder(conf *config.Configuration) (frame.Embedder, *surface.Surface) {
	if !conf.Surface.Enabled {
		return &frame.WebsocketEmbedder{}, nil
	}
	appEnd, surfaceEnd := frame.NewPipe()
	sf, err := surface.New(surfaceEnd, surfaceOptions(conf))
	if err != nil {
		log.Fatal(err)
	}
	return frame.EmbedderFunc(func(ctx context.Context, src string) (frame.Channel, error) {
		return appEnd, nil
	}), sf
}

func surfaceOptions(conf *config.Configuration) surface.Options {
	return surface.Options{
		ProjectID:  conf.ProjectID,
		PrivateKey: conf.Surface.PrivateKey,
		ChainID:    conf.Surface.ChainID,
		Otp:        conf.Surface.Otp,
	}
}

func themeOf(conf *config.Configuration) *schema.SyncThemeRequest {
	if conf.Theme.Mode == "" && len(conf.Theme.Variables) == 0 {
		return nil
	}
	return &schema.SyncThemeRequest{ThemeMode: conf.Theme.Mode, ThemeVariables: conf.Theme.Variables}
}
