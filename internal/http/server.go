package http

import (
	"context"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/websocket"
	"moff.io/frame-bridge/internal/config"
	"moff.io/frame-bridge/internal/frame"
	"moff.io/frame-bridge/internal/provider"
	"moff.io/frame-bridge/internal/surface"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"moff.io/frame-bridge/pkg/log/middleware"
	"net/http"
	"sync"
	"time"
)

type Option func(s *Server)

func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithTimezone selects the rpc host reported by /v1/networks.
func WithTimezone(tz string) Option {
	return func(s *Server) { s.timezone = tz }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func WithRateLimit(limiter *redis_rate.Limiter, perMinute int) Option {
	return func(s *Server) {
		s.limiter = limiter
		s.perMinute = perMinute
	}
}

// WithSurface serves the simulated surface on GET /sdk.
func WithSurface(opts surface.Options) Option {
	return func(s *Server) { s.surface = &opts }
}

type Server struct {
	client    *provider.Client
	addr      string
	timezone  string
	timeout   time.Duration
	limiter   *redis_rate.Limiter
	perMinute int
	surface   *surface.Options
	upgrader  websocket.Upgrader

	engine *gin.Engine

	mu       sync.Mutex
	surfaces []*surface.Surface
}

func NewServer(client *provider.Client, opts ...Option) *Server {
	s := &Server{
		client:  client,
		addr:    ":8080",
		timeout: 60 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog())
	if s.surface != nil {
		// long lived, outside the request timeout
		router.GET("/sdk", s.serveSurface)
	}

	v1 := router.Group("/v1",
		middleware.RateLimitHTTP(s.limiter, s.perMinute),
		middleware.TimeoutHTTP(s.timeout))
	v1.POST("/connect/email", s.connectEmail)
	v1.POST("/connect/device", s.connectDevice)
	v1.POST("/connect/otp", s.connectOtp)
	v1.POST("/connect", s.connect)
	v1.GET("/connected", s.isConnected)
	v1.GET("/chain-id", s.getChainID)
	v1.POST("/network", s.switchNetwork)
	v1.POST("/disconnect", s.disconnect)
	v1.POST("/email/update", s.updateEmail)
	v1.POST("/email/await", s.awaitUpdateEmail)
	v1.POST("/rpc", s.rpc)
	v1.POST("/theme", s.syncTheme)
	v1.POST("/dapp", s.syncDappData)
	v1.GET("/session", s.session)
	v1.GET("/networks", s.networks)
	v1.GET("/account", s.account)
	return router
}

func (s *Server) serveSurface(ctx *gin.Context) {
	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warnf("http - upgrade surface websocket: %v", err)
		return
	}
	opts := *s.surface
	if pid := ctx.Query("projectId"); pid != "" {
		opts.ProjectID = pid
	}
	sf, err := surface.New(frame.NewWebsocketChannel(conn), opts)
	if err != nil {
		log.Error(errors.WrapAndReport(err, "start simulated surface"))
		_ = conn.Close()
		return
	}
	s.mu.Lock()
	s.surfaces = append(s.surfaces, sf)
	s.mu.Unlock()
	log.Infof("http - simulated surface attached for project %v", opts.ProjectID)
	go s.release(sf)
}

// release forgets sf once its websocket is gone.
func (s *Server) release(sf *surface.Surface) {
	<-sf.Done()
	_ = sf.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, attached := range s.surfaces {
		if attached == sf {
			s.surfaces = append(s.surfaces[:i], s.surfaces[i+1:]...)
			break
		}
	}
	log.Debugf("http - simulated surface detached")
}

func (s *Server) attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.surfaces)
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("http - shutdown: %v", err)
		}
	}()
	go func() {
		log.Infof("http - listening on %v", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
}

// Stop closes every simulated surface served so far.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sf := range s.surfaces {
		_ = sf.Close()
	}
	s.surfaces = nil
}

// Apply takes the listen address and timeouts from configuration.
func (s *Server) Apply(conf *config.Configuration) {
	if conf.HTTP.Addr != "" {
		s.addr = conf.HTTP.Addr
	}
	if conf.HTTP.RequestTimeout > 0 {
		s.timeout = conf.HTTP.RequestTimeout
	}
	s.timezone = conf.Timezone
	s.engine = s.routes()
}
