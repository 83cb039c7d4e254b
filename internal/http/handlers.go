package http

import (
	"context"
	"github.com/gin-gonic/gin"
	"moff.io/frame-bridge/internal/correlator"
	"moff.io/frame-bridge/internal/frame"
	"moff.io/frame-bridge/internal/provider"
	"moff.io/frame-bridge/internal/schema"
	"moff.io/frame-bridge/internal/session"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"net/http"
)

type resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func ok(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, resp{Code: 0, Msg: "ok", Data: data})
}

func fail(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		data interface{}
		terr *session.ThrottledError
	)
	switch {
	case errors.As(err, &terr):
		status = http.StatusTooManyRequests
		data = map[string]int64{"remaining": terr.Remaining}
	case errors.Is(err, schema.ErrSchemaViolation):
		status = http.StatusBadRequest
	case errors.Is(err, frame.ErrTransportUnavailable),
		errors.Is(err, frame.ErrLoadFailure),
		errors.Is(err, frame.ErrClosed),
		errors.Is(err, correlator.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrRemote):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		log.Error(errors.WithStackAndReport(err))
	}
	ctx.JSON(status, resp{Code: status, Msg: err.Error(), Data: data})
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, resp{Code: http.StatusBadRequest, Msg: err.Error()})
}

// bind decodes an optional json body. An empty body leaves v untouched.
func bind(ctx *gin.Context, v interface{}, optional bool) bool {
	if optional && ctx.Request.ContentLength == 0 {
		return true
	}
	if err := ctx.ShouldBindJSON(v); err != nil {
		badRequest(ctx, errors.Wrap(err, "decode request body"))
		return false
	}
	return true
}

func (s *Server) connectEmail(ctx *gin.Context) {
	var req schema.ConnectEmailRequest
	if !bind(ctx, &req, false) {
		return
	}
	r, err := s.client.ConnectEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, r)
}

func (s *Server) connectDevice(ctx *gin.Context) {
	if err := s.client.ConnectDevice(ctx.Request.Context()); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, nil)
}

func (s *Server) connectOtp(ctx *gin.Context) {
	var req schema.ConnectOtpRequest
	if !bind(ctx, &req, false) {
		return
	}
	if err := s.client.ConnectOtp(ctx.Request.Context(), req.Otp); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, nil)
}

func (s *Server) connect(ctx *gin.Context) {
	var req schema.GetUserRequest
	if !bind(ctx, &req, true) {
		return
	}
	user, err := s.client.Connect(ctx.Request.Context(), req.ChainID)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, user)
}

func (s *Server) isConnected(ctx *gin.Context) {
	r, err := s.client.IsConnected(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, r)
}

func (s *Server) getChainID(ctx *gin.Context) {
	r, err := s.client.GetChainID(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, r)
}

func (s *Server) switchNetwork(ctx *gin.Context) {
	var req schema.SwitchNetworkRequest
	if !bind(ctx, &req, false) {
		return
	}
	r, err := s.client.SwitchNetwork(ctx.Request.Context(), req.ChainID)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, r)
}

func (s *Server) disconnect(ctx *gin.Context) {
	if err := s.client.Disconnect(ctx.Request.Context()); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, nil)
}

func (s *Server) updateEmail(ctx *gin.Context) {
	var req schema.UpdateEmailRequest
	if !bind(ctx, &req, false) {
		return
	}
	if err := s.client.UpdateEmail(ctx.Request.Context(), req.Email); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, nil)
}

func (s *Server) awaitUpdateEmail(ctx *gin.Context) {
	r, err := s.client.AwaitUpdateEmail(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, r)
}

func (s *Server) rpc(ctx *gin.Context) {
	var req schema.RPCRequest
	if !bind(ctx, &req, false) {
		return
	}
	result, err := s.client.Request(ctx.Request.Context(), req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, result)
}

func (s *Server) syncTheme(ctx *gin.Context) {
	var req schema.SyncThemeRequest
	if !bind(ctx, &req, false) {
		return
	}
	if err := s.client.SyncTheme(ctx.Request.Context(), req); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, nil)
}

func (s *Server) syncDappData(ctx *gin.Context) {
	var req schema.SyncDappDataRequest
	if !bind(ctx, &req, false) {
		return
	}
	if err := s.client.SyncDappData(ctx.Request.Context(), req); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, nil)
}

func (s *Server) session(ctx *gin.Context) {
	r, err := s.client.Session().Snapshot(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, r)
}

func (s *Server) networks(ctx *gin.Context) {
	ok(ctx, s.client.Frame().Networks(s.timezone))
}

func (s *Server) account(ctx *gin.Context) {
	info, err := s.client.GetUserInfo(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, info)
}
