package frame

import (
	"context"
	"github.com/gorilla/websocket"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 64
)

type wsChannel struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	msgs    chan []byte
	done    chan struct{}
	once    sync.Once
}

// NewWebsocketChannel serves a Channel over an established websocket
// connection, for either side of it.
func NewWebsocketChannel(conn *websocket.Conn) Channel {
	c := &wsChannel{
		conn: conn,
		msgs: make(chan []byte, wsBuffer),
		done: make(chan struct{}),
	}
	go c.read()
	return c
}

func (c *wsChannel) read() {
	defer close(c.msgs)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warnf("frame websocket - read: %v", err)
				}
			}
			return
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
		default:
			continue
		}
		select {
		case c.msgs <- data:
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) Post(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(wsWriteTimeout)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "set websocket write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write frame message")
	}
	return nil
}

func (c *wsChannel) Messages() <-chan []byte {
	return c.msgs
}

func (c *wsChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// WebsocketEmbedder dials the secure site over websocket. http(s) sources are
// rewritten to ws(s).
type WebsocketEmbedder struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (e *WebsocketEmbedder) Embed(ctx context.Context, src string) (Channel, error) {
	wsURL, err := WebsocketURL(src)
	if err != nil {
		return nil, err
	}
	dialer := e.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, e.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial frame %v: status %v", wsURL, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial frame %v", wsURL)
	}
	log.Debugf("frame websocket - connected to %v", wsURL)
	return NewWebsocketChannel(conn), nil
}

func WebsocketURL(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", errors.Wrapf(err, "parse frame url %v", src)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", errors.Errorf("unsupported frame url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
