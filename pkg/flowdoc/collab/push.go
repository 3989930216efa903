package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/ident"
)

const writeWait = 10 * time.Second

// socketURL is the websocket endpoint for this client. The cookie id
// travels in the query as well as the Cookie header.
func (c *Client) socketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = joinPath(u.Path, "elsaData")
	var extra url.Values
	if c.cfg.cookie != "" {
		extra = url.Values{"cookie": {c.cfg.cookie}}
	}
	u.RawQuery = c.query(extra).Encode()
	return u.String()
}

func (c *Client) query(extra url.Values) url.Values {
	q := url.Values{}
	q.Set("session", c.cfg.session)
	q.Set("collaborationSession", c.cfg.collab)
	for k, v := range extra {
		q[k] = v
	}
	return q
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.cookie != "" {
		header.Set("Cookie", c.cfg.cookie)
	}
	conn, resp, err := c.cfg.dialer.DialContext(ctx, c.socketURL(), header)
	if err != nil {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		return nil, &fderrors.TransportError{Op: "dial", Code: code, Err: err}
	}
	return conn, nil
}

// runPush starts the reader, writer and pinger of s over conn.
func (c *Client) runPush(s *session, conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error { return nil })

	c.spawn(s, func() { c.readLoop(s, conn) })
	c.spawn(s, func() { c.writeLoop(s, conn) })
	c.spawn(s, func() { c.pingLoop(s, conn) })
	c.spawn(s, func() {
		<-s.ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
}

func (c *Client) readLoop(s *session, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			code := 0
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			c.lost(s, &fderrors.TransportError{Op: "read", Code: code, Err: err})
			return
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.reportError(s.ctx, "decode", err)
			continue
		}
		switch {
		case m.Code == CodeSessionInvalid || m.Topic == topicSessionEnded:
			c.lost(s, &fderrors.TransportError{Op: "read", Code: CodeSessionInvalid, Err: errors.New("session invalid")})
			return
		case m.Topic == topicAck:
			c.settle(m.ID, Reply{Sequence: m.Sequence})
		default:
			c.receive(s.ctx, m)
		}
	}
}

func (c *Client) writeLoop(s *session, conn *websocket.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				if m.ID != "" {
					c.settle(m.ID, Reply{Err: err})
				}
				c.lost(s, &fderrors.TransportError{Op: "write", Err: err})
				return
			}
		}
	}
}

// pingLoop keeps the socket alive and refreshes presence.
func (c *Client) pingLoop(s *session, conn *websocket.Conn) {
	t := time.NewTicker(c.cfg.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			c.lost(s, &fderrors.TransportError{Op: "ping", Err: err})
			return
		}
		var present []string
		if err := c.get(s.ctx, "get_presence", nil, &present); err != nil {
			if s.ctx.Err() == nil {
				c.reportError(s.ctx, "presence", err)
			}
			continue
		}
		if len(present) == 0 {
			continue
		}
		c.mu.Lock()
		c.presence = present
		c.mu.Unlock()
	}
}

// enqueue hands m to the writer of s. A full queue fails fast.
func (c *Client) enqueue(s *session, m Message, cb func(Reply)) error {
	if cb != nil {
		m.ID = ident.New()
		c.mu.Lock()
		c.pending[m.ID] = cb
		c.mu.Unlock()
	}
	select {
	case s.out <- m:
		return nil
	default:
		err := fmt.Errorf("invoke %s: send queue full", m.Topic)
		if cb != nil {
			c.settle(m.ID, Reply{Err: err})
		}
		return err
	}
}
