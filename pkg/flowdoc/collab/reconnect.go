package collab

import (
	"context"
	"errors"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
)

// lost ends session s after a transport failure and starts reconnecting.
// Only the first call for a session has any effect.
func (c *Client) lost(s *session, err error) {
	s.once.Do(func() {
		s.cancel()
		c.mu.Lock()
		closing := c.closed
		if c.cur == s {
			c.cur = nil
		}
		c.mu.Unlock()
		if closing {
			return
		}
		c.reportError(c.ctx, "connection", err)
		c.setState(StateClosed)
		c.failPending(err)

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			s.wg.Wait()
			c.reconnect()
		}()
	})
}

// reconnect retries the transport up to maxReconnects times with a random
// wait before each attempt. Giving up leaves the client closed.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= c.cfg.maxReconnects; attempt++ {
		wait := fderrors.Uniform(c.cfg.backoffMin, c.cfg.backoffMax)
		if err := fderrors.Sleep(c.ctx, wait); err != nil {
			return
		}
		if c.isClosed() {
			return
		}

		var err error
		switch c.cfg.mode {
		case ModePush:
			err = c.reconnectPush()
		case ModePull:
			err = c.poll(c.ctx)
			if err == nil {
				c.runPull(c.newSession())
			}
		}
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) || c.ctx.Err() != nil {
			return
		}
		if c.cfg.logger != nil {
			c.cfg.logger.Debug("reconnect failed", "session", c.cfg.session, "attempt", attempt, "error", err)
		}
	}
}

func (c *Client) reconnectPush() error {
	conn, err := c.dial(c.ctx)
	if err != nil {
		return err
	}
	s := c.newSession()
	c.runPush(s, conn)
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
