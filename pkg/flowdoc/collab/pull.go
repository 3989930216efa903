package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
)

func joinPath(base, elem string) string {
	if base == "" {
		base = "/"
	}
	return path.Join(base, elem)
}

// endpoint is the hub URL for name with the client's query.
func (c *Client) endpoint(name string, extra url.Values) string {
	u := *c.base
	u.Path = joinPath(u.Path, name)
	u.RawQuery = c.query(extra).Encode()
	return u.String()
}

// do sends req and decodes the Response envelope. A non-2xx status is an
// *HTTPError; code 3000 is a *TransportError categorized as session
// invalid.
func (c *Client) do(req *http.Request, op string, out any) error {
	if c.cfg.cookie != "" {
		req.Header.Set("Cookie", c.cfg.cookie)
	}
	resp, err := c.cfg.httpClient.Do(req)
	if err != nil {
		return &fderrors.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &fderrors.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &fderrors.HTTPError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Endpoint:   req.URL.Path,
			Message:    string(bytes.TrimSpace(body)),
		}
	}

	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return &fderrors.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if r.Code == CodeSessionInvalid {
		return &fderrors.TransportError{Op: op, Code: r.Code, Err: fmt.Errorf("session invalid: %s", r.Msg)}
	}
	if r.Code != 0 {
		return &fderrors.TransportError{Op: op, Code: r.Code, Err: fmt.Errorf("%s", r.Msg)}
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}

func (c *Client) get(ctx context.Context, name string, extra url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(name, extra), nil)
	if err != nil {
		return err
	}
	return c.do(req, name, out)
}

// runPull starts the poll loop of s.
func (c *Client) runPull(s *session) {
	c.spawn(s, func() {
		t := time.NewTicker(c.cfg.pollInterval)
		defer t.Stop()
		for {
			if err := c.poll(s.ctx); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				if fderrors.Categorize(err) == fderrors.CategorySessionInvalid {
					c.lost(s, err)
					return
				}
				c.reportError(s.ctx, "poll", err)
			}
			select {
			case <-s.ctx.Done():
				return
			case <-t.C:
			}
		}
	})
}

// poll fetches and receives the messages after the last sequence.
func (c *Client) poll(ctx context.Context) error {
	extra := url.Values{"sequence": {strconv.FormatInt(c.Sequence(), 10)}}
	var msgs []Message
	if err := c.get(ctx, "get_topics", extra, &msgs); err != nil {
		return err
	}
	for _, m := range msgs {
		c.receive(ctx, m)
	}
	return nil
}

// post sends m to the hub in the background.
func (c *Client) post(s *session, m Message, cb func(Reply)) {
	c.spawn(s, func() {
		body, err := json.Marshal(m)
		var posted Posted
		if err == nil {
			var req *http.Request
			req, err = http.NewRequestWithContext(s.ctx, http.MethodPost, c.endpoint("post_topic", nil), bytes.NewReader(body))
			if err == nil {
				req.Header.Set("Content-Type", "application/json")
				err = c.do(req, "post_topic", &posted)
			}
		}
		if err != nil && s.ctx.Err() == nil {
			c.reportError(s.ctx, "post", err)
		}
		if cb != nil {
			cb(Reply{Sequence: posted.Sequence, Err: err})
		}
	})
}
