package httpnode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/template"
)

// ErrInvalidURL is returned when the configured url is empty or not absolute.
var ErrInvalidURL = errors.New("invalid request url")

var jsonBody = template.NewExpander(template.WithEscaper(template.EscapeJSON))

// BuildRequest turns an HTTP node tree into a request. Every string value is
// expanded against vars first; unresolved references are left as written.
// Values spliced into a JSON body are JSON-escaped.
func BuildRequest(ctx context.Context, t params.Tree, vars map[string]any) (*http.Request, error) {
	expand := func(s string) string { return template.Expand(s, vars) }

	raw := expand(URL(t))
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	if qp := QueryParams(t); len(qp) > 0 {
		q := u.Query()
		for _, p := range qp {
			if p.Name == "" {
				continue
			}
			q.Add(expand(p.Name), expand(p.String()))
		}
		u.RawQuery = q.Encode()
	}

	body, contentType := buildBody(t, vars, expand)
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(Method(t)), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, h := range Headers(t) {
		if h.Name == "" {
			continue
		}
		req.Header.Add(expand(h.Name), expand(h.String()))
	}
	applyAuth(req, t, expand)
	return req, nil
}

func buildBody(t params.Tree, vars map[string]any, expand func(string) string) (io.Reader, string) {
	switch BodyType(t) {
	case BodyForm:
		form := url.Values{}
		for _, p := range BodyArgs(t, BodyForm).Children() {
			if p.Name != "" {
				form.Add(expand(p.Name), expand(p.String()))
			}
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
	case BodyJSON:
		raw := BodyArgs(t, BodyJSON).String()
		out, err := jsonBody.Expand(raw, vars)
		if err != nil {
			out = raw
		}
		return strings.NewReader(out), "application/json"
	case BodyText:
		return strings.NewReader(expand(BodyArgs(t, BodyText).String())), "text/plain; charset=utf-8"
	default:
		return nil, ""
	}
}

// applyAuth sets the authentication header. An API key is sent as Basic
// credentials.
func applyAuth(req *http.Request, t params.Tree, expand func(string) string) {
	auth := find(t, KeyAuthentication)
	key := expand(auth.Child(KeyAuthKey).String())
	if key == "" {
		return
	}
	switch auth.Child(KeyAuthType).String() {
	case AuthAPIKey:
		req.Header.Set("Authorization", "Basic "+key)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+key)
	case AuthCustom:
		name := auth.Child(KeyAuthHeader).String()
		if name == "" {
			name = "Authorization"
		}
		req.Header.Set(name, key)
	}
}
