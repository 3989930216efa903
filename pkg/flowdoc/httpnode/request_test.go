package httpnode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/reducer"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

func configure(t *testing.T, actions ...reducer.Action) params.Tree {
	t.Helper()
	tree := DefaultConfig()
	for _, a := range actions {
		tree = dispatch(t, tree, a)
	}
	return tree
}

func TestBuildRequest(t *testing.T) {
	tree := configure(t,
		reducer.Action{Type: ChangeRequestConfig, Property: KeyMethod, Value: "post"},
		reducer.Action{Type: ChangeRequestURL, Value: "https://api.example.com/users/${form.id}?lang=${lang}"},
		reducer.Action{Type: AddHeader, Value: map[string]any{"name": "X-Trace", "value": "t-$lang"}},
		reducer.Action{Type: ChangeBodyType, Value: BodyJSON},
		reducer.Action{Type: ChangeBodyValue, Value: `{"name":"${form.name}"}`},
		reducer.Action{Type: ChangeAuthentication, Property: KeyAuthType, Value: AuthBearer},
		reducer.Action{Type: ChangeAuthentication, Property: KeyAuthKey, Value: "secret"},
	)
	vars := map[string]any{"lang": "en", "form": map[string]any{"id": 7, "name": "Ann"}}

	req, err := BuildRequest(context.Background(), tree, vars)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.example.com/users/7?lang=en", req.URL.String())
	assert.Equal(t, "t-en", req.Header.Get("X-Trace"))
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"name":"Ann"}`, string(body))
}

func TestBuildRequestEscapesJSONValues(t *testing.T) {
	tree := configure(t,
		reducer.Action{Type: ChangeRequestURL, Value: "http://h.local/p"},
		reducer.Action{Type: ChangeBodyType, Value: BodyJSON},
		reducer.Action{Type: ChangeBodyValue, Value: `{"note":"${note}","keep":"${missing}"}`},
	)
	vars := map[string]any{"note": "say \"hi\"\nbye"}

	req, err := BuildRequest(context.Background(), tree, vars)
	require.NoError(t, err)
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"note":"say \"hi\"\nbye","keep":"${missing}"}`, string(body))
}

func TestBuildRequestBodiesAndAuth(t *testing.T) {
	base := []reducer.Action{{Type: ChangeRequestURL, Value: "http://h.local/p"}}

	t.Run("form", func(t *testing.T) {
		tree := configure(t, append(base,
			reducer.Action{Type: ChangeBodyType, Value: BodyForm},
			reducer.Action{Type: ChangeBodyValue, Value: map[string]any{"a": "1 2", "b": "x"}},
		)...)
		req, err := BuildRequest(context.Background(), tree, nil)
		require.NoError(t, err)
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		body, _ := io.ReadAll(req.Body)
		assert.Equal(t, "a=1+2&b=x", string(body))
	})

	t.Run("none", func(t *testing.T) {
		req, err := BuildRequest(context.Background(), configure(t, base...), nil)
		require.NoError(t, err)
		assert.Nil(t, req.Body)
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("api key as basic", func(t *testing.T) {
		tree := configure(t, append(base,
			reducer.Action{Type: ChangeAuthentication, Property: KeyAuthType, Value: AuthAPIKey},
			reducer.Action{Type: ChangeAuthentication, Property: KeyAuthKey, Value: "dXNlcjpwdw=="},
		)...)
		req, err := BuildRequest(context.Background(), tree, nil)
		require.NoError(t, err)
		assert.Equal(t, "Basic dXNlcjpwdw==", req.Header.Get("Authorization"))
	})

	t.Run("custom header", func(t *testing.T) {
		tree := configure(t, append(base,
			reducer.Action{Type: ChangeAuthentication, Property: KeyAuthType, Value: AuthCustom},
			reducer.Action{Type: ChangeAuthentication, Property: KeyAuthHeader, Value: "X-Api-Key"},
			reducer.Action{Type: ChangeAuthentication, Property: KeyAuthKey, Value: "k"},
		)...)
		req, err := BuildRequest(context.Background(), tree, nil)
		require.NoError(t, err)
		assert.Equal(t, "k", req.Header.Get("X-Api-Key"))
	})
}

func TestBuildRequestInvalidURL(t *testing.T) {
	_, err := BuildRequest(context.Background(), DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidURL)

	tree := configure(t, reducer.Action{Type: ChangeRequestURL, Value: "/relative"})
	_, err = BuildRequest(context.Background(), tree, nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestClientDo(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky":
			if calls.Add(1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("X-Ok", "yes")
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/missing":
			calls.Add(1)
			http.Error(w, "not here", http.StatusNotFound)
		case "/slow":
			time.Sleep(1500 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client := NewClient(WithRetry(fderrors.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}))

	t.Run("retries transient status", func(t *testing.T) {
		calls.Store(0)
		tree := configure(t, reducer.Action{Type: ChangeRequestURL, Value: srv.URL + "/flaky"})
		resp, err := client.Do(context.Background(), tree, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())

		out := resp.Output()
		assert.Equal(t, "yes", out["headers"].(map[string]any)["X-Ok"])
		var body map[string]bool
		require.NoError(t, json.Unmarshal(resp.Body, &body))
		assert.True(t, body["ok"])
	})

	t.Run("permanent status", func(t *testing.T) {
		calls.Store(0)
		tree := configure(t, reducer.Action{Type: ChangeRequestURL, Value: srv.URL + "/missing"})
		_, err := client.Do(context.Background(), tree, nil)
		var httpErr *fderrors.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		tree := configure(t,
			reducer.Action{Type: ChangeRequestURL, Value: srv.URL + "/slow"},
			reducer.Action{Type: ChangeRequestConfig, Property: KeyTimeout, Value: "1"},
		)
		fast := NewClient(WithRetry(fderrors.NoRetry))
		_, err := fast.Do(context.Background(), tree, nil)
		var timeoutErr *fderrors.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Equal(t, time.Second, timeoutErr.Duration)
	})
}

func TestClientDefaultRetryOnlySafeMethods(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient()
	post := configure(t,
		reducer.Action{Type: ChangeRequestURL, Value: srv.URL},
		reducer.Action{Type: ChangeRequestConfig, Property: KeyMethod, Value: "post"},
	)
	_, err := client.Do(context.Background(), post, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "POST is not retried")

	calls.Store(0)
	get := configure(t, reducer.Action{Type: ChangeRequestURL, Value: srv.URL})
	_, err = client.Do(context.Background(), get, nil)
	require.Error(t, err)
	assert.Equal(t, int32(fderrors.DefaultRetry.MaxAttempts), calls.Load())

	calls.Store(0)
	all := NewClient(WithRetry(fderrors.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}))
	_, err = all.Do(context.Background(), post, nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "explicit retry covers every method")
}

func TestErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "é" + "tail"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	tree := configure(t, reducer.Action{Type: ChangeRequestURL, Value: srv.URL})
	_, err := NewClient().Do(context.Background(), tree, nil)
	var httpErr *fderrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.True(t, utf8.ValidString(httpErr.Message))
	assert.Equal(t, strings.Repeat("a", maxErrorBody-1), httpErr.Message)

	assert.Equal(t, "héllo", truncate([]byte("héllo"), 10))
	assert.Equal(t, "h", truncate([]byte("héllo"), 2))
}

func TestKind(t *testing.T) {
	kinds := shape.NewKinds()
	require.NoError(t, Register(kinds))

	k, ok := kinds.Get(TypeHTTP)
	require.True(t, ok)
	s, err := k.New("http1", 0, 0)
	require.NoError(t, err)
	assert.True(t, s.Deletable)

	tree, err := s.Params(shape.KeyInputParams)
	require.NoError(t, err)
	assert.Equal(t, "GET", Method(tree))
	assert.Equal(t, DefaultTimeoutSeconds, TimeoutSeconds(tree))
	assert.Equal(t, BodyNone, BodyType(tree))

	out, err := s.Params(shape.KeyOutputParams)
	require.NoError(t, err)
	assert.NotNil(t, out.Path("output", "status"))
}
