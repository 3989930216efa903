package form_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/form"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// sink records saves and fails the first failures calls with err.
type sink struct {
	mu       sync.Mutex
	saves    []string
	calls    int
	failures int
	err      error
}

func (s *sink) Save(_ context.Context, docID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.saves = append(s.saves, docID+":"+string(data))
	return nil
}

func (s *sink) snapshot() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]string(nil), s.saves...)
}

var fastRetry = fderrors.RetryConfig{MaxAttempts: 4, InitialBackoff: time.Millisecond, BackoffFactor: 1}

func counter() (func(), func() ([]byte, error)) {
	var mu sync.Mutex
	n := 0
	bump := func() {
		mu.Lock()
		n++
		mu.Unlock()
	}
	snap := func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		return []byte(strconv.Itoa(n)), nil
	}
	return bump, snap
}

func TestAutoSaverDebounces(t *testing.T) {
	s := &sink{}
	bump, snap := counter()
	as := form.NewAutoSaver("doc", s, snap, form.AutoSaveConfig{Delay: 30 * time.Millisecond})

	for range 5 {
		bump()
		as.Touch()
	}

	require.Eventually(t, func() bool { return as.Saves() == 1 }, time.Second, 5*time.Millisecond)
	_, saves := s.snapshot()
	assert.Equal(t, []string{"doc:5"}, saves)
	assert.False(t, as.Dirty())
}

func TestAutoSaverFlush(t *testing.T) {
	s := &sink{}
	bump, snap := counter()
	as := form.NewAutoSaver("doc", s, snap, form.AutoSaveConfig{Delay: time.Hour})

	require.NoError(t, as.Flush(context.Background()))
	calls, _ := s.snapshot()
	assert.Zero(t, calls, "nothing to flush")

	bump()
	as.Touch()
	assert.True(t, as.Dirty())
	require.NoError(t, as.Flush(context.Background()))
	require.NoError(t, as.Flush(context.Background()))

	_, saves := s.snapshot()
	assert.Equal(t, []string{"doc:1"}, saves)
}

func TestAutoSaverRetriesTransientFailures(t *testing.T) {
	s := &sink{failures: 2, err: &fderrors.HTTPError{StatusCode: 503, Method: "PUT", Endpoint: "/docs"}}
	_, snap := counter()
	as := form.NewAutoSaver("doc", s, snap, form.AutoSaveConfig{Delay: time.Hour, Retry: fastRetry})

	as.Touch()
	require.NoError(t, as.Flush(context.Background()))
	calls, saves := s.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, saves, 1)
	assert.NoError(t, as.Err())
}

func TestAutoSaverKeepsDirtyOnPermanentFailure(t *testing.T) {
	rec := event.NewRecorder()
	s := &sink{failures: 1, err: errors.New("disk full")}
	_, snap := counter()
	as := form.NewAutoSaver("doc", s, snap, form.AutoSaveConfig{Delay: time.Hour, Retry: fastRetry, Emitter: rec})

	as.Touch()
	err := as.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, as.Dirty())
	assert.Error(t, as.Err())
	calls, _ := s.snapshot()
	assert.Equal(t, 1, calls, "permanent errors are not retried")
	assert.Len(t, rec.Events(event.TypeErrorOccurred), 1)

	require.NoError(t, as.Flush(context.Background()))
	assert.False(t, as.Dirty())
	assert.NoError(t, as.Err())
	assert.Len(t, rec.Events(event.TypeDocumentSaved), 1)
}

func TestAutoSaverClose(t *testing.T) {
	s := &sink{}
	_, snap := counter()
	as := form.NewAutoSaver("doc", s, snap, form.AutoSaveConfig{Delay: time.Hour})

	as.Touch()
	require.NoError(t, as.Close(context.Background()))
	assert.Equal(t, 1, as.Saves())

	as.Touch()
	assert.False(t, as.Dirty())
	require.NoError(t, as.Close(context.Background()))
	assert.Equal(t, 1, as.Saves())
}

func TestAgentAutoSave(t *testing.T) {
	s := &sink{}
	a, err := form.New(surface, form.WithDocID("doc1"), form.WithAutoSave(s, time.Hour))
	require.NoError(t, err)
	require.NotNil(t, a.AutoSaver())

	in := want(t, a, shape.TypeInput, nil)
	require.NoError(t, a.Flush(context.Background()))
	_, saves := s.snapshot()
	require.Len(t, saves, 1)
	assert.Contains(t, saves[0], "doc1:")
	assert.Contains(t, saves[0], in.ID)

	lbl := want(t, a, shape.TypeLabel, nil)
	require.NoError(t, a.Close(context.Background()))
	_, saves = s.snapshot()
	require.Len(t, saves, 2)
	assert.Contains(t, saves[1], lbl.ID)
}

func TestAgentAutoSavePersistsCommittedDraft(t *testing.T) {
	s := &sink{}
	a, err := form.New(surface, form.WithDocID("doc1"), form.WithAutoSave(s, time.Hour))
	require.NoError(t, err)

	in := want(t, a, shape.TypeInput, nil)
	require.NoError(t, a.Flush(context.Background()))

	require.NoError(t, a.Select(in.ID))
	in.SetDraft("DRAFTVALUE")
	data, err := a.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(data), "DRAFTVALUE")
	assert.True(t, a.AutoSaver().Dirty(), "committing a draft marks the document dirty")

	require.NoError(t, a.Close(context.Background()))
	_, saves := s.snapshot()
	require.Len(t, saves, 2)
	assert.Contains(t, saves[1], "DRAFTVALUE")
}

func TestAgentCloseCommitsDraft(t *testing.T) {
	s := &sink{}
	a, err := form.New(surface, form.WithDocID("doc1"), form.WithAutoSave(s, time.Hour))
	require.NoError(t, err)

	in := want(t, a, shape.TypeInput, nil)
	require.NoError(t, a.Select(in.ID))
	in.SetDraft("typed")

	require.NoError(t, a.Close(context.Background()))
	_, saves := s.snapshot()
	require.Len(t, saves, 1)
	assert.Contains(t, saves[0], "typed")
}

func TestAgentWithoutAutoSave(t *testing.T) {
	a := newAgent(t)
	assert.Nil(t, a.AutoSaver())
	assert.NoError(t, a.Flush(context.Background()))
}

func TestSaverFunc(t *testing.T) {
	var got string
	var s form.Saver = form.SaverFunc(func(_ context.Context, id string, data []byte) error {
		got = id + "=" + string(data)
		return nil
	})
	require.NoError(t, s.Save(context.Background(), "d", []byte("x")))
	assert.Equal(t, "d=x", got)
}
