package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/store"
)

func seed(t *testing.T, s store.Store, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.Save(context.Background(), id, []byte(`{}`)))
	}
}

func TestPruner_RunOnce(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	seed(t, s, "doc-1", 5)
	seed(t, s, "doc-2", 2)

	p, err := store.NewPruner(s, "@hourly", 2, nil)
	require.NoError(t, err)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 4, s.Len())
}

func TestPruner_BadSchedule(t *testing.T) {
	_, err := store.NewPruner(store.NewMemoryStore(), "every tuesday", 2, nil)
	assert.Error(t, err)
}

func TestPruner_Schedule(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	seed(t, s, "doc-1", 3)

	p, err := store.NewPruner(s, "@every 1s", 1, nil)
	require.NoError(t, err)
	p.Start()
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return s.Len() == 1 }, 4*time.Second, 20*time.Millisecond)
}
