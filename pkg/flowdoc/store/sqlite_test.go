package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/store"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, "doc-1", []byte(`"persistent"`)))
	require.NoError(t, s1.Close())

	s2, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	data, err := s2.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"persistent"`), data)

	// The revision counter survives reopening.
	require.NoError(t, s2.Save(ctx, "doc-1", []byte(`"next"`)))
	revs, err := s2.Revisions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 2, revs[1].Revision)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := store.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "concurrent.db"))
	require.NoError(t, err)
	defer s.Close()

	const numGoroutines = 20
	const numOps = 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			docID := fmt.Sprintf("doc-%d", id%4)
			for j := 0; j < numOps; j++ {
				switch j % 3 {
				case 0, 1:
					assert.NoError(t, s.Save(ctx, docID, []byte("data")))
				case 2:
					_, _ = s.List(ctx)
				}
			}
		}(i)
	}
	wg.Wait()

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 4)
	for _, info := range infos {
		assert.Equal(t, numGoroutines/4*(numOps-numOps/3), info.Revision, info.DocID)
	}
}

func TestSQLiteStore_LargeData(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	largeData := make([]byte, 1024*1024)
	for i := range largeData {
		largeData[i] = byte(i % 256)
	}
	require.NoError(t, s.Save(ctx, "doc-1", largeData))

	loaded, err := s.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, largeData, loaded)

	infos, err := s.Revisions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1024*1024), infos[0].Size)
}

func TestSQLiteStore_FileSizeGrowth(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "growth.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Save(ctx, "doc-1", make([]byte, 10000)))
	}
	require.NoError(t, s.Close())

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(50000))
}
