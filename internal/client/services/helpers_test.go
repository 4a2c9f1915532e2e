package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/client/dbstore"
	"github.com/dmitrijs2005/vaultsync/internal/client/index"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
	"github.com/stretchr/testify/require"
)

// testClock ticks one millisecond on every read so consecutive timestamps
// are strictly increasing.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *testClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) clock() timex.Clock { return c.now }

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := dbstore.Open(context.Background(), dbstore.MemoryPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type recordingIndexer struct {
	upserts map[string]index.Document
	deletes []string
}

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{upserts: map[string]index.Document{}}
}

func (r *recordingIndexer) Upsert(_ context.Context, doc index.Document) error {
	r.upserts[doc.ID] = doc
	return nil
}

func (r *recordingIndexer) Delete(_ context.Context, id string) error {
	r.deletes = append(r.deletes, id)
	delete(r.upserts, id)
	return nil
}
