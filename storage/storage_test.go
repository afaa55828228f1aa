package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryUnknownUserIsEmpty(t *testing.T) {
	s := NewConversationStore(0)
	h := s.History("nobody")
	require.NotNil(t, h)
	assert.Empty(t, h)
	assert.Zero(t, s.Users())
}

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	s := NewConversationStore(10)
	turn := s.Append("u1", Turn{Role: RoleUser, Content: "hello", Type: "text"})

	assert.NotEmpty(t, turn.ID)
	assert.False(t, turn.Timestamp.IsZero())

	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	kept := s.Append("u1", Turn{ID: "mine", Role: RoleAssistant, Timestamp: fixed})
	assert.Equal(t, "mine", kept.ID)
	assert.Equal(t, fixed, kept.Timestamp)
}

func TestHistoryIsBoundedFIFO(t *testing.T) {
	s := NewConversationStore(DefaultHistoryLimit)
	for i := 0; i < 51; i++ {
		s.Append("u1", Turn{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	h := s.History("u1")
	require.Len(t, h, 50)
	assert.Equal(t, "m1", h[0].Content)
	assert.Equal(t, "m50", h[49].Content)
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewConversationStore(5)
	s.Append("u1", Turn{Content: "original"})

	h := s.History("u1")
	h[0].Content = "changed"

	assert.Equal(t, "original", s.History("u1")[0].Content)
}

func TestUsersAreIsolated(t *testing.T) {
	s := NewConversationStore(5)
	s.Append("a", Turn{Content: "for a"})
	s.Append("b", Turn{Content: "for b"})
	s.Append("b", Turn{Content: "again b"})

	assert.Len(t, s.History("a"), 1)
	assert.Len(t, s.History("b"), 2)
	assert.Equal(t, 2, s.Users())
}

func TestConcurrentAppends(t *testing.T) {
	s := NewConversationStore(1000)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("shared", Turn{Content: fmt.Sprintf("%d-%d", w, i)})
				s.History("shared")
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, s.History("shared"), 400)
}

func TestSearchIndex(t *testing.T) {
	s := NewConversationStore(10)
	s.Append("u1", Turn{Role: RoleUser, Content: "show me June reports"})
	s.Append("u1", Turn{Role: RoleAssistant, Content: "Found 3 documents"})
	s.Append("u1", Turn{Role: RoleUser, Content: "analyze june documents"})
	s.Append("u2", Turn{Role: RoleUser, Content: "june for someone else"})

	idx := NewSearchIndex(s)

	matches := idx.Search("u1", "JUNE")
	require.Len(t, matches, 2)
	assert.Equal(t, 2, matches[0].Index, "newest match first")
	assert.Equal(t, 0, matches[1].Index)
	assert.Equal(t, RoleUser, matches[0].Role)

	assert.Empty(t, idx.Search("u1", "  "))
	assert.Empty(t, idx.Search("u3", "june"))
}

func TestLaunchStoreRoundTrip(t *testing.T) {
	ls, err := OpenLaunchStore(t.TempDir())
	require.NoError(t, err)
	defer ls.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	require.NoError(t, ls.Record(ctx, LaunchOutcome{
		Strategy: "npx -y @isaacphi/mcp-gdrive",
		Attempt:  1,
		Error:    "handshake timed out",
		Duration: 5 * time.Second,
		At:       base,
	}))
	require.NoError(t, ls.Record(ctx, LaunchOutcome{
		Strategy:  "node /usr/lib/node_modules/@isaacphi/mcp-gdrive/dist/index.js",
		Attempt:   2,
		Succeeded: true,
		Duration:  1200 * time.Millisecond,
		At:        base.Add(10 * time.Second),
	}))

	recent, err := ls.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.True(t, recent[0].Succeeded)
	assert.Equal(t, 2, recent[0].Attempt)
	assert.Equal(t, 1200*time.Millisecond, recent[0].Duration)

	assert.False(t, recent[1].Succeeded)
	assert.Equal(t, "handshake timed out", recent[1].Error)
	assert.Equal(t, base.UnixMilli(), recent[1].At.UnixMilli())

	limited, err := ls.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLaunchStoreInMemory(t *testing.T) {
	ls, err := OpenLaunchStore("")
	require.NoError(t, err)
	defer ls.Close()

	require.NoError(t, ls.Record(context.Background(), LaunchOutcome{Strategy: "npx"}))
	recent, err := ls.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].At.IsZero())
}

func TestLaunchStoreMigratesOldSchema(t *testing.T) {
	dir := t.TempDir()

	db, err := sql.Open("sqlite", filepath.Join(dir, "launches.db"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE launch_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		attempted_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO launch_attempts (strategy, succeeded, error, duration_ms, attempted_at) VALUES ('npx', 0, 'boom', 10, 1000)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ls, err := OpenLaunchStore(dir)
	require.NoError(t, err)
	defer ls.Close()

	recent, err := ls.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "boom", recent[0].Error)
	assert.Equal(t, 0, recent[0].Attempt)
}
