//go:build integration

package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenapi/tokenapi/internal/cache"
	"github.com/tokenapi/tokenapi/internal/metrics"
	"github.com/tokenapi/tokenapi/internal/testutil"
)

func TestIntegrationPublisher_PublishAndRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	ctx := context.Background()

	c, err := cache.New(ctx, testutil.RequireEnv(t, "REDIS_URL"), cache.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, testutil.FlushRedis(ctx, c.Client()))

	recorder := metrics.NewInMemory()
	p := NewPublisher(c.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
	_, err = p.Publish(ctx, Event{Type: EventIssued, TokenPrefix: "9944b091", UserID: 1, At: at})
	require.NoError(t, err)

	p.PublishAsync(Event{Type: EventDeactivated, TokenPrefix: "9944b091", UserID: 1, Actor: "root", At: at + 1})
	flushCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Flush(flushCtx))
	assert.Equal(t, uint64(1), recorder.Snapshot().AuditEventsPublished)

	entries, err := p.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventDeactivated, entries[0].Event.Type)
	assert.Equal(t, "root", entries[0].Event.Actor)
	assert.Equal(t, EventIssued, entries[1].Event.Type)

	limited, err := p.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
