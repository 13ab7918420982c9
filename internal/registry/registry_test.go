package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"relaybot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "channels.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAddListActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	require.NoError(t, st.Add(ctx, "-1002", "Beta"))
	require.NoError(t, st.Add(ctx, "-1001", "Alpha"))

	dests, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, dests, 2)
	// Snapshot order is stable id order.
	require.Equal(t, "-1001", dests[0].ID)
	require.Equal(t, "Alpha", dests[0].Name)
	require.Equal(t, "-1002", dests[1].ID)
}

func TestAddIsIdempotentAndReactivates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	require.NoError(t, st.Add(ctx, "-1001", "Old Name"))
	require.NoError(t, st.RecordDelivery(ctx, "-1001", time.Now()))

	ok, err := st.Deactivate(ctx, "-1001")
	require.NoError(t, err)
	require.True(t, ok)

	dests, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, dests)

	// Re-adding reactivates, renames, and keeps the forward counter.
	require.NoError(t, st.Add(ctx, "-1001", "New Name"))
	dests, err = st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, dests, 1)
	require.Equal(t, "New Name", dests[0].Name)

	all, err := st.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.EqualValues(t, 1, all[0].TotalForwards)
}

func TestDeactivateUnknown(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	ok, err := st.Deactivate(context.Background(), "-1009")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordDelivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	require.NoError(t, st.Add(ctx, "-1001", "Alpha"))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordDelivery(ctx, "-1001", at))
	require.NoError(t, st.RecordDelivery(ctx, "-1001", at.Add(time.Minute)))

	all, err := st.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.EqualValues(t, 2, all[0].TotalForwards)
	require.Equal(t, at.Add(time.Minute), all[0].LastForward.UTC())
}

func TestCountActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	n, err := st.CountActive(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, st.Add(ctx, "-1001", ""))
	require.NoError(t, st.Add(ctx, "-1002", ""))
	_, err = st.Deactivate(ctx, "-1002")
	require.NoError(t, err)

	n, err = st.CountActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{}, logx.Nop())
	require.Error(t, err)
}
