package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundside/stave/adapters"
)

func TestNewAdapter(t *testing.T) {
	t.Run("creates adapter with defaults", func(t *testing.T) {
		adapter := NewAdapter()

		assert.NotNil(t, adapter)
		assert.Equal(t, 0, adapter.EventCount())
		assert.Equal(t, 0, adapter.StreamCount())
	})
}

func TestMemoryAdapter_Initialize(t *testing.T) {
	t.Run("Initialize is no-op", func(t *testing.T) {
		adapter := NewAdapter()

		err := adapter.Initialize(context.Background())

		assert.NoError(t, err)
	})
}

func TestMemoryAdapter_Append(t *testing.T) {
	t.Run("append to new stream", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{"trackId":"t1"}`)},
		}

		stored, err := adapter.Append(ctx, "Track-t1", events, NoStream)

		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "Track-t1", stored[0].StreamID)
		assert.Equal(t, "TrackCreated", stored[0].Type)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, uint64(1), stored[0].GlobalPosition)
		assert.NotEmpty(t, stored[0].ID)
	})

	t.Run("versions are contiguous and 1-based", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
			{Type: "MidiNoteAdded", Data: []byte(`{}`)},
		}

		stored, err := adapter.Append(ctx, "Track-t1", events, NoStream)

		require.NoError(t, err)
		require.Len(t, stored, 3)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, int64(2), stored[1].Version)
		assert.Equal(t, int64(3), stored[2].Version)
	})

	t.Run("append to existing stream", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events1 := []adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}
		_, err := adapter.Append(ctx, "Track-t1", events1, NoStream)
		require.NoError(t, err)

		events2 := []adapters.EventRecord{{Type: "ClipAdded", Data: []byte(`{}`)}}
		stored, err := adapter.Append(ctx, "Track-t1", events2, 1)

		require.NoError(t, err)
		assert.Equal(t, int64(2), stored[0].Version)
	})

	t.Run("concurrency conflict on wrong version", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events1 := []adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}
		_, err := adapter.Append(ctx, "Track-t1", events1, NoStream)
		require.NoError(t, err)

		events2 := []adapters.EventRecord{{Type: "ClipAdded", Data: []byte(`{}`)}}
		_, err = adapter.Append(ctx, "Track-t1", events2, 5)

		assert.Error(t, err)
		assert.True(t, errors.Is(err, adapters.ErrConcurrencyConflict))

		var concErr *adapters.ConcurrencyError
		require.True(t, errors.As(err, &concErr))
		assert.Equal(t, "Track-t1", concErr.StreamID)
		assert.Equal(t, int64(5), concErr.ExpectedVersion)
		assert.Equal(t, int64(1), concErr.ActualVersion)
	})

	t.Run("failed append leaves stream unchanged", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		batch := []adapters.EventRecord{
			{Type: "ClipAdded", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
		}
		_, err = adapter.Append(ctx, "Track-t1", batch, 7)
		require.Error(t, err)

		info, err := adapter.GetStreamInfo(ctx, "Track-t1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), info.Version)
		assert.Equal(t, 1, adapter.EventCount())
	})

	t.Run("NoStream rejects existing stream", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		_, err = adapter.Append(ctx, "Track-t1", events, NoStream)

		assert.True(t, errors.Is(err, adapters.ErrConcurrencyConflict))
	})

	t.Run("AnyVersion skips check", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{{Type: "ClipAdded", Data: []byte(`{}`)}}

		_, err := adapter.Append(ctx, "Track-t1", events, AnyVersion)
		require.NoError(t, err)

		_, err = adapter.Append(ctx, "Track-t1", events, AnyVersion)
		require.NoError(t, err)

		assert.Equal(t, 2, adapter.EventCount())
	})

	t.Run("StreamExists requires existing stream", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{{Type: "ClipAdded", Data: []byte(`{}`)}}

		_, err := adapter.Append(ctx, "Track-missing", events, StreamExists)
		assert.True(t, errors.Is(err, adapters.ErrStreamNotFound))

		_, err = adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		_, err = adapter.Append(ctx, "Track-t1", events, StreamExists)
		assert.NoError(t, err)
	})

	t.Run("empty stream ID", func(t *testing.T) {
		adapter := NewAdapter()

		_, err := adapter.Append(context.Background(), "", nil, AnyVersion)

		assert.True(t, errors.Is(err, adapters.ErrEmptyStreamID))
	})

	t.Run("no events", func(t *testing.T) {
		adapter := NewAdapter()

		_, err := adapter.Append(context.Background(), "Track-t1", nil, AnyVersion)

		assert.True(t, errors.Is(err, adapters.ErrNoEvents))
	})

	t.Run("global position increases across streams", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}

		s1, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)
		s2, err := adapter.Append(ctx, "Track-t2", events, NoStream)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), s1[0].GlobalPosition)
		assert.Equal(t, uint64(2), s2[0].GlobalPosition)
	})

	t.Run("cancelled context", func(t *testing.T) {
		adapter := NewAdapter()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		events := []adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)

		assert.Error(t, err)
	})
}

func TestMemoryAdapter_Load(t *testing.T) {
	t.Run("load all events in order", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
		}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		loaded, err := adapter.Load(ctx, "Track-t1", 0)

		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "TrackCreated", loaded[0].Type)
		assert.Equal(t, "ClipAdded", loaded[1].Type)
	})

	t.Run("load from version is exclusive", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
			{Type: "MidiNoteAdded", Data: []byte(`{}`)},
		}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		loaded, err := adapter.Load(ctx, "Track-t1", 1)

		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, int64(2), loaded[0].Version)
	})

	t.Run("missing stream returns empty slice", func(t *testing.T) {
		adapter := NewAdapter()

		loaded, err := adapter.Load(context.Background(), "Track-missing", 0)

		require.NoError(t, err)
		assert.Empty(t, loaded)
	})
}

func TestMemoryAdapter_LoadToVersion(t *testing.T) {
	t.Run("load up to version inclusive", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
			{Type: "MidiNoteAdded", Data: []byte(`{}`)},
		}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		loaded, err := adapter.LoadToVersion(ctx, "Track-t1", 2)

		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, int64(2), loaded[1].Version)
	})

	t.Run("negative version rejected", func(t *testing.T) {
		adapter := NewAdapter()

		_, err := adapter.LoadToVersion(context.Background(), "Track-t1", -1)

		assert.True(t, errors.Is(err, adapters.ErrInvalidVersion))
	})
}

func TestMemoryAdapter_GetStreamInfo(t *testing.T) {
	t.Run("returns stream metadata", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		events := []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
		}
		_, err := adapter.Append(ctx, "Track-t1", events, NoStream)
		require.NoError(t, err)

		info, err := adapter.GetStreamInfo(ctx, "Track-t1")

		require.NoError(t, err)
		assert.Equal(t, "Track-t1", info.StreamID)
		assert.Equal(t, "Track", info.Category)
		assert.Equal(t, int64(2), info.Version)
		assert.Equal(t, int64(2), info.EventCount)
		assert.False(t, info.CreatedAt.IsZero())
	})

	t.Run("missing stream", func(t *testing.T) {
		adapter := NewAdapter()

		_, err := adapter.GetStreamInfo(context.Background(), "Track-missing")

		assert.True(t, errors.Is(err, adapters.ErrStreamNotFound))
	})
}

func TestMemoryAdapter_Queries(t *testing.T) {
	t.Run("EventsByType scans across streams", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		_, err := adapter.Append(ctx, "Track-t1", []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
			{Type: "ClipAdded", Data: []byte(`{}`)},
		}, NoStream)
		require.NoError(t, err)

		_, err = adapter.Append(ctx, "Track-t2", []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
		}, NoStream)
		require.NoError(t, err)

		events, err := adapter.EventsByType(ctx, "TrackCreated")

		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "Track-t1", events[0].StreamID)
		assert.Equal(t, "Track-t2", events[1].StreamID)
	})

	t.Run("EventsSince filters by timestamp", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		_, err := adapter.Append(ctx, "Track-t1", []adapters.EventRecord{
			{Type: "TrackCreated", Data: []byte(`{}`)},
		}, NoStream)
		require.NoError(t, err)

		all, err := adapter.EventsSince(ctx, time.Time{})
		require.NoError(t, err)
		assert.Len(t, all, 1)

		none, err := adapter.EventsSince(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryAdapter_Snapshots(t *testing.T) {
	t.Run("save and load snapshot", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		record := adapters.SnapshotRecord{
			StreamID: "Track-t1",
			Category: "Track",
			Version:  10,
			Data:     []byte(`{"name":"Drums"}`),
		}
		require.NoError(t, adapter.SaveSnapshot(ctx, record))

		loaded, err := adapter.LoadSnapshot(ctx, "Track-t1")

		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, int64(10), loaded.Version)
		assert.Equal(t, []byte(`{"name":"Drums"}`), loaded.Data)
		assert.False(t, loaded.Timestamp.IsZero())
	})

	t.Run("missing snapshot returns nil", func(t *testing.T) {
		adapter := NewAdapter()

		loaded, err := adapter.LoadSnapshot(context.Background(), "Track-missing")

		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("delete snapshot", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		require.NoError(t, adapter.SaveSnapshot(ctx, adapters.SnapshotRecord{
			StreamID: "Track-t1",
			Version:  3,
			Data:     []byte(`{}`),
		}))
		require.NoError(t, adapter.DeleteSnapshot(ctx, "Track-t1"))

		loaded, err := adapter.LoadSnapshot(ctx, "Track-t1")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}

func TestMemoryAdapter_Close(t *testing.T) {
	t.Run("operations fail after close", func(t *testing.T) {
		adapter := NewAdapter()
		require.NoError(t, adapter.Close())

		_, err := adapter.Append(context.Background(), "Track-t1",
			[]adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}, NoStream)
		assert.True(t, errors.Is(err, adapters.ErrAdapterClosed))

		_, err = adapter.Load(context.Background(), "Track-t1", 0)
		assert.True(t, errors.Is(err, adapters.ErrAdapterClosed))

		assert.True(t, errors.Is(adapter.Ping(context.Background()), adapters.ErrAdapterClosed))
	})
}

func TestMemoryAdapter_Reset(t *testing.T) {
	t.Run("clears all state", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		_, err := adapter.Append(ctx, "Track-t1",
			[]adapters.EventRecord{{Type: "TrackCreated", Data: []byte(`{}`)}}, NoStream)
		require.NoError(t, err)

		adapter.Reset()

		assert.Equal(t, 0, adapter.EventCount())
		assert.Equal(t, 0, adapter.StreamCount())

		pos, err := adapter.GetLastPosition(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), pos)
	})
}

func TestMemoryAdapter_Concurrent(t *testing.T) {
	t.Run("concurrent appends to separate streams", func(t *testing.T) {
		adapter := NewAdapter()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				streamID := "Track-" + string(rune('a'+n))
				for j := 0; j < 20; j++ {
					_, err := adapter.Append(ctx, streamID,
						[]adapters.EventRecord{{Type: "ClipAdded", Data: []byte(`{}`)}},
						AnyVersion)
					assert.NoError(t, err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 200, adapter.EventCount())
		assert.Equal(t, 10, adapter.StreamCount())

		// Each stream's versions stay contiguous
		for n := 0; n < 10; n++ {
			info, err := adapter.GetStreamInfo(ctx, "Track-"+string(rune('a'+n)))
			require.NoError(t, err)
			assert.Equal(t, int64(20), info.Version)
		}
	})
}
