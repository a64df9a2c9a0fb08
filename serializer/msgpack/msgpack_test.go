package msgpack

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type NoteHeld struct {
	NoteID   string `msgpack:"noteId"`
	Pitch    int    `msgpack:"pitch"`
	Velocity int    `msgpack:"velocity"`
}

type NoteReleased struct {
	NoteID string `msgpack:"noteId"`
}

func TestSerializerRoundTrip(t *testing.T) {
	t.Run("registered type comes back as a value", func(t *testing.T) {
		s := NewSerializer()
		s.RegisterAll(NoteHeld{})

		data, err := s.Serialize(NoteHeld{NoteID: "n1", Pitch: 60, Velocity: 100})
		require.NoError(t, err)
		require.NotEmpty(t, data)

		result, err := s.Deserialize(data, "NoteHeld")
		require.NoError(t, err)

		event, ok := result.(NoteHeld)
		require.True(t, ok, "expected a value of the registered type, got %T", result)
		assert.Equal(t, "n1", event.NoteID)
		assert.Equal(t, 60, event.Pitch)
	})

	t.Run("unregistered type falls back to a map", func(t *testing.T) {
		s := NewSerializer()

		data, err := s.Serialize(NoteHeld{NoteID: "n1", Pitch: 60, Velocity: 100})
		require.NoError(t, err)

		result, err := s.Deserialize(data, "NoteHeld")
		require.NoError(t, err)

		m, ok := result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "n1", m["noteId"])
	})
}

func TestSerializerErrors(t *testing.T) {
	t.Run("nil event", func(t *testing.T) {
		s := NewSerializer()

		_, err := s.Serialize(nil)

		var serErr *SerializationError
		require.True(t, errors.As(err, &serErr))
		assert.Equal(t, "serialize", serErr.Operation)
	})

	t.Run("empty data", func(t *testing.T) {
		s := NewSerializer()

		_, err := s.Deserialize(nil, "NoteHeld")

		var serErr *SerializationError
		require.True(t, errors.As(err, &serErr))
		assert.Equal(t, "deserialize", serErr.Operation)
		assert.Equal(t, "NoteHeld", serErr.EventType)
	})

	t.Run("unwrap exposes the cause", func(t *testing.T) {
		s := NewSerializer()

		_, err := s.Deserialize(nil, "NoteHeld")

		var serErr *SerializationError
		require.True(t, errors.As(err, &serErr))
		assert.Error(t, errors.Unwrap(serErr))
	})
}

func TestSerializerRegistry(t *testing.T) {
	t.Run("register with an explicit name", func(t *testing.T) {
		s := NewSerializer()

		s.Register("note.held", NoteHeld{})

		_, ok := s.Lookup("note.held")
		assert.True(t, ok)
	})

	t.Run("pointer examples register the element type", func(t *testing.T) {
		s := NewSerializer()

		s.RegisterAll(&NoteHeld{})

		typ, ok := s.Lookup("NoteHeld")
		require.True(t, ok)
		assert.Equal(t, "NoteHeld", typ.Name())
	})

	t.Run("count and names", func(t *testing.T) {
		s := NewSerializer()
		s.RegisterAll(NoteHeld{}, NoteReleased{})

		assert.Equal(t, 2, s.Count())
		assert.ElementsMatch(t, []string{"NoteHeld", "NoteReleased"}, s.RegisteredTypes())
	})

	t.Run("options seed the registry", func(t *testing.T) {
		s := NewSerializerWithOptions(WithRegistry(map[string]reflect.Type{
			"NoteHeld": reflect.TypeOf(NoteHeld{}),
		}))

		_, ok := s.Lookup("NoteHeld")
		assert.True(t, ok)
	})
}
