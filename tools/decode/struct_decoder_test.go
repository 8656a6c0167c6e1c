package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	From  string         `json:"from"`
	Count int64          `json:"count"`
	Meta  map[string]any `json:"meta"`
}

func TestMap_DecodesJSONTags(t *testing.T) {
	got, err := Map[samplePayload](map[string]any{
		"from":  "alice",
		"count": float64(3),
		"meta":  `{"k":"v"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", got.From)
	assert.Equal(t, int64(3), got.Count)
	assert.Equal(t, "v", got.Meta["k"])
}

func TestMap_WeakTyping(t *testing.T) {
	got, err := Map[samplePayload](map[string]any{"count": "42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Count)

	_, err = Map[samplePayload](map[string]any{"count": "42"}, Options{WeaklyTypedInput: false})
	assert.Error(t, err)
}

func TestMap_Nil(t *testing.T) {
	_, err := Map[samplePayload](nil)
	assert.Error(t, err)
}

func TestReadString(t *testing.T) {
	m := map[string]any{"a": "x", "b": 1}

	s, err := ReadString(m, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	_, err = ReadString(m, "b")
	assert.Error(t, err)
	_, err = ReadString(m, "c")
	assert.Error(t, err)
}
