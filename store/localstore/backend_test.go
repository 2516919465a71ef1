package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendGetSetDelete(t *testing.T) {
	b := NewMemoryBackend()

	_, err := b.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, b.Set([]byte("k"), []byte("v")))
	got, err := b.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, b.Delete([]byte("k")))
	_, err = b.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is a no-op.
	assert.NoError(t, b.Delete([]byte("k")))
}

func TestMemoryBackendScanPrefix(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set([]byte("a\x001"), nil))
	require.NoError(t, b.Set([]byte("a\x002"), []byte("x")))
	require.NoError(t, b.Set([]byte("b\x001"), nil))

	var keys []string
	err := b.Scan([]byte("a\x00"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a\x001", "a\x002"}, keys)
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	b := NewMemoryBackend()
	v := []byte("orig")
	require.NoError(t, b.Set([]byte("k"), v))
	v[0] = 'X'

	got, err := b.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), got)

	got[0] = 'Y'
	again, err := b.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), again)
}

func TestEscapeSegmentIsInjective(t *testing.T) {
	inputs := []string{"plain", "a\x00b", "a\x01b", "a\x01\x02b", "\x00", "\x01", ""}
	seen := map[string]string{}
	for _, in := range inputs {
		esc := escapeSegment(in)
		assert.NotContains(t, esc, "\x00")
		prev, dup := seen[esc]
		assert.False(t, dup, "%q and %q collide", prev, in)
		seen[esc] = in
	}
}

func TestCanonicalValueNeverContainsSeparator(t *testing.T) {
	// A forged value must still produce a fixed-width reverse key.
	segs := splitKey(key("v", "node-1", "Person", "name", canonicalValue("a\x00b")))
	assert.Len(t, segs, 5)
}

func TestCanonicalValueDistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, canonicalValue("1"), canonicalValue(int64(1)))
	assert.NotEqual(t, canonicalValue(int64(1)), canonicalValue(float64(1)))
	assert.Equal(t, canonicalValue(1), canonicalValue(int64(1)))
	assert.Equal(t, canonicalValue(true), "b:true")
}

func TestRecordRoundTripKeepsNumericKinds(t *testing.T) {
	b, err := encodeRecord(nodeRecord{Props: map[string]interface{}{
		"age":   int64(42),
		"score": 9.5,
		"name":  "alice",
		"flag":  true,
	}})
	require.NoError(t, err)

	var rec nodeRecord
	require.NoError(t, decodeRecord(b, &rec))
	assert.Equal(t, int64(42), rec.Props["age"])
	assert.Equal(t, 9.5, rec.Props["score"])
	assert.Equal(t, "alice", rec.Props["name"])
	assert.Equal(t, true, rec.Props["flag"])
}
