package localstore

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Key prefixes for the graph keyspace. Segments are joined with a NUL
// separator so property values cannot forge key boundaries.
const (
	prefixNode    = "n" // n/<nodeID> -> nodeRecord
	prefixRel     = "r" // r/<relID> -> relRecord
	prefixAdj     = "a" // a/<nodeID>/<relID> -> nil, both endpoints
	prefixEntry   = "e" // e/<index>/<key>/<value>/<nodeID> -> nil
	prefixReverse = "v" // v/<nodeID>/<index>/<key>/<value> -> nil
	prefixIndex   = "x" // x/<index> -> nil, index existence
)

const keySep = "\x00"

// nodeRecord is the persisted form of one node.
type nodeRecord struct {
	Props map[string]interface{} `msgpack:"props"`
}

// relRecord is the persisted form of one relationship.
type relRecord struct {
	Type  string                 `msgpack:"type"`
	Start string                 `msgpack:"start"`
	End   string                 `msgpack:"end"`
	Props map[string]interface{} `msgpack:"props"`
}

// key joins segments into one backend key.
func key(segments ...string) []byte {
	return []byte(strings.Join(segments, keySep))
}

// keyPrefix is a key followed by the separator, for prefix scans over a
// segment boundary.
func keyPrefix(segments ...string) []byte {
	return []byte(strings.Join(segments, keySep) + keySep)
}

// splitKey returns the segments of a backend key.
func splitKey(k []byte) []string {
	return strings.Split(string(k), keySep)
}

// escapeSegment makes a value safe to embed as one key segment: NUL bytes
// would forge segment boundaries, so 0x01 becomes 0x01 0x01 and 0x00 becomes
// 0x01 0x02. The encoding is injective; segments are never decoded, only
// compared and re-joined.
func escapeSegment(s string) string {
	if !strings.ContainsAny(s, "\x00\x01") {
		return s
	}
	s = strings.ReplaceAll(s, "\x01", "\x01\x01")
	return strings.ReplaceAll(s, "\x00", "\x01\x02")
}

// canonicalValue renders an index value deterministically for key encoding.
// A type tag keeps 1 and "1" distinct.
func canonicalValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return "s:" + escapeSegment(v)
	case bool:
		return "b:" + strconv.FormatBool(v)
	case int:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case int64:
		return "i:" + strconv.FormatInt(v, 10)
	case float32:
		return "f:" + strconv.FormatFloat(float64(v), 'g', -1, 64)
	case float64:
		return "f:" + strconv.FormatFloat(v, 'g', -1, 64)
	default:
		// Declared property types never reach here; fall back for
		// schemaless relationship properties of other kinds.
		return "s:" + escapeSegment(fmt.Sprintf("%v", v))
	}
}

// encodeRecord serializes a record with msgpack.
func encodeRecord(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// decodeRecord deserializes a record. Loose interface decoding keeps
// integers as int64 and floats as float64, matching the values the mapping
// layer persists.
func decodeRecord(b []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

// copyProps returns a defensive copy of a property map.
func copyProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
