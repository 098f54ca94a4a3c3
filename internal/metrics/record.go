package metrics

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one row returned by an ad platform. Keys keep the order the
// platform sent them in, which becomes the column order of the report table.
type Record = orderedmap.OrderedMap[string, any]

// NewRecord builds a record from alternating key/value pairs.
func NewRecord(kv ...any) *Record {
	r := orderedmap.New[string, any]()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

// Keys returns the record keys in order.
func Keys(r *Record) []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, r.Len())
	for pair := r.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// merge copies src into dst. Existing keys keep their position and take the
// new value.
func merge(dst, src *Record) {
	if src == nil {
		return
	}
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
}
