package view

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

// MessageQuery mirrors spec.md §4.3's getMessages bound set. A zero value
// means "unbounded"; exactly one of each {LT,LTE} and {GT,GTE} pair should
// be set, though nothing here enforces mutual exclusion.
type MessageQuery struct {
	LT  *int64
	LTE *int64
	GT  *int64
	GTE *int64

	Limit   int
	Reverse bool
}

// DefaultLimit is getMessages' default limit (spec.md §4.3: "Default
// limit=51, reverse=true (newest first)").
const DefaultLimit = 51

// queryMessagesTx scans the timestamp index within q's bounds in the
// requested direction, skipping tombstoned messages, stopping after
// q.Limit results. Ties on timestamp break by id lexicographically,
// which falls out of the index key encoding (timestamp bytes then id
// bytes) without extra comparison logic.
func queryMessagesTx(tx *bolt.Tx, q MessageQuery) ([]Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	c := tx.Bucket(bucketMessageTSIndex).Cursor()
	msgBucket := tx.Bucket(bucketMessages)

	// position classifies a timestamp against q's bounds: -1 below the
	// window, 0 inside it, +1 above it. Since the index is sorted by
	// timestamp, a forward scan can stop at the first +1 and a reverse
	// scan can stop at the first -1.
	position := func(ts int64) int {
		if q.GT != nil && ts <= *q.GT {
			return -1
		}
		if q.GTE != nil && ts < *q.GTE {
			return -1
		}
		if q.LT != nil && ts >= *q.LT {
			return 1
		}
		if q.LTE != nil && ts > *q.LTE {
			return 1
		}
		return 0
	}

	var out []Message
	collect := func(v []byte) {
		data := msgBucket.Get(v)
		if data == nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		if m.Tombstoned {
			return
		}
		out = append(out, m)
	}

	if !q.Reverse {
		for k, v := c.First(); k != nil; k, v = c.Next() {
			switch position(indexKeyTimestamp(k)) {
			case -1:
				continue
			case 1:
				return out, nil
			}
			collect(v)
			if len(out) >= limit {
				return out, nil
			}
		}
	} else {
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			switch position(indexKeyTimestamp(k)) {
			case 1:
				continue
			case -1:
				return out, nil
			}
			collect(v)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
