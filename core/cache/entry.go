package cache

import "time"

// Entry is one cached value together with its expiry bookkeeping.
// Data holds the JSON-serialized payload; Size is len(Data).
type Entry struct {
	Data      []byte        `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
	Size      int64         `json:"size"`
}

// Expired reports whether the entry's age exceeds its TTL at the given
// instant. A zero TTL never expires.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.Timestamp) > e.TTL
}
