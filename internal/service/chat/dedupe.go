package chat

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// dedupeBucket is the time window within which an identical message from
// the same sender in the same session counts as a duplicate submission.
const dedupeBucket = 2 * time.Second

type dedupeEntry struct {
	at        time.Time
	delivered bool
}

// dedupe suppresses double-writes when the REST path and the live path
// both submit the same message. The key is server-generated; the wire is
// not trusted to claim "already saved". Each entry remembers whether the
// first attempt reached a live receiver, so a repeat is acknowledged with
// the same outcome.
type dedupe struct {
	mu   sync.Mutex
	seen map[string]*dedupeEntry
	ttl  time.Duration
}

func newDedupe(ttl time.Duration) *dedupe {
	return &dedupe{
		seen: make(map[string]*dedupeEntry),
		ttl:  ttl,
	}
}

// remember records a message submission. It returns the entry tracking the
// submission and whether it is new. The current and previous time buckets
// are both checked so a duplicate pair straddling a bucket edge is still
// caught.
func (d *dedupe) remember(sessionID, senderID, content string, at time.Time) (*dedupeEntry, bool) {
	sum := sha1.Sum([]byte(sessionID + "\x00" + senderID + "\x00" + content))
	digest := hex.EncodeToString(sum[:])

	bucket := at.UnixNano() / int64(dedupeBucket)
	current := fmt.Sprintf("%s|%d", digest, bucket)
	previous := fmt.Sprintf("%s|%d", digest, bucket-1)

	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.seen[current]; ok {
		return entry, false
	}
	if entry, ok := d.seen[previous]; ok {
		return entry, false
	}

	entry := &dedupeEntry{at: at}
	d.seen[current] = entry
	d.prune(at)

	return entry, true
}

// setOutcome records whether the first attempt was delivered live.
func (d *dedupe) setOutcome(entry *dedupeEntry, delivered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry.delivered = delivered
}

// outcome reports the delivery result of the entry's first attempt.
func (d *dedupe) outcome(entry *dedupeEntry) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return entry.delivered
}

func (d *dedupe) prune(now time.Time) {
	if len(d.seen) < 1024 {
		return
	}
	for key, entry := range d.seen {
		if now.Sub(entry.at) > d.ttl {
			delete(d.seen, key)
		}
	}
}
